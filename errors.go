package roadtiles

import "errors"

var (
	ErrNoGraphArchive = errors.New("a graph tile archive is required")
	ErrNoGraphTiles   = errors.New("archive holds no recognizable graph tiles")
)
