package graph

import "fmt"

// Level is a road network hierarchy level. Lower levels hold the more
// important road classes in larger tiles.
type Level uint8

const (
	// Highway is level 0: motorway class roads, 4 degree tiles.
	Highway Level = iota
	// Arterial is level 1: trunk and primary class roads, 1 degree tiles.
	Arterial
	// Local is level 2: everything down to service roads, 0.25 degree tiles.
	Local
)

// Levels lists the hierarchy levels that have a tiling, lowest first.
func Levels() []Level {
	return []Level{Highway, Arterial, Local}
}

func (l Level) String() string {
	switch l {
	case Highway:
		return "highway"
	case Arterial:
		return "arterial"
	case Local:
		return "local"
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

// ParseLevel accepts a level name or its decimal value.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "highway", "0":
		return Highway, nil
	case "arterial", "1":
		return Arterial, nil
	case "local", "2":
		return Local, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrLevelRange, s)
}
