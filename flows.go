package roadtiles

import (
	"github.com/twpayne/go-polyline"

	"github.com/kinkard/roadtiles/graph"
)

// unpostedLimit is the speed limit sentinel for roads with no posted
// limit.
const unpostedLimit = 255

// shapeCodec encodes edge shapes with 6 decimal digit precision.
var shapeCodec = polyline.Codec{Dim: 2, Scale: 1e6}

// EdgeSource supplies the static edge attributes flow extraction needs,
// typically backed by whatever reader decodes the graph tile layout.
// Edge indexes follow the traffic overlay's record indexes.
type EdgeSource interface {
	// EdgeShape returns the edge geometry in travel direction.
	EdgeShape(edge uint32) []graph.LatLon
	// EdgeSpeeds returns the edge's posted limit, its typical free flow
	// speed and its base routing speed, each in km/h and zero when
	// unknown. A limit of 255 means the road has no posted limit.
	EdgeSpeeds(edge uint32) (limit, freeflow, base uint8)
}

// TrafficEdge is the live state of one directed edge, shaped for feeding
// a map overlay.
type TrafficEdge struct {
	// Edge is the record index within the tile.
	Edge uint32
	// Shape is the edge geometry as a polyline with 1e-6 degree
	// precision.
	Shape string
	// SpeedKMH is the live speed, zero when the edge is closed.
	SpeedKMH uint32
	// JamFactor relates live to reference speed: about 1 free flowing,
	// falling towards 0 as traffic worsens, exactly 0 for a closed edge.
	JamFactor float64
}

// TrafficFlows extracts the live state of every edge in one tile that has
// usable live data. Edges with no live record are omitted, as are open
// edges with no usable reference speed. A store without traffic data for
// the tile yields (nil, nil).
//
// The reference speed is the posted limit when one is known and posted,
// otherwise the free flow speed, otherwise the base speed.
func (ts *TileSet) TrafficFlows(id graph.TileID, src EdgeSource) ([]TrafficEdge, error) {
	tile, err := ts.TrafficTile(id)
	if err != nil {
		return nil, err
	}
	if tile == nil {
		return nil, nil
	}
	defer tile.Close()

	var flows []TrafficEdge
	count := tile.EdgeCount()
	for edge := uint32(0); edge < count; edge++ {
		record, err := tile.Record(edge)
		if err != nil {
			return flows, err
		}
		live, ok := record.LiveSpeed()
		if !ok {
			continue
		}
		var jam float64
		if !record.Closed() {
			ref := referenceSpeed(src.EdgeSpeeds(edge))
			if ref == 0 {
				continue
			}
			jam = float64(live) / float64(ref)
		}
		flows = append(flows, TrafficEdge{
			Edge:      edge,
			Shape:     encodeShape(src.EdgeShape(edge)),
			SpeedKMH:  live,
			JamFactor: jam,
		})
	}
	return flows, nil
}

func referenceSpeed(limit, freeflow, base uint8) uint32 {
	switch {
	case limit > 0 && limit < unpostedLimit:
		return uint32(limit)
	case freeflow > 0:
		return uint32(freeflow)
	case base > 0:
		return uint32(base)
	}
	return 0
}

func encodeShape(shape []graph.LatLon) string {
	if len(shape) == 0 {
		return ""
	}
	coords := make([][]float64, len(shape))
	for i, p := range shape {
		coords[i] = []float64{p.Lat, p.Lon}
	}
	return string(shapeCodec.EncodeCoords(nil, coords))
}
