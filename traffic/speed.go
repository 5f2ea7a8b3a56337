package traffic

// SpeedRecord is the 8 byte live state of one directed edge. Speeds are
// stored in 2 km/h steps; an edge can carry up to three subsegment speeds
// with breakpoints marking where along the edge each subsegment ends, as a
// fraction of the edge length scaled to 255. Bit layout, least significant
// first:
//
//	bits  0 -  6  overall speed
//	bits  7 - 13  subsegment speed 1
//	bits 14 - 20  subsegment speed 2
//	bits 21 - 27  subsegment speed 3
//	bits 28 - 35  breakpoint 1
//	bits 36 - 43  breakpoint 2
//	bits 44 - 49  congestion level 1
//	bits 50 - 55  congestion level 2
//	bits 56 - 61  congestion level 3
//	bit  62       edge closed
//	bit  63       record holds valid data
//
// The all-zero record means "no live data", so a zero filled overlay reads
// as fully unknown.
type SpeedRecord uint64

const (
	speedBits      = 7
	breakpointBits = 8
	congestionBits = 6

	speedMask      = 1<<speedBits - 1
	breakpointMask = 1<<breakpointBits - 1
	congestionMask = 1<<congestionBits - 1

	subSpeedShift   = speedBits
	breakpointShift = 4 * speedBits
	congestionShift = breakpointShift + 2*breakpointBits

	closedFlag SpeedRecord = 1 << 62
	validFlag  SpeedRecord = 1 << 63

	// SpeedPrecision is the km/h granularity of stored speeds. Odd speeds
	// round down.
	SpeedPrecision = 2
	// MaxSpeed is the largest storable speed in km/h.
	MaxSpeed = speedMask * SpeedPrecision
)

// Unknown is the empty record: no live data for the edge.
const Unknown SpeedRecord = 0

// EdgeClosed marks the edge impassable, with all speeds zero.
const EdgeClosed SpeedRecord = validFlag | closedFlag

func encodeSpeed(kmh uint32) SpeedRecord {
	if kmh > MaxSpeed {
		kmh = MaxSpeed
	}
	return SpeedRecord(kmh / SpeedPrecision)
}

// UniformSpeed builds a record with one subsegment spanning the whole edge
// at the given speed. kmh saturates at MaxSpeed.
func UniformSpeed(kmh uint32) SpeedRecord {
	s := encodeSpeed(kmh)
	return validFlag | s | s<<subSpeedShift | SpeedRecord(breakpointMask)<<breakpointShift
}

// SegmentedSpeeds builds a record carrying an overall speed plus up to
// three subsegment speeds. breakpoints mark where subsegments 1 and 2 end
// as a fraction of edge length scaled to 255; subsegment 3, when its speed
// is set, runs from breakpoint 2 to the edge end. Unused trailing
// subsegments stay zero.
func SegmentedSpeeds(overall uint32, kmh [3]uint32, breakpoints [2]uint8) SpeedRecord {
	r := validFlag | encodeSpeed(overall)
	for i, v := range kmh {
		r |= encodeSpeed(v) << (subSpeedShift + i*speedBits)
	}
	r |= SpeedRecord(breakpoints[0]) << breakpointShift
	r |= SpeedRecord(breakpoints[1]) << (breakpointShift + breakpointBits)
	return r
}

// WithCongestion returns the record with the three congestion levels set.
// Levels saturate at 63; zero means unknown congestion.
func (r SpeedRecord) WithCongestion(levels [3]uint8) SpeedRecord {
	for i, v := range levels {
		if v > congestionMask {
			v = congestionMask
		}
		shift := congestionShift + i*congestionBits
		r = r&^(congestionMask<<shift) | SpeedRecord(v)<<shift
	}
	return r
}

// Valid reports whether the record holds live data at all.
func (r SpeedRecord) Valid() bool {
	return r&validFlag != 0
}

// Closed reports whether the edge is marked impassable.
func (r SpeedRecord) Closed() bool {
	return r&closedFlag != 0
}

// OverallSpeed returns the overall edge speed in km/h.
func (r SpeedRecord) OverallSpeed() uint32 {
	return uint32(r&speedMask) * SpeedPrecision
}

// SubSpeed returns subsegment speed i in km/h for i in [0,3); other i
// yield zero.
func (r SpeedRecord) SubSpeed(i int) uint32 {
	if i < 0 || i >= 3 {
		return 0
	}
	return uint32(r>>(subSpeedShift+i*speedBits)&speedMask) * SpeedPrecision
}

// Breakpoint returns breakpoint i for i in [0,2), as a fraction of edge
// length scaled to 255; other i yield zero.
func (r SpeedRecord) Breakpoint(i int) uint8 {
	if i < 0 || i >= 2 {
		return 0
	}
	return uint8(r >> (breakpointShift + i*breakpointBits) & breakpointMask)
}

// Congestion returns congestion level i for i in [0,3); other i yield
// zero.
func (r SpeedRecord) Congestion(i int) uint8 {
	if i < 0 || i >= 3 {
		return 0
	}
	return uint8(r >> (congestionShift + i*congestionBits) & congestionMask)
}

// LiveSpeed resolves the record the way consumers want it: ok is false
// when the record holds no live data, otherwise the speed is the overall
// km/h, zero for a closed edge.
func (r SpeedRecord) LiveSpeed() (kmh uint32, ok bool) {
	if !r.Valid() {
		return 0, false
	}
	if r.Closed() {
		return 0, true
	}
	return r.OverallSpeed(), true
}
