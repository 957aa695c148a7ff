package core

// Sample is one converted reading. It is a value type and never mutated
// after creation.
type Sample struct {
	Raw        uint16 // converter counts, 0..MaxCount
	MilliVolts uint32 // Raw scaled to the reference, truncated
}

// Scale converts raw counts to millivolts with integer math only.
type Scale struct {
	ReferenceMV uint32
	MaxCount    uint32
}

// NewScale builds a Scale for a converter with the given resolution in bits.
func NewScale(referenceMV uint32, resolutionBits uint8) Scale {
	return Scale{
		ReferenceMV: referenceMV,
		MaxCount:    MaxCount(resolutionBits),
	}
}

// MaxCount returns 2^bits - 1.
func MaxCount(bits uint8) uint32 {
	if bits == 0 || bits > 31 {
		return 0
	}
	return (uint32(1) << bits) - 1
}

// MilliVolts returns floor(raw * reference / maxCount). Raw values above
// MaxCount are clamped.
func (s Scale) MilliVolts(raw uint16) uint32 {
	if s.MaxCount == 0 {
		return 0
	}
	r := uint64(raw)
	if r > uint64(s.MaxCount) {
		r = uint64(s.MaxCount)
	}
	return uint32(r * uint64(s.ReferenceMV) / uint64(s.MaxCount))
}

// Sample builds the Sample for raw.
func (s Scale) Sample(raw uint16) Sample {
	return Sample{Raw: raw, MilliVolts: s.MilliVolts(raw)}
}

// Volts splits the millivolt value into whole volts and the millivolt remainder.
func (s Sample) Volts() (whole, decimal uint32) {
	return s.MilliVolts / 1000, s.MilliVolts % 1000
}
