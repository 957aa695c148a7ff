package core

// Stats summarises the samples retained in a RingBuffer
type Stats struct {
	Count  int
	MinMV  uint32
	MaxMV  uint32
	MeanMV uint32 // truncated
}

// ComputeStats walks the retained window without removing anything.
func ComputeStats(r *RingBuffer) Stats {
	st := Stats{Count: r.Count()}
	if st.Count == 0 {
		return st
	}

	var sum uint64
	for i := 0; i < st.Count; i++ {
		s, _ := r.Peek(i)
		if i == 0 || s.MilliVolts < st.MinMV {
			st.MinMV = s.MilliVolts
		}
		if s.MilliVolts > st.MaxMV {
			st.MaxMV = s.MilliVolts
		}
		sum += uint64(s.MilliVolts)
	}
	st.MeanMV = uint32(sum / uint64(st.Count))
	return st
}
