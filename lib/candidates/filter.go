package candidates

// Filter rejects candidates whose byte length falls outside [PwMin, PwMax]. A zero PwMax disables the upper bound.
type Filter struct {
	PwMin int
	PwMax int
}

// Split returns the kept candidates, in order, and the number rejected.
func (f Filter) Split(batch [][]byte) (kept [][]byte, rejected uint64) {
	kept = make([][]byte, 0, len(batch))

	for _, c := range batch {
		if len(c) < f.PwMin || (f.PwMax > 0 && len(c) > f.PwMax) {
			rejected++
			continue
		}

		kept = append(kept, c)
	}

	return kept, rejected
}
