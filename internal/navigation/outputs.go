package navigation

// OutputSet is an ordered collection of Datum slots. Index i identifies tool
// i of the producing device as of the last rebuild.
type OutputSet struct {
	slots []*Datum
}

// NewOutputSet allocates one slot per name, in order.
func NewOutputSet(names ...string) *OutputSet {
	s := &OutputSet{slots: make([]*Datum, 0, len(names))}
	for _, name := range names {
		s.slots = append(s.slots, NewDatum(name))
	}
	return s
}

// Len returns the number of slots. A nil set has none.
func (s *OutputSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.slots)
}

// At returns slot i, or nil when i is out of range.
func (s *OutputSet) At(i int) *Datum {
	if i < 0 || i >= s.Len() {
		return nil
	}
	return s.slots[i]
}

// ByName returns the first slot whose name matches.
func (s *OutputSet) ByName(name string) (*Datum, bool) {
	if s == nil {
		return nil, false
	}
	for _, d := range s.slots {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Snapshot returns value copies of every slot.
func (s *OutputSet) Snapshot() []Datum {
	if s == nil {
		return nil
	}
	out := make([]Datum, len(s.slots))
	for i, d := range s.slots {
		out[i] = *d
	}
	return out
}

// ValidCount returns how many slots currently hold a valid reading.
func (s *OutputSet) ValidCount() int {
	n := 0
	for i := 0; i < s.Len(); i++ {
		if s.slots[i].DataValid {
			n++
		}
	}
	return n
}

// Reset drops every slot.
func (s *OutputSet) Reset() {
	if s == nil {
		return
	}
	s.slots = nil
}

// Rebuild replaces every slot with a fresh datum per name. The set itself
// keeps its identity so holders of *OutputSet see the new slots.
func (s *OutputSet) Rebuild(names ...string) {
	s.slots = make([]*Datum, 0, len(names))
	for _, name := range names {
		s.slots = append(s.slots, NewDatum(name))
	}
}
