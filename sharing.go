package cbor

// shareSlot is one entry of the sharing registry: empty (pending) until
// the tagged payload's outer value has been constructed and fill is
// called.
type shareSlot struct {
	filled bool
	value  any
}

// sharingRegistry is the per-top-level-call index of values marked
// shareable (tag 28) and the lookup table for back-references (tag 29).
// It hangs off the Decoder instance and is cleared at the end of every
// top-level call.
type sharingRegistry struct {
	slots []shareSlot
}

// allocatePending appends an empty slot and returns its index, to be
// filled once the tagged payload has finished decoding (so that a cyclic
// back-reference inside the payload can resolve to this slot).
func (s *sharingRegistry) allocatePending() int {
	s.slots = append(s.slots, shareSlot{})
	return len(s.slots) - 1
}

// fill stores value at index, replacing any earlier value. Idempotent
// under the same value; the decoder refills a slot when a container's
// final value replaces the one registered before its contents were
// decoded (a grown array, an object-hook result).
func (s *sharingRegistry) fill(index int, value any) {
	s.slots[index] = shareSlot{filled: true, value: value}
}

// get resolves a back-reference. ok is false if index is out of range;
// pending is true if the slot exists but has not been filled yet.
func (s *sharingRegistry) get(index int) (value any, pending bool, ok bool) {
	if index < 0 || index >= len(s.slots) {
		return nil, false, false
	}
	slot := s.slots[index]
	if !slot.filled {
		return nil, true, true
	}
	return slot.value, false, true
}

// reset clears the registry at a top-level call boundary.
func (s *sharingRegistry) reset() {
	s.slots = nil
}

// encodeShareEntry records identity-based share state for the encoder's
// cycle detection: index is nil while a container is being encoded for
// the first time with value sharing disabled (detect-cycles-only mode);
// it is set once the container has been assigned a shareable index.
type encodeShareEntry struct {
	index *int
}

// encodeSharingTable maps an encoder-side identity key (derived from the
// container's address) to its share state.
type encodeSharingTable map[any]encodeShareEntry
