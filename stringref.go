package cbor

// stringRefNamespace is one nested scope of previously emitted/seen
// text and byte strings eligible for back-reference (tag 25), opened by
// tag 256 and restored to the outer scope on exit.
type stringRefNamespace struct {
	entries [][]byte // byte strings and text strings share one index space
	isText  []bool
	index   map[string]int // keyed by type-tagged content, for O(1) indexOf
}

// stringRefStack threads nested namespaces; only the top frame is active.
type stringRefStack struct {
	frames []*stringRefNamespace
}

// open pushes a new, empty namespace frame (tag 256 entry).
func (s *stringRefStack) open() {
	s.frames = append(s.frames, &stringRefNamespace{})
}

// close pops and discards the current namespace frame (tag 256 exit),
// restoring the outer namespace.
func (s *stringRefStack) close() {
	if len(s.frames) > 0 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// active returns the innermost open namespace, or nil if none is open.
func (s *stringRefStack) active() *stringRefNamespace {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// admissionThreshold computes the minimum byte length a candidate string
// must have to be admitted into a namespace of the given current length.
// The threshold grows in steps with the namespace length, since a larger
// index makes each tag-25 reference longer.
func admissionThreshold(namespaceLen int) int {
	n := uint64(namespaceLen)
	switch {
	case n < 24:
		return 3
	case n < 256:
		return 4
	case n < 64*1024:
		return 5
	case n < 4*1024*1024*1024:
		return 6
	default:
		return 11
	}
}

// admit appends the candidate to the active namespace if it meets the
// admission threshold for the namespace's current length, returning
// whether it was admitted. Byte strings and text strings share one
// ordered index space; isText only distinguishes them for lookups, since
// a byte string and a text string with identical content are distinct
// items.
func (s *stringRefNamespace) admit(data []byte, isText bool) bool {
	if len(data) < admissionThreshold(len(s.entries)) {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	s.index[refKey(data, isText)] = len(s.entries)
	s.entries = append(s.entries, data)
	s.isText = append(s.isText, isText)
	return true
}

// refKey builds the type-tagged lookup key for indexOf/admit.
func refKey(data []byte, isText bool) string {
	tag := byte('b')
	if isText {
		tag = 't'
	}
	return string(tag) + string(data)
}

// lookup resolves a string-ref index (tag 25) within this namespace.
func (s *stringRefNamespace) lookup(index int) ([]byte, bool, bool) {
	if index < 0 || index >= len(s.entries) {
		return nil, false, false
	}
	return s.entries[index], s.isText[index], true
}

// indexOf returns the index of data if it is already present in this
// namespace (used by the encoder to decide between emitting tag 25 and
// admitting a new entry).
func (s *stringRefNamespace) indexOf(data []byte, isText bool) (int, bool) {
	if s.index == nil {
		return 0, false
	}
	idx, ok := s.index[refKey(data, isText)]
	return idx, ok
}
