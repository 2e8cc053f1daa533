// Package vocab defines the contract a host's tokenizer must satisfy
// for the grammar core to mask its logits, plus a small static
// implementation for tests and command-line tools.
package vocab

// Vocabulary is the read-only, shared resource a session consults to
// turn a candidate token id into the bytes it would emit. It owns
// nothing the session mutates and can be shared across every session
// and clone built against it.
type Vocabulary interface {
	// Piece returns the raw bytes token id would append to the output.
	Piece(id int32) []byte
	// IsEndOfGeneration reports whether id ends generation outright
	// (e.g. an end-of-sequence token), a case session.Apply only allows
	// through when some stack in the frontier is already empty.
	IsEndOfGeneration(id int32) bool
	// Len returns the number of ids in the vocabulary.
	Len() int
}

// Static is a slice-backed Vocabulary for tests and the gbnfcheck CLI,
// where the vocabulary is a small fixed list of pieces rather than a
// model's real tokenizer.
type Static struct {
	pieces [][]byte
	eog    map[int32]bool
}

// NewStatic builds a Static vocabulary from pieces (indexed by token
// id) and the set of ids that end generation.
func NewStatic(pieces []string, eogIDs []int32) *Static {
	v := &Static{
		pieces: make([][]byte, len(pieces)),
		eog:    make(map[int32]bool, len(eogIDs)),
	}
	for i, p := range pieces {
		v.pieces[i] = []byte(p)
	}
	for _, id := range eogIDs {
		v.eog[id] = true
	}
	return v
}

func (v *Static) Piece(id int32) []byte {
	if id < 0 || int(id) >= len(v.pieces) {
		return nil
	}
	return v.pieces[id]
}

func (v *Static) IsEndOfGeneration(id int32) bool {
	return v.eog[id]
}

func (v *Static) Len() int {
	return len(v.pieces)
}
