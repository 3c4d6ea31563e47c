package index

import "slices"

// PostingList holds the positions of the documents containing a token, in
// insertion order. A position appears at most once.
type PostingList []int

// Add appends docIndex unless it is already present.
func (p PostingList) Add(docIndex int) PostingList {
	if n := len(p); n > 0 && p[n-1] == docIndex {
		return p
	}
	if p.Contains(docIndex) {
		return p
	}
	return append(p, docIndex)
}

func (p PostingList) Contains(docIndex int) bool {
	return slices.Contains(p, docIndex)
}

// Clone returns a copy that never aliases p and is never nil.
func (p PostingList) Clone() PostingList {
	out := make(PostingList, len(p))
	copy(out, p)
	return out
}
