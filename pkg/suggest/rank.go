package suggest

import "sort"

// MatchKind orders candidates by how they matched the query. Lower is better.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchPrefix
	MatchFuzzy
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchPrefix:
		return "prefix"
	case MatchFuzzy:
		return "fuzzy"
	default:
		return "unknown"
	}
}

// Candidate is a scored record produced by the engine and consumed by Format.
type Candidate struct {
	entry       *entry
	Kind        MatchKind
	Distance    int
	LengthDelta int
}

// less is the total ranking order:
//  1. match kind, then edit distance (only fuzzy candidates have one)
//  2. |len(name) - len(query)| over normalized runes, closer first
//  3. population, then type rank, larger first
//  4. canonical name, then id, ascending
func less(a, b *Candidate) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	if a.LengthDelta != b.LengthDelta {
		return a.LengthDelta < b.LengthDelta
	}
	ra, rb := &a.entry.rec, &b.entry.rec
	popA, typeA := ra.Importance()
	popB, typeB := rb.Importance()
	if popA != popB {
		return popA > popB
	}
	if typeA != typeB {
		return typeA > typeB
	}
	if ra.Name != rb.Name {
		return ra.Name < rb.Name
	}
	return ra.ID < rb.ID
}

func sortCandidates(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		return less(&cands[i], &cands[j])
	})
}
