package suggest

import "github.com/bastiangx/placeserve/pkg/place"

// Hit is one ranked suggestion as returned to clients.
type Hit struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Type       string       `json:"type"`
	Rank       int          `json:"rank"`
	Match      string       `json:"match"`
	Center     *place.Coord `json:"center,omitempty"`
	Population int64        `json:"population,omitempty"`
	IsIn       []string     `json:"is_in,omitempty"`
}

// Format maps ranked candidates to hits. Order is kept exactly as given;
// Rank is the 1-based position.
func Format(cands []Candidate) []Hit {
	hits := make([]Hit, len(cands))
	for i := range cands {
		rec := &cands[i].entry.rec
		hits[i] = Hit{
			ID:         rec.ID,
			Name:       rec.Name,
			Type:       string(rec.Type),
			Rank:       i + 1,
			Match:      cands[i].Kind.String(),
			Center:     rec.Center,
			Population: rec.Population,
			IsIn:       rec.IsIn,
		}
	}
	return hits
}
