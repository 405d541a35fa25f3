// Package place holds the read-only place records served by the suggest engine.
package place

// Type is the category of a place, e.g. "city", "village" or "hamlet".
type Type string

const (
	City             Type = "city"
	Town             Type = "town"
	Borough          Type = "borough"
	Village          Type = "village"
	Hamlet           Type = "hamlet"
	Locality         Type = "locality"
	BusStop          Type = "bus_stop"
	MotorwayJunction Type = "motorway_junction"
)

// settlement order, larger means more important
var typeRanks = map[Type]int{
	City:             8,
	Town:             7,
	Borough:          6,
	Village:          5,
	Hamlet:           4,
	Locality:         3,
	BusStop:          2,
	MotorwayJunction: 1,
}

// Rank returns the importance of the type. Unknown types rank 0.
func (t Type) Rank() int {
	return typeRanks[t]
}

// Coord is a WGS84 position.
type Coord struct {
	Lat float64 `json:"lat" msgpack:"lat"`
	Lon float64 `json:"lon" msgpack:"lon"`
}

// Record is a named place. Records are never modified after loading;
// a new corpus replaces them wholesale.
type Record struct {
	ID         string   `json:"id" msgpack:"id"`
	Name       string   `json:"name" msgpack:"name"`
	Type       Type     `json:"type" msgpack:"type"`
	Center     *Coord   `json:"center,omitempty" msgpack:"center,omitempty"`
	Population int64    `json:"population,omitempty" msgpack:"population,omitempty"`
	IsIn       []string `json:"is_in,omitempty" msgpack:"is_in,omitempty"`
}

// Importance is the weight used after match quality when ranking.
func (r *Record) Importance() (population int64, typeRank int) {
	return r.Population, r.Type.Rank()
}
