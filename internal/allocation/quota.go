package allocation

// Share records how one competency's theme count was derived.
type Share struct {
	CompetencyID int64   `json:"competency_id"`
	Weight       float64 `json:"weight"`
	Exact        float64 `json:"exact"`    // proportional share before rounding
	Base         int     `json:"base"`     // floor of Exact
	Fraction     float64 `json:"fraction"` // Exact - Base, in [0, 1)
	Priority     float64 `json:"priority"` // remainder draw, in [0, Fraction)
	Bonus        bool    `json:"bonus"`    // holds a remainder slot
	Count        int     `json:"count"`    // final theme count

	// Reassigned marks a slot taken over from a same-base winner so the
	// strictly heaviest competency is not outranked. Its Priority need not
	// be among the winning draws.
	Reassigned bool `json:"reassigned,omitempty"`
}

// Quota is the per-competency theme allocation, in input order.
type Quota []Share

// Total returns the sum of all counts.
func (q Quota) Total() int {
	n := 0
	for _, s := range q {
		n += s.Count
	}
	return n
}

// Count returns the theme count for a competency, or 0 if it is absent.
func (q Quota) Count(competencyID int64) int {
	for _, s := range q {
		if s.CompetencyID == competencyID {
			return s.Count
		}
	}
	return 0
}

// Map returns the allocation keyed by competency ID.
func (q Quota) Map() map[int64]int {
	m := make(map[int64]int, len(q))
	for _, s := range q {
		m[s.CompetencyID] = s.Count
	}
	return m
}

// Bonuses returns the number of remainder slots awarded.
func (q Quota) Bonuses() int {
	n := 0
	for _, s := range q {
		if s.Bonus {
			n++
		}
	}
	return n
}
