// Package allocation apportions a fixed number of test themes across weighted
// competencies.
//
// The method is largest-remainder (Hamilton) apportionment with a randomized
// tie-break: every competency first receives the floor of its proportional
// share, and the leftover themes go to the competencies ranked highest by a
// draw from [0, fraction). Larger fractional remainders win more often, but
// any competency with a positive remainder can win. Counts always sum to the
// requested total because only floors and a fixed number of increments are
// used.
package allocation

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/skillgrid/assessor/internal/model"
	"github.com/skillgrid/assessor/internal/random"
)

var (
	// ErrInvalidInput is returned for input that must be corrected before retrying.
	ErrInvalidInput = errors.New("invalid allocation input")
	// ErrInvariant means the computed counts do not sum to the total.
	ErrInvariant = errors.New("allocation invariant violated")
)

// snapEpsilon absorbs float error in shares that are integers in exact arithmetic.
const snapEpsilon = 1e-9

// Allocate splits total themes across competencies in proportion to their
// weights. The result keeps the input order. src is only consulted when
// remainder slots have to be awarded.
func Allocate(competencies []model.Competency, total int, src random.Source) (Quota, error) {
	if err := validate(competencies, total); err != nil {
		return nil, err
	}

	sum := 0.0
	for _, c := range competencies {
		sum += c.Weight
	}
	if math.IsInf(sum, 0) {
		return nil, fmt.Errorf("%w: weight sum overflows", ErrInvalidInput)
	}

	var q Quota
	if sum == 0 {
		q = uniform(competencies, total)
	} else {
		q = proportional(competencies, total, sum, src)
	}

	if got := q.Total(); got != total {
		return nil, fmt.Errorf("%w: counts sum to %d, want %d", ErrInvariant, got, total)
	}
	return q, nil
}

func validate(competencies []model.Competency, total int) error {
	if len(competencies) == 0 {
		return fmt.Errorf("%w: no competencies", ErrInvalidInput)
	}
	if total <= 0 {
		return fmt.Errorf("%w: total themes must be positive, got %d", ErrInvalidInput, total)
	}

	seen := make(map[int64]bool, len(competencies))
	for _, c := range competencies {
		if math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) {
			return fmt.Errorf("%w: competency %d has non-finite weight", ErrInvalidInput, c.ID)
		}
		if c.Weight < 0 {
			return fmt.Errorf("%w: competency %d has negative weight %g", ErrInvalidInput, c.ID, c.Weight)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate competency %d", ErrInvalidInput, c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

// uniform splits total round-robin when no competency carries weight.
func uniform(competencies []model.Competency, total int) Quota {
	n := len(competencies)
	each, extra := total/n, total%n

	q := make(Quota, n)
	for i, c := range competencies {
		q[i] = Share{
			CompetencyID: c.ID,
			Exact:        float64(total) / float64(n),
			Base:         each,
			Count:        each,
		}
		q[i].Fraction = q[i].Exact - float64(each)
		if i < extra {
			q[i].Bonus = true
			q[i].Count++
		}
	}
	return q
}

func proportional(competencies []model.Competency, total int, sum float64, src random.Source) Quota {
	q := make(Quota, len(competencies))
	allocated := 0

	for i, c := range competencies {
		exact := c.Weight / sum * float64(total)
		if r := math.Round(exact); math.Abs(exact-r) < snapEpsilon {
			exact = r
		}
		base := int(math.Floor(exact))

		q[i] = Share{
			CompetencyID: c.ID,
			Weight:       c.Weight,
			Exact:        exact,
			Base:         base,
			Fraction:     exact - float64(base),
			Count:        base,
		}
		allocated += base
	}

	remainder := total - allocated
	if remainder <= 0 {
		return q
	}

	for i := range q {
		if q[i].Fraction > 0 {
			q[i].Priority = src.Uniform(0, q[i].Fraction)
		}
	}

	for _, i := range rank(q)[:min(remainder, len(q))] {
		q[i].Bonus = true
		q[i].Count++
	}
	protectHeaviest(q)
	return q
}

// protectHeaviest keeps a strictly heaviest competency from ending behind a
// lighter one. That can only happen when it lost the remainder draw to a
// competency with the same base; the slot of the lowest-priority such winner
// moves to it. Every other outcome of the draw stands.
func protectHeaviest(q Quota) {
	top := 0
	for i := range q {
		if q[i].Weight > q[top].Weight {
			top = i
		}
	}
	for i := range q {
		if i != top && q[i].Weight == q[top].Weight {
			return
		}
	}
	if q[top].Bonus {
		return
	}

	loser := -1
	for i := range q {
		if q[i].Bonus && q[i].Base == q[top].Base && (loser < 0 || q[i].Priority < q[loser].Priority) {
			loser = i
		}
	}
	if loser < 0 {
		return
	}
	q[loser].Bonus = false
	q[loser].Count--
	q[top].Bonus = true
	q[top].Reassigned = true
	q[top].Count++
}

// rank orders share indices by priority descending. Ties go to the larger
// fraction, then to input order, so a zero remainder never beats a positive one.
func rank(q Quota) []int {
	order := make([]int, len(q))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := q[order[a]], q[order[b]]
		if sa.Priority != sb.Priority {
			return sa.Priority > sb.Priority
		}
		if sa.Fraction != sb.Fraction {
			return sa.Fraction > sb.Fraction
		}
		return order[a] < order[b]
	})
	return order
}
