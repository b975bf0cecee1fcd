package services

import (
	"openmm_server/models"
)

// RatedParticipant is a participant id with the rating used for balancing.
type RatedParticipant struct {
	ID     string
	Rating int
}

// Partition is a split of participants into two equal-size sides.
type Partition struct {
	SideA      []RatedParticipant
	SideB      []RatedParticipant
	Difference int
}

// Balance splits ratings into two equal halves with the smallest rating-sum
// difference. The search is exhaustive over C(n, n/2) selections, so n is
// capped at models.MaxBalanceParticipants.
//
// Selections are visited in lexicographic index order over the input. A
// selection without the first participant is the complement of one already
// seen, so it is skipped. Ties keep the earliest selection, which makes the
// result depend on input order.
func Balance(ratings []RatedParticipant) (Partition, error) {
	n := len(ratings)
	switch {
	case n == 0:
		return Partition{}, models.Reasonf(models.ErrValidation, "no participants to balance")
	case n%2 != 0:
		return Partition{}, models.Reasonf(models.ErrOddInput, "got %d participants", n)
	case n > models.MaxBalanceParticipants:
		return Partition{}, models.Reasonf(models.ErrValidation,
			"%d participants exceed the balancing cap of %d", n, models.MaxBalanceParticipants)
	}
	seen := make(map[string]struct{}, n)
	total := 0
	for _, r := range ratings {
		if _, dup := seen[r.ID]; dup {
			return Partition{}, models.Reasonf(models.ErrValidation, "participant %s listed twice", r.ID)
		}
		seen[r.ID] = struct{}{}
		total += r.Rating
	}

	half := n / 2
	idx := make([]int, half)
	for i := range idx {
		idx[i] = i
	}
	best := -1
	var bestIdx []int
	// every selection with idx[0] == 0 is visited; the rest are complements
	for idx[0] == 0 {
		sum := 0
		for _, i := range idx {
			sum += ratings[i].Rating
		}
		diff := abs(total - 2*sum)
		if best < 0 || diff < best {
			best = diff
			bestIdx = append(bestIdx[:0], idx...)
		}
		if !nextCombination(idx, n) {
			break
		}
	}

	inA := make([]bool, n)
	for _, i := range bestIdx {
		inA[i] = true
	}
	p := Partition{Difference: best}
	for i, r := range ratings {
		if inA[i] {
			p.SideA = append(p.SideA, r)
		} else {
			p.SideB = append(p.SideB, r)
		}
	}
	return p, nil
}

// nextCombination advances idx to the next k-combination of [0, n) in
// lexicographic order. It returns false after the last one.
func nextCombination(idx []int, n int) bool {
	k := len(idx)
	i := k - 1
	for i >= 0 && idx[i] == n-k+i {
		i--
	}
	if i < 0 {
		return false
	}
	idx[i]++
	for j := i + 1; j < k; j++ {
		idx[j] = idx[j-1] + 1
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// IDs returns the participant ids in order.
func IDs(rs []RatedParticipant) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
