package sampler

import (
	"math/rand"
	"sort"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

// Select applies one of the three §4.5 policies deterministically under
// req.Seed and returns at most req.SampleSize scores in selection order.
func Select(scores []models.ConversationScore, req models.SamplingRequest) []models.ConversationScore {
	n := req.SampleSize
	if n <= 0 || n > len(scores) {
		n = len(scores)
	}

	switch req.Policy {
	case models.PolicyRandomUniform:
		return selectRandomUniform(scores, n, req.Seed)
	case models.PolicyWeightedRandom:
		return selectWeightedRandom(scores, n, req.Seed)
	default:
		return selectTop(scores, n)
	}
}

func selectTop(scores []models.ConversationScore, n int) []models.ConversationScore {
	sorted := make([]models.ConversationScore, len(scores))
	copy(sorted, scores)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.AssistantChars != b.AssistantChars {
			return a.AssistantChars > b.AssistantChars
		}
		if a.AssistantTurns != b.AssistantTurns {
			return a.AssistantTurns > b.AssistantTurns
		}
		if a.Turns != b.Turns {
			return a.Turns > b.Turns
		}
		return a.FileName < b.FileName
	})

	return sorted[:n]
}

func selectRandomUniform(scores []models.ConversationScore, n int, seed int64) []models.ConversationScore {
	ordered := stableCopy(scores)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(ordered), func(i, j int) {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	})
	return ordered[:n]
}

// selectWeightedRandom draws n items without replacement with probability
// proportional to weight, deterministic under seed.
func selectWeightedRandom(scores []models.ConversationScore, n int, seed int64) []models.ConversationScore {
	pool := stableCopy(scores)
	weights := make([]float64, len(pool))
	for i, s := range pool {
		weights[i] = s.Weight()
	}

	rng := rand.New(rand.NewSource(seed))
	selected := make([]models.ConversationScore, 0, n)

	for len(selected) < n && len(pool) > 0 {
		total := 0.0
		for _, w := range weights {
			total += w
		}
		if total <= 0 {
			break
		}

		target := rng.Float64() * total
		cumulative := 0.0
		idx := len(pool) - 1
		for i, w := range weights {
			cumulative += w
			if target < cumulative {
				idx = i
				break
			}
		}

		selected = append(selected, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
		weights = append(weights[:idx], weights[idx+1:]...)
	}

	return selected
}

// stableCopy returns scores in a fixed order (by fileName) before any
// randomization is applied, so shuffles are reproducible independent of the
// caller's input ordering.
func stableCopy(scores []models.ConversationScore) []models.ConversationScore {
	out := make([]models.ConversationScore, len(scores))
	copy(out, scores)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out
}
