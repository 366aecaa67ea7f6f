package utils

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrEmptyVector       = errors.New("empty vector")
	ErrDimensionMismatch = errors.New("vector dimensions differ")
)

// CosineSimilarity returns the cosine of the angle between a and b, clamped
// to [-1, 1]. A zero vector scores 0 against anything.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptyVector
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i, x := range a {
		y := float64(b[i])
		dot += float64(x) * y
		normA += float64(x) * float64(x)
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return float32(math.Max(-1, math.Min(1, sim))), nil
}

type Scored struct {
	ID    string
	Score float32
}

// RankBySimilarity returns the topK candidates closest to query, best first.
// Candidates that cannot be compared with query are left out. Equal scores
// are ordered by ID.
func RankBySimilarity(query []float32, candidates map[string][]float32, topK int) []Scored {
	if topK <= 0 || len(query) == 0 {
		return nil
	}
	scored := make([]Scored, 0, len(candidates))
	for id, vec := range candidates {
		sim, err := CosineSimilarity(query, vec)
		if err != nil {
			continue
		}
		scored = append(scored, Scored{ID: id, Score: sim})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}
