package predict

import (
	"context"
	"fmt"
	"strconv"
)

// Classifier scores a full window of feature vectors against the label set.
type Classifier interface {
	Classify(ctx context.Context, window [][]float32) ([]float32, error)
}

// Labels maps classifier output indices to sign names.
type Labels []string

// Best returns the highest scoring label and its probability. The probability
// is the float64 nearest the score's shortest decimal form, so a float32 0.6
// reports as 0.6 and not 0.6000000238.
func (l Labels) Best(scores []float32) (string, float64, error) {
	if len(scores) == 0 {
		return "", 0, fmt.Errorf("classifier returned no scores")
	}
	if len(scores) != len(l) {
		return "", 0, fmt.Errorf("classifier returned %d scores for %d labels", len(scores), len(l))
	}
	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}
	return l[best], widen(scores[best]), nil
}

func widen(score float32) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(float64(score), 'g', -1, 32), 64)
	if err != nil {
		return float64(score)
	}
	return v
}
