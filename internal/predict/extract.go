package predict

import (
	"errors"
	"image"
	"image/color"
)

// Extractor turns one frame into a fixed-length feature vector.
type Extractor interface {
	Extract(img image.Image) ([]float32, error)
	Size() int
}

// GridExtractor averages luminance over a Grid×Grid partition of the frame.
// Features are row-major and scaled to [0, 1].
type GridExtractor struct {
	Grid int
}

// Size reports the feature vector length.
func (g GridExtractor) Size() int {
	return g.Grid * g.Grid
}

// Extract computes the luminance grid for img.
func (g GridExtractor) Extract(img image.Image) ([]float32, error) {
	if g.Grid <= 0 {
		return nil, errors.New("grid size must be positive")
	}
	if img == nil {
		return nil, ErrInvalidImage
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, ErrInvalidImage
	}

	sums := make([]float64, g.Size())
	counts := make([]int, g.Size())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := (y - bounds.Min.Y) * g.Grid / h
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			col := (x - bounds.Min.X) * g.Grid / w
			cell := row*g.Grid + col
			gray := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			sums[cell] += float64(gray.Y)
			counts[cell]++
		}
	}

	features := make([]float32, g.Size())
	for i := range features {
		if counts[i] > 0 {
			features[i] = float32(sums[i] / float64(counts[i]) / 255)
		}
	}
	return features, nil
}
