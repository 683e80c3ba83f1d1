// Package metrics compares a reconstruction against a reference buffer.
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"hallucinator/internal/imaging"
)

const peak = 255.0

type Report struct {
	MSE  float64
	PSNR float64
	// SSIM is the single-window structural similarity over the whole image.
	SSIM        float64
	Correlation float64
	// Changed is the fraction of values that differ.
	Changed float64
}

func (r Report) String() string {
	return fmt.Sprintf("mse=%.3f psnr=%.2fdB ssim=%.4f corr=%.4f changed=%.1f%%",
		r.MSE, r.PSNR, r.SSIM, r.Correlation, r.Changed*100)
}

// Compare measures candidate against reference. Both buffers must have the
// same shape. Identical buffers report an infinite PSNR.
func Compare(reference, candidate *imaging.Buffer) (Report, error) {
	if err := reference.Validate(); err != nil {
		return Report{}, fmt.Errorf("reference: %w", err)
	}
	if err := candidate.Validate(); err != nil {
		return Report{}, fmt.Errorf("candidate: %w", err)
	}
	if reference.Size() != candidate.Size() || reference.Channels != candidate.Channels {
		return Report{}, fmt.Errorf("%w: cannot compare %vx%d with %vx%d", imaging.ErrInvalidInput,
			reference.Size(), reference.Channels, candidate.Size(), candidate.Channels)
	}

	x := widen(reference.Pix)
	y := widen(candidate.Pix)
	n := float64(len(x))

	diff := make([]float64, len(x))
	floats.SubTo(diff, x, y)
	mse := floats.Dot(diff, diff) / n

	changed := 0
	for _, d := range diff {
		if d != 0 {
			changed++
		}
	}

	return Report{
		MSE:         mse,
		PSNR:        psnr(mse),
		SSIM:        ssim(x, y),
		Correlation: correlation(x, y),
		Changed:     float64(changed) / n,
	}, nil
}

func widen(pix []float32) []float64 {
	out := make([]float64, len(pix))
	for i, v := range pix {
		out[i] = float64(v)
	}
	return out
}

func psnr(mse float64) float64 {
	if mse == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(peak*peak/mse)
}

func ssim(x, y []float64) float64 {
	c1 := (0.01 * peak) * (0.01 * peak)
	c2 := (0.03 * peak) * (0.03 * peak)

	muX := stat.Mean(x, nil)
	muY := stat.Mean(y, nil)
	var sigmaX, sigmaY, sigmaXY float64
	if len(x) > 1 {
		sigmaX = stat.Variance(x, nil)
		sigmaY = stat.Variance(y, nil)
		sigmaXY = stat.Covariance(x, y, nil)
	}

	num := (2*muX*muY + c1) * (2*sigmaXY + c2)
	den := (muX*muX + muY*muY + c1) * (sigmaX + sigmaY + c2)
	return num / den
}

// correlation is 1 for identical inputs and 0 when either side is constant.
func correlation(x, y []float64) float64 {
	if floats.Equal(x, y) {
		return 1
	}
	if len(x) < 2 {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}
