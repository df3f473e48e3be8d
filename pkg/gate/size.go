package gate

import "fmt"

// SizeBand is the accepted candidate-length band relative to the current
// artifact, catching truncated and runaway generations alike.
type SizeBand struct {
	MinRatio float64 `yaml:"min_ratio"`
	MaxRatio float64 `yaml:"max_ratio"`
}

// DefaultSizeBand accepts candidates between half and triple the current
// artifact's length.
var DefaultSizeBand = SizeBand{MinRatio: 0.5, MaxRatio: 3.0}

func (b SizeBand) normalized() SizeBand {
	out := b
	if out.MinRatio <= 0 {
		out.MinRatio = DefaultSizeBand.MinRatio
	}
	if out.MaxRatio <= 0 {
		out.MaxRatio = DefaultSizeBand.MaxRatio
	}
	return out
}

// checkSize returns a non-empty detail string when the candidate length
// falls outside the band.
func checkSize(candidateLen, currentLen int, band SizeBand) string {
	band = band.normalized()

	// An empty current artifact gives no baseline; only reject an empty
	// candidate, which can never be a valid release.
	if currentLen == 0 {
		if candidateLen == 0 {
			return "candidate is empty"
		}
		return ""
	}

	ratio := float64(candidateLen) / float64(currentLen)
	if ratio < band.MinRatio {
		return fmt.Sprintf("candidate is %.2fx the current artifact length, below the %.2fx lower bound", ratio, band.MinRatio)
	}
	if ratio > band.MaxRatio {
		return fmt.Sprintf("candidate is %.2fx the current artifact length, above the %.2fx upper bound", ratio, band.MaxRatio)
	}
	return ""
}
