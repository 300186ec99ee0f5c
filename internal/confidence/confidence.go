package confidence

import (
	"math"
	"time"

	"flipradar/internal/models"
)

const (
	countWeight      = 40.0
	recencyWeight    = 30.0
	dispersionWeight = 30.0

	// countSaturation is the comparable count at which the sample-size factor
	// maxes out; growth is logarithmic below it.
	countSaturation = 10

	// recencyFloor keeps stale evidence contributing something: old comps
	// decay toward this fraction of the recency weight, not to zero.
	recencyFloor = 0.2

	// dispersionCap is the coefficient of variation at which price agreement
	// scores zero.
	dispersionCap = 0.5

	defaultWindow = 48 * time.Hour
)

// Scorer rates how trustworthy a profit estimate built on a set of comparable
// price observations would be. The evaluation timestamp is always passed in
// explicitly so scoring stays deterministic under test.
type Scorer struct {
	StalenessWindow time.Duration
}

// Score returns an integer in [0,100]. Zero comparables score 0: that signals
// "do not trust this estimate", never an engine failure.
//
// Three weighted factors: sample count with diminishing returns (recent
// observations only), recency of the newest observation decaying toward a
// floor past the staleness window, and price agreement among recent
// observations measured by coefficient of variation.
func (s Scorer) Score(now time.Time, comps []models.PlatformPrice) int {
	if len(comps) == 0 {
		return 0
	}
	window := s.StalenessWindow
	if window <= 0 {
		window = defaultWindow
	}

	var (
		recent []models.PlatformPrice
		newest time.Time
	)
	for _, c := range comps {
		if c.FetchedAt.After(newest) {
			newest = c.FetchedAt
		}
		if now.Sub(c.FetchedAt) <= window {
			recent = append(recent, c)
		}
	}

	total := countScore(len(recent)) +
		recencyScore(now, newest, window) +
		dispersionScore(recent)

	score := int(math.Round(total))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func countScore(n int) float64 {
	if n <= 0 {
		return 0
	}
	frac := math.Log1p(float64(n)) / math.Log1p(countSaturation)
	if frac > 1 {
		frac = 1
	}
	return countWeight * frac
}

func recencyScore(now, newest time.Time, window time.Duration) float64 {
	age := now.Sub(newest)
	if age <= 0 {
		return recencyWeight
	}
	if age <= window {
		// Mild linear discount while still inside the window.
		return recencyWeight * (1 - 0.2*float64(age)/float64(window))
	}
	// Past the window: exponential decay toward the floor.
	over := float64(age-window) / float64(window)
	return recencyWeight * (recencyFloor + (0.8-recencyFloor)*math.Exp(-over))
}

// dispersionScore rewards tight price clustering among recent comps. A single
// observation has no measurable spread and gets full credit; the sample-count
// factor is what keeps a one-comp score modest.
func dispersionScore(recent []models.PlatformPrice) float64 {
	if len(recent) == 0 {
		return 0
	}
	if len(recent) == 1 {
		return dispersionWeight
	}
	var sum float64
	for _, c := range recent {
		v, _ := c.Price.Float64()
		sum += v
	}
	mean := sum / float64(len(recent))
	if mean <= 0 {
		return 0
	}
	var sq float64
	for _, c := range recent {
		v, _ := c.Price.Float64()
		sq += (v - mean) * (v - mean)
	}
	cov := math.Sqrt(sq/float64(len(recent))) / mean
	if cov >= dispersionCap {
		return 0
	}
	return dispersionWeight * (1 - cov/dispersionCap)
}
