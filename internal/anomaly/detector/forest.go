// Package detector scores one-dimensional series with an isolation forest.
package detector

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

const (
	DefaultTrees         = 100
	DefaultSampleSize    = 256
	DefaultContamination = 0.1
	DefaultSeed          = 42
)

// ErrNoData is returned when fitting an empty series.
var ErrNoData = errors.New("detector: no data")

// Config tunes the forest.
type Config struct {
	Trees         int
	SampleSize    int
	Contamination float64
	Seed          int64
}

// DefaultConfig mirrors the detection defaults used by the anomaly engine.
func DefaultConfig() Config {
	return Config{
		Trees:         DefaultTrees,
		SampleSize:    DefaultSampleSize,
		Contamination: DefaultContamination,
		Seed:          DefaultSeed,
	}
}

type node struct {
	split       float64
	size        int
	left, right *node
}

func (n *node) leaf() bool { return n.left == nil }

// IsolationForest is a fitted ensemble of isolation trees.
type IsolationForest struct {
	cfg        Config
	trees      []*node
	sampleSize int
}

// Fit grows the forest on values. Identical configs and inputs give identical forests.
func Fit(values []float64, cfg Config) (*IsolationForest, error) {
	if len(values) == 0 {
		return nil, ErrNoData
	}
	if cfg.Trees <= 0 {
		cfg.Trees = DefaultTrees
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = DefaultSampleSize
	}
	if cfg.Contamination <= 0 || cfg.Contamination >= 0.5 {
		cfg.Contamination = DefaultContamination
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	sampleSize := cfg.SampleSize
	if sampleSize > len(values) {
		sampleSize = len(values)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sampleSize))))

	forest := &IsolationForest{cfg: cfg, sampleSize: sampleSize, trees: make([]*node, cfg.Trees)}
	sample := make([]float64, sampleSize)
	for t := range forest.trees {
		for i, idx := range rng.Perm(len(values))[:sampleSize] {
			sample[i] = values[idx]
		}
		forest.trees[t] = grow(rng, append([]float64(nil), sample...), 0, maxDepth)
	}
	return forest, nil
}

func grow(rng *rand.Rand, values []float64, depth, maxDepth int) *node {
	if depth >= maxDepth || len(values) <= 1 {
		return &node{size: len(values)}
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return &node{size: len(values)}
	}
	split := lo + rng.Float64()*(hi-lo)
	var left, right []float64
	for _, v := range values {
		if v < split {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}
	return &node{
		split: split,
		size:  len(values),
		left:  grow(rng, left, depth+1, maxDepth),
		right: grow(rng, right, depth+1, maxDepth),
	}
}

func pathLength(n *node, v float64, depth int) float64 {
	for !n.leaf() {
		if v < n.split {
			n = n.left
		} else {
			n = n.right
		}
		depth++
	}
	return float64(depth) + averagePath(n.size)
}

// averagePath is the expected path length of an unsuccessful BST search over n points.
func averagePath(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		h := math.Log(float64(n-1)) + 0.5772156649
		return 2*h - 2*float64(n-1)/float64(n)
	}
}

// Score returns the anomaly score of v in (0, 1]; higher is more anomalous.
func (f *IsolationForest) Score(v float64) float64 {
	var total float64
	for _, tree := range f.trees {
		total += pathLength(tree, v, 0)
	}
	mean := total / float64(len(f.trees))
	c := averagePath(f.sampleSize)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -mean/c)
}

// Scores scores every value.
func (f *IsolationForest) Scores(values []float64) []float64 {
	scores := make([]float64, len(values))
	for i, v := range values {
		scores[i] = f.Score(v)
	}
	return scores
}

// Outliers returns a flag per value: true when its score exceeds the
// (1 - contamination) percentile of all scores.
func (f *IsolationForest) Outliers(values []float64) []bool {
	scores := f.Scores(values)
	threshold := Percentile(scores, 1-f.cfg.Contamination)
	flags := make([]bool, len(values))
	for i, s := range scores {
		flags[i] = s > threshold
	}
	return flags
}

// Percentile returns the q-quantile of values with linear interpolation.
func Percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	frac := pos - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}

// Standardize z-normalizes values with the population standard deviation.
// A constant series maps to zeros.
func Standardize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	std := math.Sqrt(sq / float64(len(values)))
	if std == 0 {
		return out
	}
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}
