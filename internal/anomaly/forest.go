package anomaly

import (
	"math"
	"math/rand/v2"
)

const eulerGamma = 0.5772156649015329

// forest is an isolation forest over a single numeric feature
type forest struct {
	trees      []*node
	sampleSize int
}

type node struct {
	split       float64
	left, right *node
	size        int
}

func (n *node) leaf() bool {
	return n.left == nil
}

// fitForest grows trees isolation trees, each on a sub-sample of up to
// maxSamples points drawn without replacement
func fitForest(values []float64, trees, maxSamples int, rng *rand.Rand) *forest {
	sampleSize := min(maxSamples, len(values))
	depthLimit := int(math.Ceil(math.Log2(float64(max(sampleSize, 2)))))

	f := &forest{sampleSize: sampleSize, trees: make([]*node, trees)}
	sample := make([]float64, sampleSize)
	for t := range f.trees {
		perm := rng.Perm(len(values))
		for i := range sample {
			sample[i] = values[perm[i]]
		}
		f.trees[t] = grow(sample, 0, depthLimit, rng)
	}
	return f
}

func grow(points []float64, depth, limit int, rng *rand.Rand) *node {
	if depth >= limit || len(points) <= 1 {
		return &node{size: len(points)}
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo = min(lo, p)
		hi = max(hi, p)
	}
	if lo == hi {
		return &node{size: len(points)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right []float64
	for _, p := range points {
		if p < split {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}
	return &node{
		split: split,
		left:  grow(left, depth+1, limit, rng),
		right: grow(right, depth+1, limit, rng),
	}
}

// pathLength is the depth at which x is isolated, adjusted for the
// unbuilt subtree below a leaf holding more than one point
func pathLength(n *node, x float64) float64 {
	depth := 0.0
	for !n.leaf() {
		if x < n.split {
			n = n.left
		} else {
			n = n.right
		}
		depth++
	}
	return depth + averagePathLength(n.size)
}

// score is the normalised anomaly score in (0, 1]; values near 1 are easy to isolate
func (f *forest) score(x float64) float64 {
	var total float64
	for _, t := range f.trees {
		total += pathLength(t, x)
	}
	mean := total / float64(len(f.trees))
	return math.Pow(2, -mean/averagePathLength(f.sampleSize))
}

// averagePathLength is the mean path length of an unsuccessful search in a
// binary search tree of n points
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}
