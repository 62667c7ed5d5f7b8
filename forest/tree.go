package forest

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// node is a regression tree node. Leaves carry the mean target of the
// training rows that reached them; internal nodes route on a single
// feature threshold.
type node struct {
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Value     float64 `json:"value"`
	Left      *node   `json:"left,omitempty"`
	Right     *node   `json:"right,omitempty"`
}

func (n *node) leaf() bool {
	return n.Left == nil
}

func (n *node) predict(x []float64) float64 {
	for !n.leaf() {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

type treeBuilder struct {
	x           [][]float64
	y           []float64
	params      Hyperparams
	rng         *rand.Rand
	maxFeatures int
}

func (b *treeBuilder) build(idx []int, depth int) *node {
	targets := make([]float64, len(idx))
	for i, j := range idx {
		targets[i] = b.y[j]
	}
	n := &node{Value: stat.Mean(targets, nil)}

	if depth >= b.params.MaxDepth || len(idx) < b.params.MinSamplesSplit {
		return n
	}
	if stat.Variance(targets, nil) == 0 {
		return n
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return n
	}

	var left, right []int
	for _, j := range idx {
		if b.x[j][feature] <= threshold {
			left = append(left, j)
		} else {
			right = append(right, j)
		}
	}

	n.Feature = feature
	n.Threshold = threshold
	n.Left = b.build(left, depth+1)
	n.Right = b.build(right, depth+1)
	return n
}

// bestSplit scans a random feature subset for the threshold with the
// largest squared-error reduction that leaves at least MinSamplesLeaf
// rows on each side.
func (b *treeBuilder) bestSplit(idx []int) (feature int, threshold float64, ok bool) {
	var best float64

	for _, f := range b.sampleFeatures() {
		t, score, valid := b.scanFeature(idx, f)
		if valid && score > best {
			best = score
			feature = f
			threshold = t
			ok = true
		}
	}
	return feature, threshold, ok
}

func (b *treeBuilder) sampleFeatures() []int {
	d := len(b.x[0])
	if b.maxFeatures >= d {
		features := make([]int, d)
		for i := range features {
			features[i] = i
		}
		return features
	}
	return b.rng.Perm(d)[:b.maxFeatures]
}

func (b *treeBuilder) scanFeature(idx []int, f int) (threshold, score float64, ok bool) {
	order := append([]int(nil), idx...)
	sort.Slice(order, func(i, j int) bool {
		a, c := b.x[order[i]][f], b.x[order[j]][f]
		if a != c {
			return a < c
		}
		// tie-break on row index so training is deterministic
		return order[i] < order[j]
	})

	n := len(order)
	sum := make([]float64, n+1)
	sumSq := make([]float64, n+1)
	for i, j := range order {
		sum[i+1] = sum[i] + b.y[j]
		sumSq[i+1] = sumSq[i] + b.y[j]*b.y[j]
	}
	total := sumSq[n] - sum[n]*sum[n]/float64(n)

	minLeaf := b.params.MinSamplesLeaf
	for i := minLeaf; i <= n-minLeaf; i++ {
		lo, hi := b.x[order[i-1]][f], b.x[order[i]][f]
		if lo == hi {
			continue
		}
		left := sumSq[i] - sum[i]*sum[i]/float64(i)
		right := (sumSq[n] - sumSq[i]) - (sum[n]-sum[i])*(sum[n]-sum[i])/float64(n-i)
		if s := total - left - right; s > score {
			score = s
			threshold = lo + (hi-lo)/2
			ok = true
		}
	}
	return threshold, score, ok
}

func maxFeatureCount(mode string, d int) int {
	switch mode {
	case "sqrt":
		if k := int(math.Sqrt(float64(d))); k > 0 {
			return k
		}
		return 1
	case "log2":
		if k := int(math.Log2(float64(d))); k > 0 {
			return k
		}
		return 1
	default:
		return d
	}
}
