// Package forest implements a random forest regressor: an ensemble of
// variance-reducing regression trees fit on bootstrap samples. It is
// intentionally plain; the pipeline needs a reproducible baseline, not
// a tuned learner.
package forest

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
)

// Hyperparams mirror the conventional random forest knobs. The zero
// value is not usable; start from DefaultHyperparams.
type Hyperparams struct {
	NumTrees        int    `json:"n_estimators"`
	MaxDepth        int    `json:"max_depth"`
	MinSamplesSplit int    `json:"min_samples_split"`
	MinSamplesLeaf  int    `json:"min_samples_leaf"`
	MaxFeatures     string `json:"max_features"`
	Seed            int64  `json:"random_state"`
}

func DefaultHyperparams() Hyperparams {
	return Hyperparams{
		NumTrees:        100,
		MaxDepth:        10,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  2,
		MaxFeatures:     "sqrt",
		Seed:            42,
	}
}

// Map renders the hyperparameters as tracking-server params.
func (p Hyperparams) Map() map[string]string {
	return map[string]string{
		"n_estimators":      strconv.Itoa(p.NumTrees),
		"max_depth":         strconv.Itoa(p.MaxDepth),
		"min_samples_split": strconv.Itoa(p.MinSamplesSplit),
		"min_samples_leaf":  strconv.Itoa(p.MinSamplesLeaf),
		"max_features":      p.MaxFeatures,
		"random_state":      strconv.FormatInt(p.Seed, 10),
	}
}

// Forest is a trained ensemble. It serializes to JSON so the model
// artifact stays inspectable on the tracking server.
type Forest struct {
	Params   Hyperparams `json:"params"`
	Features []string    `json:"features"`
	Trees    []*node     `json:"trees"`
}

// Fit trains the ensemble. Each tree gets its own deterministic seed
// derived from Seed, so identical inputs produce identical forests.
func Fit(x [][]float64, y []float64, features []string, params Hyperparams) (*Forest, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("forest: empty training set")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("forest: %d feature rows but %d targets", len(x), len(y))
	}
	if len(features) != len(x[0]) {
		return nil, fmt.Errorf("forest: %d feature names but %d columns", len(features), len(x[0]))
	}
	if params.NumTrees < 1 || params.MaxDepth < 1 || params.MinSamplesLeaf < 1 {
		return nil, fmt.Errorf("forest: invalid hyperparameters %+v", params)
	}

	f := &Forest{
		Params:   params,
		Features: append([]string(nil), features...),
		Trees:    make([]*node, params.NumTrees),
	}
	for t := range f.Trees {
		rng := rand.New(rand.NewSource(params.Seed + int64(t)))
		builder := &treeBuilder{
			x:           x,
			y:           y,
			params:      params,
			rng:         rng,
			maxFeatures: maxFeatureCount(params.MaxFeatures, len(features)),
		}
		idx := make([]int, len(x))
		for i := range idx {
			idx[i] = rng.Intn(len(x))
		}
		f.Trees[t] = builder.build(idx, 0)
	}
	return f, nil
}

// Predict returns the ensemble mean for a single feature vector.
func (f *Forest) Predict(x []float64) (float64, error) {
	if len(x) != len(f.Features) {
		return 0, fmt.Errorf("forest: expected %d features, got %d", len(f.Features), len(x))
	}
	var sum float64
	for _, tree := range f.Trees {
		sum += tree.predict(x)
	}
	return sum / float64(len(f.Trees)), nil
}

// PredictBatch predicts every row of a feature matrix.
func (f *Forest) PredictBatch(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, row := range x {
		v, err := f.Predict(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Marshal serializes the forest to its artifact representation.
func Marshal(f *Forest) ([]byte, error) {
	return json.Marshal(f)
}

// Unmarshal restores a forest from its artifact representation.
func Unmarshal(data []byte) (*Forest, error) {
	f := new(Forest)
	if err := json.Unmarshal(data, f); err != nil {
		return nil, err
	}
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("forest: artifact holds no trees")
	}
	return f, nil
}
