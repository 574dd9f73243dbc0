package ml

import (
	"fmt"
	"math"
)

// BoostingConfig holds gradient boosting hyperparameters.
type BoostingConfig struct {
	Stages       int
	LearningRate float64
	MaxDepth     int
	MaxBins      int
	// Progress, when set, is called after every completed stage.
	Progress func(done, total int)
}

// DefaultBoostingConfig returns the primary pipeline's hyperparameters.
func DefaultBoostingConfig() BoostingConfig {
	return BoostingConfig{
		Stages:       200,
		LearningRate: 0.1,
		MaxDepth:     6,
		MaxBins:      DefaultMaxBins,
	}
}

// GradientBoosting is a multinomial-deviance boosted ensemble of regression
// trees: one tree per class per stage, scores passed through softmax.
type GradientBoosting struct {
	Classes      []int     `json:"classes"`
	Features     int       `json:"features"`
	LearningRate float64   `json:"learning_rate"`
	Init         []float64 `json:"init"`
	Stages       [][]Tree  `json:"stages"`
}

// FitGradientBoosting trains a boosted ensemble. It needs at least two classes.
func FitGradientBoosting(X [][]float64, y []int, cfg BoostingConfig) (*GradientBoosting, error) {
	n, d, err := checkMatrix(X, y)
	if err != nil {
		return nil, err
	}
	if cfg.Stages < 1 || cfg.MaxDepth < 1 || !(cfg.LearningRate > 0) {
		return nil, fmt.Errorf("invalid boosting config: %+v", cfg)
	}

	classes, encoded := encodeClasses(y)
	k := len(classes)
	if k < 2 {
		return nil, ErrSingleClass
	}

	counts := make([]float64, k)
	for _, c := range encoded {
		counts[c]++
	}
	init := make([]float64, k)
	for c := range init {
		init[c] = math.Log(counts[c] / float64(n))
	}

	bn := fitBinner(X, cfg.MaxBins)
	b := &regressionBuilder{
		binner:   bn,
		bins:     bn.transform(X),
		maxDepth: cfg.MaxDepth,
		factor:   float64(k-1) / float64(k),
		grad:     make([]float64, n),
		hess:     make([]float64, n),
		update:   make([]float64, n),
		sum:      make([]float64, 256),
		cnt:      make([]int, 256),
	}

	scores := make([]float64, n*k)
	for i := 0; i < n; i++ {
		copy(scores[i*k:(i+1)*k], init)
	}
	probs := make([]float64, n*k)
	idx := make([]int, n)

	model := &GradientBoosting{
		Classes:      classes,
		Features:     d,
		LearningRate: cfg.LearningRate,
		Init:         init,
		Stages:       make([][]Tree, 0, cfg.Stages),
	}

	for stage := 0; stage < cfg.Stages; stage++ {
		for i := 0; i < n; i++ {
			softmax(scores[i*k:(i+1)*k], probs[i*k:(i+1)*k])
		}

		trees := make([]Tree, k)
		for c := 0; c < k; c++ {
			for i := 0; i < n; i++ {
				p := probs[i*k+c]
				target := 0.0
				if encoded[i] == c {
					target = 1
				}
				b.grad[i] = target - p
				b.hess[i] = p * (1 - p)
				idx[i] = i
			}

			trees[c] = b.fit(idx)
			for i := 0; i < n; i++ {
				scores[i*k+c] += cfg.LearningRate * b.update[i]
			}
		}

		if !finite(scores...) {
			return nil, fmt.Errorf("%w: non-finite scores at stage %d", ErrNumerical, stage+1)
		}
		model.Stages = append(model.Stages, trees)

		if cfg.Progress != nil {
			cfg.Progress(stage+1, cfg.Stages)
		}
	}

	return model, nil
}

// Predict implements Classifier.
func (m *GradientBoosting) Predict(x []float64) (int, error) {
	scores, err := m.Scores(x)
	if err != nil {
		return 0, err
	}
	return m.Classes[argmax(scores)], nil
}

// Scores returns the raw per-class scores for x.
func (m *GradientBoosting) Scores(x []float64) ([]float64, error) {
	if err := checkInput(x, m.Features); err != nil {
		return nil, err
	}
	scores := make([]float64, len(m.Init))
	copy(scores, m.Init)
	for _, stage := range m.Stages {
		for c := range stage {
			scores[c] += m.LearningRate * stage[c].leaf(x)[0]
		}
	}
	return scores, nil
}

// NumFeatures implements Classifier.
func (m *GradientBoosting) NumFeatures() int {
	return m.Features
}

// Validate checks a deserialized ensemble so prediction cannot go out of bounds.
func (m *GradientBoosting) Validate() error {
	if err := validateClasses(m.Classes); err != nil {
		return err
	}
	if m.Features < 1 || !finite(m.LearningRate) || len(m.Init) != len(m.Classes) || !finite(m.Init...) {
		return fmt.Errorf("%w: malformed boosting header", ErrInvalidModel)
	}
	for s, stage := range m.Stages {
		if len(stage) != len(m.Classes) {
			return fmt.Errorf("%w: stage %d has %d trees", ErrInvalidModel, s, len(stage))
		}
		for c := range stage {
			if err := stage[c].validate(m.Features, 1); err != nil {
				return fmt.Errorf("stage %d tree %d: %w", s, c, err)
			}
		}
	}
	return nil
}

func softmax(scores, out []float64) {
	peak := scores[0]
	for _, s := range scores[1:] {
		peak = max(peak, s)
	}
	var total float64
	for i, s := range scores {
		out[i] = math.Exp(s - peak)
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
}

// regressionBuilder grows least-squares trees on the current residuals and
// sets Newton-step leaf values for the multinomial deviance.
type regressionBuilder struct {
	binner   *binner
	bins     [][]uint8
	maxDepth int
	factor   float64

	grad   []float64
	hess   []float64
	update []float64

	sum   []float64
	cnt   []int
	nodes []Node
}

func (b *regressionBuilder) fit(idx []int) Tree {
	b.nodes = nil
	b.grow(idx, 0)
	return Tree{Nodes: b.nodes}
}

func (b *regressionBuilder) grow(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1})

	if depth < b.maxDepth && len(idx) >= 2 {
		if f, bin, ok := b.bestSplit(idx); ok {
			k := partition(idx, b.bins[f], bin)
			left := b.grow(idx[:k], depth+1)
			right := b.grow(idx[k:], depth+1)
			b.nodes[id] = Node{
				Feature:   f,
				Threshold: b.binner.thresholds[f][bin],
				Left:      left,
				Right:     right,
			}
			return id
		}
	}

	var num, den float64
	for _, i := range idx {
		num += b.grad[i]
		den += b.hess[i]
	}
	value := 0.0
	if math.Abs(den) > 1e-150 {
		value = b.factor * num / den
	}
	b.nodes[id].Value = []float64{value}
	for _, i := range idx {
		b.update[i] = value
	}
	return id
}

// bestSplit maximizes the reduction in squared error of the residuals.
func (b *regressionBuilder) bestSplit(idx []int) (feature, bin int, ok bool) {
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += b.grad[i]
	}
	parent := total * total / float64(n)
	bestGain := 1e-12

	for f, col := range b.bins {
		nb := b.binner.numBins(f)
		if nb < 2 {
			continue
		}
		sum, cnt := b.sum[:nb], b.cnt[:nb]
		clear(sum)
		clear(cnt)
		for _, i := range idx {
			sum[col[i]] += b.grad[i]
			cnt[col[i]]++
		}

		var left float64
		nl := 0
		for cut := 0; cut < nb-1; cut++ {
			left += sum[cut]
			nl += cnt[cut]
			if nl == 0 {
				continue
			}
			nr := n - nl
			if nr == 0 {
				break
			}
			right := total - left
			gain := left*left/float64(nl) + right*right/float64(nr) - parent
			if gain > bestGain {
				bestGain, feature, bin, ok = gain, f, cut, true
			}
		}
	}
	return feature, bin, ok
}
