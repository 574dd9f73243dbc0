package ml

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ForestConfig holds random forest hyperparameters.
type ForestConfig struct {
	Trees int
	// MaxFeatures is the number of features considered per split; 0 means sqrt(d).
	MaxFeatures int
	Seed        uint64
	MaxBins     int
	// Workers bounds parallel tree construction; 0 means GOMAXPROCS.
	Workers int
	// Progress, when set, is called after every completed tree.
	Progress func(done, total int)
}

// DefaultForestConfig returns the fallback pipeline's hyperparameters.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:   100,
		Seed:    42,
		MaxBins: DefaultMaxBins,
	}
}

// RandomForest is a bagged ensemble of fully grown Gini trees. Leaves hold class
// probabilities, which are averaged across trees.
type RandomForest struct {
	Classes  []int  `json:"classes"`
	Features int    `json:"features"`
	Trees    []Tree `json:"trees"`
}

// FitRandomForest trains a forest. Each tree uses its own generator derived
// from the seed, so the result does not depend on scheduling.
func FitRandomForest(X [][]float64, y []int, cfg ForestConfig) (*RandomForest, error) {
	n, d, err := checkMatrix(X, y)
	if err != nil {
		return nil, err
	}
	if cfg.Trees < 1 {
		return nil, fmt.Errorf("invalid forest config: %+v", cfg)
	}
	maxFeatures := cfg.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = max(1, int(math.Sqrt(float64(d))))
	}
	maxFeatures = min(maxFeatures, d)
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	classes, encoded := encodeClasses(y)
	bn := fitBinner(X, cfg.MaxBins)
	bins := bn.transform(X)

	forest := &RandomForest{
		Classes:  classes,
		Features: d,
		Trees:    make([]Tree, cfg.Trees),
	}

	var (
		mu   sync.Mutex
		done int
	)
	var g errgroup.Group
	g.SetLimit(workers)
	for t := 0; t < cfg.Trees; t++ {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(t)+1))
			b := &classificationBuilder{
				binner:      bn,
				bins:        bins,
				y:           encoded,
				k:           len(classes),
				maxFeatures: maxFeatures,
				rng:         rng,
				weight:      make([]float64, n),
				hist:        make([]float64, 256*len(classes)),
				left:        make([]float64, len(classes)),
				features:    make([]int, d),
			}
			forest.Trees[t] = b.fit(n)

			if cfg.Progress != nil {
				mu.Lock()
				done++
				cfg.Progress(done, cfg.Trees)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return forest, nil
}

// Predict implements Classifier.
func (m *RandomForest) Predict(x []float64) (int, error) {
	probs, err := m.Probabilities(x)
	if err != nil {
		return 0, err
	}
	return m.Classes[argmax(probs)], nil
}

// Probabilities returns the averaged class probabilities for x, in Classes order.
func (m *RandomForest) Probabilities(x []float64) ([]float64, error) {
	if err := checkInput(x, m.Features); err != nil {
		return nil, err
	}
	probs := make([]float64, len(m.Classes))
	for i := range m.Trees {
		for c, p := range m.Trees[i].leaf(x) {
			probs[c] += p
		}
	}
	for c := range probs {
		probs[c] /= float64(len(m.Trees))
	}
	return probs, nil
}

// NumFeatures implements Classifier.
func (m *RandomForest) NumFeatures() int {
	return m.Features
}

// Validate checks a deserialized forest so prediction cannot go out of bounds.
func (m *RandomForest) Validate() error {
	if err := validateClasses(m.Classes); err != nil {
		return err
	}
	if m.Features < 1 || len(m.Trees) == 0 {
		return fmt.Errorf("%w: malformed forest header", ErrInvalidModel)
	}
	for i := range m.Trees {
		if err := m.Trees[i].validate(m.Features, len(m.Classes)); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// classificationBuilder grows one bootstrap tree, splitting on Gini impurity
// over a random subset of features at every node.
type classificationBuilder struct {
	binner      *binner
	bins        [][]uint8
	y           []int
	k           int
	maxFeatures int
	rng         *rand.Rand

	weight   []float64
	hist     []float64
	left     []float64
	features []int
	nodes    []Node
}

func (b *classificationBuilder) fit(n int) Tree {
	for range n {
		b.weight[b.rng.IntN(n)]++
	}
	idx := make([]int, 0, n)
	for i, w := range b.weight {
		if w > 0 {
			idx = append(idx, i)
		}
	}
	for j := range b.features {
		b.features[j] = j
	}

	b.nodes = nil
	b.grow(idx)
	return Tree{Nodes: b.nodes}
}

func (b *classificationBuilder) grow(idx []int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1})

	counts := make([]float64, b.k)
	var total float64
	for _, i := range idx {
		counts[b.y[i]] += b.weight[i]
		total += b.weight[i]
	}

	if total >= 2 && !pure(counts) {
		if f, bin, ok := b.bestSplit(idx, counts, total); ok {
			k := partition(idx, b.bins[f], bin)
			left := b.grow(idx[:k])
			right := b.grow(idx[k:])
			b.nodes[id] = Node{
				Feature:   f,
				Threshold: b.binner.thresholds[f][bin],
				Left:      left,
				Right:     right,
			}
			return id
		}
	}

	for c := range counts {
		counts[c] /= total
	}
	b.nodes[id].Value = counts
	return id
}

// bestSplit examines shuffled features until maxFeatures non-constant ones have
// been evaluated and returns the split with the lowest weighted Gini impurity.
func (b *classificationBuilder) bestSplit(idx []int, counts []float64, total float64) (feature, bin int, ok bool) {
	b.rng.Shuffle(len(b.features), func(i, j int) {
		b.features[i], b.features[j] = b.features[j], b.features[i]
	})

	var parent float64
	for _, c := range counts {
		parent += c * c
	}
	best := parent/total + 1e-12

	visited := 0
	for _, f := range b.features {
		if visited >= b.maxFeatures {
			break
		}
		nb := b.binner.numBins(f)
		if nb < 2 {
			continue
		}

		hist := b.hist[:nb*b.k]
		clear(hist)
		col := b.bins[f]
		occupied := 0
		for _, i := range idx {
			slot := int(col[i])*b.k + b.y[i]
			hist[slot] += b.weight[i]
		}
		for bn := 0; bn < nb; bn++ {
			for c := 0; c < b.k; c++ {
				if hist[bn*b.k+c] > 0 {
					occupied++
					break
				}
			}
		}
		if occupied < 2 {
			continue
		}
		visited++

		clear(b.left)
		var wl float64
		for cut := 0; cut < nb-1; cut++ {
			for c := 0; c < b.k; c++ {
				w := hist[cut*b.k+c]
				b.left[c] += w
				wl += w
			}
			if wl == 0 {
				continue
			}
			wr := total - wl
			if wr < 0.5 {
				break
			}
			var sl, sr float64
			for c := 0; c < b.k; c++ {
				r := counts[c] - b.left[c]
				sl += b.left[c] * b.left[c]
				sr += r * r
			}
			score := sl/wl + sr/wr
			if score > best {
				best, feature, bin, ok = score, f, cut, true
			}
		}
	}
	return feature, bin, ok
}

func pure(counts []float64) bool {
	nonzero := 0
	for _, c := range counts {
		if c > 0 {
			nonzero++
		}
	}
	return nonzero <= 1
}
