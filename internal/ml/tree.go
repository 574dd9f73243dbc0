package ml

import (
	"fmt"
	"math"
	"slices"
)

// DefaultMaxBins bounds the number of candidate thresholds per feature.
const DefaultMaxBins = 128

// Node is one node of a binary decision tree. Leaves have Feature -1 and carry
// Value; internal nodes send x to Left when x[Feature] <= Threshold.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Value     []float64 `json:"v,omitempty"`
}

// Tree is a decision tree stored in pre-order; children always follow their parent.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) leaf(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// validate guarantees that leaf lookups terminate and stay in bounds.
func (t *Tree) validate(features, valueLen int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("%w: empty tree", ErrInvalidModel)
	}
	for i, n := range t.Nodes {
		if n.Feature < 0 {
			if len(n.Value) != valueLen || !finite(n.Value...) {
				return fmt.Errorf("%w: leaf %d has a malformed value", ErrInvalidModel, i)
			}
			continue
		}
		if n.Feature >= features || math.IsNaN(n.Threshold) {
			return fmt.Errorf("%w: node %d splits on feature %d", ErrInvalidModel, i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("%w: node %d has children %d/%d", ErrInvalidModel, i, n.Left, n.Right)
		}
	}
	return nil
}

// binner maps feature values onto a small set of ordered bins so split search
// can work on histograms. Bin b holds values in (thresholds[b-1], thresholds[b]].
type binner struct {
	thresholds [][]float64
}

func fitBinner(X [][]float64, maxBins int) *binner {
	if maxBins < 2 || maxBins > 256 {
		maxBins = DefaultMaxBins
	}
	d := len(X[0])
	b := &binner{thresholds: make([][]float64, d)}

	col := make([]float64, len(X))
	for j := 0; j < d; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		slices.Sort(col)
		unique := slices.Compact(slices.Clone(col))
		b.thresholds[j] = cutPoints(unique, maxBins)
	}
	return b
}

// cutPoints returns midpoints between distinct values, thinned to quantiles
// when there are more than maxBins values.
func cutPoints(unique []float64, maxBins int) []float64 {
	if len(unique) < 2 {
		return nil
	}
	if len(unique) <= maxBins {
		cuts := make([]float64, len(unique)-1)
		for i := range cuts {
			cuts[i] = unique[i] + (unique[i+1]-unique[i])/2
		}
		return cuts
	}

	cuts := make([]float64, 0, maxBins-1)
	for q := 1; q < maxBins; q++ {
		i := q * len(unique) / maxBins
		if i == 0 {
			continue
		}
		c := unique[i-1] + (unique[i]-unique[i-1])/2
		if len(cuts) == 0 || c > cuts[len(cuts)-1] {
			cuts = append(cuts, c)
		}
	}
	return cuts
}

// transform returns the bin of every sample, indexed [feature][sample].
func (b *binner) transform(X [][]float64) [][]uint8 {
	bins := make([][]uint8, len(b.thresholds))
	for j, cuts := range b.thresholds {
		col := make([]uint8, len(X))
		for i, row := range X {
			pos, _ := slices.BinarySearch(cuts, row[j])
			col[i] = uint8(pos)
		}
		bins[j] = col
	}
	return bins
}

func (b *binner) numBins(feature int) int {
	return len(b.thresholds[feature]) + 1
}

// partition reorders idx so samples whose bin is <= bin come first and
// returns how many there are.
func partition(idx []int, col []uint8, bin int) int {
	lo, hi := 0, len(idx)-1
	for lo <= hi {
		if int(col[idx[lo]]) <= bin {
			lo++
			continue
		}
		idx[lo], idx[hi] = idx[hi], idx[lo]
		hi--
	}
	return lo
}
