package ml

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// Fold is one train/test partition of sample indices.
type Fold struct {
	Train []int
	Test  []int
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// groupByClass returns the sample indices of each distinct label, in label order.
func groupByClass(y []int) [][]int {
	classes, encoded := encodeClasses(y)
	groups := make([][]int, len(classes))
	for i, c := range encoded {
		groups[c] = append(groups[c], i)
	}
	return groups
}

// StratifiedSplit holds out ceil(testFraction*n) samples, the same count as
// ShuffleSplit, spread over the classes in proportion to their size. Every
// class needs at least two members so that it appears on both sides, which
// raises the count to one per class when ceil(testFraction*n) is smaller.
func StratifiedSplit(y []int, testFraction float64, seed uint64) (Fold, error) {
	if len(y) == 0 {
		return Fold{}, ErrEmptyInput
	}
	if !(testFraction > 0 && testFraction < 1) {
		return Fold{}, fmt.Errorf("test fraction %v out of range", testFraction)
	}

	groups := groupByClass(y)
	sizes := make([]int, len(groups))
	for c, members := range groups {
		if len(members) < 2 {
			return Fold{}, fmt.Errorf("%w: class of sample %d has %d member", ErrStratify, members[0], len(members))
		}
		sizes[c] = len(members)
	}

	nTest := int(math.Ceil(float64(len(y)) * testFraction))
	nTest = min(max(nTest, len(groups)), len(y)-len(groups))

	rng := newRand(seed)
	var fold Fold
	for c, k := range allocate(sizes, nTest) {
		members := groups[c]
		rng.Shuffle(len(members), func(i, j int) {
			members[i], members[j] = members[j], members[i]
		})
		fold.Test = append(fold.Test, members[:k]...)
		fold.Train = append(fold.Train, members[k:]...)
	}

	slices.Sort(fold.Train)
	slices.Sort(fold.Test)
	return fold, nil
}

// allocate splits total test samples over classes of the given sizes by
// largest remainder, keeping between 1 and size-1 samples of each class.
// total must lie in [len(sizes), sum(sizes)-len(sizes)].
func allocate(sizes []int, total int) []int {
	n := 0
	for _, s := range sizes {
		n += s
	}

	counts := make([]int, len(sizes))
	remainders := make([]float64, len(sizes))
	assigned := 0
	for c, s := range sizes {
		exact := float64(s) * float64(total) / float64(n)
		counts[c] = min(max(int(exact), 1), s-1)
		remainders[c] = exact - float64(counts[c])
		assigned += counts[c]
	}

	order := make([]int, len(sizes))
	for i := range order {
		order[i] = i
	}
	// Largest remainder first; ties go to the lower class index.
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case remainders[a] > remainders[b]:
			return -1
		case remainders[a] < remainders[b]:
			return 1
		}
		return 0
	})

	for assigned < total {
		for _, c := range order {
			if assigned == total {
				break
			}
			if counts[c] < sizes[c]-1 {
				counts[c]++
				assigned++
			}
		}
	}
	for assigned > total {
		for i := len(order) - 1; i >= 0 && assigned > total; i-- {
			if c := order[i]; counts[c] > 1 {
				counts[c]--
				assigned--
			}
		}
	}
	return counts
}

// ShuffleSplit holds out ceil(testFraction*n) random samples, keeping at least
// one for training. A single sample is used for both training and testing.
func ShuffleSplit(n int, testFraction float64, seed uint64) (Fold, error) {
	if n == 0 {
		return Fold{}, ErrEmptyInput
	}
	if !(testFraction > 0 && testFraction < 1) {
		return Fold{}, fmt.Errorf("test fraction %v out of range", testFraction)
	}
	if n == 1 {
		return Fold{Train: []int{0}, Test: []int{0}}, nil
	}

	perm := newRand(seed).Perm(n)
	nTest := int(math.Ceil(float64(n) * testFraction))
	nTest = min(max(nTest, 1), n-1)

	fold := Fold{
		Test:  slices.Clone(perm[:nTest]),
		Train: slices.Clone(perm[nTest:]),
	}
	slices.Sort(fold.Train)
	slices.Sort(fold.Test)
	return fold, nil
}

// StratifiedKFold deals the members of each class round-robin into k folds.
// It fails when every class has fewer than k members.
func StratifiedKFold(y []int, k int, seed uint64) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", k)
	}
	if len(y) < k {
		return nil, fmt.Errorf("%w: %d samples for %d folds", ErrStratify, len(y), k)
	}

	groups := groupByClass(y)
	enough := false
	for _, members := range groups {
		if len(members) >= k {
			enough = true
			break
		}
	}
	if !enough {
		return nil, fmt.Errorf("%w: every class has fewer than %d members", ErrStratify, k)
	}

	rng := newRand(seed)
	assign := make([]int, len(y))
	next := 0
	for _, members := range groups {
		rng.Shuffle(len(members), func(i, j int) {
			members[i], members[j] = members[j], members[i]
		})
		for _, i := range members {
			assign[i] = next
			next = (next + 1) % k
		}
	}

	folds := make([]Fold, k)
	for i, f := range assign {
		for j := range folds {
			if j == f {
				folds[j].Test = append(folds[j].Test, i)
			} else {
				folds[j].Train = append(folds[j].Train, i)
			}
		}
	}
	return folds, nil
}

// Take returns the rows of X and labels of y at idx.
func Take(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}
