package surrogate

import (
	"math/rand"
	"sort"
)

// regTree is a CART regression tree grown by greedy variance
// reduction. It backs both the random forest and the boosted
// ensembles; neither gonum nor any other dependency ships tree
// learners.
type regTree struct {
	feature   int
	threshold float64
	left      *regTree
	right     *regTree
	value     float64
	leaf      bool
}

type treeParams struct {
	maxDepth int
	minLeaf  int
	// maxFeatures is the number of features considered per split;
	// 0 means all.
	maxFeatures int
	rng         *rand.Rand
}

// growTree builds a tree over the samples selected by idx. X is
// row-major; y is aligned with X.
func growTree(X [][]float64, y []float64, idx []int, depth int, p treeParams) *regTree {
	if len(idx) == 0 {
		return &regTree{leaf: true, value: 0}
	}

	mean := subsetMean(y, idx)
	if depth >= p.maxDepth || len(idx) < 2*p.minLeaf || constantTarget(y, idx) {
		return &regTree{leaf: true, value: mean}
	}

	feature, threshold, ok := bestSplit(X, y, idx, p)
	if !ok {
		return &regTree{leaf: true, value: mean}
	}

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}

	return &regTree{
		feature:   feature,
		threshold: threshold,
		left:      growTree(X, y, leftIdx, depth+1, p),
		right:     growTree(X, y, rightIdx, depth+1, p),
	}
}

// bestSplit scans every candidate feature for the threshold that
// minimizes the summed squared error of the two children. Thresholds
// are midpoints between consecutive distinct feature values.
func bestSplit(X [][]float64, y []float64, idx []int, p treeParams) (feature int, threshold float64, ok bool) {
	nFeatures := len(X[idx[0]])
	features := candidateFeatures(nFeatures, p)

	bestSSE := subsetSSE(y, idx)
	order := make([]int, len(idx))

	for _, f := range features {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool {
			return X[order[a]][f] < X[order[b]][f]
		})

		// Running sums from the left so each split position is O(1).
		total := 0.0
		for _, i := range order {
			total += y[i]
		}
		leftSum := 0.0
		leftSumSq := 0.0
		totalSq := 0.0
		for _, i := range order {
			totalSq += y[i] * y[i]
		}

		for pos := 1; pos < len(order); pos++ {
			i := order[pos-1]
			leftSum += y[i]
			leftSumSq += y[i] * y[i]

			if pos < p.minLeaf || len(order)-pos < p.minLeaf {
				continue
			}
			lo, hi := X[order[pos-1]][f], X[order[pos]][f]
			if lo == hi {
				continue
			}

			nl := float64(pos)
			nr := float64(len(order) - pos)
			rightSum := total - leftSum
			rightSumSq := totalSq - leftSumSq
			sse := (leftSumSq - leftSum*leftSum/nl) + (rightSumSq - rightSum*rightSum/nr)
			if sse < bestSSE {
				bestSSE = sse
				feature = f
				threshold = (lo + hi) / 2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func candidateFeatures(nFeatures int, p treeParams) []int {
	if p.maxFeatures <= 0 || p.maxFeatures >= nFeatures || p.rng == nil {
		all := make([]int, nFeatures)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := p.rng.Perm(nFeatures)
	return perm[:p.maxFeatures]
}

func (t *regTree) predict(x []float64) float64 {
	for !t.leaf {
		if x[t.feature] <= t.threshold {
			t = t.left
		} else {
			t = t.right
		}
	}
	return t.value
}

func subsetMean(y []float64, idx []int) float64 {
	sum := 0.0
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}

func subsetSSE(y []float64, idx []int) float64 {
	mean := subsetMean(y, idx)
	sse := 0.0
	for _, i := range idx {
		d := y[i] - mean
		sse += d * d
	}
	return sse
}

func constantTarget(y []float64, idx []int) bool {
	first := y[idx[0]]
	for _, i := range idx[1:] {
		if y[i] != first {
			return false
		}
	}
	return true
}
