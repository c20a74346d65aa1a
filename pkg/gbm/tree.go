package gbm

import (
	"sort"
)

// Node is one node of a regression tree stored in flat form. Leaves carry
// Value; internal nodes route x[Feature] <= Threshold to Left.
type Node struct {
	Leaf      bool    `json:"leaf"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Value     float64 `json:"value"`
}

// Tree is a least-squares regression tree.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeBuilder struct {
	X               [][]float64
	target          []float64
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	importance      []float64
	nodes           []Node
}

func (b *treeBuilder) build(idx []int) Tree {
	b.nodes = b.nodes[:0]
	b.grow(idx, 0)
	nodes := make([]Node, len(b.nodes))
	copy(nodes, b.nodes)
	return Tree{Nodes: nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	var sum float64
	for _, i := range idx {
		sum += b.target[i]
	}
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Leaf: true, Value: sum / float64(len(idx))})

	if depth >= b.maxDepth || len(idx) < b.minSamplesSplit || len(idx) < 2*b.minSamplesLeaf {
		return id
	}

	feature, threshold, gain, ok := b.bestSplit(idx, sum)
	if !ok {
		return id
	}
	b.importance[feature] += gain

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r, Value: b.nodes[id].Value}
	return id
}

// bestSplit scans every feature for the threshold with the largest
// reduction in squared error.
func (b *treeBuilder) bestSplit(idx []int, total float64) (feature int, threshold, gain float64, ok bool) {
	n := float64(len(idx))
	parent := total * total / n
	sorted := make([]int, len(idx))

	for f := range b.importance {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.X[sorted[a]][f] < b.X[sorted[c]][f]
		})

		var left float64
		for k := 1; k < len(sorted); k++ {
			left += b.target[sorted[k-1]]
			nl, nr := k, len(sorted)-k
			if nl < b.minSamplesLeaf || nr < b.minSamplesLeaf {
				continue
			}
			lo, hi := b.X[sorted[k-1]][f], b.X[sorted[k]][f]
			if lo == hi {
				continue
			}
			right := total - left
			g := left*left/float64(nl) + right*right/float64(nr) - parent
			if g > gain+1e-12 {
				feature, threshold, gain, ok = f, lo+(hi-lo)/2, g, true
			}
		}
	}
	return feature, threshold, gain, ok
}
