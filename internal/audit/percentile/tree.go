// Package percentile implements an order-statistic AVL tree for streaming quantile queries.
package percentile

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

var errInvalidPercentile = errors.New("invalid percentile")

type node struct {
	value  float64
	count  int
	size   int // count + size(left) + size(right)
	height int
	left   *node
	right  *node
}

func (n *node) getSize() int {
	if n == nil {
		return 0
	}

	return n.size
}

func (n *node) getHeight() int {
	if n == nil {
		return 0
	}

	return n.height
}

func (n *node) update() {
	n.size = n.count + n.left.getSize() + n.right.getSize()
	n.height = 1 + max(n.left.getHeight(), n.right.getHeight())
}

func (n *node) balance() int {
	return n.left.getHeight() - n.right.getHeight()
}

// Tree is a multiset of real values supporting O(log n) insertion and rank queries.
// The zero value is an empty tree.
type Tree struct {
	root *node
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{}
}

// Build constructs a balanced tree from an unsorted sequence in O(n log n).
// Non-finite values are ignored.
func Build(values []float64) *Tree {
	sorted := make([]float64, 0, len(values))

	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sorted = append(sorted, v)
		}
	}

	slices.Sort(sorted)

	// Run-length compaction of duplicates.
	var (
		distinct []float64
		counts   []int
	)

	for _, v := range sorted {
		if len(distinct) > 0 && distinct[len(distinct)-1] == v {
			counts[len(counts)-1]++

			continue
		}

		distinct = append(distinct, v)
		counts = append(counts, 1)
	}

	return &Tree{root: buildBalanced(distinct, counts)}
}

func buildBalanced(values []float64, counts []int) *node {
	if len(values) == 0 {
		return nil
	}

	mid := len(values) / 2
	n := &node{
		value: values[mid],
		count: counts[mid],
		left:  buildBalanced(values[:mid], counts[:mid]),
		right: buildBalanced(values[mid+1:], counts[mid+1:]),
	}
	n.update()

	return n
}

// Insert adds count occurrences of value. Non-finite values and non-positive counts are ignored.
func (t *Tree) Insert(value float64, count int) {
	if count <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return
	}

	t.root = insert(t.root, value, count)
}

func insert(n *node, value float64, count int) *node {
	if n == nil {
		return &node{value: value, count: count, size: count, height: 1}
	}

	switch {
	case value < n.value:
		n.left = insert(n.left, value, count)
	case value > n.value:
		n.right = insert(n.right, value, count)
	default:
		n.count += count
	}

	return rebalance(n)
}

func rebalance(n *node) *node {
	n.update()

	switch factor := n.balance(); {
	case factor > 1:
		if n.left.balance() < 0 {
			n.left = rotateLeft(n.left)
		}

		n = rotateRight(n)
	case factor < -1:
		if n.right.balance() > 0 {
			n.right = rotateRight(n.right)
		}

		n = rotateLeft(n)
	}

	if factor := n.balance(); factor < -1 || factor > 1 {
		panic(fmt.Sprintf("percentile: balance factor %d after rebalance", factor))
	}

	return n
}

func rotateRight(n *node) *node {
	pivot := n.left
	n.left = pivot.right
	pivot.right = n

	n.update()
	pivot.update()

	return pivot
}

func rotateLeft(n *node) *node {
	pivot := n.right
	n.right = pivot.left
	pivot.left = n

	n.update()
	pivot.update()

	return pivot
}

// Size returns the number of stored values, counting multiplicities.
func (t *Tree) Size() int {
	return t.root.getSize()
}

// At returns the k-th smallest value (0-based, counting multiplicities).
func (t *Tree) At(k int) (float64, bool) {
	if k < 0 || k >= t.Size() {
		return 0, false
	}

	n := t.root
	for n != nil {
		leftSize := n.left.getSize()

		switch {
		case k < leftSize:
			n = n.left
		case k < leftSize+n.count:
			return n.value, true
		default:
			k -= leftSize + n.count
			n = n.right
		}
	}

	// Unreachable unless the size invariant is broken.
	panic("percentile: subtree sizes are inconsistent")
}

// Min returns the smallest value.
func (t *Tree) Min() (float64, bool) {
	return t.At(0)
}

// Max returns the largest value.
func (t *Tree) Max() (float64, bool) {
	return t.At(t.Size() - 1)
}

// Quantile returns the interpolated value at percentile p.
// p in [0,1] is read as a fraction, p in (1,100] as a percentage; anything else is clamped.
func (t *Tree) Quantile(p float64) (float64, bool) {
	size := t.Size()
	if size == 0 || math.IsNaN(p) {
		return 0, false
	}

	percent := normalize(p)
	idx := percent / 100 * float64(size-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))

	lowValue, _ := t.At(lower)
	if upper == lower {
		return lowValue, true
	}

	highValue, _ := t.At(upper)

	return lowValue + (highValue-lowValue)*(idx-float64(lower)), true
}

// QuantileString accepts "0.9", "90", "90%", "p90" or "P90".
func (t *Tree) QuantileString(raw string) (float64, bool, error) {
	p, err := ParsePercentile(raw)
	if err != nil {
		return 0, false, err
	}

	value, ok := t.Quantile(p)

	return value, ok, nil
}

// ParsePercentile converts the textual forms accepted by QuantileString to a number.
func ParsePercentile(raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "p"), "P")
	trimmed = strings.TrimSuffix(trimmed, "%")

	p, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(p) {
		return 0, fmt.Errorf("%w: %q", errInvalidPercentile, raw)
	}

	if strings.HasSuffix(strings.TrimSpace(raw), "%") && p <= 1 {
		// "1%" is one percent, not the maximum.
		return p / 100, nil
	}

	return p, nil
}

func normalize(p float64) float64 {
	if p <= 1 {
		p *= 100
	}

	return min(max(p, 0), 100)
}
