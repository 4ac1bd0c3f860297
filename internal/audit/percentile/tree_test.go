package percentile

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkInvariants verifies subtree sizes, heights and AVL balance, returning (size, height).
func checkInvariants(t *testing.T, n *node) (int, int) {
	t.Helper()

	if n == nil {
		return 0, 0
	}

	leftSize, leftHeight := checkInvariants(t, n.left)
	rightSize, rightHeight := checkInvariants(t, n.right)

	require.Equal(t, n.count+leftSize+rightSize, n.size, "size of node %v", n.value)
	require.Equal(t, 1+max(leftHeight, rightHeight), n.height, "height of node %v", n.value)
	require.LessOrEqual(t, leftHeight-rightHeight, 1)
	require.GreaterOrEqual(t, leftHeight-rightHeight, -1)

	if n.left != nil {
		require.Less(t, n.left.value, n.value)
	}

	if n.right != nil {
		require.Greater(t, n.right.value, n.value)
	}

	return n.size, n.height
}

func naiveMedian(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}

	return sorted[mid]
}

func randomMultiset(rng *rand.Rand, size int) []float64 {
	values := make([]float64, size)
	for i := range values {
		// Small integer range to force duplicates.
		values[i] = float64(rng.IntN(20)) / 2
	}

	return values
}

func TestInsertKeepsInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	tree := New()

	for range 500 {
		tree.Insert(rng.Float64()*100, 1+rng.IntN(3))
		checkInvariants(t, tree.root)
	}

	// Sorted insertion is the worst case for an unbalanced tree.
	sorted := New()
	for i := range 1024 {
		sorted.Insert(float64(i), 1)
	}

	_, height := checkInvariants(t, sorted.root)
	assert.LessOrEqual(t, height, 15)
}

func TestBuildKeepsInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	tree := Build(randomMultiset(rng, 301))

	checkInvariants(t, tree.root)
	assert.Equal(t, 301, tree.Size())
}

func TestQuantileProperties(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 42))

	for _, size := range []int{1, 2, 3, 10, 11, 64, 101} {
		values := randomMultiset(rng, size)

		for name, tree := range map[string]*Tree{"bulk": Build(values), "incremental": incremental(values)} {
			minimum, ok := tree.Min()
			require.True(t, ok)

			maximum, _ := tree.Max()

			q0, _ := tree.Quantile(0)
			q100, _ := tree.Quantile(100)
			q50, _ := tree.Quantile(50)

			assert.InDelta(t, minimum, q0, 0, "%s/%d", name, size)
			assert.InDelta(t, maximum, q100, 0, "%s/%d", name, size)
			assert.InDelta(t, naiveMedian(values), q50, 1e-12, "%s/%d", name, size)
			assert.InDelta(t, slices.Min(values), minimum, 0)
			assert.InDelta(t, slices.Max(values), maximum, 0)
		}
	}
}

func incremental(values []float64) *Tree {
	tree := New()
	for _, v := range values {
		tree.Insert(v, 1)
	}

	return tree
}

func TestQuantileInterpolates(t *testing.T) {
	tree := New()
	tree.Insert(1, 1)
	tree.Insert(2, 2)
	tree.Insert(10, 1)

	// Order statistics: 1, 2, 2, 10. idx for p90 = 0.9*3 = 2.7.
	p90, ok := tree.Quantile(90)
	require.True(t, ok)
	assert.InDelta(t, 2+0.7*8, p90, 1e-12)

	median, _ := tree.Quantile(0.5)
	assert.InDelta(t, 2.0, median, 1e-12)
}

func TestQuantileAcceptedForms(t *testing.T) {
	tree := Build([]float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100})

	for _, raw := range []string{"0.9", "90", "90%", "p90", "P90", " 90 "} {
		value, ok, err := tree.QuantileString(raw)
		require.NoError(t, err, raw)
		require.True(t, ok)
		assert.InDelta(t, 90.0, value, 1e-9, raw)
	}

	onePercent, _, err := tree.QuantileString("1%")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, onePercent, 1e-9)

	_, _, err = tree.QuantileString("ninety")
	require.Error(t, err)

	clampedHigh, _ := tree.Quantile(250)
	clampedLow, _ := tree.Quantile(-3)
	assert.InDelta(t, 100.0, clampedHigh, 0)
	assert.InDelta(t, 0.0, clampedLow, 0)
}

func TestEmptyTree(t *testing.T) {
	tree := New()

	_, ok := tree.Quantile(50)
	assert.False(t, ok)

	_, ok = tree.Min()
	assert.False(t, ok)

	_, ok = tree.Max()
	assert.False(t, ok)

	tree.Insert(math.NaN(), 1)
	tree.Insert(1, 0)
	assert.Zero(t, tree.Size())

	assert.Zero(t, Build([]float64{math.Inf(1), math.NaN()}).Size())
}
