package packedarray

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrayGetSetSparse(t *testing.T) {
	t.Parallel()

	a := New(16)
	assert.Equal(t, int64(0), a.Get(5))

	require.NoError(t, a.Set(5, 42))
	assert.Equal(t, int64(42), a.Get(5))
	assert.Equal(t, int64(0), a.Get(4))
	assert.Equal(t, int64(0), a.Get(6))
}

func TestArraySmallValueOnlyTouchesLeastSignificantPlane(t *testing.T) {
	t.Parallel()

	a := New(16)
	require.NoError(t, a.Set(5, 42))

	assert.NotEmpty(t, a.planes[0].words, "plane 0 must hold the written byte")
	for p := 1; p < planeCount; p++ {
		assert.Empty(t, a.planes[p].words, "plane %d must stay unallocated for an all-zero byte", p)
	}
}

func TestArrayLargeValueTouchesHighPlanes(t *testing.T) {
	t.Parallel()

	a := New(4)
	big := int64(1) << 40
	require.NoError(t, a.Set(0, big))
	assert.Equal(t, big, a.Get(0))
}

func TestArrayAdd(t *testing.T) {
	t.Parallel()

	a := New(8)
	require.NoError(t, a.Add(2, 10))
	require.NoError(t, a.Add(2, 5))
	assert.Equal(t, int64(15), a.Get(2))
}

func TestArrayResizeRequired(t *testing.T) {
	t.Parallel()

	a := New(4)
	err := a.Set(10, 1)
	require.Error(t, err)
	var rr *ResizeRequired
	require.ErrorAs(t, err, &rr)
	assert.Equal(t, 11, rr.RequiredLength)

	a.Resize(rr.RequiredLength)
	require.NoError(t, a.Set(10, 1))
	assert.Equal(t, int64(1), a.Get(10))
}

func TestArrayClearKeepsCapacity(t *testing.T) {
	t.Parallel()

	a := New(8)
	require.NoError(t, a.Set(3, 99))
	a.Clear()
	assert.Equal(t, int64(0), a.Get(3))
	assert.Equal(t, 8, a.Length())
}

func TestArraySnapshot(t *testing.T) {
	t.Parallel()

	a := New(4)
	require.NoError(t, a.Set(1, 7))
	require.NoError(t, a.Set(3, 9))
	assert.Equal(t, []int64{0, 7, 0, 9}, a.Snapshot())
}

func TestConcurrentArrayAddIsRaceFree(t *testing.T) {
	t.Parallel()

	a := NewConcurrent(4)
	var wg sync.WaitGroup
	const writers = 8
	const perWriter = 500
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				require.NoError(t, a.Add(1, 1))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(writers*perWriter), a.Get(1))
}

func TestConcurrentArrayResizeRequired(t *testing.T) {
	t.Parallel()

	a := NewConcurrent(2)
	err := a.Add(5, 1)
	require.Error(t, err)
	var rr *ResizeRequired
	require.ErrorAs(t, err, &rr)

	a.Resize(rr.RequiredLength)
	require.NoError(t, a.Add(5, 1))
	assert.Equal(t, int64(1), a.Get(5))
}

func TestConcurrentArraySmallValueOnlyTouchesLeastSignificantPlane(t *testing.T) {
	t.Parallel()

	a := NewConcurrent(16)
	require.NoError(t, a.Add(5, 42))

	assert.NotEmpty(t, a.planes[0].words, "plane 0 must hold the written byte")
	for p := 1; p < planeCount; p++ {
		assert.Empty(t, a.planes[p].words, "plane %d must stay unallocated for an all-zero byte", p)
	}
}

func TestConcurrentArrayPopulatedCounter(t *testing.T) {
	t.Parallel()

	a := NewConcurrent(4)
	require.NoError(t, a.Add(0, 1))
	require.NoError(t, a.Add(1, 1))
	require.NoError(t, a.Add(0, 1))
	assert.Equal(t, int64(2), a.Populated())
}
