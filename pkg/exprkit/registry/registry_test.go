package registry

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := New[string, int]()

	r.Register("one", 1)
	r.Register("two", 2)

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = r.Get("three")
	assert.False(t, ok)
	assert.Equal(t, 0, v)
}

func TestRegisterOverwrite(t *testing.T) {
	r := New[string, string]()

	r.Register("key", "old")
	r.Register("key", "new")

	v, ok := r.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "new", v)
	assert.Equal(t, 1, r.Len())
}

func TestRegisterMany(t *testing.T) {
	r := New[string, int]()
	r.RegisterMany(map[string]int{"a": 1, "b": 2, "c": 3})

	assert.Equal(t, 3, r.Len())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, r.Keys())
}

func TestDelete(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)
	r.Delete("a")
	r.Delete("missing")

	assert.False(t, r.Has("a"))
	assert.Equal(t, 0, r.Len())
}

func TestBounded_EvictsOldest(t *testing.T) {
	r := NewBounded[string, int](2)

	r.Register("a", 1)
	r.Register("b", 2)
	r.Register("c", 3)

	assert.Equal(t, 2, r.Len())
	assert.False(t, r.Has("a"), "oldest entry should be evicted")
	assert.True(t, r.Has("b"))
	assert.True(t, r.Has("c"))
}

func TestBounded_OverwriteDoesNotEvict(t *testing.T) {
	r := NewBounded[string, int](2)

	r.Register("a", 1)
	r.Register("b", 2)
	r.Register("a", 10)

	assert.Equal(t, 2, r.Len())
	v, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestBounded_DeleteFreesSlot(t *testing.T) {
	r := NewBounded[string, int](2)

	r.Register("a", 1)
	r.Register("b", 2)
	r.Delete("a")
	r.Register("c", 3)

	assert.True(t, r.Has("b"))
	assert.True(t, r.Has("c"))
}

func TestClone_Independent(t *testing.T) {
	r := NewBounded[string, int](3)
	r.Register("a", 1)

	c := r.Clone()
	c.Register("b", 2)

	assert.False(t, r.Has("b"))
	assert.True(t, c.Has("a"))
}

func TestRange(t *testing.T) {
	r := New[string, int]()
	r.RegisterMany(map[string]int{"a": 1, "b": 2, "c": 3})

	sum := 0
	r.Range(func(_ string, v int) bool {
		sum += v
		return true
	})
	assert.Equal(t, 6, sum)

	calls := 0
	r.Range(func(_ string, _ int) bool {
		calls++
		return false
	})
	assert.Equal(t, 1, calls)
}

func TestRangeAllowsMutation(t *testing.T) {
	r := New[string, int]()
	r.RegisterMany(map[string]int{"a": 1, "b": -1})

	r.Range(func(k string, v int) bool {
		if v < 0 {
			r.Delete(k)
		}
		return true
	})

	assert.Equal(t, 1, r.Len())
}

func TestGetOrCreate(t *testing.T) {
	r := New[string, int]()

	calls := 0
	factory := func() int {
		calls++
		return 42
	}

	assert.Equal(t, 42, r.GetOrCreate("answer", factory))
	assert.Equal(t, 42, r.GetOrCreate("answer", factory))
	assert.Equal(t, 1, calls)
}

func TestGetOrCreateErr_FailureNotStored(t *testing.T) {
	r := New[string, int]()
	boom := errors.New("boom")

	_, err := r.GetOrCreateErr("k", func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, r.Has("k"))

	v, err := r.GetOrCreateErr("k", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestConcurrentGetOrCreate(t *testing.T) {
	r := New[string, int]()

	var calls atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.GetOrCreate("shared", func() int {
				calls.Add(1)
				return 1
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestConcurrentBoundedRegister(t *testing.T) {
	r := NewBounded[string, int](10)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Register(fmt.Sprintf("k%d", i), i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, r.Len())
}
