package markupcheck

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/validatehq/markupcheck/w3c"
)

func testResult(msg string) *w3c.Result {
	return &w3c.Result{Message: msg, Page: "<html><body>" + msg + "</body></html>"}
}

func TestResultCacheIdsStartAtOne(t *testing.T) {
	c := NewResultCache(20)

	assert.Equal(t, 1, c.Put(testResult("first")))
	assert.Equal(t, 2, c.Put(testResult("second")))

	res, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "first", res.Message)
}

func TestResultCacheRetentionWindow(t *testing.T) {
	c := NewResultCache(20)
	for i := 1; i <= 25; i++ {
		c.Put(testResult(fmt.Sprintf("result %d", i)))
	}

	_, err := c.Get(3)
	var miss *CacheMissError
	require.ErrorAs(t, err, &miss)
	assert.Equal(t, 3, miss.ID)

	// Id 5 shares its slot with id 25 and must not leak the newer value.
	_, err = c.Get(5)
	assert.Error(t, err)

	for _, id := range []int{6, 24, 25} {
		res, err := c.Get(id)
		require.NoError(t, err, "id %d", id)
		assert.Equal(t, fmt.Sprintf("result %d", id), res.Message)
	}
}

func TestResultCacheUnknownIds(t *testing.T) {
	c := NewResultCache(4)
	c.Put(testResult("only"))

	for _, id := range []int{0, -1, 2, 99} {
		_, err := c.Get(id)
		assert.Error(t, err, "id %d", id)
	}
}

func TestResultCacheMissReportsWindow(t *testing.T) {
	c := NewResultCache(2)
	for i := 1; i <= 5; i++ {
		c.Put(testResult("x"))
	}

	_, err := c.Get(1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer cached")
	assert.Contains(t, err.Error(), "4..5")
}

func TestResultCacheConcurrentPuts(t *testing.T) {
	c := NewResultCache(8)
	const n = 100

	ids := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- c.Put(testResult("concurrent"))
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "id %d allocated twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}
