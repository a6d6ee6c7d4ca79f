package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit_Sizes(t *testing.T) {
	items := make([]int, 250)
	pages := Split(items, 100)
	sizes := make([]int, len(pages))
	for i, p := range pages {
		sizes[i] = len(p)
	}
	assert.Equal(t, []int{100, 100, 50}, sizes)
}

func TestSplit_ExactMultiple(t *testing.T) {
	pages := Split(make([]string, 1200), 50)
	assert.Len(t, pages, 24)
	for _, p := range pages {
		assert.Len(t, p, 50)
	}
}

func TestSplit_PreservesOrder(t *testing.T) {
	pages := Split([]int{1, 2, 3, 4, 5}, 2)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, pages)
}

func TestSplit_Empty(t *testing.T) {
	assert.Nil(t, Split([]int{}, 10))
}

func TestSplit_NonPositiveSize(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2, 3}}, Split([]int{1, 2, 3}, 0))
}

func TestSplit_AppendDoesNotClobberNextPage(t *testing.T) {
	pages := Split([]int{1, 2, 3, 4}, 2)
	_ = append(pages[0], 99)
	assert.Equal(t, []int{3, 4}, pages[1])
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, Unique([]string{"b", "a", "b", "c", "a"}))
}
