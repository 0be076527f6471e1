package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapKeysToSlice(t *testing.T) {
	assert.Empty(t, MapKeysToSlice(map[string]any{}))
	assert.ElementsMatch(t, []string{"isbn", "pages"}, MapKeysToSlice(map[string]any{"isbn": "x", "pages": 412}))
	assert.ElementsMatch(t, []int64{20, 21}, MapKeysToSlice(map[int64]bool{20: true, 21: false}))
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{}, SortedKeys(map[string]int{}))
	assert.Equal(t, []string{"color", "icon", "order"}, SortedKeys(map[string]any{"order": 2, "color": "red", "icon": nil}))
	assert.Equal(t, []int{-1, 2, 10}, SortedKeys(map[int]bool{10: true, -1: true, 2: false}))
}
