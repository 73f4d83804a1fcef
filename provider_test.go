package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	assert.Equal(t, 0.0, percentile(nil, 0.5))
	assert.Equal(t, 42.0, percentile([]int{42}, 0.5))
	assert.Equal(t, 42.0, percentile([]int{42}, 0.95))

	sorted := []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	assert.Equal(t, 60.0, percentile(sorted, 0.5))
	assert.Equal(t, 100.0, percentile(sorted, 0.95))
	assert.Equal(t, 10.0, percentile(sorted, 0))
	assert.Equal(t, 100.0, percentile(sorted, 1))
}
