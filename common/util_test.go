package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssert_PanicsOnFalse(t *testing.T) {
	assert.Panics(t, func() { Assert(false, "boom %d", 1) })
	assert.NotPanics(t, func() { Assert(true, "fine") })
}

func TestPanicIfErr(t *testing.T) {
	assert.NotPanics(t, func() { PanicIfErr(nil) })
	assert.Panics(t, func() { PanicIfErr(assertError{}) })
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestContains(t *testing.T) {
	assert.True(t, Contains([]int{1, 2, 3}, 2))
	assert.False(t, Contains([]int{1, 2, 3}, 9))
	assert.False(t, Contains([]int{}, 1))
}
