package vitals

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryBins(t *testing.T) {
	cases := map[float64]string{
		1:      Normal,
		119.9:  Normal,
		120:    Normal,
		120.01: Hypertensive,
		140:    Hypertensive,
		150:    Severe,
		180:    Severe,
		181:    Crisis,
		300:    Crisis,
	}
	for sys, want := range cases {
		got, ok := Category(sys)
		assert.True(t, ok, "systolic %v", sys)
		assert.Equal(t, want, got, "systolic %v", sys)
	}
}

func TestCategoryOutOfRange(t *testing.T) {
	for _, sys := range []float64{0, -10, 300.5, math.NaN()} {
		_, ok := Category(sys)
		assert.False(t, ok, "systolic %v", sys)
	}
	assert.Nil(t, CategoryPtr(nil))
	high := 400.0
	assert.Nil(t, CategoryPtr(&high))
}

func TestIsCategory(t *testing.T) {
	assert.True(t, IsCategory(Crisis))
	assert.False(t, IsCategory("Normal"))
	assert.False(t, IsCategory("nan"))
}
