package ratings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateFoldsForward(t *testing.T) {
	var a Aggregate
	a = a.Add(5)
	assert.Equal(t, Aggregate{Sum: 5, Count: 1, Average: 5}, a)

	a = a.Add(4).Add(4)
	assert.Equal(t, 13, a.Sum)
	assert.Equal(t, 3, a.Count)
	assert.Equal(t, 4.3, a.Average)
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 4.5, Round1(4.5))
	assert.Equal(t, 4.3, Round1(13.0/3))
	assert.Equal(t, 3.7, Round1(3.6666))
	assert.Equal(t, 2.0, Round1(2.04))
}
