package trinity_test

import (
	"testing"

	"github.com/afo-kingdom/chancellor/pkg/trinity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeights_SumToOne(t *testing.T) {
	var sum float64
	for _, w := range trinity.Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	require.NoError(t, trinity.ValidateWeights(trinity.Weights))
}

func TestValidateWeights_RejectsSingleMutation(t *testing.T) {
	for _, p := range trinity.Pillars {
		t.Run(string(p), func(t *testing.T) {
			w := trinity.DefaultWeights()
			w[p] += 0.01
			assert.ErrorIs(t, trinity.ValidateWeights(w), trinity.ErrInvalidWeights)
		})
	}
}

func TestValidateWeights_Shape(t *testing.T) {
	w := trinity.DefaultWeights()
	delete(w, trinity.Eternity)
	assert.ErrorIs(t, trinity.ValidateWeights(w), trinity.ErrInvalidWeights)

	w = trinity.DefaultWeights()
	w[trinity.Truth] = -0.35
	w[trinity.Goodness] = 1.05
	assert.ErrorIs(t, trinity.ValidateWeights(w), trinity.ErrInvalidWeights)

	w = trinity.DefaultWeights()
	w["vanity"] = 0
	assert.ErrorIs(t, trinity.ValidateWeights(w), trinity.ErrInvalidWeights)
}

func TestDefaultWeights_IsCopy(t *testing.T) {
	w := trinity.DefaultWeights()
	w[trinity.Truth] = 0
	assert.Equal(t, 0.35, trinity.Weights[trinity.Truth])
}
