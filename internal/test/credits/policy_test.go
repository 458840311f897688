package credits_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"zarta-backend/internal/credits"
)

func TestPolicy_Generate(t *testing.T) {
	p := credits.For(credits.OpGenerate)

	assert.Equal(t, 0.5, p.Charge)
	assert.False(t, p.Allows(0))
	assert.False(t, p.Allows(-1))
	assert.True(t, p.Allows(0.25))
	assert.True(t, p.Allows(1))
}

func TestPolicy_PromptSynthesis(t *testing.T) {
	p := credits.For(credits.OpPromptSynthesis)

	assert.Equal(t, 0.5, p.Charge)
	assert.False(t, p.Allows(0.25))
	assert.True(t, p.Allows(0.5))
	assert.True(t, p.Allows(2))
}

func TestPolicy_Edit(t *testing.T) {
	p := credits.For(credits.OpEdit)

	assert.Equal(t, 1.0, p.Charge)
	assert.False(t, p.Allows(0))
	assert.True(t, p.Allows(0.5))
	assert.True(t, p.Allows(1))
}

func TestPolicy_UnknownOperationAllowsNothingForFree(t *testing.T) {
	p := credits.For(credits.Operation("unknown"))

	// Zero-value policy: requires nothing, charges nothing.
	assert.Equal(t, 0.0, p.Charge)
	assert.True(t, p.Allows(0))
}
