package gemini_test

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"zarta-backend/internal/aspect"
	"zarta-backend/internal/gemini"
)

func TestCompose_UserPromptPassesThrough(t *testing.T) {
	client := gemini.NewClient("", "gemini-2.0-flash")

	result := client.Compose(context.Background(), "https://example.com/ref.png", "https://example.com/garment.png", "  studio shot on white seamless  ")

	assert.Equal(t, "studio shot on white seamless", result.Prompt)
	assert.Equal(t, aspect.DefaultRatio, result.AspectRatio)
	assert.False(t, result.Billable)
}

func TestCompose_UserPromptIsClamped(t *testing.T) {
	client := gemini.NewClient("", "gemini-2.0-flash")
	long := strings.Repeat("a", gemini.MaxPromptLength+500)

	result := client.Compose(context.Background(), "https://example.com/ref.png", "https://example.com/garment.png", long)

	assert.Len(t, result.Prompt, gemini.MaxPromptLength)
	assert.False(t, result.Billable)
}

func TestClamp_TruncatesOnRuneBoundary(t *testing.T) {
	// A multibyte character straddling the length cap must be dropped
	// whole, never cut mid-rune into invalid UTF-8.
	prompt := strings.Repeat("a", gemini.MaxPromptLength-1) + "奈良"

	clamped := gemini.Clamp(prompt)

	assert.True(t, utf8.ValidString(clamped))
	assert.LessOrEqual(t, len(clamped), gemini.MaxPromptLength)
	assert.Equal(t, strings.Repeat("a", gemini.MaxPromptLength-1), clamped)
}

func TestClamp_ShortPromptUntouched(t *testing.T) {
	assert.Equal(t, "studio shot", gemini.Clamp("studio shot"))
}

func TestCompose_UnconfiguredFallsBackToDefault(t *testing.T) {
	client := gemini.NewClient("", "gemini-2.0-flash")

	result := client.Compose(context.Background(), "https://example.com/ref.png", "https://example.com/garment.png", "")

	assert.Equal(t, gemini.DefaultPrompt, result.Prompt)
	assert.Equal(t, aspect.DefaultRatio, result.AspectRatio)
	assert.False(t, result.Billable)
}

func TestCompose_WhitespaceOnlyPromptTriggersFallback(t *testing.T) {
	client := gemini.NewClient("", "gemini-2.0-flash")

	result := client.Compose(context.Background(), "https://example.com/ref.png", "https://example.com/garment.png", "   \n\t ")

	assert.Equal(t, gemini.DefaultPrompt, result.Prompt)
	assert.False(t, result.Billable)
}
