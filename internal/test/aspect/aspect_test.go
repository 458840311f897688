package aspect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"zarta-backend/internal/aspect"
)

func TestNormalize_ReducesToLowestTerms(t *testing.T) {
	assert.Equal(t, "1:1", aspect.Normalize("2:2"))
	assert.Equal(t, "4:3", aspect.Normalize("8:6"))
	assert.Equal(t, "16:9", aspect.Normalize("1920:1080"))
	assert.Equal(t, "2:3", aspect.Normalize("1024:1536"))
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, r := range aspect.Ratios {
		assert.Equal(t, r, aspect.Normalize(r))
	}
}

func TestNormalize_UnlistedRatioSnapsToClosest(t *testing.T) {
	// 7:5 = 1.4 sits between 4:3 (1.333) and 3:2 (1.5); 4:3 is nearer.
	assert.Equal(t, "4:3", aspect.Normalize("7:5"))
	// Extremely wide ratios snap to the widest entry.
	assert.Equal(t, "21:9", aspect.Normalize("32:9"))
}

func TestNormalize_InvalidInputFallsBack(t *testing.T) {
	assert.Equal(t, aspect.DefaultRatio, aspect.Normalize(""))
	assert.Equal(t, aspect.DefaultRatio, aspect.Normalize("portrait"))
	assert.Equal(t, aspect.DefaultRatio, aspect.Normalize("16-9"))
	assert.Equal(t, aspect.DefaultRatio, aspect.Normalize("0:5"))
	assert.Equal(t, aspect.DefaultRatio, aspect.Normalize("-4:3"))
}

func TestClosest_AlwaysReturnsWhitelistMember(t *testing.T) {
	members := make(map[string]bool, len(aspect.Ratios))
	for _, r := range aspect.Ratios {
		members[r] = true
	}

	for w := 1; w <= 30; w++ {
		for h := 1; h <= 30; h++ {
			got := aspect.Closest(w, h, aspect.Ratios)
			assert.True(t, members[got], "Closest(%d, %d) returned %q, not in whitelist", w, h, got)
		}
	}
}

func TestClosest_ExactMatchWins(t *testing.T) {
	assert.Equal(t, "9:16", aspect.Closest(9, 16, aspect.Ratios))
	assert.Equal(t, "1:1", aspect.Closest(5, 5, aspect.Ratios))
}

func TestToProvider_MapsToProviderWhitelist(t *testing.T) {
	members := make(map[string]bool, len(aspect.ProviderRatios))
	for _, r := range aspect.ProviderRatios {
		members[r] = true
	}

	for _, r := range aspect.Ratios {
		got := aspect.ToProvider(r)
		assert.True(t, members[got], "ToProvider(%q) returned %q, not a provider ratio", r, got)
	}

	// Ratios the provider does not offer map to the nearest it does.
	assert.Equal(t, "3:4", aspect.ToProvider("2:3"))
	assert.Equal(t, "4:3", aspect.ToProvider("3:2"))
	assert.Equal(t, "3:4", aspect.ToProvider("4:5"))
}

func TestToProvider_InvalidInputFallsBack(t *testing.T) {
	assert.Equal(t, aspect.DefaultRatio, aspect.ToProvider("not-a-ratio"))
}
