package aspect

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultRatio is used whenever a ratio cannot be derived.
const DefaultRatio = "1:1"

// Ratios accepted by the generation pipeline, in "W:H" reduced integer form.
var Ratios = []string{
	"1:1", "2:3", "3:2", "3:4", "4:3", "4:5", "5:4", "9:16", "16:9", "21:9",
}

// ProviderRatios accepted by the fal.ai model. Requested ratios are mapped
// to the nearest entry by quotient distance.
var ProviderRatios = []string{
	"1:1", "3:4", "4:3", "9:16", "16:9", "21:9", "9:21",
}

// Normalize parses s as "W:H" and returns it reduced to lowest integer
// terms, restricted to the accepted whitelist. Normalizing an already
// normalized ratio returns the same string. Anything unparseable yields
// DefaultRatio.
func Normalize(s string) string {
	w, h, err := parse(s)
	if err != nil {
		return DefaultRatio
	}
	g := gcd(w, h)
	reduced := fmt.Sprintf("%d:%d", w/g, h/g)
	for _, r := range Ratios {
		if r == reduced {
			return reduced
		}
	}
	return Closest(w, h, Ratios)
}

// Closest returns the member of whitelist whose W/H quotient is nearest to
// w/h by absolute difference. Pure function of its inputs.
func Closest(w, h int, whitelist []string) string {
	if w <= 0 || h <= 0 || len(whitelist) == 0 {
		return DefaultRatio
	}
	target := float64(w) / float64(h)
	best := whitelist[0]
	bestDiff := -1.0
	for _, r := range whitelist {
		rw, rh, err := parse(r)
		if err != nil {
			continue
		}
		diff := float64(rw)/float64(rh) - target
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			best = r
			bestDiff = diff
		}
	}
	return best
}

// ToProvider maps a normalized "W:H" ratio to the nearest ratio the image
// provider accepts.
func ToProvider(ratio string) string {
	w, h, err := parse(ratio)
	if err != nil {
		return DefaultRatio
	}
	return Closest(w, h, ProviderRatios)
}

func parse(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid ratio %q", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid ratio width %q", s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid ratio height %q", s)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("non-positive ratio %q", s)
	}
	return w, h, nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
