package admission

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name           string
		prompt         string
		system         string
		expectedOutput int
		want           int
	}{
		{"empty", "", "", 0, 0},
		{"output only", "", "", 4000, 4000},
		// 400 chars / 4 chars-per-token * 1.2 margin = 120
		{"round numbers", strings.Repeat("a", 400), "", 0, 120},
		{"prompt plus system", strings.Repeat("a", 200), strings.Repeat("b", 200), 100, 220},
		// 10 chars / 4 * 1.2 = 3.0 -> ceil stays 3
		{"ceil applies", strings.Repeat("a", 10), "", 0, 3},
		// 11 chars / 4 * 1.2 = 3.3 -> 4
		{"ceil rounds up", strings.Repeat("a", 11), "", 0, 4},
		{"negative output clamped", "abcd", "", -50, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.prompt, tt.system, tt.expectedOutput))
		})
	}
}

func TestEstimateBiasesUpward(t *testing.T) {
	// The estimate must never undercount a naive chars/4 calculation.
	for _, n := range []int{1, 7, 100, 4096, 100000} {
		prompt := strings.Repeat("x", n)
		naive := n / 4
		assert.GreaterOrEqual(t, EstimateTokens(prompt, "", 0), naive, "n=%d", n)
	}
}
