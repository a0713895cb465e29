package admission

import "math"

const (
	// charsPerToken approximates English text and code tokenization.
	charsPerToken = 4.0

	// overestimateMargin deliberately biases estimates upward. Undercounting
	// risks blowing the real upstream limit; overcounting only delays a spawn.
	overestimateMargin = 1.2
)

// EstimateTokens returns a conservative token estimate for a prompt plus its
// expected output.
func EstimateTokens(prompt, systemPrompt string, expectedOutputTokens int) int {
	chars := float64(len(prompt) + len(systemPrompt))
	input := int(math.Ceil(chars / charsPerToken * overestimateMargin))
	if expectedOutputTokens < 0 {
		expectedOutputTokens = 0
	}
	return input + expectedOutputTokens
}
