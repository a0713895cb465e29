package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRateLimitSignatures(t *testing.T) {
	r := NewRuleSet()

	tests := []struct {
		name   string
		output string
	}{
		{"plain", "Error: rate limit exceeded, retry later"},
		{"snake case", "upstream returned RATE_LIMIT"},
		{"too many requests", "HTTP error: Too Many Requests"},
		{"status code", "request failed with status 429"},
		{"overloaded", "the model is currently Overloaded"},
		{"capacity", "no capacity available for this model"},
		{"throttle", "request was throttled by the provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Classify(tt.output, 1)
			assert.Equal(t, RateLimited, out.Kind)
			assert.NotEmpty(t, out.Marker)
		})
	}
}

func TestClassifyMarkers(t *testing.T) {
	r := NewRuleSet()

	out := r.Classify("working...\nTASK_COMPLETE\n", 0)
	assert.Equal(t, Completed, out.Kind)
	assert.Equal(t, "TASK_COMPLETE", out.Marker)

	out = r.Classify("something broke\nTASK_FAILED\n", 0)
	assert.Equal(t, Failed, out.Kind)

	// Failure marker wins even on a zero exit.
	out = r.Classify("TASK_COMPLETE\nTASK_FAILED", 0)
	assert.Equal(t, Failed, out.Kind)

	// Completion marker with a non-zero exit is not trusted.
	out = r.Classify("TASK_COMPLETE", 2)
	assert.Equal(t, Failed, out.Kind)
}

func TestClassifyExitCodeFallback(t *testing.T) {
	r := NewRuleSet()

	assert.Equal(t, Completed, r.Classify("no markers here", 0).Kind)
	assert.Equal(t, Failed, r.Classify("no markers here", 1).Kind)
}

func TestClassifyRateLimitWinsOverFailureMarker(t *testing.T) {
	r := NewRuleSet()

	// A rate-limited attempt is transient even when the agent also printed
	// its failure marker.
	out := r.Classify("TASK_FAILED: rate limit hit", 1)
	assert.Equal(t, RateLimited, out.Kind)
}

func TestFilesModifiedLinePatterns(t *testing.T) {
	r := NewRuleSet()

	output := `
Modified: internal/api/server.go
Created: internal/api/server_test.go
Updated: go.mod
Modified: internal/api/server.go
some unrelated line
`
	files := r.FilesModified(output)
	assert.Equal(t, []string{
		"internal/api/server.go",
		"internal/api/server_test.go",
		"go.mod",
	}, files)
}

func TestFilesModifiedBlock(t *testing.T) {
	r := NewRuleSet()

	output := `all done
FILES_MODIFIED:
- src/main.go
- src/util.go

trailing text`
	files := r.FilesModified(output)
	assert.Contains(t, files, "src/main.go")
	assert.Contains(t, files, "src/util.go")
}

func TestFilesModifiedEmpty(t *testing.T) {
	r := NewRuleSet()
	assert.Empty(t, r.FilesModified("nothing to report"))
}

func TestRuleSetVersion(t *testing.T) {
	assert.Equal(t, "v1", NewRuleSet().Version())
}
