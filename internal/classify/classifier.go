// Package classify interprets the combined output of an external agent
// process. Output conventions are a contract with the agent executable and
// change independently of supervision logic, so the rule set is versioned
// and swappable behind the Classifier interface.
package classify

import (
	"regexp"
	"strings"
)

// Kind is the classified outcome of a finished agent process.
type Kind string

const (
	Completed   Kind = "completed"
	Failed      Kind = "failed"
	RateLimited Kind = "rate_limited"
)

// Outcome is the result of classifying combined stdout+stderr.
type Outcome struct {
	Kind   Kind
	Marker string // the signature that decided the classification, if any
}

// Classifier decides what a finished agent process actually did.
type Classifier interface {
	Version() string
	Classify(output string, exitCode int) Outcome
	FilesModified(output string) []string
}

// RuleSet is the v1 marker-based classifier.
type RuleSet struct {
	completionMarker string
	failureMarker    string
	rateLimitSigs    []string
}

// NewRuleSet returns the current production rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{
		completionMarker: "TASK_COMPLETE",
		failureMarker:    "TASK_FAILED",
		rateLimitSigs: []string{
			"rate limit",
			"rate_limit",
			"too many requests",
			"429",
			"overloaded",
			"capacity",
			"throttle",
		},
	}
}

func (r *RuleSet) Version() string { return "v1" }

// Classify inspects combined output and the exit code. Rate-limit signatures
// win over everything else: a rate-limited attempt is transient and drives
// model fallback, regardless of how the process exited.
func (r *RuleSet) Classify(output string, exitCode int) Outcome {
	lower := strings.ToLower(output)

	for _, sig := range r.rateLimitSigs {
		if strings.Contains(lower, sig) {
			return Outcome{Kind: RateLimited, Marker: sig}
		}
	}

	if strings.Contains(output, r.failureMarker) {
		return Outcome{Kind: Failed, Marker: r.failureMarker}
	}
	if strings.Contains(output, r.completionMarker) && exitCode == 0 {
		return Outcome{Kind: Completed, Marker: r.completionMarker}
	}
	if exitCode != 0 {
		return Outcome{Kind: Failed}
	}

	// Exited zero without a marker: trust the exit code.
	return Outcome{Kind: Completed}
}

var (
	// Lines like "Modified: path/to/file.go", "Created: x.py", "Updated: y.ts".
	fileLinePattern = regexp.MustCompile(`(?m)^\s*(?:Modified|Created|Updated):\s+(\S+)\s*$`)

	// A FILES_MODIFIED: block listing one path per line until a blank line.
	filesBlockPattern = regexp.MustCompile(`(?s)FILES_MODIFIED:\s*\n((?:[^\n]+\n?)*?)(?:\n\s*\n|\z)`)
)

// FilesModified extracts a best-effort, de-duplicated list of file paths the
// agent reported touching.
func (r *RuleSet) FilesModified(output string) []string {
	seen := make(map[string]bool)
	var files []string

	add := func(path string) {
		path = strings.TrimSpace(path)
		if path == "" || seen[path] {
			return
		}
		seen[path] = true
		files = append(files, path)
	}

	for _, m := range fileLinePattern.FindAllStringSubmatch(output, -1) {
		add(m[1])
	}

	if m := filesBlockPattern.FindStringSubmatch(output); m != nil {
		for _, line := range strings.Split(m[1], "\n") {
			line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
			if line != "" && !strings.Contains(line, " ") {
				add(line)
			}
		}
	}

	return files
}
