package watch

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bytemill/overseer/internal/admission"
)

const gaugeWidth = 24

func renderAdmission(stats admission.Stats, theme Theme, width int) string {
	innerWidth := width - 4

	requests := fmt.Sprintf(" Requests %s %d/%d",
		gauge(stats.RequestUtilization, theme),
		stats.RequestsInWindow, stats.MaxRequestsPerMin)
	tokens := fmt.Sprintf(" Tokens   %s %d/%d",
		gauge(stats.TokenUtilization, theme),
		stats.TokensInWindow, stats.MaxTokensPerMin)
	concurrent := fmt.Sprintf(" Active   %d/%d  reserved %d",
		stats.ActiveSessions, stats.MaxConcurrent, stats.ReservedSessions)

	detected := ""
	if stats.LimitsDetected {
		detected = theme.Highlight.Render("  tier limits detected")
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("ADMISSION")+detected,
		requests,
		tokens,
		concurrent,
	)
	return theme.Border.Width(innerWidth).Render(content)
}

// gauge renders a fixed-width utilization bar.
func gauge(utilization float64, theme Theme) string {
	if utilization < 0 {
		utilization = 0
	}
	if utilization > 1 {
		utilization = 1
	}
	full := int(utilization * gaugeWidth)

	var b strings.Builder
	b.WriteString(theme.GaugeFull.Render(strings.Repeat("█", full)))
	b.WriteString(theme.GaugeEmpty.Render(strings.Repeat("░", gaugeWidth-full)))
	return b.String()
}
