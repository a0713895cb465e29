package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bytemill/overseer/internal/events"
)

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	innerWidth := width - 4

	if len(eventLog) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("EVENT STREAM"),
			theme.Dim.Render("  Waiting for events..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	var lines []string
	for i, e := range eventLog {
		if i >= 10 {
			break
		}
		lines = append(lines, formatEvent(e, theme))
	}

	eventsText := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("EVENT STREAM"),
		eventsText,
	)

	return theme.Border.Width(innerWidth).Render(content)
}

func formatEvent(e events.Event, theme Theme) string {
	ts := theme.Dim.Render(e.At.Format("15:04:05"))

	var typeStyle lipgloss.Style
	switch {
	case strings.HasSuffix(e.Type, ".completed"), e.Type == events.TypeSessionAutoCommit:
		typeStyle = theme.StatusOK
	case strings.HasSuffix(e.Type, ".failed"), strings.HasSuffix(e.Type, ".timeout"),
		strings.HasSuffix(e.Type, ".terminated"):
		typeStyle = theme.StatusFailed
	case e.Type == events.TypeAdmissionDenied, e.Type == events.TypeGateBlocked,
		e.Type == events.TypeBudgetExceeded:
		typeStyle = theme.StatusBlocked
	case strings.HasSuffix(e.Type, ".spawned"), strings.HasSuffix(e.Type, ".started"):
		typeStyle = theme.StatusRunning
	case e.Type == events.TypeSessionFallback, e.Type == events.TypeLimitsDetected:
		typeStyle = theme.Highlight
	default:
		typeStyle = theme.Dim
	}

	typeName := typeStyle.Render(fmt.Sprintf("%-22s", e.Type))

	return fmt.Sprintf("%s %s %s", ts, typeName, theme.Dim.Render(eventDetail(e)))
}

// eventDetail extracts the most useful one-line detail from the payload.
func eventDetail(e events.Event) string {
	data := make(map[string]any)
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return ""
	}

	for _, key := range []string{"reason", "error", "model", "task_id", "session_id", "run_id"} {
		if v, ok := data[key].(string); ok && v != "" {
			return truncate(v, 48)
		}
	}
	return ""
}
