package supervise

import (
	"log/slog"

	"github.com/bytemill/overseer/internal/log"
)

// logNotifier is the default NotificationSink: structured log lines, nothing
// external. All methods return immediately.
type logNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a NotificationSink that writes to the service log.
func NewLogNotifier() NotificationSink {
	return &logNotifier{logger: log.WithComponent("notify")}
}

func (n *logNotifier) AgentSpawned(agentID, taskID, model string) {
	n.logger.Info("agent spawned",
		"agent_id", agentID,
		"task_id", taskID,
		"model", model,
	)
}

func (n *logNotifier) TaskCompleted(taskID, agentID string, filesModified []string) {
	n.logger.Info("task completed",
		"task_id", taskID,
		"agent_id", agentID,
		"files_modified", len(filesModified),
	)
}

func (n *logNotifier) TaskFailed(taskID, agentID, reason string) {
	n.logger.Warn("task failed",
		"task_id", taskID,
		"agent_id", agentID,
		"reason", reason,
	)
}
