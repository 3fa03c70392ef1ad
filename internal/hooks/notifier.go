package hooks

import "go.uber.org/zap"

// Notifier delivers user-facing notifications. The optimistic layer uses the
// error channel for rollbacks; success notifications are optional sugar for
// interactive frontends.
type Notifier interface {
	NotifyError(message string)
	NotifySuccess(message string)
}

// ZapNotifier writes notifications to a structured log. The default for
// headless embedders that have no notification surface.
type ZapNotifier struct {
	logger *zap.Logger
}

// NewZapNotifier creates a log-backed notifier.
func NewZapNotifier(logger *zap.Logger) *ZapNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapNotifier{logger: logger}
}

func (n *ZapNotifier) NotifyError(message string) {
	n.logger.Warn("notification", zap.String("level", "error"), zap.String("message", message))
}

func (n *ZapNotifier) NotifySuccess(message string) {
	n.logger.Info("notification", zap.String("level", "success"), zap.String("message", message))
}
