// Package notifier defines the notification contract and fan-out helpers.
package notifier

import "go.uber.org/zap"

// Notifier delivers a user-facing notification. Implementations must not
// block for long; delivery is fire-and-forget from the caller's view.
type Notifier interface {
	Notify(title, body string)
	Close() error
}

// MultiNotifier fans a notification out to multiple backends.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier builds a fan-out over the given notifiers, skipping nils.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	valid := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			valid = append(valid, n)
		}
	}
	return &MultiNotifier{notifiers: valid}
}

func (m *MultiNotifier) Notify(title, body string) {
	for _, n := range m.notifiers {
		n.Notify(title, body)
	}
}

func (m *MultiNotifier) Close() error {
	var firstErr error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Count returns how many notifiers are registered.
func (m *MultiNotifier) Count() int {
	return len(m.notifiers)
}

// LogNotifier writes notifications to the structured log. Always available,
// used as the baseline backend when no chat transport is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(title, body string) {
	l.logger.Info("notification", zap.String("title", title), zap.String("body", body))
}

func (l *LogNotifier) Close() error {
	return nil
}
