package worker

import (
	"github.com/okian/spotter/pkg/logger"
)

// Option applies a configuration option to a RefreshWorker.
type Option func(*RefreshWorker)

// WithName sets the worker name used in log lines.
func WithName(name string) Option {
	return func(w *RefreshWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(w *RefreshWorker) {
		if log != nil {
			w.logger = log
		}
	}
}

// WithNotifier registers a callback invoked after each completed refresh.
func WithNotifier(n Notifier) Option {
	return func(w *RefreshWorker) {
		w.notifier = n
	}
}
