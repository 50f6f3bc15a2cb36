package eventlog

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/nomadsam6/bls2/internal/domain"
	"github.com/nomadsam6/bls2/internal/repository"
)

// Broadcaster pushes structured events to connected clients. The websocket
// hub satisfies this; a nil broadcaster disables streaming.
type Broadcaster interface {
	Broadcast(eventType string, data interface{})
}

// Recorder is the event sink used by every automation step: each entry goes
// to the console logger, the persisted system log, and the broadcast stream.
type Recorder struct {
	logs        repository.LogRepository
	broadcaster Broadcaster
	logger      *logrus.Logger
}

// NewRecorder creates an event recorder. logs and broadcaster may be nil.
func NewRecorder(logs repository.LogRepository, broadcaster Broadcaster, logger *logrus.Logger) *Recorder {
	return &Recorder{
		logs:        logs,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Logger returns the underlying console logger
func (r *Recorder) Logger() *logrus.Logger {
	return r.logger
}

// Record writes one step-tagged entry to every sink
func (r *Recorder) Record(ctx context.Context, level domain.LogLevel, step, message string, details map[string]interface{}) {
	entry := domain.NewSystemLog(level, message, step, details)

	if r.logs != nil {
		if err := r.logs.Append(ctx, entry); err != nil {
			r.logger.WithError(err).Debug("failed to persist log entry")
		}
	}

	if r.broadcaster != nil {
		r.broadcaster.Broadcast("log", entry)
	}

	consoleEntry := r.logger.WithField("step", step)
	if len(details) > 0 {
		consoleEntry = consoleEntry.WithFields(logrus.Fields(details))
	}

	switch level {
	case domain.LogLevelWarning:
		consoleEntry.Warn(message)
	case domain.LogLevelError:
		consoleEntry.Error(message)
	default:
		// Success entries are informational on the console; the level
		// distinction matters only to API consumers.
		consoleEntry.Info(message)
	}
}

// Info records an info-level entry
func (r *Recorder) Info(ctx context.Context, step, message string) {
	r.Record(ctx, domain.LogLevelInfo, step, message, nil)
}

// Warning records a warning-level entry
func (r *Recorder) Warning(ctx context.Context, step, message string) {
	r.Record(ctx, domain.LogLevelWarning, step, message, nil)
}

// Error records an error-level entry
func (r *Recorder) Error(ctx context.Context, step, message string, details map[string]interface{}) {
	r.Record(ctx, domain.LogLevelError, step, message, details)
}

// Success records a success-level entry
func (r *Recorder) Success(ctx context.Context, step, message string) {
	r.Record(ctx, domain.LogLevelSuccess, step, message, nil)
}
