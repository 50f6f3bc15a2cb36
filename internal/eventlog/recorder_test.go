package eventlog

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/nomadsam6/bls2/internal/domain"
	"github.com/nomadsam6/bls2/internal/repository"
)

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeBroadcaster) Broadcast(eventType string, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
}

func newDiscardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestRecord_FansOutToAllSinks(t *testing.T) {
	ctx := context.Background()
	logs := repository.NewInMemoryLogRepository()
	broadcaster := &fakeBroadcaster{}
	recorder := NewRecorder(logs, broadcaster, newDiscardLogger())

	recorder.Record(ctx, domain.LogLevelSuccess, "booking", "appointment booked",
		map[string]interface{}{"confirmation_id": "ABC123"})

	entries, total, err := logs.List(ctx, 10, 0, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 persisted entry, got %d", total)
	}
	entry := entries[0]
	if entry.Level != domain.LogLevelSuccess || entry.Step != "booking" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.ID == "" || entry.Timestamp.IsZero() {
		t.Errorf("entry missing identity: %+v", entry)
	}
	if entry.Details["confirmation_id"] != "ABC123" {
		t.Errorf("details lost: %v", entry.Details)
	}

	if len(broadcaster.events) != 1 || broadcaster.events[0] != "log" {
		t.Errorf("expected one log broadcast, got %v", broadcaster.events)
	}
}

func TestRecord_NilSinksAreTolerated(t *testing.T) {
	recorder := NewRecorder(nil, nil, newDiscardLogger())
	recorder.Info(context.Background(), "scan", "no sinks attached")
	recorder.Error(context.Background(), "scan", "still fine", nil)
}

func TestRecord_ConsoleLevelMapping(t *testing.T) {
	ctx := context.Background()
	log, hook := test.NewNullLogger()
	recorder := NewRecorder(nil, nil, log)

	recorder.Info(ctx, "a", "info")
	recorder.Warning(ctx, "b", "warning")
	recorder.Error(ctx, "c", "error", nil)
	recorder.Success(ctx, "d", "success")

	entries := hook.AllEntries()
	if len(entries) != 4 {
		t.Fatalf("expected 4 console entries, got %d", len(entries))
	}
	want := []logrus.Level{logrus.InfoLevel, logrus.WarnLevel, logrus.ErrorLevel, logrus.InfoLevel}
	for i, entry := range entries {
		if entry.Level != want[i] {
			t.Errorf("entry %d: expected level %s, got %s", i, want[i], entry.Level)
		}
	}
	if entries[1].Data["step"] != "b" {
		t.Errorf("step field missing: %v", entries[1].Data)
	}
}

func TestConvenienceLevels(t *testing.T) {
	ctx := context.Background()
	logs := repository.NewInMemoryLogRepository()
	recorder := NewRecorder(logs, nil, newDiscardLogger())

	recorder.Info(ctx, "a", "info")
	recorder.Warning(ctx, "b", "warning")
	recorder.Error(ctx, "c", "error", nil)
	recorder.Success(ctx, "d", "success")

	for _, level := range []domain.LogLevel{
		domain.LogLevelInfo,
		domain.LogLevelWarning,
		domain.LogLevelError,
		domain.LogLevelSuccess,
	} {
		_, total, err := logs.List(ctx, 10, 0, level)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if total != 1 {
			t.Errorf("expected one %s entry, got %d", level, total)
		}
	}
}
