package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"calmpath.app/memorycare/internal/store"
)

const (
	DefaultInactivityInterval  = 15 * time.Minute
	DefaultInactivityThreshold = 4 * time.Hour
)

// InactivityMonitor periodically raises no_activity alerts for patients
// nobody has interacted with recently. A patient never gets a second unread
// no_activity alert.
type InactivityMonitor struct {
	repo      store.Repository
	alerts    *AlertService
	interval  time.Duration
	threshold time.Duration
	logger    zerolog.Logger
	now       func() time.Time

	sweepMu sync.Mutex // sweeps never overlap

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewInactivityMonitor(repo store.Repository, alerts *AlertService, interval, threshold time.Duration, logger zerolog.Logger) *InactivityMonitor {
	if interval <= 0 {
		interval = DefaultInactivityInterval
	}
	if threshold <= 0 {
		threshold = DefaultInactivityThreshold
	}
	return &InactivityMonitor{
		repo:      repo,
		alerts:    alerts,
		interval:  interval,
		threshold: threshold,
		logger:    logger.With().Str("component", "inactivity_monitor").Logger(),
		now:       time.Now,
	}
}

// Start launches the sweep loop. The first sweep runs after one interval.
// Calling Start on a running monitor does nothing.
func (m *InactivityMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.loop(ctx, m.done)
	m.logger.Info().Dur("interval", m.interval).Dur("threshold", m.threshold).Msg("Inactivity monitor started")
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (m *InactivityMonitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info().Msg("Inactivity monitor stopped")
}

func (m *InactivityMonitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.RunOnce(ctx); err != nil {
				m.logger.Error().Err(err).Msg("Inactivity sweep failed")
			}
		}
	}
}

// RunOnce performs a single sweep and returns how many alerts it created.
// A failure for one patient is logged and the sweep moves on.
func (m *InactivityMonitor) RunOnce(ctx context.Context) (int, error) {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	inactive, err := m.repo.GetPatientsInactiveSince(ctx, m.now().Add(-m.threshold))
	if err != nil {
		return 0, persistenceErr("get inactive patients", err)
	}
	if len(inactive) == 0 {
		return 0, nil
	}

	unread, err := m.repo.GetUnreadAlerts(ctx)
	if err != nil {
		return 0, persistenceErr("get unread alerts", err)
	}
	alerted := make(map[int64]bool, len(unread))
	for _, a := range unread {
		if a.Type == store.AlertNoActivity {
			alerted[a.PatientID] = true
		}
	}

	created := 0
	for i := range inactive {
		patient := &inactive[i]
		if alerted[patient.ID] {
			continue
		}
		if _, err := m.alerts.raise(ctx, patient, store.AlertNoActivity, m.message(patient.Name)); err != nil {
			m.logger.Error().Err(err).Int64("patient_id", patient.ID).Msg("Failed to create inactivity alert")
			continue
		}
		alerted[patient.ID] = true
		created++
	}

	m.logger.Debug().Int("inactive", len(inactive)).Int("created", created).Msg("Inactivity sweep finished")
	return created, nil
}

func (m *InactivityMonitor) message(name string) string {
	return fmt.Sprintf("%s has had no activity for over %s", name, humanDuration(m.threshold))
}

func humanDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
