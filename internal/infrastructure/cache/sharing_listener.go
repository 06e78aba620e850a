package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// SharingChannel is the NOTIFY channel fed by the entity_sharing trigger.
// The payload is the entity whose sharing rules changed.
const SharingChannel = "entity_sharing_changed"

// Invalidator drops cached tenant scopes
type Invalidator interface {
	Invalidate(ctx context.Context, entity int64)
	InvalidateAll(ctx context.Context)
}

// SharingListener keeps cached tenant scopes consistent across instances.
// It uses PostgreSQL LISTEN/NOTIFY to drop a scope as soon as its sharing rules change.
type SharingListener struct {
	mu           sync.Mutex
	connStr      string
	invalidator  Invalidator
	logger       *zap.Logger
	pingInterval time.Duration
	listener     *pq.Listener
	stopCh       chan struct{}
	done         chan struct{}
	stopped      bool
}

// NewSharingListener creates a listener.
// connStr is the PostgreSQL connection string for LISTEN/NOTIFY.
func NewSharingListener(connStr string, invalidator Invalidator, logger *zap.Logger) *SharingListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SharingListener{
		connStr:      connStr,
		invalidator:  invalidator,
		logger:       logger.Named("sharing-listener"),
		pingInterval: 90 * time.Second,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start subscribes to SharingChannel and begins handling notifications
func (l *SharingListener) Start(ctx context.Context) error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			// The TTL on cached scopes bounds staleness while reconnecting
			l.logger.Warn("listener problem", zap.Int("event", int(ev)), zap.Error(err))
		}
	}

	listener := pq.NewListener(l.connStr, 10*time.Second, time.Minute, reportProblem)
	if err := listener.Listen(SharingChannel); err != nil {
		listener.Close()
		return fmt.Errorf("failed to listen on %s: %w", SharingChannel, err)
	}

	l.mu.Lock()
	l.listener = listener
	l.mu.Unlock()

	go l.run(listener.Notify, listener.Ping)
	return nil
}

// Stop stops the listener and waits for the handler goroutine to exit
func (l *SharingListener) Stop() error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	close(l.stopCh)
	listener := l.listener
	l.mu.Unlock()

	if listener == nil {
		return nil
	}

	<-l.done
	return listener.Close()
}

// run processes notifications until Stop is called
func (l *SharingListener) run(notify <-chan *pq.Notification, ping func() error) {
	defer close(l.done)

	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case n := <-notify:
			l.handle(n)
		case <-ticker.C:
			if err := ping(); err != nil {
				l.logger.Warn("listener ping failed", zap.Error(err))
			}
		}
	}
}

// handle applies one notification. A nil notification means the connection
// was re-established and events may have been missed.
func (l *SharingListener) handle(n *pq.Notification) {
	ctx := context.Background()

	if n == nil {
		l.logger.Info("listener reconnected, dropping all cached scopes")
		l.invalidator.InvalidateAll(ctx)
		return
	}

	entity, err := strconv.ParseInt(n.Extra, 10, 64)
	if err != nil {
		l.logger.Warn("unexpected notification payload", zap.String("payload", n.Extra))
		l.invalidator.InvalidateAll(ctx)
		return
	}

	l.logger.Debug("sharing changed", zap.Int64("entity", entity))
	l.invalidator.Invalidate(ctx, entity)
}
