package ui

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-checkout/internal/notify"
	"github.com/rovshanmuradov/solana-checkout/internal/quote"
	"github.com/rovshanmuradov/solana-checkout/internal/session"
)

// DefaultUpdateBuffer is the channel size used by cmd/checkout.
const DefaultUpdateBuffer = 256

// UpdateSender provides non-blocking UI update sending with statistics.
// Background components (quote poller, session store, notification bus)
// push through it; the program drains it with Listen.
type UpdateSender struct {
	msgChan        chan tea.Msg
	droppedUpdates atomic.Uint64
	sentUpdates    atomic.Uint64
	logger         *zap.Logger
	statsInterval  time.Duration
	stopStats      chan struct{}
	closeOnce      sync.Once
}

// NewUpdateSender creates a new non-blocking update sender
func NewUpdateSender(buffer int, logger *zap.Logger) *UpdateSender {
	if buffer <= 0 {
		buffer = DefaultUpdateBuffer
	}
	us := &UpdateSender{
		msgChan:       make(chan tea.Msg, buffer),
		logger:        logger.Named("ui-updates"),
		statsInterval: 30 * time.Second,
		stopStats:     make(chan struct{}),
	}

	// Start periodic stats logging
	go us.logStats()

	return us
}

// Send sends a message to UI without blocking
func (us *UpdateSender) Send(msg tea.Msg) {
	select {
	case <-us.stopStats:
		us.droppedUpdates.Add(1)
		return
	default:
	}

	select {
	case us.msgChan <- msg:
		us.sentUpdates.Add(1)
	default:
		// Не блокируем поллер и сессию
		us.droppedUpdates.Add(1)
	}
}

// Listen returns a tea.Cmd that waits for the next update. Re-issue it after
// every delivered message. It yields nil once the sender is closed.
func (us *UpdateSender) Listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-us.msgChan:
			return msg
		case <-us.stopStats:
			return nil
		}
	}
}

// QuoteListener adapts the sender to quote.Options.OnChange.
func (us *UpdateSender) QuoteListener() func(quote.State) {
	return func(st quote.State) { us.Send(QuoteMsg{State: st}) }
}

// SessionListener adapts the sender to session.WithOnChange.
func (us *UpdateSender) SessionListener() func(session.Snapshot) {
	return func(s session.Snapshot) { us.Send(SessionMsg{Snapshot: s}) }
}

// NotificationHandler adapts the sender to a notify.Bus subscription.
func (us *UpdateSender) NotificationHandler() notify.Handler {
	return notify.HandlerFunc(func(_ context.Context, n notify.Notification) error {
		us.Send(NotificationMsg{Notification: n})
		return nil
	})
}

// GetStats returns current statistics
func (us *UpdateSender) GetStats() (sent, dropped uint64) {
	return us.sentUpdates.Load(), us.droppedUpdates.Load()
}

// logStats periodically logs statistics
func (us *UpdateSender) logStats() {
	ticker := time.NewTicker(us.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sent, dropped := us.GetStats()
			if dropped > 0 {
				us.logger.Warn("UI update statistics",
					zap.Uint64("sent", sent),
					zap.Uint64("dropped", dropped),
					zap.Float64("drop_rate", float64(dropped)/float64(sent+dropped)*100))
			}
		case <-us.stopStats:
			return
		}
	}
}

// Close stops the update sender. Safe to call more than once.
func (us *UpdateSender) Close() {
	us.closeOnce.Do(func() { close(us.stopStats) })
}
