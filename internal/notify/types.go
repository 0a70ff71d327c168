// internal/notify/types.go
package notify

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"
)

// Kind represents the severity of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// DefaultDuration is how long a notification stays visible when unset.
const DefaultDuration = 4 * time.Second

// Notification is a transient user-facing message.
type Notification struct {
	ID       string
	Kind     Kind
	Title    string
	Message  string
	Link     string
	Duration time.Duration
	Created  time.Time
}

// Expired reports whether n should no longer be displayed at now.
// A non-positive duration never expires.
func (n Notification) Expired(now time.Time) bool {
	if n.Duration <= 0 {
		return false
	}
	return now.After(n.Created.Add(n.Duration))
}

// Notifier accepts notifications. Implementations must not block the caller.
type Notifier interface {
	Notify(n Notification) string
}

// Handler processes a published notification.
type Handler interface {
	Handle(ctx context.Context, n Notification) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(context.Context, Notification) error

func (f HandlerFunc) Handle(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Subscription represents an active handler registration.
type Subscription interface {
	Unsubscribe()
	ID() string
}

func newID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), strconv.FormatUint(rand.Uint64()%(1<<35), 36))
}

// prepare fills the defaults a caller may omit.
func prepare(n Notification) Notification {
	if n.Created.IsZero() {
		n.Created = time.Now()
	}
	if n.ID == "" {
		n.ID = newID(n.Created)
	}
	if n.Duration == 0 {
		n.Duration = DefaultDuration
	}
	return n
}

// Success builds a success notification.
func Success(title, message string) Notification {
	return Notification{Kind: KindSuccess, Title: title, Message: message}
}

// Error builds an error notification.
func Error(title, message string) Notification {
	return Notification{Kind: KindError, Title: title, Message: message}
}

// Info builds an informational notification.
func Info(title, message string) Notification {
	return Notification{Kind: KindInfo, Title: title, Message: message}
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(n Notification) string { return prepare(n).ID }
