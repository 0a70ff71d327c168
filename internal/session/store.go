// internal/session/store.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-checkout/internal/apperr"
	"github.com/rovshanmuradov/solana-checkout/internal/notify"
	"github.com/rovshanmuradov/solana-checkout/internal/wallet"
)

// Status of the wallet session.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
	Reconnecting
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// ErrNotConnected is returned by Transact without live capabilities.
var ErrNotConnected = errors.New("wallet not connected")

// Snapshot is a copy of the session. Capabilities are nil until a live
// connection has been made in this process.
type Snapshot struct {
	Status           Status
	PublicKeyAddress string
	WalletName       string
	Capabilities     *wallet.Capabilities
}

func (s Snapshot) IsConnected() bool  { return s.Status == Connected }
func (s Snapshot) IsConnecting() bool { return s.Status == Connecting || s.Status == Reconnecting }

// Store is the process-wide wallet session. Connect, Disconnect and Restore
// are serialized by an in-progress flag: a call arriving while another runs
// fails with ErrOperationInProgress and leaves state untouched.
type Store struct {
	provider  *wallet.Provider
	persister Persister
	notifier  notify.Notifier
	logger    *zap.Logger

	mu       sync.Mutex
	state    Snapshot
	conn     *wallet.Connection
	busy     bool
	onChange func(Snapshot)
}

type Option func(*Store)

// WithOnChange registers a listener called after every state change.
func WithOnChange(fn func(Snapshot)) Option {
	return func(s *Store) { s.onChange = fn }
}

// NewStore loads the persisted record. When one exists the session starts
// Connected without capabilities; call Restore to rebind them.
func NewStore(ctx context.Context, provider *wallet.Provider, persister Persister, notifier notify.Notifier, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		provider:  provider,
		persister: persister,
		notifier:  notifier,
		logger:    logger.Named("session"),
	}
	for _, opt := range opts {
		opt(s)
	}

	rec, err := persister.Load(ctx)
	switch {
	case err != nil:
		s.logger.Warn("Failed to load wallet session", zap.Error(err))
	case rec != nil:
		s.state = Snapshot{
			Status:           Connected,
			PublicKeyAddress: rec.PublicKeyAddress,
			WalletName:       rec.ConnectedWalletName,
		}
	}
	return s
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PublicKey returns the connected address, if any.
func (s *Store) PublicKey() (solana.PublicKey, bool) {
	snap := s.Snapshot()
	if !snap.IsConnected() || snap.PublicKeyAddress == "" {
		return solana.PublicKey{}, false
	}
	key, err := solana.PublicKeyFromBase58(snap.PublicKeyAddress)
	if err != nil {
		return solana.PublicKey{}, false
	}
	return key, true
}

// Ready reports whether the session is connected with live capabilities.
func (s *Store) Ready() bool {
	snap := s.Snapshot()
	return snap.IsConnected() && snap.Capabilities != nil
}

// Transact signs and submits tx with the live capabilities.
func (s *Store) Transact(ctx context.Context, tx *solana.Transaction, network wallet.Network) (solana.Signature, error) {
	snap := s.Snapshot()
	if !snap.IsConnected() || snap.Capabilities == nil {
		return solana.Signature{}, apperr.Provider("transact", "Please connect your wallet first", ErrNotConnected)
	}
	return snap.Capabilities.Transact(ctx, tx, network)
}

func (s *Store) begin(op string, transient Status) (Snapshot, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return Snapshot{}, apperr.Provider(op, "wallet operation already in progress", wallet.ErrOperationInProgress)
	}
	s.busy = true
	prev := s.state
	if transient != prev.Status {
		s.state.Status = transient
		s.state.Capabilities = nil
	}
	st := s.state
	s.mu.Unlock()
	s.emit(st)
	return prev, nil
}

func (s *Store) finish(next Snapshot, conn *wallet.Connection) {
	s.mu.Lock()
	s.state = next
	s.conn = conn
	s.busy = false
	s.mu.Unlock()
	s.emit(next)
}

// Connect connects the named wallet and persists the session. On failure all
// state and the persisted record are cleared, one error notification is
// emitted and the error is returned.
func (s *Store) Connect(ctx context.Context, name string) error {
	if _, err := s.begin("connect", Connecting); err != nil {
		return err
	}
	s.logger.Info("Connecting wallet", zap.String("wallet", name))

	conn, err := s.provider.Connect(ctx, name)
	if err != nil {
		s.reset(ctx)
		s.logger.Warn("Wallet connection failed", zap.String("wallet", name), zap.Error(err))
		s.notifier.Notify(notify.Error("Connection Error", apperr.UserMessage(err)))
		return err
	}

	s.establish(ctx, conn)
	s.notifier.Notify(notify.Success("Wallet Connected",
		fmt.Sprintf("Connected to %s", conn.Brand.Name)))
	return nil
}

// Restore re-runs connect against the persisted wallet to rebind
// capabilities. If it fails the session falls back to Disconnected and the
// stale record is purged. A session without a persisted record is a no-op.
func (s *Store) Restore(ctx context.Context) error {
	snap := s.Snapshot()
	if snap.Status != Connected || snap.Capabilities != nil || snap.WalletName == "" {
		return nil
	}
	if _, err := s.begin("reconnect", Reconnecting); err != nil {
		return err
	}

	conn, err := s.provider.Connect(ctx, snap.WalletName)
	if err != nil {
		s.reset(ctx)
		s.logger.Info("Stored wallet session could not be restored",
			zap.String("wallet", snap.WalletName), zap.Error(err))
		return err
	}
	s.establish(ctx, conn)
	return nil
}

// Disconnect best-effort disconnects the wallet. Local state and the
// persisted record are always cleared.
func (s *Store) Disconnect(ctx context.Context) error {
	if _, err := s.begin("disconnect", Disconnected); err != nil {
		return err
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Disconnect(ctx); err != nil {
			s.logger.Warn("Wallet disconnect failed", zap.Error(err))
		}
	}
	s.reset(ctx)
	return nil
}

func (s *Store) establish(ctx context.Context, conn *wallet.Connection) {
	caps := conn.Capabilities
	next := Snapshot{
		Status:           Connected,
		PublicKeyAddress: conn.PublicKey.String(),
		WalletName:       conn.Brand.Name,
		Capabilities:     &caps,
	}
	if err := s.persister.Save(ctx, Record{
		PublicKeyAddress:    next.PublicKeyAddress,
		ConnectedWalletName: next.WalletName,
	}); err != nil {
		s.logger.Warn("Failed to persist wallet session", zap.Error(err))
	}
	s.finish(next, conn)
	s.logger.Info("Wallet connected",
		zap.String("wallet", next.WalletName),
		zap.String("address", next.PublicKeyAddress),
		zap.Stringer("mode", caps.Mode))
}

func (s *Store) reset(ctx context.Context) {
	if err := s.persister.Clear(ctx); err != nil {
		s.logger.Warn("Failed to clear wallet session", zap.Error(err))
	}
	s.finish(Snapshot{Status: Disconnected}, nil)
}

func (s *Store) emit(st Snapshot) {
	if s.onChange != nil {
		s.onChange(st)
	}
}
