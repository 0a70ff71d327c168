// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ApproveFunc спрашивает пользователя, подписывать ли транзакцию.
type ApproveFunc func(ctx context.Context, tx *solana.Transaction) bool

// Keypair: локальный кошелёк на приватном ключе. Регистрируется в Namespace
// под именем "keypair" и ведёт себя как внедрённый объект кошелька.
type Keypair struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey

	mu        sync.Mutex
	connected bool
	approve   ApproveFunc
}

// NewKeypair создаёт кошелёк из base58-encoded приватного ключа.
func NewKeypair(privateKeyBase58 string) (*Keypair, error) {
	privateKeyBytes, err := base58.Decode(strings.TrimSpace(privateKeyBase58))
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	return fromBytes(privateKeyBytes)
}

func fromBytes(b []byte) (*Keypair, error) {
	if len(b) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(b))
	}
	privateKey := solana.PrivateKey(b)
	return &Keypair{
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
	}, nil
}

// LoadKeypair читает ключ из файла: JSON-массив байт (формат solana-keygen)
// или base58-строка.
func LoadKeypair(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair file: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "[") {
		var values []int
		if err := json.Unmarshal([]byte(text), &values); err != nil {
			return nil, fmt.Errorf("failed to parse keypair file: %w", err)
		}
		raw := make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("invalid byte %d in keypair file", v)
			}
			raw[i] = byte(v)
		}
		return fromBytes(raw)
	}
	return NewKeypair(text)
}

// WithApproval sets the prompt consulted before each signature. A false
// answer fails signing with ErrUserRejected.
func (w *Keypair) WithApproval(fn ApproveFunc) *Keypair {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.approve = fn
	return w
}

func (w *Keypair) Connect(context.Context) (*solana.PublicKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = true
	key := w.publicKey
	return &key, nil
}

func (w *Keypair) PublicKey() (solana.PublicKey, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.publicKey, w.connected
}

func (w *Keypair) Disconnect(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = false
	return nil
}

// SignTransaction подписывает транзакцию приватным ключом кошелька.
func (w *Keypair) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	w.mu.Lock()
	approve := w.approve
	w.mu.Unlock()
	if approve != nil && !approve(ctx, tx) {
		return ErrUserRejected
	}

	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.publicKey) {
			return &w.privateKey
		}
		return nil
	})
	return err
}

// Address returns the wallet public key regardless of connection state.
func (w *Keypair) Address() solana.PublicKey {
	return w.publicKey
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Keypair) String() string {
	return w.publicKey.String()
}

var (
	_ Connector         = (*Keypair)(nil)
	_ PublicKeyHolder   = (*Keypair)(nil)
	_ Disconnector      = (*Keypair)(nil)
	_ TransactionSigner = (*Keypair)(nil)
)
