// internal/storage/storage.go
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rovshanmuradov/solana-checkout/internal/storage/models"
)

// ErrNotFound is returned when a key or record does not exist.
var ErrNotFound = errors.New("storage: not found")

// KV определяет минимальное key-value хранилище для состояния виджета и бэкенда.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; ttl <= 0 keeps it forever.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Ledger хранит подтверждённые платежи, записанные через confirm-transaction.
type Ledger interface {
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, signature string) (*models.Transaction, error)
}

// GetJSON decodes the value stored at key into dst.
func GetJSON(ctx context.Context, kv KV, key string, dst interface{}) error {
	data, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, kv KV, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Set(ctx, key, data, ttl)
}

// KVLedger implements Ledger on top of any KV.
type KVLedger struct {
	kv     KV
	prefix string
}

func NewKVLedger(kv KV) *KVLedger {
	return &KVLedger{kv: kv, prefix: "transaction:"}
}

func (l *KVLedger) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.Signature == "" {
		return errors.New("transaction signature is empty")
	}
	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now
	return SetJSON(ctx, l.kv, l.prefix+tx.Signature, tx, 0)
}

func (l *KVLedger) GetTransaction(ctx context.Context, signature string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := GetJSON(ctx, l.kv, l.prefix+signature, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}
