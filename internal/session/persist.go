// internal/session/persist.go
package session

import (
	"context"
	"errors"

	"github.com/rovshanmuradov/solana-checkout/internal/storage"
)

// StorageKey holds the persisted session record.
const StorageKey = "wallet_state"

// Record is the only part of a session that is persisted.
type Record struct {
	PublicKeyAddress    string `json:"publicKeyAddress"`
	ConnectedWalletName string `json:"connectedWalletName"`
}

// Persister stores the session record between runs.
type Persister interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, rec Record) error
	Clear(ctx context.Context) error
}

// KVPersister keeps the record in a key-value store.
type KVPersister struct {
	kv storage.KV
}

func NewKVPersister(kv storage.KV) *KVPersister {
	return &KVPersister{kv: kv}
}

// Load returns nil, nil when nothing is stored.
func (p *KVPersister) Load(ctx context.Context) (*Record, error) {
	var rec Record
	if err := storage.GetJSON(ctx, p.kv, StorageKey, &rec); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if rec.PublicKeyAddress == "" || rec.ConnectedWalletName == "" {
		return nil, nil
	}
	return &rec, nil
}

func (p *KVPersister) Save(ctx context.Context, rec Record) error {
	return storage.SetJSON(ctx, p.kv, StorageKey, rec, 0)
}

func (p *KVPersister) Clear(ctx context.Context) error {
	return p.kv.Delete(ctx, StorageKey)
}
