// internal/relay/registry.go
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-checkout/internal/storage"
)

// DefaultRegistrationTTL bounds how long a sender/merchant pairing is kept.
const DefaultRegistrationTTL = 10 * time.Minute

const registrationPrefix = "addresses:"

// Registration pairs a sender with the merchant it is about to pay.
type Registration struct {
	Sender               string    `json:"sender"`
	Merchant             string    `json:"merchant"`
	MerchantTokenAccount string    `json:"merchantTokenAccount"`
	RegisteredAt         time.Time `json:"registeredAt"`
}

// Registry records pairings per sender with a TTL. Nothing is kept in
// process memory between requests.
type Registry struct {
	kv  storage.KV
	ttl time.Duration
	now func() time.Time
}

func NewRegistry(kv storage.KV, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultRegistrationTTL
	}
	return &Registry{kv: kv, ttl: ttl, now: time.Now}
}

// Register derives the merchant settlement account and records the pairing.
func (r *Registry) Register(ctx context.Context, sender, merchant solana.PublicKey) (*Registration, error) {
	ata, err := SettlementAccount(merchant)
	if err != nil {
		return nil, err
	}
	reg := &Registration{
		Sender:               sender.String(),
		Merchant:             merchant.String(),
		MerchantTokenAccount: ata.String(),
		RegisteredAt:         r.now().UTC(),
	}
	if err := storage.SetJSON(ctx, r.kv, registrationPrefix+reg.Sender, reg, r.ttl); err != nil {
		return nil, err
	}
	return reg, nil
}

// Lookup returns the latest pairing for sender, or storage.ErrNotFound.
func (r *Registry) Lookup(ctx context.Context, sender solana.PublicKey) (*Registration, error) {
	var reg Registration
	if err := storage.GetJSON(ctx, r.kv, registrationPrefix+sender.String(), &reg); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &reg, nil
}
