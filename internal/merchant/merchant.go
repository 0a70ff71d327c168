// internal/merchant/merchant.go
package merchant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-checkout/internal/apperr"
	"github.com/rovshanmuradov/solana-checkout/internal/notify"
	"github.com/rovshanmuradov/solana-checkout/internal/storage"
)

// StorageKey is where user-added merchants are persisted.
const StorageKey = "merchants"

// AddressLength is the length of a base58 Solana address accepted by the form.
const AddressLength = 44

var (
	ErrNameRequired    = apperr.Validation("add-merchant", "Merchant name is required")
	ErrAddressRequired = apperr.Validation("add-merchant", "USDC account address is required")
	ErrInvalidAddress  = apperr.Validation("add-merchant", "Invalid Solana address")
	ErrDuplicateName   = apperr.Validation("add-merchant", "A merchant with this name already exists")
	ErrUnknownMerchant = errors.New("merchant not found")
)

// Merchant is a payee the widget can settle to.
type Merchant struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// PublicKey parses the merchant wallet address.
func (m Merchant) PublicKey() (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(m.Address)
}

// Defaults are always listed before user-added merchants.
func Defaults() []Merchant {
	return []Merchant{
		{ID: "1", Name: "Merchant 1", Address: "8m4JS8gdXzw7xhG1ExKxoKL2MZ9EyKXwWqNqRJsYxmXb"},
		{ID: "2", Name: "Merchant 2", Address: "3KLB9Tqsj1x4yvJkwxVUhRucYEvKGRxvgqkGHsVPshCq"},
	}
}

// FormatAddress shortens an address to "abcd...wxyz".
func FormatAddress(address string) string {
	if len(address) <= 8 {
		return address
	}
	return address[:4] + "..." + address[len(address)-4:]
}

// ValidateAddress checks the form rules plus that the value decodes to a key.
func ValidateAddress(address string) error {
	if err := checkAddressShape(address); err != nil {
		return err
	}
	return checkAddressKey(address)
}

func checkAddressShape(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return ErrAddressRequired
	}
	if len(address) != AddressLength {
		return ErrInvalidAddress
	}
	return nil
}

func checkAddressKey(address string) error {
	raw, err := base58.Decode(strings.TrimSpace(address))
	if err != nil || len(raw) != solana.PublicKeyLength {
		return ErrInvalidAddress
	}
	return nil
}

// Registry lists merchants and persists the ones added by the user.
type Registry struct {
	mu       sync.Mutex
	kv       storage.KV
	notifier notify.Notifier
	logger   *zap.Logger
	added    []Merchant
	now      func() time.Time
}

// NewRegistry loads previously added merchants from kv. A missing or corrupt
// record starts an empty list.
func NewRegistry(ctx context.Context, kv storage.KV, notifier notify.Notifier, logger *zap.Logger) *Registry {
	r := &Registry{
		kv:       kv,
		notifier: notifier,
		logger:   logger.Named("merchants"),
		now:      time.Now,
	}
	var stored []Merchant
	if err := storage.GetJSON(ctx, kv, StorageKey, &stored); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("Failed to load stored merchants", zap.Error(err))
		}
		stored = nil
	}
	r.added = stored
	return r
}

// List returns defaults followed by user-added merchants.
func (r *Registry) List() []Merchant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(Defaults(), r.added...)
}

// Get finds a merchant by id.
func (r *Registry) Get(id string) (Merchant, error) {
	for _, m := range r.List() {
		if m.ID == id {
			return m, nil
		}
	}
	return Merchant{}, ErrUnknownMerchant
}

// Add validates and persists a new merchant. A success or error notification
// is emitted for every call.
func (r *Registry) Add(ctx context.Context, name, address string) (Merchant, error) {
	m, err := r.add(ctx, name, address)
	if err != nil {
		r.notifier.Notify(notify.Error("Add Merchant Error", apperr.UserMessage(err)))
		return Merchant{}, err
	}
	r.notifier.Notify(notify.Success("Merchant Added",
		fmt.Sprintf("Merchant %q has been successfully added.", m.Name)))
	return m, nil
}

func (r *Registry) add(ctx context.Context, name, address string) (Merchant, error) {
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)
	if name == "" {
		return Merchant{}, ErrNameRequired
	}
	if err := checkAddressShape(address); err != nil {
		return Merchant{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	all := append(Defaults(), r.added...)
	for _, existing := range all {
		if strings.EqualFold(existing.Address, address) {
			return Merchant{}, apperr.Validation("add-merchant",
				fmt.Sprintf("This address is already registered with merchant %q", existing.Name))
		}
	}
	for _, existing := range all {
		if strings.EqualFold(existing.Name, name) {
			return Merchant{}, ErrDuplicateName
		}
	}
	if err := checkAddressKey(address); err != nil {
		return Merchant{}, err
	}

	m := Merchant{
		ID:      strconv.FormatInt(r.now().UnixMilli(), 10),
		Name:    name,
		Address: address,
	}
	updated := append(append([]Merchant(nil), r.added...), m)
	if err := storage.SetJSON(ctx, r.kv, StorageKey, updated, 0); err != nil {
		return Merchant{}, apperr.Wrap(apperr.KindInternal, "add-merchant",
			"An error occurred while adding the merchant", err)
	}
	r.added = updated

	r.logger.Info("Merchant added",
		zap.String("id", m.ID),
		zap.String("name", m.Name),
		zap.String("address", FormatAddress(m.Address)))
	return m, nil
}
