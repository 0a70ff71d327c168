// internal/wallet/provider.go
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-checkout/internal/apperr"
)

// Имена кошельков, как их видит пользователь.
const (
	Phantom  = "Phantom"
	Solflare = "Solflare"
	Backpack = "Backpack"
	Trust    = "Trust Wallet"
	Local    = "Keypair"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrConnectionRejected  = errors.New("connection rejected")
	ErrNoPublicKey         = errors.New("no public key obtained from wallet")
	ErrCapabilityMissing   = errors.New("capability missing")
	ErrCannotTransact      = fmt.Errorf("%w: wallet cannot transact", ErrCapabilityMissing)
	ErrUserRejected        = errors.New("user rejected the request")
	ErrUnknownWallet       = errors.New("unknown wallet")
	ErrOperationInProgress = errors.New("wallet operation already in progress")
)

// Connector is implemented by injected objects that support connect. The
// returned key may be nil when the wallet only exposes it as a property.
type Connector interface {
	Connect(ctx context.Context) (*solana.PublicKey, error)
}

// PublicKeyHolder exposes the connected key as a property.
type PublicKeyHolder interface {
	PublicKey() (solana.PublicKey, bool)
}

type Disconnector interface {
	Disconnect(ctx context.Context) error
}

// TransactionSigner signs tx in place.
type TransactionSigner interface {
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// TransactionSender signs and submits through the provided network handle.
type TransactionSender interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction, network Network) (solana.Signature, error)
}

// SignAndSender signs and submits through the wallet's own connection.
type SignAndSender interface {
	SignAndSendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Flags mirror the brand markers some wallets set on a shared namespace.
type Flags struct {
	IsPhantom bool
	IsTrust   bool
	IsFalcon  bool
}

type BrandFlagger interface {
	BrandFlags() Flags
}

// Network submits signed transactions. solbc.Client satisfies it.
type Network interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Namespace holds injected wallet objects by global name. Safe for
// concurrent use; lookups of absent names return ok=false.
type Namespace struct {
	mu      sync.RWMutex
	objects map[string]interface{}
}

func NewNamespace() *Namespace {
	return &Namespace{objects: make(map[string]interface{})}
}

// Inject registers obj under a global name such as "solana" or "backpack".
func (n *Namespace) Inject(name string, obj interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.objects[name] = obj
}

func (n *Namespace) Remove(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.objects, name)
}

func (n *Namespace) Lookup(name string) (interface{}, bool) {
	if n == nil {
		return nil, false
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	obj, ok := n.objects[name]
	return obj, ok && obj != nil
}

// Brand describes how a wallet is found in the namespace.
type Brand struct {
	Name       string
	Global     string
	InstallURL string
	match      func(obj interface{}) bool
}

func flagsOf(obj interface{}) Flags {
	if f, ok := obj.(BrandFlagger); ok {
		return f.BrandFlags()
	}
	return Flags{}
}

func present(interface{}) bool { return true }

// Brands returns the supported wallets in display order.
func Brands() []Brand {
	return []Brand{
		{
			Name:       Phantom,
			Global:     "solana",
			InstallURL: "https://phantom.app/download",
			match: func(obj interface{}) bool {
				f := flagsOf(obj)
				return f.IsPhantom && !f.IsTrust && !f.IsFalcon
			},
		},
		{Name: Solflare, Global: "solflare", InstallURL: "https://solflare.com/download", match: present},
		{Name: Backpack, Global: "backpack", InstallURL: "https://www.backpack.app/download", match: present},
		{
			Name:       Trust,
			Global:     "solana",
			InstallURL: "https://trustwallet.com/download",
			match:      func(obj interface{}) bool { return flagsOf(obj).IsTrust },
		},
		{Name: Local, Global: "keypair", match: present},
	}
}

// BrandByName finds a supported wallet.
func BrandByName(name string) (Brand, bool) {
	for _, b := range Brands() {
		if b.Name == name {
			return b, true
		}
	}
	return Brand{}, false
}

// Find returns the injected object for the brand if it is installed.
func (b Brand) Find(ns *Namespace) (interface{}, bool) {
	obj, ok := ns.Lookup(b.Global)
	if !ok {
		return nil, false
	}
	if b.match != nil && !b.match(obj) {
		return nil, false
	}
	return obj, true
}

// Detection splits brands into installed and recommended (with install URL).
type Detection struct {
	Installed   []Brand
	Recommended []Brand
}

func Detect(ns *Namespace) Detection {
	var d Detection
	for _, b := range Brands() {
		if _, ok := b.Find(ns); ok {
			d.Installed = append(d.Installed, b)
		} else if b.InstallURL != "" {
			d.Recommended = append(d.Recommended, b)
		}
	}
	return d
}

// Mode is the resolved transact path.
type Mode int

const (
	ModeNone Mode = iota
	ModeSend
	ModeSignSubmit
	ModeSignAndSend
)

func (m Mode) String() string {
	switch m {
	case ModeSend:
		return "send"
	case ModeSignSubmit:
		return "sign+submit"
	case ModeSignAndSend:
		return "signAndSend"
	}
	return "none"
}

// Capabilities are closures bound to a live wallet object. They are never
// persisted.
type Capabilities struct {
	Mode Mode
	Sign func(ctx context.Context, tx *solana.Transaction) error
	Send func(ctx context.Context, tx *solana.Transaction, network Network) (solana.Signature, error)
}

// Resolve picks the transact path: send, then sign plus network submit, then
// sign-and-send.
func Resolve(obj interface{}) (Capabilities, error) {
	signer, canSign := obj.(TransactionSigner)

	if sender, ok := obj.(TransactionSender); ok {
		c := Capabilities{Mode: ModeSend, Send: sender.SendTransaction}
		if canSign {
			c.Sign = signer.SignTransaction
		}
		return c, nil
	}
	if canSign {
		return Capabilities{
			Mode: ModeSignSubmit,
			Sign: signer.SignTransaction,
			Send: func(ctx context.Context, tx *solana.Transaction, network Network) (solana.Signature, error) {
				if err := signer.SignTransaction(ctx, tx); err != nil {
					return solana.Signature{}, err
				}
				return network.SendTransaction(ctx, tx)
			},
		}, nil
	}
	if sas, ok := obj.(SignAndSender); ok {
		return Capabilities{
			Mode: ModeSignAndSend,
			Send: func(ctx context.Context, tx *solana.Transaction, _ Network) (solana.Signature, error) {
				return sas.SignAndSendTransaction(ctx, tx)
			},
		}, nil
	}
	return Capabilities{}, ErrCannotTransact
}

// Transact signs and submits tx using the resolved path.
func (c Capabilities) Transact(ctx context.Context, tx *solana.Transaction, network Network) (solana.Signature, error) {
	if c.Send == nil {
		return solana.Signature{}, apperr.Provider("transact", "wallet cannot transact", ErrCannotTransact)
	}
	sig, err := c.Send(ctx, tx, network)
	if err != nil {
		return solana.Signature{}, classify("transact", err,
			apperr.Upstream("transact", "transaction submission failed", err))
	}
	return sig, nil
}

// Connection is the result of a successful connect.
type Connection struct {
	Brand        Brand
	PublicKey    solana.PublicKey
	Capabilities Capabilities
	object       interface{}
}

// Disconnect calls the wallet's disconnect if it has one.
func (c *Connection) Disconnect(ctx context.Context) error {
	if d, ok := c.object.(Disconnector); ok {
		return d.Disconnect(ctx)
	}
	return nil
}

// Provider connects wallets found in a namespace.
type Provider struct {
	ns *Namespace
}

func NewProvider(ns *Namespace) *Provider {
	return &Provider{ns: ns}
}

func (p *Provider) Namespace() *Namespace { return p.ns }

// Connect connects the named wallet. The address is taken from connect's
// result or, if it returns none, from the wallet's public key property.
func (p *Provider) Connect(ctx context.Context, name string) (*Connection, error) {
	const op = "connect"
	brand, ok := BrandByName(name)
	if !ok {
		return nil, apperr.Provider(op, fmt.Sprintf("%s is not supported", name), ErrUnknownWallet)
	}
	obj, ok := brand.Find(p.ns)
	if !ok {
		return nil, apperr.Provider(op, fmt.Sprintf("%s wallet not found", name), ErrWalletNotFound)
	}

	var key *solana.PublicKey
	if c, ok := obj.(Connector); ok {
		k, err := c.Connect(ctx)
		if err != nil {
			return nil, classify(op, err, apperr.Provider(op, "wallet connection failed", err))
		}
		key = k
	}
	if key == nil || key.IsZero() {
		if h, ok := obj.(PublicKeyHolder); ok {
			if k, ok := h.PublicKey(); ok && !k.IsZero() {
				key = &k
			}
		}
	}
	if key == nil || key.IsZero() {
		return nil, apperr.Provider(op, "Could not get public key from wallet", ErrNoPublicKey)
	}

	caps, err := Resolve(obj)
	if err != nil {
		return nil, apperr.Provider(op, "wallet cannot transact", err)
	}
	return &Connection{Brand: brand, PublicKey: *key, Capabilities: caps, object: obj}, nil
}

// classify maps wallet errors onto the error taxonomy; unknown errors become
// fallback. A rejected connect is a provider failure, only a rejected
// signature counts as a cancellation.
func classify(op string, err, fallback error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, ErrUserRejected) && op == "connect":
		return apperr.Provider(op, "connection rejected", err)
	case errors.Is(err, ErrUserRejected):
		return apperr.UserCancelled(op, err)
	case errors.Is(err, ErrConnectionRejected):
		return apperr.Provider(op, "connection rejected", err)
	case errors.Is(err, ErrCapabilityMissing):
		return apperr.Provider(op, "wallet cannot transact", err)
	}
	return fallback
}
