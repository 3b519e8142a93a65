package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

const lamportsPerSOL = 1_000_000_000

// BalanceSource is the part of the RPC client the wallet needs.
type BalanceSource interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
}

var _ BalanceSource = (*rpc.Client)(nil)

type WalletConfig struct {
	PrivateKey string // base58-encoded 64-byte key OR solana-keygen JSON array
	RPC        BalanceSource
}

// Wallet is the trading identity. Swaps are signed by the venue; the wallet
// only supplies the address quotes and orders are made for.
type Wallet struct {
	rpc  BalanceSource
	priv solana.PrivateKey
	pub  solana.PublicKey
}

func NewWallet(cfg WalletConfig) (*Wallet, error) {
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, fmt.Errorf("wallet: PrivateKey is required")
	}

	priv, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		rpc:  cfg.RPC,
		priv: priv,
		pub:  priv.PublicKey(),
	}, nil
}

func (w *Wallet) Address() string             { return w.pub.String() }
func (w *Wallet) PublicKey() solana.PublicKey { return w.pub }

// SignMessage signs an arbitrary payload with the wallet key.
func (w *Wallet) SignMessage(msg []byte) (solana.Signature, error) {
	sig, err := w.priv.Sign(msg)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("wallet: sign message: %w", err)
	}
	return sig, nil
}

func (w *Wallet) GetBalanceSOL(ctx context.Context) (float64, error) {
	if w.rpc == nil {
		return 0, fmt.Errorf("wallet: no RPC configured")
	}
	lamports, err := w.rpc.GetBalance(ctx, w.pub.String())
	if err != nil {
		return 0, fmt.Errorf("getBalance failed: %w", err)
	}
	return float64(lamports) / lamportsPerSOL, nil
}

// ParseAddress validates a base58 account address (wallet or mint).
func ParseAddress(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return pk, nil
}

func parsePrivateKey(s string) (solana.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("wallet: invalid JSON private key: %w", err)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("wallet: invalid byte at %d: %d", i, v)
			}
			b[i] = byte(v)
		}
		if len(b) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(b))
		}
		return solana.PrivateKey(ed25519.PrivateKey(b)), nil
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid base58 private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return solana.PrivateKey(ed25519.PrivateKey(raw)), nil
}
