package units

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Token is an entry of the known-token table.
type Token struct {
	Mint     string `yaml:"mint" json:"mint"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	Decimals uint8  `yaml:"decimals" json:"decimals"`
}

// Well-known mints.
const (
	MintSOL  = "So11111111111111111111111111111111111111112"
	MintUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	MintUSDT = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	MintMSOL = "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So"
	MintBONK = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	MintJUP  = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
	MintRAY  = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
)

var knownTokens = []Token{
	{Mint: MintSOL, Symbol: "SOL", Decimals: 9},
	{Mint: MintUSDC, Symbol: "USDC", Decimals: 6},
	{Mint: MintUSDT, Symbol: "USDT", Decimals: 6},
	{Mint: MintMSOL, Symbol: "mSOL", Decimals: 9},
	{Mint: MintBONK, Symbol: "BONK", Decimals: 5},
	{Mint: MintJUP, Symbol: "JUP", Decimals: 6},
	{Mint: MintRAY, Symbol: "RAY", Decimals: 6},
}

// Registry resolves token decimals by mint address.
type Registry struct {
	mu     sync.RWMutex
	tokens map[string]Token
}

// NewRegistry returns a registry seeded with the well-known tokens.
func NewRegistry() *Registry {
	r := &Registry{tokens: make(map[string]Token, len(knownTokens))}
	for _, t := range knownTokens {
		r.tokens[t.Mint] = t
	}
	return r
}

// Add registers or replaces a token.
func (r *Registry) Add(t Token) error {
	t.Mint = strings.TrimSpace(t.Mint)
	if t.Mint == "" {
		return fmt.Errorf("token mint is required")
	}
	r.mu.Lock()
	r.tokens[t.Mint] = t
	r.mu.Unlock()
	return nil
}

// Lookup returns the known token for mint.
func (r *Registry) Lookup(mint string) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[strings.TrimSpace(mint)]
	return t, ok
}

// List returns every known token ordered by symbol.
func (r *Registry) List() []Token {
	r.mu.RLock()
	out := make([]Token, 0, len(r.tokens))
	for _, t := range r.tokens {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Mint < out[j].Mint
	})
	return out
}

// MintFor resolves a symbol (case-insensitive) to its mint. Anything that is
// not a known symbol is returned unchanged, so mints pass through.
func (r *Registry) MintFor(symbolOrMint string) string {
	s := strings.TrimSpace(symbolOrMint)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tokens {
		if strings.EqualFold(t.Symbol, s) {
			return t.Mint
		}
	}
	return s
}

// Symbol returns the token symbol, or the mint itself when unknown.
func (r *Registry) Symbol(mint string) string {
	if t, ok := r.Lookup(mint); ok && t.Symbol != "" {
		return t.Symbol
	}
	return mint
}

// ResolveDecimals prefers an explicit override and falls back to the table.
func (r *Registry) ResolveDecimals(mint string, override *uint8) (uint8, error) {
	if override != nil {
		return *override, nil
	}
	if t, ok := r.Lookup(mint); ok {
		return t.Decimals, nil
	}
	return 0, fmt.Errorf("%w for mint %s: use a token with known decimals or pass decimals explicitly",
		ErrDecimalsUnavailable, mint)
}

type tokenFile struct {
	Tokens []Token `yaml:"tokens"`
}

// LoadFile merges a YAML token list into the registry and returns the number
// of tokens added.
//
//	tokens:
//	  - mint: 7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr
//	    symbol: POPCAT
//	    decimals: 9
func (r *Registry) LoadFile(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read token file: %w", err)
	}
	return r.LoadYAML(b)
}

// LoadYAML is LoadFile on an in-memory document.
func (r *Registry) LoadYAML(b []byte) (int, error) {
	var f tokenFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return 0, fmt.Errorf("decode token file: %w", err)
	}
	for i, t := range f.Tokens {
		if err := r.Add(t); err != nil {
			return i, fmt.Errorf("token %d: %w", i, err)
		}
	}
	return len(f.Tokens), nil
}
