package token

import (
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/text/unicode/norm"

	"granary/core/events"
)

// maxDecimals bounds display precision to the fixed-point scale used by the
// reward engines.
const maxDecimals = 18

const maxSymbolLen = 12

type ledgerState interface {
	TokenGet(symbol string) (*Token, bool, error)
	TokenPut(token *Token) error
	TokenListGet() ([]string, error)
	TokenListPut(symbols []string) error
	TokenBalanceGet(symbol string, addr [20]byte) (*big.Int, error)
	TokenBalancePut(symbol string, addr [20]byte, amount *big.Int) error
	TokenAllowanceGet(symbol string, owner, spender [20]byte) (*big.Int, error)
	TokenAllowancePut(symbol string, owner, spender [20]byte, amount *big.Int) error
	TokenSupplyGet(symbol string) (*big.Int, error)
	TokenSupplyPut(symbol string, amount *big.Int) error
}

// Engine implements the fungible token ledger shared by every native module.
// Balances live in module state; the engine enforces registry, supply, and
// conservation rules on top of it.
type Engine struct {
	state   ledgerState
	emitter events.Emitter
}

// NewEngine constructs a ledger engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state ledgerState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// NormalizeSymbol maps a raw symbol onto its canonical upper-case form.
func NormalizeSymbol(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" || len(trimmed) > maxSymbolLen {
		return "", ErrInvalidSymbol
	}
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return "", fmt.Errorf("%w: must start with a letter", ErrInvalidSymbol)
			}
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
		}
	}
	return trimmed, nil
}

// Register adds a token to the ledger registry. The display name is
// NFKC-normalised so lookalike glyphs collapse to one canonical spelling.
func (e *Engine) Register(symbol, name string, decimals uint8, authority [20]byte) (*Token, error) {
	canonical, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	displayName := norm.NFKC.String(strings.TrimSpace(name))
	if displayName == "" {
		return nil, ErrInvalidName
	}
	if decimals > maxDecimals {
		return nil, fmt.Errorf("%w: decimals above %d", ErrInvalidName, maxDecimals)
	}
	if authority == ([20]byte{}) {
		return nil, fmt.Errorf("%w: mint authority required", ErrInvalidAddress)
	}
	if _, exists, err := e.state.TokenGet(canonical); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: %s", ErrTokenExists, canonical)
	}

	tok := &Token{Symbol: canonical, Name: displayName, Decimals: decimals, MintAuthority: authority}
	if err := e.state.TokenPut(tok); err != nil {
		return nil, err
	}
	list, err := e.state.TokenListGet()
	if err != nil {
		return nil, err
	}
	if err := e.state.TokenListPut(append(list, canonical)); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.TokenRegistered{Symbol: canonical, Name: displayName, Decimals: decimals})
	return tok.Clone(), nil
}

// Get returns the registry record for a symbol.
func (e *Engine) Get(symbol string) (*Token, bool, error) {
	canonical, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, false, err
	}
	tok, ok, err := e.state.TokenGet(canonical)
	if err != nil || !ok {
		return nil, false, err
	}
	return tok.Clone(), true, nil
}

// Exists reports whether a symbol is registered.
func (e *Engine) Exists(symbol string) (bool, error) {
	_, ok, err := e.Get(symbol)
	return ok, err
}

// List returns the registered symbols in registration order.
func (e *Engine) List() ([]string, error) {
	return e.state.TokenListGet()
}

// Mint credits freshly created supply to an account. Only the token's mint
// authority may call it.
func (e *Engine) Mint(caller [20]byte, symbol string, to [20]byte, amount *big.Int) error {
	canonical, tok, err := e.requireToken(symbol)
	if err != nil {
		return err
	}
	if caller != tok.MintAuthority {
		return ErrNotAuthority
	}
	if to == ([20]byte{}) {
		return fmt.Errorf("%w: mint recipient required", ErrInvalidAddress)
	}
	if err := validateAmount(amount); err != nil {
		return err
	}

	balance, err := e.state.TokenBalanceGet(canonical, to)
	if err != nil {
		return err
	}
	supply, err := e.state.TokenSupplyGet(canonical)
	if err != nil {
		return err
	}
	newSupply := new(big.Int).Add(supply, amount)
	if err := e.state.TokenBalancePut(canonical, to, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	if err := e.state.TokenSupplyPut(canonical, newSupply); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenMinted{Symbol: canonical, To: to, Amount: cloneBigInt(amount), Supply: newSupply})
	return nil
}

// Transfer moves amount between two accounts. Supply is conserved; the debit
// fails before any state is written when the sender's balance is short.
func (e *Engine) Transfer(symbol string, from, to [20]byte, amount *big.Int) error {
	canonical, _, err := e.requireToken(symbol)
	if err != nil {
		return err
	}
	if from == ([20]byte{}) || to == ([20]byte{}) {
		return ErrInvalidAddress
	}
	if err := validateAmount(amount); err != nil {
		return err
	}

	fromBalance, err := e.state.TokenBalanceGet(canonical, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s", ErrInsufficientBalance, canonical)
	}
	if from == to {
		e.emitter.Emit(events.TokenTransferred{Symbol: canonical, From: from, To: to, Amount: cloneBigInt(amount)})
		return nil
	}
	toBalance, err := e.state.TokenBalanceGet(canonical, to)
	if err != nil {
		return err
	}
	if err := e.state.TokenBalancePut(canonical, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	if err := e.state.TokenBalancePut(canonical, to, new(big.Int).Add(toBalance, amount)); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenTransferred{Symbol: canonical, From: from, To: to, Amount: cloneBigInt(amount)})
	return nil
}

// Approve sets the allowance a spender may pull from the owner's balance.
// Zero resets a prior approval.
func (e *Engine) Approve(symbol string, owner, spender [20]byte, amount *big.Int) error {
	canonical, _, err := e.requireToken(symbol)
	if err != nil {
		return err
	}
	if owner == ([20]byte{}) || spender == ([20]byte{}) {
		return ErrInvalidAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return e.state.TokenAllowancePut(canonical, owner, spender, cloneBigInt(amount))
}

// Allowance returns the remaining approval from owner to spender.
func (e *Engine) Allowance(symbol string, owner, spender [20]byte) (*big.Int, error) {
	canonical, _, err := e.requireToken(symbol)
	if err != nil {
		return nil, err
	}
	return e.state.TokenAllowanceGet(canonical, owner, spender)
}

// TransferFrom moves amount from the owner using the spender's allowance.
func (e *Engine) TransferFrom(symbol string, spender, from, to [20]byte, amount *big.Int) error {
	canonical, _, err := e.requireToken(symbol)
	if err != nil {
		return err
	}
	if spender == ([20]byte{}) {
		return ErrInvalidAddress
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	allowance, err := e.state.TokenAllowanceGet(canonical, from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s", ErrInsufficientAllowance, canonical)
	}
	if err := e.Transfer(canonical, from, to, amount); err != nil {
		return err
	}
	return e.state.TokenAllowancePut(canonical, from, spender, new(big.Int).Sub(allowance, amount))
}

// BalanceOf returns the balance held by addr.
func (e *Engine) BalanceOf(symbol string, addr [20]byte) (*big.Int, error) {
	canonical, _, err := e.requireToken(symbol)
	if err != nil {
		return nil, err
	}
	return e.state.TokenBalanceGet(canonical, addr)
}

// TotalSupply returns the minted supply for a symbol.
func (e *Engine) TotalSupply(symbol string) (*big.Int, error) {
	canonical, _, err := e.requireToken(symbol)
	if err != nil {
		return nil, err
	}
	return e.state.TokenSupplyGet(canonical)
}

func (e *Engine) requireToken(symbol string) (string, *Token, error) {
	canonical, err := NormalizeSymbol(symbol)
	if err != nil {
		return "", nil, err
	}
	tok, ok, err := e.state.TokenGet(canonical)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrTokenNotFound, canonical)
	}
	return canonical, tok, nil
}

func validateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
