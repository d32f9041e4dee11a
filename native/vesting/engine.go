package vesting

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"granary/core/events"
	"granary/crypto"
)

type engineState interface {
	VestingGrantGet(grantee [20]byte) (*Grant, bool, error)
	VestingGrantPut(grant *Grant) error
	VestingGrantDelete(grantee [20]byte) error
	VestingGranteesGet() ([][20]byte, error)
	VestingGranteesPut(grantees [][20]byte) error
	VestingTotalGet() (*big.Int, error)
	VestingTotalPut(total *big.Int) error
}

// tokenLedger is the slice of the token engine the vesting engine needs.
type tokenLedger interface {
	Exists(symbol string) (bool, error)
	Transfer(symbol string, from, to [20]byte, amount *big.Int) error
	BalanceOf(symbol string, addr [20]byte) (*big.Int, error)
}

// Engine administers linear vesting grants. Each grantee holds at most one
// active grant; funds sit in a shared module vault until claimed, and
// canceled grants forfeit their unclaimed remainder back to that vault.
type Engine struct {
	state   engineState
	ledger  tokenLedger
	emitter events.Emitter
	nowFn   func() uint64
	owner   [20]byte
	vault   [20]byte
}

// NewEngine constructs a vesting engine with default dependencies installed.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
		vault:   crypto.ModuleAddress("vesting"),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the token ledger funds move through.
func (e *Engine) SetLedger(ledger tokenLedger) { e.ledger = ledger }

// SetOwner configures the address allowed to administer grants.
func (e *Engine) SetOwner(owner [20]byte) { e.owner = owner }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

// Vault returns the module account holding all vesting funds.
func (e *Engine) Vault() [20]byte { return e.vault }

func (e *Engine) now() uint64 {
	if e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

func (e *Engine) requireOwner(caller [20]byte) error {
	if e.owner == ([20]byte{}) || caller != e.owner {
		return ErrUnauthorized
	}
	return nil
}

// AddGrant funds a new vesting schedule for grantee, pulling amount of token
// from the caller into the vesting vault. A grantee may hold only one grant
// at a time; cancel first to re-grant.
func (e *Engine) AddGrant(caller, grantee [20]byte, token string, amount *big.Int, start, cliff, end uint64) (*Grant, error) {
	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	if grantee == ([20]byte{}) {
		return nil, fmt.Errorf("%w: grantee required", ErrInvalidAddress)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if cliff < start || cliff > end {
		return nil, ErrInvalidTime
	}
	symbol := strings.ToUpper(strings.TrimSpace(token))
	exists, err := e.ledger.Exists(symbol)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: token %q", ErrInvalidValue, token)
	}
	if _, ok, err := e.state.VestingGrantGet(grantee); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrGrantExists
	}

	// The funding transfer is the first mutation; an underfunded owner
	// aborts the grant untouched.
	if err := e.ledger.Transfer(symbol, caller, e.vault, amount); err != nil {
		return nil, err
	}
	grant := &Grant{
		Grantee: grantee,
		Token:   symbol,
		Amount:  cloneBigInt(amount),
		Start:   start,
		Cliff:   cliff,
		End:     end,
		Claimed: big.NewInt(0),
	}
	if err := e.state.VestingGrantPut(grant); err != nil {
		return nil, err
	}
	grantees, err := e.state.VestingGranteesGet()
	if err != nil {
		return nil, err
	}
	if err := e.state.VestingGranteesPut(append(grantees, grantee)); err != nil {
		return nil, err
	}
	total, err := e.totalVesting()
	if err != nil {
		return nil, err
	}
	if err := e.state.VestingTotalPut(new(big.Int).Add(total, amount)); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.VestingGrantCreated{
		Grantee: grantee,
		Token:   symbol,
		Amount:  cloneBigInt(amount),
		Start:   start,
		Cliff:   cliff,
		End:     end,
	})
	return grant.Clone(), nil
}

// vestedAt computes how much of the grant has unlocked by at: nothing before
// the cliff, everything at or after the end, and a linear share in between.
func vestedAt(grant *Grant, at uint64) *big.Int {
	if at < grant.Cliff {
		return big.NewInt(0)
	}
	if at >= grant.End {
		return cloneBigInt(grant.Amount)
	}
	elapsed := new(big.Int).SetUint64(at - grant.Start)
	span := new(big.Int).SetUint64(grant.End - grant.Start)
	vested := new(big.Int).Mul(grant.Amount, elapsed)
	return vested.Quo(vested, span)
}

func claimableAt(grant *Grant, at uint64) *big.Int {
	delta := vestedAt(grant, at)
	delta.Sub(delta, grant.Claimed)
	if delta.Sign() < 0 {
		return big.NewInt(0)
	}
	return delta
}

// ClaimableAt reports what the grantee could claim at the given time.
// Addresses without a grant report zero.
func (e *Engine) ClaimableAt(grantee [20]byte, at uint64) (*big.Int, error) {
	grant, ok, err := e.state.VestingGrantGet(grantee)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return claimableAt(ensureGrant(grant), at), nil
}

// Claimable reports what the grantee could claim right now.
func (e *Engine) Claimable(grantee [20]byte) (*big.Int, error) {
	return e.ClaimableAt(grantee, e.now())
}

// Claim pays the grantee everything vested but not yet claimed. A zero
// claimable delta is a successful no-op: nothing moves and no event fires.
func (e *Engine) Claim(grantee [20]byte) (*big.Int, error) {
	if grantee == ([20]byte{}) {
		return nil, ErrInvalidAddress
	}
	grant, ok, err := e.state.VestingGrantGet(grantee)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	grant = ensureGrant(grant)

	payout := claimableAt(grant, e.now())
	if payout.Sign() == 0 {
		return big.NewInt(0), nil
	}

	// The transfer is the first mutation: a drained vault fails the claim
	// outright and the claimable balance stays intact.
	if err := e.ledger.Transfer(grant.Token, e.vault, grantee, payout); err != nil {
		return nil, err
	}
	grant.Claimed = new(big.Int).Add(grant.Claimed, payout)
	if err := e.state.VestingGrantPut(grant); err != nil {
		return nil, err
	}
	total, err := e.totalVesting()
	if err != nil {
		return nil, err
	}
	if err := e.state.VestingTotalPut(new(big.Int).Sub(total, payout)); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.VestingClaimed{
		Grantee: grantee,
		Token:   grant.Token,
		Amount:  cloneBigInt(payout),
		Claimed: cloneBigInt(grant.Claimed),
	})
	return payout, nil
}

// CancelGrant revokes the grantee's schedule. The unclaimed remainder, the
// vested-but-unclaimed part included, is forfeited back to the vault; the
// grantee may be granted again afterwards.
func (e *Engine) CancelGrant(caller, grantee [20]byte) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	grant, ok, err := e.state.VestingGrantGet(grantee)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrGrantNotFound, crypto.NewAddress(crypto.GNRPrefix, grantee[:]).String())
	}
	grant = ensureGrant(grant)

	forfeited := new(big.Int).Sub(grant.Amount, grant.Claimed)
	if err := e.state.VestingGrantDelete(grantee); err != nil {
		return err
	}
	grantees, err := e.state.VestingGranteesGet()
	if err != nil {
		return err
	}
	kept := grantees[:0]
	for _, g := range grantees {
		if g != grantee {
			kept = append(kept, g)
		}
	}
	if err := e.state.VestingGranteesPut(kept); err != nil {
		return err
	}
	total, err := e.totalVesting()
	if err != nil {
		return err
	}
	if err := e.state.VestingTotalPut(new(big.Int).Sub(total, forfeited)); err != nil {
		return err
	}
	e.emitter.Emit(events.VestingGrantCanceled{
		Grantee:   grantee,
		Token:     grant.Token,
		Forfeited: forfeited,
	})
	return nil
}

// WithdrawExcess lets the owner sweep vault funds above the outstanding
// grant obligations for a token: forfeited remainders, over-funding, and
// stray deposits. Obligated funds never leave.
func (e *Engine) WithdrawExcess(caller [20]byte, token string, amount *big.Int, to [20]byte) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return fmt.Errorf("%w: recipient required", ErrInvalidAddress)
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	symbol := strings.ToUpper(strings.TrimSpace(token))
	outstanding, err := e.outstandingFor(symbol)
	if err != nil {
		return err
	}
	balance, err := e.ledger.BalanceOf(symbol, e.vault)
	if err != nil {
		return err
	}
	free := new(big.Int).Sub(balance, outstanding)
	if free.Cmp(amount) < 0 {
		return fmt.Errorf("%w: sweep limited to unobligated balance", ErrInsufficientBalance)
	}
	if err := e.ledger.Transfer(symbol, e.vault, to, amount); err != nil {
		return err
	}
	e.emitter.Emit(events.VestingExcessWithdrawn{
		Caller:    caller,
		Token:     symbol,
		Amount:    cloneBigInt(amount),
		Recipient: to,
	})
	return nil
}

// outstandingFor sums Amount - Claimed over active grants in the given
// token. Grant counts are small; this only backs the owner's sweep.
func (e *Engine) outstandingFor(symbol string) (*big.Int, error) {
	grantees, err := e.state.VestingGranteesGet()
	if err != nil {
		return nil, err
	}
	outstanding := big.NewInt(0)
	for _, grantee := range grantees {
		grant, ok, err := e.state.VestingGrantGet(grantee)
		if err != nil {
			return nil, err
		}
		if !ok || grant == nil || grant.Token != symbol {
			continue
		}
		grant = ensureGrant(grant)
		outstanding.Add(outstanding, new(big.Int).Sub(grant.Amount, grant.Claimed))
	}
	return outstanding, nil
}

// GetGrant returns a copy of the grantee's active grant.
func (e *Engine) GetGrant(grantee [20]byte) (*Grant, error) {
	grant, ok, err := e.state.VestingGrantGet(grantee)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGrantNotFound, crypto.NewAddress(crypto.GNRPrefix, grantee[:]).String())
	}
	return ensureGrant(grant).Clone(), nil
}

// TotalVesting returns the engine-wide outstanding total across all grants.
func (e *Engine) TotalVesting() (*big.Int, error) {
	return e.totalVesting()
}

// Grantees returns the addresses holding active grants in creation order.
func (e *Engine) Grantees() ([][20]byte, error) {
	return e.state.VestingGranteesGet()
}

func (e *Engine) totalVesting() (*big.Int, error) {
	total, err := e.state.VestingTotalGet()
	if err != nil {
		return nil, err
	}
	if total == nil {
		return big.NewInt(0), nil
	}
	return total, nil
}
