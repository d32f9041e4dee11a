package farm

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"granary/core/events"
	"granary/crypto"
)

const maxIDLen = 64

type engineState interface {
	FarmGet(id string) (*Farm, bool, error)
	FarmPut(farm *Farm) error
	FarmListGet() ([]string, error)
	FarmListPut(ids []string) error
	FarmPositionGet(id string, addr [20]byte) (*Position, bool, error)
	FarmPositionPut(id string, position *Position) error
}

// tokenLedger is the slice of the token engine the farm engine needs: moving
// funds between accounts and the farm vault, and inspecting vault balances
// before a payout is committed.
type tokenLedger interface {
	Exists(symbol string) (bool, error)
	Transfer(symbol string, from, to [20]byte, amount *big.Int) error
	BalanceOf(symbol string, addr [20]byte) (*big.Int, error)
}

// Engine implements fixed-rate staking reward programs over a lazy per-unit
// accumulator. Every mutating operation settles accrued time first, so cost
// stays constant no matter how many accounts hold positions.
type Engine struct {
	state    engineState
	ledger   tokenLedger
	emitter  events.Emitter
	nowFn    func() uint64
	policies map[string]WithdrawPolicy
}

// CreateParams carries the caller-supplied program parameters.
type CreateParams struct {
	ID          string
	StakeToken  string
	RewardToken string
	StartTime   uint64
	EndTime     uint64
	RewardRate  *big.Int
	LockPolicy  string
	Owner       [20]byte
}

// NewEngine constructs a farm engine with the built-in withdraw policies
// registered and default dependencies installed.
func NewEngine() *Engine {
	e := &Engine{
		emitter:  events.NoopEmitter{},
		nowFn:    func() uint64 { return uint64(time.Now().Unix()) },
		policies: make(map[string]WithdrawPolicy),
	}
	e.RegisterPolicy(FlexiblePolicy{})
	e.RegisterPolicy(HodlPolicy{})
	return e
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the token ledger funds move through.
func (e *Engine) SetLedger(ledger tokenLedger) { e.ledger = ledger }

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

// RegisterPolicy installs or replaces a withdraw policy under its name.
func (e *Engine) RegisterPolicy(policy WithdrawPolicy) {
	if policy == nil {
		return
	}
	e.policies[policy.Name()] = policy
}

func (e *Engine) now() uint64 {
	if e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

func sanitizeID(id string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(id))
	if trimmed == "" || len(trimmed) > maxIDLen {
		return "", ErrInvalidID
	}
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
	}
	return trimmed, nil
}

// Create registers a new reward program. The reward budget is fixed at
// creation as (end - start) * rate; funding the vault is a separate transfer
// so programs can be topped up before or after their start.
func (e *Engine) Create(params CreateParams) (*Farm, error) {
	id, err := sanitizeID(params.ID)
	if err != nil {
		return nil, err
	}
	if params.Owner == ([20]byte{}) {
		return nil, fmt.Errorf("%w: owner required", ErrInvalidAddress)
	}
	if params.RewardRate == nil || params.RewardRate.Sign() <= 0 {
		return nil, fmt.Errorf("%w: reward rate must be positive", ErrInvalidValue)
	}
	if params.StartTime >= params.EndTime {
		return nil, fmt.Errorf("%w: start must precede end", ErrInvalidDuration)
	}
	if params.EndTime <= e.now() {
		return nil, fmt.Errorf("%w: end must be in the future", ErrInvalidDuration)
	}
	policyName := strings.ToLower(strings.TrimSpace(params.LockPolicy))
	if policyName == "" {
		policyName = PolicyFlexible
	}
	if _, ok := e.policies[policyName]; !ok {
		return nil, fmt.Errorf("%w: unknown lock policy %q", ErrInvalidValue, params.LockPolicy)
	}
	for _, symbol := range []string{params.StakeToken, params.RewardToken} {
		exists, err := e.ledger.Exists(symbol)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: token %q", ErrInvalidValue, symbol)
		}
	}
	if _, exists, err := e.state.FarmGet(id); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: %s", ErrFarmExists, id)
	}

	duration := new(big.Int).SetUint64(params.EndTime - params.StartTime)
	budget := new(big.Int).Mul(duration, params.RewardRate)
	farm := &Farm{
		ID:                  id,
		StakeToken:          strings.ToUpper(strings.TrimSpace(params.StakeToken)),
		RewardToken:         strings.ToUpper(strings.TrimSpace(params.RewardToken)),
		StartTime:           params.StartTime,
		EndTime:             params.EndTime,
		RewardRate:          cloneBigInt(params.RewardRate),
		RewardBudget:        budget,
		LockPolicy:          policyName,
		Owner:               params.Owner,
		Vault:               crypto.ModuleAddress("farm/" + id),
		TotalStaked:         big.NewInt(0),
		RewardPerUnitStored: big.NewInt(0),
		LastUpdateTime:      params.StartTime,
	}
	if err := e.state.FarmPut(farm); err != nil {
		return nil, err
	}
	list, err := e.state.FarmListGet()
	if err != nil {
		return nil, err
	}
	if err := e.state.FarmListPut(append(list, id)); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.FarmCreated{
		FarmID:       id,
		StakeToken:   farm.StakeToken,
		RewardToken:  farm.RewardToken,
		StartTime:    farm.StartTime,
		EndTime:      farm.EndTime,
		RewardRate:   cloneBigInt(farm.RewardRate),
		RewardBudget: cloneBigInt(farm.RewardBudget),
		LockPolicy:   policyName,
		Owner:        farm.Owner,
	})
	return farm.Clone(), nil
}

// settleFarm folds elapsed time into the per-unit accumulator. Time past the
// program end never accrues; with nothing staked the clock advances without
// payout so idle stretches cannot mint retroactive rewards.
func settleFarm(farm *Farm, at uint64) {
	effectiveEnd := at
	if effectiveEnd > farm.EndTime {
		effectiveEnd = farm.EndTime
	}
	if effectiveEnd <= farm.LastUpdateTime {
		return
	}
	if farm.TotalStaked.Sign() == 0 {
		farm.LastUpdateTime = effectiveEnd
		return
	}
	elapsed := new(big.Int).SetUint64(effectiveEnd - farm.LastUpdateTime)
	accrued := new(big.Int).Mul(elapsed, farm.RewardRate)
	accrued.Mul(accrued, rewardScale)
	accrued.Quo(accrued, farm.TotalStaked)
	farm.RewardPerUnitStored = new(big.Int).Add(farm.RewardPerUnitStored, accrued)
	farm.LastUpdateTime = effectiveEnd
}

// settlePosition folds accumulator growth since the last settlement into the
// position's pending reward.
func settlePosition(farm *Farm, pos *Position) {
	owed := new(big.Int).Sub(farm.RewardPerUnitStored, pos.RewardPerUnitPaid)
	if owed.Sign() > 0 && pos.StakedAmount.Sign() > 0 {
		owed.Mul(owed, pos.StakedAmount)
		owed.Quo(owed, rewardScale)
		pos.PendingReward = new(big.Int).Add(pos.PendingReward, owed)
	}
	pos.RewardPerUnitPaid = cloneBigInt(farm.RewardPerUnitStored)
}

func (e *Engine) loadFarm(id string) (*Farm, error) {
	canonical, err := sanitizeID(id)
	if err != nil {
		return nil, err
	}
	farm, ok, err := e.state.FarmGet(canonical)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFarmNotFound, canonical)
	}
	return ensureFarm(farm), nil
}

func (e *Engine) loadPosition(id string, account [20]byte) (*Position, error) {
	pos, ok, err := e.state.FarmPositionGet(id, account)
	if err != nil {
		return nil, err
	}
	if !ok {
		pos = &Position{Account: account}
	}
	return ensurePosition(pos), nil
}

// Stake pulls amount of the stake token into the farm vault and enlarges the
// account's position. Staking outside the accrual window is permitted; it
// simply earns nothing until the window opens.
func (e *Engine) Stake(id string, account [20]byte, amount *big.Int) error {
	farm, err := e.loadFarm(id)
	if err != nil {
		return err
	}
	if account == ([20]byte{}) {
		return ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	settleFarm(farm, e.now())
	pos, err := e.loadPosition(farm.ID, account)
	if err != nil {
		return err
	}
	settlePosition(farm, pos)

	// The ledger transfer is the first mutation; if the account cannot
	// cover the stake the whole operation aborts untouched.
	if err := e.ledger.Transfer(farm.StakeToken, account, farm.Vault, amount); err != nil {
		return err
	}
	pos.StakedAmount = new(big.Int).Add(pos.StakedAmount, amount)
	farm.TotalStaked = new(big.Int).Add(farm.TotalStaked, amount)
	if err := e.state.FarmPut(farm); err != nil {
		return err
	}
	if err := e.state.FarmPositionPut(farm.ID, pos); err != nil {
		return err
	}
	e.emitter.Emit(events.FarmStaked{
		FarmID:      farm.ID,
		Account:     account,
		Amount:      cloneBigInt(amount),
		TotalStaked: cloneBigInt(farm.TotalStaked),
	})
	return nil
}

// Withdraw returns amount of staked principal to the account. The farm's
// lock policy is consulted first; when it pays out on withdraw, pending
// rewards are settled in the same operation exactly as Claim would.
func (e *Engine) Withdraw(id string, account [20]byte, amount *big.Int) error {
	farm, err := e.loadFarm(id)
	if err != nil {
		return err
	}
	if account == ([20]byte{}) {
		return ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	policy, ok := e.policies[farm.LockPolicy]
	if !ok {
		return fmt.Errorf("%w: unknown lock policy %q", ErrInvalidValue, farm.LockPolicy)
	}
	now := e.now()
	if err := policy.AllowWithdraw(farm, now); err != nil {
		return err
	}
	pos, err := e.loadPosition(farm.ID, account)
	if err != nil {
		return err
	}
	if pos.StakedAmount.Cmp(amount) < 0 {
		return fmt.Errorf("%w: exceeds staked balance", ErrInvalidAmount)
	}

	settleFarm(farm, now)
	settlePosition(farm, pos)

	payout := big.NewInt(0)
	if policy.PayoutOnWithdraw() && pos.PendingReward.Sign() > 0 {
		payout = cloneBigInt(pos.PendingReward)
		required := cloneBigInt(payout)
		if farm.RewardToken == farm.StakeToken {
			required.Add(required, amount)
		}
		available, err := e.ledger.BalanceOf(farm.RewardToken, farm.Vault)
		if err != nil {
			return err
		}
		if available.Cmp(required) < 0 {
			return fmt.Errorf("%w: reward payout", ErrInsufficientBalance)
		}
	}

	if err := e.ledger.Transfer(farm.StakeToken, farm.Vault, account, amount); err != nil {
		return err
	}
	pos.StakedAmount = new(big.Int).Sub(pos.StakedAmount, amount)
	farm.TotalStaked = new(big.Int).Sub(farm.TotalStaked, amount)
	if payout.Sign() > 0 {
		if err := e.ledger.Transfer(farm.RewardToken, farm.Vault, account, payout); err != nil {
			return err
		}
		pos.PendingReward = big.NewInt(0)
		pos.ClaimedTotal = new(big.Int).Add(pos.ClaimedTotal, payout)
	}
	if err := e.state.FarmPut(farm); err != nil {
		return err
	}
	if err := e.state.FarmPositionPut(farm.ID, pos); err != nil {
		return err
	}
	e.emitter.Emit(events.FarmWithdrawn{
		FarmID:      farm.ID,
		Account:     account,
		Amount:      cloneBigInt(amount),
		RewardPaid:  cloneBigInt(payout),
		TotalStaked: cloneBigInt(farm.TotalStaked),
	})
	if payout.Sign() > 0 {
		e.emitter.Emit(events.FarmClaimed{
			FarmID:       farm.ID,
			Account:      account,
			Amount:       cloneBigInt(payout),
			ClaimedTotal: cloneBigInt(pos.ClaimedTotal),
		})
	}
	return nil
}

// Claim pays out the account's settled pending reward. A zero pending reward
// is a successful no-op: nothing moves and no event fires.
func (e *Engine) Claim(id string, account [20]byte) (*big.Int, error) {
	farm, err := e.loadFarm(id)
	if err != nil {
		return nil, err
	}
	if account == ([20]byte{}) {
		return nil, ErrInvalidAddress
	}
	pos, ok, err := e.state.FarmPositionGet(farm.ID, account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	pos = ensurePosition(pos)

	settleFarm(farm, e.now())
	settlePosition(farm, pos)

	payout := cloneBigInt(pos.PendingReward)
	if payout.Sign() == 0 {
		if err := e.state.FarmPut(farm); err != nil {
			return nil, err
		}
		if err := e.state.FarmPositionPut(farm.ID, pos); err != nil {
			return nil, err
		}
		return big.NewInt(0), nil
	}

	// The transfer is the first mutation: a drained reward vault fails the
	// claim outright and the pending balance stays intact.
	if err := e.ledger.Transfer(farm.RewardToken, farm.Vault, account, payout); err != nil {
		return nil, err
	}
	pos.PendingReward = big.NewInt(0)
	pos.ClaimedTotal = new(big.Int).Add(pos.ClaimedTotal, payout)
	if err := e.state.FarmPut(farm); err != nil {
		return nil, err
	}
	if err := e.state.FarmPositionPut(farm.ID, pos); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.FarmClaimed{
		FarmID:       farm.ID,
		Account:      account,
		Amount:       cloneBigInt(payout),
		ClaimedTotal: cloneBigInt(pos.ClaimedTotal),
	})
	return payout, nil
}

// WithdrawExcess lets the program owner sweep vault funds that are not
// staked principal. The stake token is capped to the unstaked surplus; any
// other token, the reward budget included, moves without restriction.
func (e *Engine) WithdrawExcess(id string, caller [20]byte, symbol string, amount *big.Int, to [20]byte) error {
	farm, err := e.loadFarm(id)
	if err != nil {
		return err
	}
	if caller != farm.Owner {
		return ErrUnauthorized
	}
	if to == ([20]byte{}) {
		return fmt.Errorf("%w: recipient required", ErrInvalidAddress)
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	canonical := strings.ToUpper(strings.TrimSpace(symbol))
	if canonical == farm.StakeToken {
		balance, err := e.ledger.BalanceOf(canonical, farm.Vault)
		if err != nil {
			return err
		}
		free := new(big.Int).Sub(balance, farm.TotalStaked)
		if free.Cmp(amount) < 0 {
			return fmt.Errorf("%w: sweep limited to unstaked balance", ErrInsufficientBalance)
		}
	}
	if err := e.ledger.Transfer(canonical, farm.Vault, to, amount); err != nil {
		return err
	}
	e.emitter.Emit(events.FarmExcessWithdrawn{
		FarmID:    farm.ID,
		Caller:    caller,
		Token:     canonical,
		Amount:    cloneBigInt(amount),
		Recipient: to,
	})
	return nil
}

// PendingRewards reports what an immediate Claim would pay without mutating
// any state.
func (e *Engine) PendingRewards(id string, account [20]byte) (*big.Int, error) {
	farm, err := e.loadFarm(id)
	if err != nil {
		return nil, err
	}
	pos, ok, err := e.state.FarmPositionGet(farm.ID, account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	pos = ensurePosition(pos)

	projected := farm.Clone()
	settleFarm(projected, e.now())
	owed := new(big.Int).Sub(projected.RewardPerUnitStored, pos.RewardPerUnitPaid)
	if owed.Sign() > 0 && pos.StakedAmount.Sign() > 0 {
		owed.Mul(owed, pos.StakedAmount)
		owed.Quo(owed, rewardScale)
	} else {
		owed = big.NewInt(0)
	}
	return new(big.Int).Add(pos.PendingReward, owed), nil
}

// GetFarm returns a copy of the farm record.
func (e *Engine) GetFarm(id string) (*Farm, error) {
	farm, err := e.loadFarm(id)
	if err != nil {
		return nil, err
	}
	return farm.Clone(), nil
}

// List returns the registered farm IDs in creation order.
func (e *Engine) List() ([]string, error) {
	return e.state.FarmListGet()
}

// PositionOf returns a copy of the account's position. Accounts that never
// staked report an empty position rather than an error.
func (e *Engine) PositionOf(id string, account [20]byte) (*Position, error) {
	farm, err := e.loadFarm(id)
	if err != nil {
		return nil, err
	}
	pos, ok, err := e.state.FarmPositionGet(farm.ID, account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return ensurePosition(&Position{Account: account}), nil
	}
	return ensurePosition(pos).Clone(), nil
}

// TotalStaked returns the farm-wide staked principal.
func (e *Engine) TotalStaked(id string) (*big.Int, error) {
	farm, err := e.loadFarm(id)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(farm.TotalStaked), nil
}
