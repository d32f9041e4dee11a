package core

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"granary/core/events"
	gstate "granary/core/state"
	"granary/core/types"
	"granary/crypto"
	"granary/native/farm"
	"granary/native/token"
	"granary/native/vesting"
	"granary/observability"
	"granary/observability/metrics"
	"granary/storage"
)

// eventTailLimit bounds the in-memory event history served over RPC.
const eventTailLimit = 1024

// StoredEvent is an emitted event captured in the node's bounded tail.
type StoredEvent struct {
	Sequence  uint64       `json:"sequence"`
	Timestamp uint64       `json:"timestamp"`
	Event     *types.Event `json:"event"`
}

// Node is the central controller, wiring the engines, their shared state,
// and the event tail together. Every mutating operation is serialised
// through a single mutex so engine calls stay atomic with respect to each
// other.
type Node struct {
	db      storage.Database
	manager *gstate.Manager
	tokens  *token.Engine
	farms   *farm.Engine
	vesting *vesting.Engine

	operator         [20]byte
	nowFn            func() uint64
	logger           *slog.Logger
	farmTelemetry    *metrics.FarmMetrics
	vestingTelemetry *metrics.VestingMetrics

	mu       sync.Mutex
	events   []StoredEvent
	eventSeq uint64
}

// NewNode wires the engines over the provided database. The operator key's
// address administers genesis minting and the vesting schedule.
func NewNode(db storage.Database, key *crypto.PrivateKey) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	if key == nil {
		return nil, fmt.Errorf("core: operator key required")
	}
	var operator [20]byte
	copy(operator[:], key.PubKey().Address().Bytes())

	n := &Node{
		db:               db,
		manager:          gstate.NewManager(db),
		operator:         operator,
		nowFn:            func() uint64 { return uint64(time.Now().Unix()) },
		logger:           slog.Default(),
		farmTelemetry:    metrics.Farm(),
		vestingTelemetry: metrics.Vesting(),
	}

	tokens := token.NewEngine()
	tokens.SetState(n.manager)
	tokens.SetEmitter(nodeEmitter{node: n})

	farms := farm.NewEngine()
	farms.SetState(n.manager)
	farms.SetLedger(tokens)
	farms.SetEmitter(nodeEmitter{node: n})
	farms.SetNowFunc(n.now)

	vest := vesting.NewEngine()
	vest.SetState(n.manager)
	vest.SetLedger(tokens)
	vest.SetEmitter(nodeEmitter{node: n})
	vest.SetNowFunc(n.now)
	vest.SetOwner(operator)

	n.tokens = tokens
	n.farms = farms
	n.vesting = vest
	return n, nil
}

// SetLogger replaces the node's logger.
func (n *Node) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	n.logger = logger
}

// SetNowFunc overrides the shared time source for deterministic testing.
func (n *Node) SetNowFunc(now func() uint64) {
	if now == nil {
		n.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	n.nowFn = now
}

// Operator returns the address administering genesis and vesting.
func (n *Node) Operator() [20]byte { return n.operator }

func (n *Node) now() uint64 { return n.nowFn() }

// nodeEmitter feeds engine events into the node's tail and telemetry.
type nodeEmitter struct {
	node *Node
}

func (e nodeEmitter) Emit(evt events.Event) {
	if e.node == nil || evt == nil {
		return
	}
	e.node.recordTelemetry(evt)
	if provider, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := provider.Event(); payload != nil {
			e.node.appendEvent(payload)
		}
		return
	}
	e.node.appendEvent(&types.Event{Type: evt.EventType(), Attributes: map[string]string{}})
}

// appendEvent records an event in the bounded tail. Callers hold the node
// mutex: engines only emit from inside locked operations.
func (n *Node) appendEvent(payload *types.Event) {
	n.eventSeq++
	n.events = append(n.events, StoredEvent{
		Sequence:  n.eventSeq,
		Timestamp: n.now(),
		Event:     payload.Copy(),
	})
	if len(n.events) > eventTailLimit {
		n.events = n.events[len(n.events)-eventTailLimit:]
	}
	observability.Events().RecordEvent(payload.Type)
	n.logger.Debug("event emitted", "type", payload.Type, "sequence", n.eventSeq)
}

func (n *Node) recordTelemetry(evt events.Event) {
	switch ev := evt.(type) {
	case events.FarmCreated:
		n.farmTelemetry.ObserveProgramCreated()
	case events.FarmStaked:
		n.farmTelemetry.SetTotalStaked(ev.FarmID, ev.TotalStaked)
	case events.FarmWithdrawn:
		n.farmTelemetry.SetTotalStaked(ev.FarmID, ev.TotalStaked)
	case events.FarmClaimed:
		n.farmTelemetry.RecordRewardPaid(ev.FarmID, ev.Amount)
	case events.VestingGrantCreated:
		n.vestingTelemetry.ObserveGrant("created")
	case events.VestingClaimed:
		n.vestingTelemetry.ObserveClaim()
	case events.VestingGrantCanceled:
		n.vestingTelemetry.ObserveGrant("canceled")
	}
}

// Events returns up to limit stored events with sequence numbers greater
// than after, oldest first.
func (n *Node) Events(after uint64, limit int) []StoredEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if limit <= 0 || limit > eventTailLimit {
		limit = eventTailLimit
	}
	out := make([]StoredEvent, 0, limit)
	for _, stored := range n.events {
		if stored.Sequence <= after {
			continue
		}
		out = append(out, StoredEvent{
			Sequence:  stored.Sequence,
			Timestamp: stored.Timestamp,
			Event:     stored.Event.Copy(),
		})
		if len(out) >= limit {
			break
		}
	}
	return out
}

// --- token operations ---

// RegisterToken registers a token with the operator as mint authority.
func (n *Node) RegisterToken(symbol, name string, decimals uint8) (*token.Token, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens.Register(symbol, name, decimals, n.operator)
}

// MintToken mints new supply to an account using the operator's authority.
func (n *Node) MintToken(symbol string, to [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens.Mint(n.operator, symbol, to, amount)
}

// TokenTransfer moves funds between two accounts.
func (n *Node) TokenTransfer(symbol string, from, to [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens.Transfer(symbol, from, to, amount)
}

// TokenBalance reads an account balance.
func (n *Node) TokenBalance(symbol string, addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens.BalanceOf(symbol, addr)
}

// TokenInfo returns a registered token's metadata.
func (n *Node) TokenInfo(symbol string) (*token.Token, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens.Get(symbol)
}

// Tokens lists the registered token symbols.
func (n *Node) Tokens() ([]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens.List()
}

// TokenSupply reads a token's circulating supply.
func (n *Node) TokenSupply(symbol string) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens.TotalSupply(symbol)
}

// --- farm operations ---

// CreateFarm registers a new reward program.
func (n *Node) CreateFarm(params farm.CreateParams) (*farm.Farm, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.farms.Create(params)
}

// FarmStake stakes amount of the program's stake token for account.
func (n *Node) FarmStake(id string, account [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.farms.Stake(id, account, amount)
}

// FarmWithdraw returns staked principal, honouring the program's lock policy.
func (n *Node) FarmWithdraw(id string, account [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.farms.Withdraw(id, account, amount)
}

// FarmClaim pays out the account's pending rewards.
func (n *Node) FarmClaim(id string, account [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.farms.Claim(id, account)
}

// FarmWithdrawExcess sweeps unstaked vault funds to a recipient.
func (n *Node) FarmWithdrawExcess(id string, caller [20]byte, symbol string, amount *big.Int, to [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.farms.WithdrawExcess(id, caller, symbol, amount, to)
}

// GetFarm returns a program by ID.
func (n *Node) GetFarm(id string) (*farm.Farm, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.farms.GetFarm(id)
}

// ListFarms returns all programs in creation order.
func (n *Node) ListFarms() ([]*farm.Farm, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids, err := n.farms.List()
	if err != nil {
		return nil, err
	}
	out := make([]*farm.Farm, 0, len(ids))
	for _, id := range ids {
		record, err := n.farms.GetFarm(id)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

// FarmPosition returns the account's position in a program.
func (n *Node) FarmPosition(id string, account [20]byte) (*farm.Position, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.farms.PositionOf(id, account)
}

// FarmPendingRewards reports what an immediate claim would pay.
func (n *Node) FarmPendingRewards(id string, account [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.farms.PendingRewards(id, account)
}

// FarmTotalStaked reports the program-wide staked principal.
func (n *Node) FarmTotalStaked(id string) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.farms.TotalStaked(id)
}

// --- vesting operations ---

// VestingAddGrant funds a new grant. The caller must be the operator.
func (n *Node) VestingAddGrant(caller, grantee [20]byte, symbol string, amount *big.Int, start, cliff, end uint64) (*vesting.Grant, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	grant, err := n.vesting.AddGrant(caller, grantee, symbol, amount, start, cliff, end)
	if err != nil {
		return nil, err
	}
	n.refreshVestingGauge()
	return grant, nil
}

// VestingClaim pays the grantee's vested-but-unclaimed amount.
func (n *Node) VestingClaim(grantee [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	payout, err := n.vesting.Claim(grantee)
	if err != nil {
		return nil, err
	}
	n.refreshVestingGauge()
	return payout, nil
}

// VestingCancelGrant revokes a grant, forfeiting the unclaimed remainder.
func (n *Node) VestingCancelGrant(caller, grantee [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.vesting.CancelGrant(caller, grantee); err != nil {
		return err
	}
	n.refreshVestingGauge()
	return nil
}

// VestingWithdrawExcess sweeps unobligated vesting vault funds.
func (n *Node) VestingWithdrawExcess(caller [20]byte, symbol string, amount *big.Int, to [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vesting.WithdrawExcess(caller, symbol, amount, to)
}

// VestingGrant returns the grantee's active grant.
func (n *Node) VestingGrant(grantee [20]byte) (*vesting.Grant, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vesting.GetGrant(grantee)
}

// VestingClaimable reports what the grantee could claim right now.
func (n *Node) VestingClaimable(grantee [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vesting.Claimable(grantee)
}

// VestingTotal reports the engine-wide outstanding vesting amount.
func (n *Node) VestingTotal() (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vesting.TotalVesting()
}

// VestingGrantees lists addresses holding active grants.
func (n *Node) VestingGrantees() ([][20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vesting.Grantees()
}

// refreshVestingGauge re-reads the outstanding total after a mutation.
// Callers hold the node mutex.
func (n *Node) refreshVestingGauge() {
	total, err := n.vesting.TotalVesting()
	if err != nil {
		return
	}
	n.vestingTelemetry.SetOutstanding(total)
}
