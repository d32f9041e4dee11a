package events

import (
	"math/big"

	"granary/core/types"
	"granary/crypto"
)

const (
	// TypeFarmCreated marks the registration of a new reward program.
	TypeFarmCreated = "farm.created"
	// TypeFarmStaked captures principal entering a farm vault.
	TypeFarmStaked = "farm.staked"
	// TypeFarmWithdrawn captures principal leaving a farm vault.
	TypeFarmWithdrawn = "farm.withdrawn"
	// TypeFarmClaimed is emitted when accrued rewards are paid out. Zero-value
	// claims emit nothing.
	TypeFarmClaimed = "farm.claimed"
	// TypeFarmExcessWithdrawn records an owner sweep of surplus vault funds.
	TypeFarmExcessWithdrawn = "farm.excess_withdrawn"
)

// FarmCreated captures the immutable parameters of a newly created program.
type FarmCreated struct {
	FarmID       string
	StakeToken   string
	RewardToken  string
	StartTime    uint64
	EndTime      uint64
	RewardRate   *big.Int
	RewardBudget *big.Int
	LockPolicy   string
	Owner        [20]byte
}

// EventType satisfies the Event interface.
func (FarmCreated) EventType() string { return TypeFarmCreated }

// Event converts the structured payload into a broadcastable event.
func (e FarmCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeFarmCreated,
		Attributes: map[string]string{
			"farm":        e.FarmID,
			"stakeToken":  e.StakeToken,
			"rewardToken": e.RewardToken,
			"start":       uintToString(e.StartTime),
			"end":         uintToString(e.EndTime),
			"rewardRate":  formatAmount(e.RewardRate),
			"budget":      formatAmount(e.RewardBudget),
			"lockPolicy":  e.LockPolicy,
			"owner":       crypto.NewAddress(crypto.GNRPrefix, e.Owner[:]).String(),
		},
	}
}

// FarmStaked captures a stake deposit and the resulting pool total.
type FarmStaked struct {
	FarmID      string
	Account     [20]byte
	Amount      *big.Int
	TotalStaked *big.Int
}

// EventType satisfies the Event interface.
func (FarmStaked) EventType() string { return TypeFarmStaked }

// Event converts the structured payload into a broadcastable event.
func (e FarmStaked) Event() *types.Event {
	return &types.Event{
		Type: TypeFarmStaked,
		Attributes: map[string]string{
			"farm":        e.FarmID,
			"addr":        crypto.NewAddress(crypto.GNRPrefix, e.Account[:]).String(),
			"amount":      formatAmount(e.Amount),
			"totalStaked": formatAmount(e.TotalStaked),
		},
	}
}

// FarmWithdrawn captures a principal withdrawal. RewardPaid is zero when the
// program's lock policy defers reward payout to an explicit claim.
type FarmWithdrawn struct {
	FarmID      string
	Account     [20]byte
	Amount      *big.Int
	RewardPaid  *big.Int
	TotalStaked *big.Int
}

// EventType satisfies the Event interface.
func (FarmWithdrawn) EventType() string { return TypeFarmWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e FarmWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeFarmWithdrawn,
		Attributes: map[string]string{
			"farm":        e.FarmID,
			"addr":        crypto.NewAddress(crypto.GNRPrefix, e.Account[:]).String(),
			"amount":      formatAmount(e.Amount),
			"rewardPaid":  formatAmount(e.RewardPaid),
			"totalStaked": formatAmount(e.TotalStaked),
		},
	}
}

// FarmClaimed captures a reward payout and the account's lifetime total.
type FarmClaimed struct {
	FarmID       string
	Account      [20]byte
	Amount       *big.Int
	ClaimedTotal *big.Int
}

// EventType satisfies the Event interface.
func (FarmClaimed) EventType() string { return TypeFarmClaimed }

// Event converts the structured payload into a broadcastable event.
func (e FarmClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeFarmClaimed,
		Attributes: map[string]string{
			"farm":         e.FarmID,
			"addr":         crypto.NewAddress(crypto.GNRPrefix, e.Account[:]).String(),
			"amount":       formatAmount(e.Amount),
			"claimedTotal": formatAmount(e.ClaimedTotal),
		},
	}
}

// FarmExcessWithdrawn records an owner sweeping tokens that are not staked
// principal out of a farm vault.
type FarmExcessWithdrawn struct {
	FarmID    string
	Caller    [20]byte
	Token     string
	Amount    *big.Int
	Recipient [20]byte
}

// EventType satisfies the Event interface.
func (FarmExcessWithdrawn) EventType() string { return TypeFarmExcessWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e FarmExcessWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeFarmExcessWithdrawn,
		Attributes: map[string]string{
			"farm":   e.FarmID,
			"caller": crypto.NewAddress(crypto.GNRPrefix, e.Caller[:]).String(),
			"token":  e.Token,
			"amount": formatAmount(e.Amount),
			"to":     crypto.NewAddress(crypto.GNRPrefix, e.Recipient[:]).String(),
		},
	}
}
