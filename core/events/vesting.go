package events

import (
	"math/big"

	"granary/core/types"
	"granary/crypto"
)

const (
	// TypeVestingGrantCreated marks a new vesting grant being funded.
	TypeVestingGrantCreated = "vesting.grant.created"
	// TypeVestingClaimed is emitted when a grantee collects vested tokens.
	TypeVestingClaimed = "vesting.claimed"
	// TypeVestingGrantCanceled marks an owner revoking an active grant.
	TypeVestingGrantCanceled = "vesting.grant.canceled"
	// TypeVestingExcessWithdrawn marks the owner sweeping unobligated
	// vault funds.
	TypeVestingExcessWithdrawn = "vesting.excess_withdrawn"
)

// VestingGrantCreated captures the parameters of a freshly funded grant.
type VestingGrantCreated struct {
	Grantee [20]byte
	Token   string
	Amount  *big.Int
	Start   uint64
	Cliff   uint64
	End     uint64
}

// EventType satisfies the Event interface.
func (VestingGrantCreated) EventType() string { return TypeVestingGrantCreated }

// Event converts the structured payload into a broadcastable event.
func (e VestingGrantCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeVestingGrantCreated,
		Attributes: map[string]string{
			"grantee": crypto.NewAddress(crypto.GNRPrefix, e.Grantee[:]).String(),
			"token":   e.Token,
			"amount":  formatAmount(e.Amount),
			"start":   uintToString(e.Start),
			"cliff":   uintToString(e.Cliff),
			"end":     uintToString(e.End),
		},
	}
}

// VestingClaimed captures vested tokens being paid out to the grantee.
type VestingClaimed struct {
	Grantee [20]byte
	Token   string
	Amount  *big.Int
	Claimed *big.Int
}

// EventType satisfies the Event interface.
func (VestingClaimed) EventType() string { return TypeVestingClaimed }

// Event converts the structured payload into a broadcastable event.
func (e VestingClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeVestingClaimed,
		Attributes: map[string]string{
			"grantee": crypto.NewAddress(crypto.GNRPrefix, e.Grantee[:]).String(),
			"token":   e.Token,
			"amount":  formatAmount(e.Amount),
			"claimed": formatAmount(e.Claimed),
		},
	}
}

// VestingGrantCanceled records a revoked grant. The unclaimed remainder is
// forfeited to the vault rather than paid out.
type VestingGrantCanceled struct {
	Grantee   [20]byte
	Token     string
	Forfeited *big.Int
}

// EventType satisfies the Event interface.
func (VestingGrantCanceled) EventType() string { return TypeVestingGrantCanceled }

// Event converts the structured payload into a broadcastable event.
func (e VestingGrantCanceled) Event() *types.Event {
	return &types.Event{
		Type: TypeVestingGrantCanceled,
		Attributes: map[string]string{
			"grantee":   crypto.NewAddress(crypto.GNRPrefix, e.Grantee[:]).String(),
			"token":     e.Token,
			"forfeited": formatAmount(e.Forfeited),
		},
	}
}

// VestingExcessWithdrawn records the owner sweeping vault funds above the
// outstanding grant obligations for a token.
type VestingExcessWithdrawn struct {
	Caller    [20]byte
	Token     string
	Amount    *big.Int
	Recipient [20]byte
}

// EventType satisfies the Event interface.
func (VestingExcessWithdrawn) EventType() string { return TypeVestingExcessWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e VestingExcessWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeVestingExcessWithdrawn,
		Attributes: map[string]string{
			"caller": crypto.NewAddress(crypto.GNRPrefix, e.Caller[:]).String(),
			"token":  e.Token,
			"amount": formatAmount(e.Amount),
			"to":     crypto.NewAddress(crypto.GNRPrefix, e.Recipient[:]).String(),
		},
	}
}
