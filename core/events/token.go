package events

import (
	"math/big"

	"granary/core/types"
	"granary/crypto"
)

const (
	// TypeTokenRegistered marks a new token entering the ledger registry.
	TypeTokenRegistered = "token.registered"
	// TypeTokenMinted captures supply created by the token authority.
	TypeTokenMinted = "token.minted"
	// TypeTokenTransferred captures a balance movement between accounts.
	TypeTokenTransferred = "token.transferred"
)

// TokenRegistered captures ledger registry metadata for a new token.
type TokenRegistered struct {
	Symbol   string
	Name     string
	Decimals uint8
}

// EventType satisfies the Event interface.
func (TokenRegistered) EventType() string { return TypeTokenRegistered }

// Event converts the structured payload into a broadcastable event.
func (e TokenRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenRegistered,
		Attributes: map[string]string{
			"symbol":   e.Symbol,
			"name":     e.Name,
			"decimals": intToString(int64(e.Decimals)),
		},
	}
}

// TokenMinted captures new supply credited to an account.
type TokenMinted struct {
	Symbol string
	To     [20]byte
	Amount *big.Int
	Supply *big.Int
}

// EventType satisfies the Event interface.
func (TokenMinted) EventType() string { return TypeTokenMinted }

// Event converts the structured payload into a broadcastable event.
func (e TokenMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenMinted,
		Attributes: map[string]string{
			"symbol": e.Symbol,
			"to":     crypto.NewAddress(crypto.GNRPrefix, e.To[:]).String(),
			"amount": formatAmount(e.Amount),
			"supply": formatAmount(e.Supply),
		},
	}
}

// TokenTransferred captures a ledger balance movement.
type TokenTransferred struct {
	Symbol string
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (TokenTransferred) EventType() string { return TypeTokenTransferred }

// Event converts the structured payload into a broadcastable event.
func (e TokenTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenTransferred,
		Attributes: map[string]string{
			"symbol": e.Symbol,
			"from":   crypto.NewAddress(crypto.GNRPrefix, e.From[:]).String(),
			"to":     crypto.NewAddress(crypto.GNRPrefix, e.To[:]).String(),
			"amount": formatAmount(e.Amount),
		},
	}
}
