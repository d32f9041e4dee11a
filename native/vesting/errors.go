package vesting

import "errors"

var (
	// ErrInvalidAddress indicates a zero address where a real one is required.
	ErrInvalidAddress = errors.New("vesting: invalid address")
	// ErrInvalidAmount indicates a nil, zero, or negative grant amount.
	ErrInvalidAmount = errors.New("vesting: invalid amount")
	// ErrInvalidTime indicates a cliff outside the [start, end] window.
	ErrInvalidTime = errors.New("vesting: cliff must fall between start and end")
	// ErrInvalidValue indicates a malformed grant parameter such as an
	// unknown token symbol.
	ErrInvalidValue = errors.New("vesting: invalid grant value")
	// ErrGrantExists indicates the grantee already holds an active grant.
	ErrGrantExists = errors.New("vesting: grant already exists")
	// ErrGrantNotFound indicates an operation against an unknown grantee.
	ErrGrantNotFound = errors.New("vesting: grant not found")
	// ErrUnauthorized indicates a restricted call from anyone but the owner.
	ErrUnauthorized = errors.New("vesting: caller is not the owner")
	// ErrInsufficientBalance indicates the vault cannot cover a payout.
	ErrInsufficientBalance = errors.New("vesting: insufficient vault balance")
)
