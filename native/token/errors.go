package token

import "errors"

var (
	// ErrInvalidSymbol indicates an empty or malformed token symbol.
	ErrInvalidSymbol = errors.New("token: invalid symbol")
	// ErrInvalidName indicates an empty display name after normalisation.
	ErrInvalidName = errors.New("token: invalid name")
	// ErrInvalidAddress indicates a zero address where a real one is required.
	ErrInvalidAddress = errors.New("token: invalid address")
	// ErrInvalidAmount indicates a nil, zero, or negative amount.
	ErrInvalidAmount = errors.New("token: amount must be positive")
	// ErrTokenExists indicates a registration attempt for a known symbol.
	ErrTokenExists = errors.New("token: already registered")
	// ErrTokenNotFound indicates an operation against an unknown symbol.
	ErrTokenNotFound = errors.New("token: not registered")
	// ErrInsufficientBalance indicates a debit larger than the account holds.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	// ErrInsufficientAllowance indicates a TransferFrom beyond the approval.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	// ErrNotAuthority indicates a mint attempt by anyone but the authority.
	ErrNotAuthority = errors.New("token: caller is not the mint authority")
)
