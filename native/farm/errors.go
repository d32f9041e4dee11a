package farm

import "errors"

var (
	// ErrInvalidID indicates an empty or malformed farm identifier.
	ErrInvalidID = errors.New("farm: invalid farm id")
	// ErrInvalidAddress indicates a zero address where a real one is required.
	ErrInvalidAddress = errors.New("farm: invalid address")
	// ErrInvalidAmount indicates a nil, zero, negative, or out-of-range amount.
	ErrInvalidAmount = errors.New("farm: invalid amount")
	// ErrInvalidDuration indicates program times that do not satisfy
	// start < end with the end in the future at creation.
	ErrInvalidDuration = errors.New("farm: invalid program duration")
	// ErrInvalidValue indicates a malformed program parameter such as a
	// non-positive reward rate or an unknown lock policy.
	ErrInvalidValue = errors.New("farm: invalid program value")
	// ErrFarmExists indicates a create attempt for an ID already in use.
	ErrFarmExists = errors.New("farm: program already exists")
	// ErrFarmNotFound indicates an operation against an unknown farm ID.
	ErrFarmNotFound = errors.New("farm: program not found")
	// ErrStakeLocked indicates a withdrawal blocked by the farm's lock policy.
	ErrStakeLocked = errors.New("farm: stake locked until program end")
	// ErrUnauthorized indicates a restricted call from anyone but the owner.
	ErrUnauthorized = errors.New("farm: caller is not the owner")
	// ErrInsufficientBalance indicates the vault cannot cover a payout.
	ErrInsufficientBalance = errors.New("farm: insufficient vault balance")
)
