package farm

const (
	// PolicyFlexible names the default policy: exit any time, rewards paid
	// alongside the principal.
	PolicyFlexible = "flexible"
	// PolicyHodl names the locked policy: principal stays until the program
	// ends and withdrawals never settle rewards implicitly.
	PolicyHodl = "hodl"
)

// WithdrawPolicy decides whether principal may leave a farm and whether a
// withdrawal pays out pending rewards in the same operation. Farm variants
// differ only by the policy a program names; the engine itself never
// branches on farm kind.
type WithdrawPolicy interface {
	Name() string
	AllowWithdraw(farm *Farm, now uint64) error
	PayoutOnWithdraw() bool
}

// FlexiblePolicy permits withdrawal at any time and settles pending rewards
// together with the principal.
type FlexiblePolicy struct{}

// Name identifies the policy in program parameters.
func (FlexiblePolicy) Name() string { return PolicyFlexible }

// AllowWithdraw always permits the withdrawal.
func (FlexiblePolicy) AllowWithdraw(*Farm, uint64) error { return nil }

// PayoutOnWithdraw reports that withdrawals settle rewards implicitly.
func (FlexiblePolicy) PayoutOnWithdraw() bool { return true }

// HodlPolicy locks principal until the program end time. Rewards keep
// accruing while locked and stay pending until claimed explicitly.
type HodlPolicy struct{}

// Name identifies the policy in program parameters.
func (HodlPolicy) Name() string { return PolicyHodl }

// AllowWithdraw rejects withdrawals before the program end.
func (HodlPolicy) AllowWithdraw(farm *Farm, now uint64) error {
	if now < farm.EndTime {
		return ErrStakeLocked
	}
	return nil
}

// PayoutOnWithdraw reports that rewards require an explicit claim.
func (HodlPolicy) PayoutOnWithdraw() bool { return false }
