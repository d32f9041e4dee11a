package farm

import "math/big"

// rewardScale is the 1e18 fixed-point scale applied to the per-unit
// accumulator. Reward payouts divide it back out, truncating toward zero.
var rewardScale = big.NewInt(1_000_000_000_000_000_000)

// Farm couples a program's immutable parameters with its mutable accrual
// state. One record per farm ID.
type Farm struct {
	ID           string
	StakeToken   string
	RewardToken  string
	StartTime    uint64
	EndTime      uint64
	RewardRate   *big.Int
	RewardBudget *big.Int
	LockPolicy   string
	Owner        [20]byte
	Vault        [20]byte

	TotalStaked         *big.Int
	RewardPerUnitStored *big.Int
	LastUpdateTime      uint64
}

// Clone returns a deep copy so callers cannot mutate engine state through
// shared big.Int pointers.
func (f *Farm) Clone() *Farm {
	if f == nil {
		return nil
	}
	clone := *f
	clone.RewardRate = cloneBigInt(f.RewardRate)
	clone.RewardBudget = cloneBigInt(f.RewardBudget)
	clone.TotalStaked = cloneBigInt(f.TotalStaked)
	clone.RewardPerUnitStored = cloneBigInt(f.RewardPerUnitStored)
	return &clone
}

// Position tracks one account's stake and reward entitlement within a farm.
// Records outlive a full withdrawal so pending rewards and lifetime totals
// stay claimable and auditable.
type Position struct {
	Account           [20]byte
	StakedAmount      *big.Int
	RewardPerUnitPaid *big.Int
	PendingReward     *big.Int
	ClaimedTotal      *big.Int
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.StakedAmount = cloneBigInt(p.StakedAmount)
	clone.RewardPerUnitPaid = cloneBigInt(p.RewardPerUnitPaid)
	clone.PendingReward = cloneBigInt(p.PendingReward)
	clone.ClaimedTotal = cloneBigInt(p.ClaimedTotal)
	return &clone
}

func ensureFarm(f *Farm) *Farm {
	if f == nil {
		return nil
	}
	if f.RewardRate == nil {
		f.RewardRate = big.NewInt(0)
	}
	if f.RewardBudget == nil {
		f.RewardBudget = big.NewInt(0)
	}
	if f.TotalStaked == nil {
		f.TotalStaked = big.NewInt(0)
	}
	if f.RewardPerUnitStored == nil {
		f.RewardPerUnitStored = big.NewInt(0)
	}
	return f
}

func ensurePosition(p *Position) *Position {
	if p == nil {
		return nil
	}
	if p.StakedAmount == nil {
		p.StakedAmount = big.NewInt(0)
	}
	if p.RewardPerUnitPaid == nil {
		p.RewardPerUnitPaid = big.NewInt(0)
	}
	if p.PendingReward == nil {
		p.PendingReward = big.NewInt(0)
	}
	if p.ClaimedTotal == nil {
		p.ClaimedTotal = big.NewInt(0)
	}
	return p
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
