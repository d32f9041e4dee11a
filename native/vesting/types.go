package vesting

import "math/big"

// Grant is a linear vesting schedule for a single grantee. Tokens unlock
// proportionally between Start and End, gated by the Cliff, and Claimed
// tracks what has already been paid out.
type Grant struct {
	Grantee [20]byte `json:"grantee"`
	Token   string   `json:"token"`
	Amount  *big.Int `json:"amount"`
	Start   uint64   `json:"start"`
	Cliff   uint64   `json:"cliff"`
	End     uint64   `json:"end"`
	Claimed *big.Int `json:"claimed"`
}

// Clone returns a deep copy of the grant.
func (g *Grant) Clone() *Grant {
	if g == nil {
		return nil
	}
	clone := *g
	clone.Amount = cloneBigInt(g.Amount)
	clone.Claimed = cloneBigInt(g.Claimed)
	return &clone
}

func ensureGrant(g *Grant) *Grant {
	if g == nil {
		g = &Grant{}
	}
	if g.Amount == nil {
		g.Amount = big.NewInt(0)
	}
	if g.Claimed == nil {
		g.Claimed = big.NewInt(0)
	}
	return g
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
