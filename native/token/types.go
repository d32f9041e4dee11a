package token

// Token describes a fungible asset tracked by the ledger. The symbol is the
// canonical identifier; every balance, allowance, and supply record hangs off
// it.
type Token struct {
	Symbol        string
	Name          string
	Decimals      uint8
	MintAuthority [20]byte
}

// Clone returns a deep copy so callers cannot mutate registry state.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}
