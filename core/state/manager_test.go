package state

import (
	"math/big"
	"testing"

	"granary/native/farm"
	"granary/native/token"
	"granary/native/vesting"
	"granary/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { db.Close() })
	return NewManager(db)
}

func testAddr(last byte) [20]byte {
	var a [20]byte
	a[19] = last
	return a
}

func TestTokenRoundTrip(t *testing.T) {
	mgr := newTestManager(t)

	if _, ok, err := mgr.TokenGet("SEED"); err != nil || ok {
		t.Fatalf("expected absent token, got ok=%v err=%v", ok, err)
	}
	record := &token.Token{Symbol: "SEED", Name: "Seed Grain", Decimals: 6, MintAuthority: testAddr(0xEE)}
	if err := mgr.TokenPut(record); err != nil {
		t.Fatalf("put token: %v", err)
	}
	loaded, ok, err := mgr.TokenGet("SEED")
	if err != nil || !ok {
		t.Fatalf("get token: ok=%v err=%v", ok, err)
	}
	if loaded.Symbol != "SEED" || loaded.Name != "Seed Grain" || loaded.Decimals != 6 || loaded.MintAuthority != testAddr(0xEE) {
		t.Fatalf("token mangled in storage: %+v", loaded)
	}

	list, err := mgr.TokenListGet()
	if err != nil {
		t.Fatalf("empty list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %v", list)
	}
	if err := mgr.TokenListPut([]string{"SEED", "GRAIN"}); err != nil {
		t.Fatalf("put list: %v", err)
	}
	list, err = mgr.TokenListGet()
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	if len(list) != 2 || list[0] != "SEED" || list[1] != "GRAIN" {
		t.Fatalf("list mangled: %v", list)
	}
}

func TestBalancesReadZeroWhenAbsent(t *testing.T) {
	mgr := newTestManager(t)
	holder := testAddr(0x01)
	spender := testAddr(0x02)

	balance, err := mgr.TokenBalanceGet("SEED", holder)
	if err != nil {
		t.Fatalf("absent balance: %v", err)
	}
	if balance == nil || balance.Sign() != 0 {
		t.Fatalf("absent balance must read as zero, got %v", balance)
	}

	if err := mgr.TokenBalancePut("SEED", holder, big.NewInt(12345)); err != nil {
		t.Fatalf("put balance: %v", err)
	}
	balance, err = mgr.TokenBalanceGet("SEED", holder)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Cmp(big.NewInt(12345)) != 0 {
		t.Fatalf("balance mangled: %s", balance)
	}
	// The same address under another symbol is untouched.
	other, err := mgr.TokenBalanceGet("GRAIN", holder)
	if err != nil || other.Sign() != 0 {
		t.Fatalf("cross-symbol leak: %v %v", other, err)
	}

	if err := mgr.TokenAllowancePut("SEED", holder, spender, big.NewInt(77)); err != nil {
		t.Fatalf("put allowance: %v", err)
	}
	allowance, err := mgr.TokenAllowanceGet("SEED", holder, spender)
	if err != nil || allowance.Cmp(big.NewInt(77)) != 0 {
		t.Fatalf("allowance roundtrip: %v %v", allowance, err)
	}
	// Allowance keys are directional.
	reverse, err := mgr.TokenAllowanceGet("SEED", spender, holder)
	if err != nil || reverse.Sign() != 0 {
		t.Fatalf("allowance direction leak: %v %v", reverse, err)
	}

	if err := mgr.TokenSupplyPut("SEED", big.NewInt(1_000_000)); err != nil {
		t.Fatalf("put supply: %v", err)
	}
	supply, err := mgr.TokenSupplyGet("SEED")
	if err != nil || supply.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("supply roundtrip: %v %v", supply, err)
	}
}

func TestFarmRoundTripDetachesCopies(t *testing.T) {
	mgr := newTestManager(t)

	record := &farm.Farm{
		ID:                  "harvest",
		StakeToken:          "SEED",
		RewardToken:         "GRAIN",
		StartTime:           1_000_000,
		EndTime:             3_592_000,
		RewardRate:          big.NewInt(1000),
		RewardBudget:        big.NewInt(2_592_000_000),
		LockPolicy:          "flexible",
		Owner:               testAddr(0xEE),
		Vault:               testAddr(0xAA),
		TotalStaked:         big.NewInt(500),
		RewardPerUnitStored: big.NewInt(42),
		LastUpdateTime:      1_000_000,
	}
	if err := mgr.FarmPut(record); err != nil {
		t.Fatalf("put farm: %v", err)
	}

	loaded, ok, err := mgr.FarmGet("harvest")
	if err != nil || !ok {
		t.Fatalf("get farm: ok=%v err=%v", ok, err)
	}
	if loaded.RewardBudget.Cmp(record.RewardBudget) != 0 || loaded.LockPolicy != "flexible" || loaded.Vault != testAddr(0xAA) {
		t.Fatalf("farm mangled in storage: %+v", loaded)
	}

	// Mutating a loaded copy must not reach stored state.
	loaded.TotalStaked.SetInt64(999_999)
	reloaded, _, err := mgr.FarmGet("harvest")
	if err != nil {
		t.Fatalf("reload farm: %v", err)
	}
	if reloaded.TotalStaked.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("stored farm mutated through a copy: %s", reloaded.TotalStaked)
	}

	pos := &farm.Position{
		Account:           testAddr(0x01),
		StakedAmount:      big.NewInt(500),
		RewardPerUnitPaid: big.NewInt(42),
		PendingReward:     big.NewInt(7),
		ClaimedTotal:      big.NewInt(100),
	}
	if err := mgr.FarmPositionPut("harvest", pos); err != nil {
		t.Fatalf("put position: %v", err)
	}
	loadedPos, ok, err := mgr.FarmPositionGet("harvest", testAddr(0x01))
	if err != nil || !ok {
		t.Fatalf("get position: ok=%v err=%v", ok, err)
	}
	if loadedPos.PendingReward.Cmp(big.NewInt(7)) != 0 || loadedPos.Account != testAddr(0x01) {
		t.Fatalf("position mangled: %+v", loadedPos)
	}
	if _, ok, _ := mgr.FarmPositionGet("harvest", testAddr(0x02)); ok {
		t.Fatal("position leaked across accounts")
	}
	if _, ok, _ := mgr.FarmPositionGet("other", testAddr(0x01)); ok {
		t.Fatal("position leaked across farms")
	}

	if err := mgr.FarmListPut([]string{"harvest"}); err != nil {
		t.Fatalf("put farm list: %v", err)
	}
	ids, err := mgr.FarmListGet()
	if err != nil || len(ids) != 1 || ids[0] != "harvest" {
		t.Fatalf("farm list roundtrip: %v %v", ids, err)
	}
}

func TestVestingGrantLifecycle(t *testing.T) {
	mgr := newTestManager(t)
	grantee := testAddr(0x01)

	if _, ok, err := mgr.VestingGrantGet(grantee); err != nil || ok {
		t.Fatalf("expected absent grant, got ok=%v err=%v", ok, err)
	}
	grant := &vesting.Grant{
		Grantee: grantee,
		Token:   "GRAIN",
		Amount:  big.NewInt(1000),
		Start:   1_000_000,
		Cliff:   1_000_000 + 30*86400,
		End:     1_000_000 + 365*86400,
		Claimed: big.NewInt(493),
	}
	if err := mgr.VestingGrantPut(grant); err != nil {
		t.Fatalf("put grant: %v", err)
	}
	loaded, ok, err := mgr.VestingGrantGet(grantee)
	if err != nil || !ok {
		t.Fatalf("get grant: ok=%v err=%v", ok, err)
	}
	if loaded.Claimed.Cmp(big.NewInt(493)) != 0 || loaded.Cliff != grant.Cliff || loaded.Token != "GRAIN" {
		t.Fatalf("grant mangled in storage: %+v", loaded)
	}

	if err := mgr.VestingGrantDelete(grantee); err != nil {
		t.Fatalf("delete grant: %v", err)
	}
	if _, ok, _ := mgr.VestingGrantGet(grantee); ok {
		t.Fatal("grant survived deletion")
	}

	grantees, err := mgr.VestingGranteesGet()
	if err != nil || len(grantees) != 0 {
		t.Fatalf("expected no grantees, got %v %v", grantees, err)
	}
	if err := mgr.VestingGranteesPut([][20]byte{testAddr(0x01), testAddr(0x02)}); err != nil {
		t.Fatalf("put grantees: %v", err)
	}
	grantees, err = mgr.VestingGranteesGet()
	if err != nil || len(grantees) != 2 || grantees[1] != testAddr(0x02) {
		t.Fatalf("grantee list roundtrip: %v %v", grantees, err)
	}

	total, err := mgr.VestingTotalGet()
	if err != nil || total == nil || total.Sign() != 0 {
		t.Fatalf("absent total must read as zero: %v %v", total, err)
	}
	if err := mgr.VestingTotalPut(big.NewInt(507)); err != nil {
		t.Fatalf("put total: %v", err)
	}
	total, err = mgr.VestingTotalGet()
	if err != nil || total.Cmp(big.NewInt(507)) != 0 {
		t.Fatalf("total roundtrip: %v %v", total, err)
	}
}
