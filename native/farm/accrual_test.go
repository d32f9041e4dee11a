package farm

import (
	"math/big"
	"testing"
)

func TestSingleStakerEarnsFullStream(t *testing.T) {
	engine, _, ledger, clock, _ := newTestFarm(t, PolicyFlexible)
	staker := addr(0x01)
	ledger.setBalance("SEED", staker, 10_000_000)

	if err := engine.Stake("harvest", staker, big.NewInt(10_000_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	clock.advance(day)

	pending, err := engine.PendingRewards("harvest", staker)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	// A lone staker receives the entire stream: rate * elapsed.
	want := big.NewInt(86_400_000)
	if pending.Cmp(want) != 0 {
		t.Fatalf("expected pending %s, got %s", want, pending)
	}

	payout, err := engine.Claim("harvest", staker)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if payout.Cmp(pending) != 0 {
		t.Fatalf("claim %s diverged from pending read %s", payout, pending)
	}
	if got := ledger.balance("GRAIN", staker); got.Cmp(want) != 0 {
		t.Fatalf("ledger payout %s, want %s", got, want)
	}
}

func TestEqualStakersSplitFromJoinInstant(t *testing.T) {
	engine, _, ledger, clock, _ := newTestFarm(t, PolicyFlexible)
	first := addr(0x01)
	second := addr(0x02)
	ledger.setBalance("SEED", first, 10_000_000)
	ledger.setBalance("SEED", second, 10_000_000)

	if err := engine.Stake("harvest", first, big.NewInt(10_000_000)); err != nil {
		t.Fatalf("stake first: %v", err)
	}
	clock.advance(day)
	if err := engine.Stake("harvest", second, big.NewInt(10_000_000)); err != nil {
		t.Fatalf("stake second: %v", err)
	}
	clock.advance(day)

	pendingFirst, err := engine.PendingRewards("harvest", first)
	if err != nil {
		t.Fatalf("pending first: %v", err)
	}
	pendingSecond, err := engine.PendingRewards("harvest", second)
	if err != nil {
		t.Fatalf("pending second: %v", err)
	}

	// Day one belongs to the first staker alone; day two splits evenly.
	wantFirst := big.NewInt(86_400_000 + 43_200_000)
	wantSecond := big.NewInt(43_200_000)
	if pendingFirst.Cmp(wantFirst) != 0 {
		t.Fatalf("first: expected %s, got %s", wantFirst, pendingFirst)
	}
	if pendingSecond.Cmp(wantSecond) != 0 {
		t.Fatalf("second: expected %s, got %s", wantSecond, pendingSecond)
	}

	total := new(big.Int).Add(pendingFirst, pendingSecond)
	stream := big.NewInt(2 * 86_400_000)
	if total.Cmp(stream) != 0 {
		t.Fatalf("two-day stream %s, distributed %s", stream, total)
	}
}

func TestRewardsSplitProportionallyToStake(t *testing.T) {
	engine, _, ledger, clock, _ := newTestFarm(t, PolicyFlexible)
	whale := addr(0x01)
	minnow := addr(0x02)
	ledger.setBalance("SEED", whale, 300_000)
	ledger.setBalance("SEED", minnow, 100_000)

	if err := engine.Stake("harvest", whale, big.NewInt(300_000)); err != nil {
		t.Fatalf("stake whale: %v", err)
	}
	if err := engine.Stake("harvest", minnow, big.NewInt(100_000)); err != nil {
		t.Fatalf("stake minnow: %v", err)
	}
	clock.advance(day)

	pendingWhale, _ := engine.PendingRewards("harvest", whale)
	pendingMinnow, _ := engine.PendingRewards("harvest", minnow)

	if pendingWhale.Cmp(big.NewInt(64_800_000)) != 0 {
		t.Fatalf("whale share: %s", pendingWhale)
	}
	if pendingMinnow.Cmp(big.NewInt(21_600_000)) != 0 {
		t.Fatalf("minnow share: %s", pendingMinnow)
	}
}

func TestAccrualStopsAtProgramEnd(t *testing.T) {
	engine, state, ledger, clock, farm := newTestFarm(t, PolicyFlexible)
	staker := addr(0x01)
	ledger.setBalance("SEED", staker, 1_000_000)
	if err := engine.Stake("harvest", staker, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}

	clock.now = farm.EndTime
	atEnd, err := engine.PendingRewards("harvest", staker)
	if err != nil {
		t.Fatalf("pending at end: %v", err)
	}

	clock.advance(10 * day)
	afterEnd, err := engine.PendingRewards("harvest", staker)
	if err != nil {
		t.Fatalf("pending after end: %v", err)
	}
	if atEnd.Cmp(afterEnd) != 0 {
		t.Fatalf("accrual continued past end: %s then %s", atEnd, afterEnd)
	}

	// A mutating operation past the end pins the accrual clock at the end.
	if _, err := engine.Claim("harvest", staker); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got := state.farms["harvest"].LastUpdateTime; got != farm.EndTime {
		t.Fatalf("accrual clock moved past end: %d", got)
	}
}

func TestNothingAccruesWhileNothingIsStaked(t *testing.T) {
	engine, _, ledger, clock, _ := newTestFarm(t, PolicyFlexible)
	staker := addr(0x01)
	ledger.setBalance("SEED", staker, 1_000_000)

	// Five idle days pass before anyone stakes.
	clock.advance(5 * day)
	if err := engine.Stake("harvest", staker, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	clock.advance(day)

	pending, err := engine.PendingRewards("harvest", staker)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	want := big.NewInt(86_400_000)
	if pending.Cmp(want) != 0 {
		t.Fatalf("idle days leaked into rewards: got %s, want %s", pending, want)
	}
}

func TestStakeAheadOfStartWindow(t *testing.T) {
	state := newMockFarmState()
	ledger := newMockLedger("SEED", "GRAIN")
	clock := &testClock{now: 1_000_000}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetLedger(ledger)
	engine.SetNowFunc(clock.Now)

	start := clock.now + 2*day
	if _, err := engine.Create(CreateParams{
		ID:          "late-bloom",
		StakeToken:  "SEED",
		RewardToken: "GRAIN",
		StartTime:   start,
		EndTime:     start + 10*day,
		RewardRate:  big.NewInt(1000),
		Owner:       addr(0xEE),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	staker := addr(0x01)
	ledger.setBalance("SEED", staker, 500_000)
	if err := engine.Stake("late-bloom", staker, big.NewInt(500_000)); err != nil {
		t.Fatalf("stake before start: %v", err)
	}

	clock.now = start
	pending, err := engine.PendingRewards("late-bloom", staker)
	if err != nil {
		t.Fatalf("pending at start: %v", err)
	}
	if pending.Sign() != 0 {
		t.Fatalf("rewards accrued before the window opened: %s", pending)
	}

	clock.advance(day)
	pending, err = engine.PendingRewards("late-bloom", staker)
	if err != nil {
		t.Fatalf("pending after start: %v", err)
	}
	if pending.Cmp(big.NewInt(86_400_000)) != 0 {
		t.Fatalf("expected one day of stream, got %s", pending)
	}
}

func TestClaimCadenceDoesNotChangeTotals(t *testing.T) {
	run := func(claimDaily bool) *big.Int {
		engine, _, ledger, clock, _ := newTestFarm(t, PolicyFlexible)
		active := addr(0x01)
		idle := addr(0x02)
		ledger.setBalance("SEED", active, 10_000_000)
		ledger.setBalance("SEED", idle, 10_000_000)
		if err := engine.Stake("harvest", active, big.NewInt(10_000_000)); err != nil {
			t.Fatalf("stake active: %v", err)
		}
		if err := engine.Stake("harvest", idle, big.NewInt(10_000_000)); err != nil {
			t.Fatalf("stake idle: %v", err)
		}
		for i := 0; i < 7; i++ {
			clock.advance(day)
			if claimDaily {
				if _, err := engine.Claim("harvest", active); err != nil {
					t.Fatalf("daily claim: %v", err)
				}
			}
		}
		pending, err := engine.PendingRewards("harvest", idle)
		if err != nil {
			t.Fatalf("idle pending: %v", err)
		}
		return pending
	}

	// The idle account's entitlement depends only on accumulator growth,
	// not on how often other accounts force settlements.
	churned := run(true)
	quiet := run(false)
	if churned.Cmp(quiet) != 0 {
		t.Fatalf("settlement cadence changed an idle account's rewards: %s vs %s", churned, quiet)
	}
}

func TestRepeatSettlementAtOneInstantIsNeutral(t *testing.T) {
	engine, state, ledger, clock, _ := newTestFarm(t, PolicyFlexible)
	staker := addr(0x01)
	ledger.setBalance("SEED", staker, 1_000_000)
	if err := engine.Stake("harvest", staker, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	clock.advance(day)

	if _, err := engine.Claim("harvest", staker); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	storedBefore := new(big.Int).Set(state.farms["harvest"].RewardPerUnitStored)

	payout, err := engine.Claim("harvest", staker)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if payout.Sign() != 0 {
		t.Fatalf("second claim at one instant paid %s", payout)
	}
	storedAfter := state.farms["harvest"].RewardPerUnitStored
	if storedBefore.Cmp(storedAfter) != 0 {
		t.Fatalf("accumulator moved without elapsed time: %s -> %s", storedBefore, storedAfter)
	}
}

func TestRewardTruncationRoundsDown(t *testing.T) {
	state := newMockFarmState()
	ledger := newMockLedger("SEED", "GRAIN")
	clock := &testClock{now: 1_000_000}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetLedger(ledger)
	engine.SetNowFunc(clock.Now)

	farm, err := engine.Create(CreateParams{
		ID:          "dusty",
		StakeToken:  "SEED",
		RewardToken: "GRAIN",
		StartTime:   clock.now,
		EndTime:     clock.now + day,
		RewardRate:  big.NewInt(10),
		Owner:       addr(0xEE),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ledger.balances[ledgerKey("GRAIN", farm.Vault)] = new(big.Int).Set(farm.RewardBudget)

	small := addr(0x01)
	large := addr(0x02)
	ledger.setBalance("SEED", small, 1)
	ledger.setBalance("SEED", large, 2)
	if err := engine.Stake("dusty", small, big.NewInt(1)); err != nil {
		t.Fatalf("stake small: %v", err)
	}
	if err := engine.Stake("dusty", large, big.NewInt(2)); err != nil {
		t.Fatalf("stake large: %v", err)
	}
	clock.advance(1)

	pendingSmall, _ := engine.PendingRewards("dusty", small)
	pendingLarge, _ := engine.PendingRewards("dusty", large)

	// One second streams 10 units across 3 staked units: shares floor to
	// 3 and 6, and the remaining dust unit stays in the vault.
	if pendingSmall.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("small share: %s", pendingSmall)
	}
	if pendingLarge.Cmp(big.NewInt(6)) != 0 {
		t.Fatalf("large share: %s", pendingLarge)
	}
	sum := new(big.Int).Add(pendingSmall, pendingLarge)
	if sum.Cmp(big.NewInt(10)) >= 0 {
		t.Fatalf("shares may never exceed the stream: %s", sum)
	}
}

func TestAccumulatorNeverDecreases(t *testing.T) {
	engine, state, ledger, clock, farm := newTestFarm(t, PolicyFlexible)
	a := addr(0x01)
	b := addr(0x02)
	ledger.setBalance("SEED", a, 1_000_000)
	ledger.setBalance("SEED", b, 1_000_000)

	last := big.NewInt(0)
	check := func(label string) {
		stored := state.farms["harvest"]
		if stored.RewardPerUnitStored.Cmp(last) < 0 {
			t.Fatalf("%s: accumulator decreased %s -> %s", label, last, stored.RewardPerUnitStored)
		}
		last = new(big.Int).Set(stored.RewardPerUnitStored)
		if stored.LastUpdateTime > farm.EndTime {
			t.Fatalf("%s: accrual clock passed the end: %d", label, stored.LastUpdateTime)
		}
	}

	if err := engine.Stake("harvest", a, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("stake a: %v", err)
	}
	check("stake a")
	clock.advance(day)
	if err := engine.Stake("harvest", b, big.NewInt(500_000)); err != nil {
		t.Fatalf("stake b: %v", err)
	}
	check("stake b")
	clock.advance(40 * day)
	if err := engine.Withdraw("harvest", a, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("withdraw a: %v", err)
	}
	check("withdraw a")
	if _, err := engine.Claim("harvest", b); err != nil {
		t.Fatalf("claim b: %v", err)
	}
	check("claim b")
}
