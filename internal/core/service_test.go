package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"raisecore/internal/infra/persistence/memory"
	tokenmem "raisecore/internal/infra/token/memory"
	"raisecore/pkg/domain"
)

const (
	testOperator  = "operator"
	testCustody   = "custody"
	testInvestor  = "alice"
	testTreasury  = "treasury"
	testAllocUnit = "500"
)

func baseUnits(t *testing.T, n int64) Amount {
	t.Helper()
	return domain.MustAmount(fmt.Sprintf("%d%s", n, strings.Repeat("0", 6)))
}

func claimUnits(t *testing.T, n int64) Amount {
	t.Helper()
	return domain.MustAmount(fmt.Sprintf("%d%s", n, strings.Repeat("0", 18)))
}

type testLedgers struct {
	assets *tokenmem.Ledger
	claims *tokenmem.Ledger
}

func newTestLedgers() testLedgers {
	assets := tokenmem.NewLedger("Dollar Stable", "USDS", 6)
	assets.SetCustodian(testCustody)
	claims := tokenmem.NewLedger("Raise Claim", "RCT", 18)
	return testLedgers{assets: assets, claims: claims}
}

func newTestService(t *testing.T, store PersistentStore, led testLedgers, opts ...ServiceOption) *Service {
	t.Helper()
	if store == nil {
		store = memory.NewStore(NewDefaultRulesEngine())
	}
	svc, err := NewService(context.Background(), store, led.assets, led.claims, Config{
		Name:                   "Series A",
		Symbol:                 "RCT",
		Operator:               testOperator,
		CustodyAccount:         testCustody,
		MinInvestment:          domain.MustAmount("1000"),
		OperatorAllocationUnit: domain.MustAmount(testAllocUnit),
	}, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func fundInvestor(t *testing.T, led testLedgers, address string, amount Amount) {
	t.Helper()
	if err := led.assets.Mint(context.Background(), address, amount); err != nil {
		t.Fatalf("mint assets: %v", err)
	}
	if err := led.assets.Approve(address, testCustody, amount); err != nil {
		t.Fatalf("approve custody: %v", err)
	}
}

func TestNewServiceMintsConstructionAllocation(t *testing.T) {
	led := newTestLedgers()
	svc := newTestService(t, nil, led)

	if got := led.claims.BalanceOf(testOperator); got.Cmp(domain.MustAmount(testAllocUnit)) != 0 {
		t.Fatalf("operator allocation = %s, want %s", got, testAllocUnit)
	}
	raise := svc.Raise()
	if raise.Status != RaiseStatusActive {
		t.Fatalf("raise status = %s, want active", raise.Status)
	}
	if raise.Name != "Series A" || raise.Symbol != "RCT" {
		t.Fatalf("unexpected raise identity %+v", raise)
	}
	if raise.DepositTokenDecimals != 6 {
		t.Fatalf("deposit decimals = %d, want 6", raise.DepositTokenDecimals)
	}
	if raise.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be set")
	}
}

func TestNewServiceResumeDoesNotRemint(t *testing.T) {
	led := newTestLedgers()
	store := memory.NewStore(NewDefaultRulesEngine())
	newTestService(t, store, led)
	before := led.claims.BalanceOf(testOperator)

	newTestService(t, store, led)
	after := led.claims.BalanceOf(testOperator)
	if after.Cmp(before) != 0 {
		t.Fatalf("resume re-minted allocation: before %s after %s", before, after)
	}
}

func TestNewServiceValidation(t *testing.T) {
	led := newTestLedgers()
	store := memory.NewStore(NewDefaultRulesEngine())
	base := Config{
		Name:           "Series A",
		Symbol:         "RCT",
		Operator:       testOperator,
		CustodyAccount: testCustody,
	}
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing name", func(c *Config) { c.Name = "" }},
		{"missing symbol", func(c *Config) { c.Symbol = "" }},
		{"missing operator", func(c *Config) { c.Operator = "" }},
		{"missing custody", func(c *Config) { c.CustodyAccount = "" }},
		{"negative minimum", func(c *Config) { c.MinInvestment = domain.MustAmount("-1") }},
		{"negative allocation", func(c *Config) { c.OperatorAllocationUnit = domain.MustAmount("-1") }},
	}
	for _, tc := range cases {
		cfg := base
		tc.mutate(&cfg)
		if _, err := NewService(context.Background(), store, led.assets, led.claims, cfg); err == nil {
			t.Fatalf("%s: expected construction error", tc.name)
		}
	}
	if _, err := NewService(context.Background(), nil, led.assets, led.claims, base); err == nil {
		t.Fatalf("expected error for nil store")
	}
	wrongDecimals := tokenmem.NewLedger("Bad Claim", "BAD", 8)
	if _, err := NewService(context.Background(), store, led.assets, wrongDecimals, base); err == nil {
		t.Fatalf("expected error for claim ledger decimals mismatch")
	}
}

func TestSetInvestorCap(t *testing.T) {
	ctx := context.Background()
	led := newTestLedgers()
	svc := newTestService(t, nil, led)
	cap10k := baseUnits(t, 10_000)

	if _, _, err := svc.SetInvestorCap(ctx, "mallory", testInvestor, cap10k); domain.CodeOf(err) != CodeUnauthorized {
		t.Fatalf("non-operator cap edit: got %v, want unauthorized", err)
	}
	if _, _, err := svc.SetInvestorCap(ctx, testOperator, testInvestor, domain.MustAmount("-5")); domain.CodeOf(err) != CodeInvalidAmount {
		t.Fatalf("negative cap: got %v, want invalid_amount", err)
	}

	investor, _, err := svc.SetInvestorCap(ctx, testOperator, testInvestor, cap10k)
	if err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	if investor.Cap.Cmp(cap10k) != 0 || !investor.Deposited.IsZero() {
		t.Fatalf("unexpected investor %+v", investor)
	}

	if _, _, err := svc.SetInvestorCap(ctx, testOperator, testInvestor, cap10k); domain.CodeOf(err) != CodeCapUnchanged {
		t.Fatalf("repeat cap: got %v, want cap_unchanged", err)
	}
	if _, _, err := svc.SetInvestorCap(ctx, testOperator, "unknown", Amount{}); domain.CodeOf(err) != CodeCapUnchanged {
		t.Fatalf("re-zeroing unset cap: got %v, want cap_unchanged", err)
	}

	raised := baseUnits(t, 20_000)
	investor, _, err = svc.SetInvestorCap(ctx, testOperator, testInvestor, raised)
	if err != nil {
		t.Fatalf("raise cap: %v", err)
	}
	if investor.Cap.Cmp(raised) != 0 {
		t.Fatalf("cap not overwritten: %s", investor.Cap)
	}
}

func TestSetInvestorCapBelowDeposited(t *testing.T) {
	ctx := context.Background()
	led := newTestLedgers()
	svc := newTestService(t, nil, led)
	cap := baseUnits(t, 10_000)
	if _, _, err := svc.SetInvestorCap(ctx, testOperator, testInvestor, cap); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	deposit := baseUnits(t, 2_000)
	fundInvestor(t, led, testInvestor, deposit)
	if _, _, err := svc.Deposit(ctx, testInvestor, deposit); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if _, _, err := svc.SetInvestorCap(ctx, testOperator, testInvestor, baseUnits(t, 1_000)); domain.CodeOf(err) != CodeCapBelowDeposited {
		t.Fatalf("cap below deposited: got %v, want cap_below_deposited", err)
	}
	// lowering to exactly deposited succeeds
	investor, _, err := svc.SetInvestorCap(ctx, testOperator, testInvestor, deposit)
	if err != nil {
		t.Fatalf("cap to deposited: %v", err)
	}
	if investor.Cap.Cmp(investor.Deposited) != 0 {
		t.Fatalf("cap %s != deposited %s", investor.Cap, investor.Deposited)
	}
}

func TestDepositEndToEnd(t *testing.T) {
	ctx := context.Background()
	led := newTestLedgers()
	svc := newTestService(t, nil, led)

	cap := baseUnits(t, 10_000)
	if _, _, err := svc.SetInvestorCap(ctx, testOperator, testInvestor, cap); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	fundInvestor(t, led, testInvestor, baseUnits(t, 2_000_000))

	outcome, _, err := svc.Deposit(ctx, testInvestor, baseUnits(t, 1_000))
	if err != nil {
		t.Fatalf("first deposit: %v", err)
	}
	if outcome.Accepted.Cmp(baseUnits(t, 1_000)) != 0 {
		t.Fatalf("accepted = %s, want 1000e6", outcome.Accepted)
	}
	if got := led.claims.BalanceOf(testInvestor); got.Cmp(claimUnits(t, 1_000)) != 0 {
		t.Fatalf("claim balance = %s, want 1000e18", got)
	}

	if _, _, err := svc.Deposit(ctx, testInvestor, baseUnits(t, 1_000)); err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	if got := led.claims.BalanceOf(testInvestor); got.Cmp(claimUnits(t, 2_000)) != 0 {
		t.Fatalf("claim balance = %s, want 2000e18", got)
	}

	// far over cap: truncated to remaining room
	outcome, _, err = svc.Deposit(ctx, testInvestor, baseUnits(t, 1_000_000))
	if err != nil {
		t.Fatalf("over-cap deposit: %v", err)
	}
	if outcome.Accepted.Cmp(baseUnits(t, 8_000)) != 0 {
		t.Fatalf("accepted = %s, want 8000e6", outcome.Accepted)
	}
	investor, _ := svc.Investor(testInvestor)
	if investor.Deposited.Cmp(investor.Cap) != 0 {
		t.Fatalf("deposited %s != cap %s", investor.Deposited, investor.Cap)
	}
	if got := led.claims.BalanceOf(testInvestor); got.Cmp(claimUnits(t, 10_000)) != 0 {
		t.Fatalf("claim balance = %s, want 10000e18", got)
	}
	if got := svc.CustodyBalance(); got.Cmp(cap) != 0 {
		t.Fatalf("custody balance = %s, want %s", got, cap)
	}

	if _, _, err := svc.Deposit(ctx, testInvestor, baseUnits(t, 1_000)); domain.CodeOf(err) != CodeCapReached {
		t.Fatalf("deposit at cap: got %v, want cap_reached", err)
	}
}

func TestDepositPreconditions(t *testing.T) {
	ctx := context.Background()
	led := newTestLedgers()
	svc := newTestService(t, nil, led)

	if _, _, err := svc.Deposit(ctx, testInvestor, domain.MustAmount("-1")); domain.CodeOf(err) != CodeInvalidAmount {
		t.Fatalf("negative amount: got %v, want invalid_amount", err)
	}
	if _, _, err := svc.Deposit(ctx, testInvestor, baseUnits(t, 1_000)); domain.CodeOf(err) != CodeNotWhitelisted {
		t.Fatalf("unlisted depositor: got %v, want not_whitelisted", err)
	}
	if _, _, err := svc.SetInvestorCap(ctx, testOperator, testInvestor, baseUnits(t, 10_000)); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	if _, _, err := svc.Deposit(ctx, testInvestor, domain.MustAmount("999")); domain.CodeOf(err) != CodeBelowMinimumInvestment {
		t.Fatalf("under minimum: got %v, want below_minimum_investment", err)
	}
	if _, _, err := svc.CloseRaise(ctx, testOperator); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, _, err := svc.Deposit(ctx, testInvestor, baseUnits(t, 1_000)); domain.CodeOf(err) != CodeRaiseClosed {
		t.Fatalf("deposit after close: got %v, want raise_closed", err)
	}
}

func TestDepositTransferFailureLeavesState(t *testing.T) {
	ctx := context.Background()
	led := newTestLedgers()
	svc := newTestService(t, nil, led)
	if _, _, err := svc.SetInvestorCap(ctx, testOperator, testInvestor, baseUnits(t, 10_000)); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	// funded but custody never approved: transfer must fail
	if err := led.assets.Mint(ctx, testInvestor, baseUnits(t, 5_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	_, _, err := svc.Deposit(ctx, testInvestor, baseUnits(t, 1_000))
	var te TransferError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransferError, got %v", err)
	}
	var allowanceErr tokenmem.InsufficientAllowanceError
	if !errors.As(err, &allowanceErr) {
		t.Fatalf("expected wrapped allowance failure, got %v", err)
	}
	investor, _ := svc.Investor(testInvestor)
	if !investor.Deposited.IsZero() {
		t.Fatalf("deposited mutated on failed transfer: %s", investor.Deposited)
	}
	if !led.claims.BalanceOf(testInvestor).IsZero() {
		t.Fatalf("claims minted on failed transfer")
	}
	if !svc.CustodyBalance().IsZero() {
		t.Fatalf("custody credited on failed transfer")
	}
}

func TestCloseRaise(t *testing.T) {
	ctx := context.Background()
	led := newTestLedgers()
	svc := newTestService(t, nil, led)
	allocation := domain.MustAmount(testAllocUnit)

	if _, _, err := svc.CloseRaise(ctx, "mallory"); domain.CodeOf(err) != CodeUnauthorized {
		t.Fatalf("non-operator close: got %v, want unauthorized", err)
	}

	before := led.claims.BalanceOf(testOperator)
	closed, _, err := svc.CloseRaise(ctx, testOperator)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != RaiseStatusClosed || closed.ClosedAt == nil {
		t.Fatalf("unexpected closed state %+v", closed)
	}
	if got := led.claims.BalanceOf(testOperator).Sub(before); got.Cmp(allocation) != 0 {
		t.Fatalf("close mint delta = %s, want %s", got, allocation)
	}

	// second close is an explicit failure and never double-mints
	afterFirst := led.claims.BalanceOf(testOperator)
	if _, _, err := svc.CloseRaise(ctx, testOperator); domain.CodeOf(err) != CodeRaiseAlreadyClosed {
		t.Fatalf("second close: got %v, want raise_already_closed", err)
	}
	if got := led.claims.BalanceOf(testOperator); got.Cmp(afterFirst) != 0 {
		t.Fatalf("second close minted: %s -> %s", afterFirst, got)
	}
}

func TestPullFunds(t *testing.T) {
	ctx := context.Background()
	led := newTestLedgers()
	svc := newTestService(t, nil, led)
	if _, _, err := svc.SetInvestorCap(ctx, testOperator, testInvestor, baseUnits(t, 10_000)); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	deposit := baseUnits(t, 3_000)
	fundInvestor(t, led, testInvestor, deposit)
	if _, _, err := svc.Deposit(ctx, testInvestor, deposit); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if _, err := svc.PullFunds(ctx, "mallory", testTreasury); domain.CodeOf(err) != CodeUnauthorized {
		t.Fatalf("non-operator pull: got %v, want unauthorized", err)
	}

	swept, err := svc.PullFunds(ctx, testOperator, testTreasury)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if swept.Cmp(deposit) != 0 {
		t.Fatalf("swept = %s, want %s", swept, deposit)
	}
	if !svc.CustodyBalance().IsZero() {
		t.Fatalf("custody not drained: %s", svc.CustodyBalance())
	}
	if got := led.assets.BalanceOf(testTreasury); got.Cmp(deposit) != 0 {
		t.Fatalf("treasury balance = %s, want %s", got, deposit)
	}

	swept, err = svc.PullFunds(ctx, testOperator, testTreasury)
	if err != nil {
		t.Fatalf("second pull: %v", err)
	}
	if !swept.IsZero() {
		t.Fatalf("second pull moved %s, want 0", swept)
	}
}

func TestPullFundsIgnoresRaiseStatus(t *testing.T) {
	ctx := context.Background()
	led := newTestLedgers()
	svc := newTestService(t, nil, led)
	if _, _, err := svc.CloseRaise(ctx, testOperator); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := svc.PullFunds(ctx, testOperator, testTreasury); err != nil {
		t.Fatalf("pull after close: %v", err)
	}
}

func TestDepositedWithinCapAfterEveryOperation(t *testing.T) {
	ctx := context.Background()
	led := newTestLedgers()
	svc := newTestService(t, nil, led)
	if _, _, err := svc.SetInvestorCap(ctx, testOperator, testInvestor, baseUnits(t, 5_000)); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	fundInvestor(t, led, testInvestor, baseUnits(t, 100_000))
	for i := 0; i < 3; i++ {
		if _, _, err := svc.Deposit(ctx, testInvestor, baseUnits(t, 2_500)); err != nil && domain.CodeOf(err) != CodeCapReached {
			t.Fatalf("deposit %d: %v", i, err)
		}
		for _, inv := range svc.Investors() {
			if inv.Deposited.Cmp(inv.Cap) > 0 {
				t.Fatalf("invariant broken: deposited %s > cap %s", inv.Deposited, inv.Cap)
			}
		}
	}
}

func TestServiceClockOverride(t *testing.T) {
	led := newTestLedgers()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, nil, led, WithClock(func() time.Time { return fixed }))
	if got := svc.Raise().CreatedAt; !got.Equal(fixed) {
		t.Fatalf("CreatedAt = %s, want %s", got, fixed)
	}
	closed, _, err := svc.CloseRaise(context.Background(), testOperator)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.ClosedAt == nil || !closed.ClosedAt.Equal(fixed) {
		t.Fatalf("ClosedAt = %v, want %s", closed.ClosedAt, fixed)
	}
}
