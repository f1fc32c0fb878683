package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"raisecore/pkg/domain"
)

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raise.db")
	ctx := context.Background()

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.PutInvestor(domain.Investor{Address: "alice", Cap: domain.NewAmount(1000), Deposited: domain.NewAmount(250)}); err != nil {
			return err
		}
		_, err := tx.UpdateRaise(func(r *domain.Raise) error {
			r.Name = "Series A"
			r.Symbol = "SRA"
			r.Status = domain.RaiseStatusActive
			r.DepositTokenDecimals = 6
			r.MinInvestment = domain.NewAmount(10)
			r.OperatorAllocationUnit = domain.MustAmount("1000000000000000000")
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	inv, ok := reopened.GetInvestor("alice")
	if !ok {
		t.Fatalf("investor lost across restart")
	}
	if inv.Cap.String() != "1000" || inv.Deposited.String() != "250" {
		t.Fatalf("restored investor mismatch: %+v", inv)
	}
	raise := reopened.Raise()
	if raise.Name != "Series A" || raise.Status != domain.RaiseStatusActive {
		t.Fatalf("restored raise mismatch: %+v", raise)
	}
	if raise.OperatorAllocationUnit.String() != "1000000000000000000" {
		t.Fatalf("large amounts must survive the round trip: %s", raise.OperatorAllocationUnit)
	}
}

func TestFailedTransactionNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raise.db")
	ctx := context.Background()

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.PutInvestor(domain.Investor{Address: "alice", Cap: domain.NewAmount(5)})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.UpdateInvestor("alice", func(i *domain.Investor) error {
			i.Deposited = domain.NewAmount(5)
			return nil
		}); err != nil {
			return err
		}
		return context.Canceled
	}); err == nil {
		t.Fatalf("expected transaction failure")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	inv, _ := reopened.GetInvestor("alice")
	if !inv.Deposited.IsZero() {
		t.Fatalf("failed transaction leaked to disk: %+v", inv)
	}
}

func TestDefaultPath(t *testing.T) {
	dir := t.TempDir()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
	store, err := NewStore("", nil)
	if err != nil {
		t.Fatalf("open with default path: %v", err)
	}
	defer func() { _ = store.Close() }()
	if store.Path() != "raisecore.db" {
		t.Fatalf("unexpected default path %s", store.Path())
	}
}
