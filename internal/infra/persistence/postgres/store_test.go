package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"raisecore/internal/infra/persistence/postgres/testutil"
	"raisecore/pkg/domain"
)

func withStub(t *testing.T) *testutil.StubConn {
	t.Helper()
	db, conn := testutil.NewStubDB()
	orig := sqlOpen
	sqlOpen = func(string, string) (*sql.DB, error) { return db, nil }
	t.Cleanup(func() { sqlOpen = orig })
	return conn
}

func TestSnapshotPersistedOnCommit(t *testing.T) {
	conn := withStub(t)
	store, err := NewStore("", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.PutInvestor(domain.Investor{Address: "alice", Cap: domain.NewAmount(1000)}); err != nil {
			return err
		}
		_, err := tx.UpdateRaise(func(r *domain.Raise) error {
			r.Name = "Series A"
			r.Status = domain.RaiseStatusActive
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("transaction: %v", err)
	}

	var investors map[string]domain.Investor
	if err := json.Unmarshal(conn.Payload("investors"), &investors); err != nil {
		t.Fatalf("decode investors payload: %v", err)
	}
	if investors["alice"].Cap.String() != "1000" {
		t.Fatalf("unexpected persisted cap: %+v", investors)
	}
	var raise domain.Raise
	if err := json.Unmarshal(conn.Payload("raise"), &raise); err != nil {
		t.Fatalf("decode raise payload: %v", err)
	}
	if raise.Name != "Series A" || raise.Status != domain.RaiseStatusActive {
		t.Fatalf("unexpected persisted raise: %+v", raise)
	}
}

func TestHydrateFromExistingSnapshot(t *testing.T) {
	conn := withStub(t)
	seed, _ := json.Marshal(map[string]domain.Investor{
		"bob": {Address: "bob", Cap: domain.NewAmount(42), Deposited: domain.NewAmount(7)},
	})
	conn.Buckets["investors"] = seed
	raiseSeed, _ := json.Marshal(domain.Raise{Name: "Seed", Status: domain.RaiseStatusClosed})
	conn.Buckets["raise"] = raiseSeed

	store, err := NewStore("", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	inv, ok := store.GetInvestor("bob")
	if !ok || inv.Deposited.String() != "7" {
		t.Fatalf("hydration mismatch: %+v", inv)
	}
	if store.Raise().Status != domain.RaiseStatusClosed {
		t.Fatalf("raise hydration mismatch: %+v", store.Raise())
	}
}

func TestPersistFailureSurfaces(t *testing.T) {
	conn := withStub(t)
	store, err := NewStore("", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	conn.FailExec = true
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.PutInvestor(domain.Investor{Address: "alice", Cap: domain.NewAmount(1)})
		return err
	})
	if err == nil {
		t.Fatalf("expected persist failure to surface")
	}
}

func TestPingFailure(t *testing.T) {
	conn := withStub(t)
	conn.FailPing = true
	if _, err := NewStore("", nil); err == nil {
		t.Fatalf("expected ping failure")
	}
}
