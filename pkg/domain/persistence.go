package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	FindInvestor(address string) (Investor, bool)
	PutInvestor(Investor) (Investor, error)
	UpdateInvestor(address string, mutator func(*Investor) error) (Investor, error)
	Raise() Raise
	UpdateRaise(mutator func(*Raise) error) (Raise, error)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListInvestors() []Investor
	FindInvestor(address string) (Investor, bool)
	Raise() Raise
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetInvestor(address string) (Investor, bool)
	ListInvestors() []Investor
	Raise() Raise
}
