// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"raisecore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Investor aliases domain.Investor for in-memory persistence operations.
	Investor = domain.Investor
	// Raise aliases domain.Raise.
	Raise = domain.Raise
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	investors map[string]Investor
	raise     Raise
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Investors map[string]Investor `json:"investors"`
	Raise     Raise               `json:"raise"`
}

func newMemoryState() memoryState {
	return memoryState{investors: make(map[string]Investor)}
}

func cloneInvestor(inv Investor) Investor {
	inv.Cap = inv.Cap.Clone()
	inv.Deposited = inv.Deposited.Clone()
	return inv
}

func cloneRaise(r Raise) Raise {
	r.MinInvestment = r.MinInvestment.Clone()
	r.OperatorAllocationUnit = r.OperatorAllocationUnit.Clone()
	if r.ClosedAt != nil {
		closed := *r.ClosedAt
		r.ClosedAt = &closed
	}
	return r
}

func (s memoryState) clone() memoryState {
	out := newMemoryState()
	for k, v := range s.investors {
		out.investors[k] = cloneInvestor(v)
	}
	out.raise = cloneRaise(s.raise)
	return out
}

// Store is the in-memory source of truth. Durable backends embed it and
// snapshot its state after each successful transaction.
type Store struct {
	mu     sync.Mutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an empty in-memory store guarded by the given rules engine.
func NewStore(engine *RulesEngine) *Store {
	return &Store{state: newMemoryState(), engine: engine, nowFn: time.Now}
}

// SetClock overrides the transaction timestamp source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.nowFn = now
	}
}

// RulesEngine returns the engine evaluated at each commit.
func (s *Store) RulesEngine() *RulesEngine {
	return s.engine
}

// ExportState returns a deep copy of the current state for snapshotting.
func (s *Store) ExportState() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Investors: s.state.clone().investors, Raise: cloneRaise(s.state.raise)}
}

// ImportState replaces the store contents with the supplied snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newMemoryState()
	for k, v := range snapshot.Investors {
		state.investors[k] = cloneInvestor(v)
	}
	state.raise = cloneRaise(snapshot.Raise)
	s.state = state
}

type transaction struct {
	state   memoryState
	now     time.Time
	changes []Change
}

var _ domain.Transaction = (*transaction)(nil)

func (tx *transaction) Snapshot() TransactionView {
	return &transactionView{state: &tx.state}
}

func (tx *transaction) FindInvestor(address string) (Investor, bool) {
	inv, ok := tx.state.investors[address]
	if !ok {
		return Investor{}, false
	}
	return cloneInvestor(inv), true
}

func (tx *transaction) PutInvestor(inv Investor) (Investor, error) {
	if inv.Address == "" {
		return Investor{}, fmt.Errorf("investor address required")
	}
	if _, exists := tx.state.investors[inv.Address]; exists {
		return Investor{}, fmt.Errorf("investor %s already exists", inv.Address)
	}
	inv.CreatedAt = tx.now
	inv.UpdatedAt = tx.now
	tx.state.investors[inv.Address] = cloneInvestor(inv)
	tx.changes = append(tx.changes, Change{Entity: domain.EntityInvestor, Action: domain.ActionCreate, After: cloneInvestor(inv)})
	return cloneInvestor(inv), nil
}

func (tx *transaction) UpdateInvestor(address string, mutator func(*Investor) error) (Investor, error) {
	current, ok := tx.state.investors[address]
	if !ok {
		return Investor{}, fmt.Errorf("investor %s not found", address)
	}
	before := cloneInvestor(current)
	updated := cloneInvestor(current)
	if err := mutator(&updated); err != nil {
		return Investor{}, err
	}
	updated.Address = current.Address
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = tx.now
	tx.state.investors[address] = cloneInvestor(updated)
	tx.changes = append(tx.changes, Change{Entity: domain.EntityInvestor, Action: domain.ActionUpdate, Before: before, After: cloneInvestor(updated)})
	return cloneInvestor(updated), nil
}

func (tx *transaction) Raise() Raise {
	return cloneRaise(tx.state.raise)
}

func (tx *transaction) UpdateRaise(mutator func(*Raise) error) (Raise, error) {
	before := cloneRaise(tx.state.raise)
	updated := cloneRaise(tx.state.raise)
	if err := mutator(&updated); err != nil {
		return Raise{}, err
	}
	tx.state.raise = cloneRaise(updated)
	tx.changes = append(tx.changes, Change{Entity: domain.EntityRaise, Action: domain.ActionUpdate, Before: before, After: cloneRaise(updated)})
	return cloneRaise(updated), nil
}

type transactionView struct {
	state *memoryState
}

var _ domain.TransactionView = (*transactionView)(nil)

func (v *transactionView) ListInvestors() []Investor {
	out := make([]Investor, 0, len(v.state.investors))
	for _, inv := range v.state.investors {
		out = append(out, cloneInvestor(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

func (v *transactionView) FindInvestor(address string) (Investor, bool) {
	inv, ok := v.state.investors[address]
	if !ok {
		return Investor{}, false
	}
	return cloneInvestor(inv), true
}

func (v *transactionView) Raise() Raise {
	return cloneRaise(v.state.raise)
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the live state only when fn succeeds and no registered
// rule reports a blocking violation.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{state: s.state.clone(), now: s.nowFn().UTC()}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := &transactionView{state: &tx.state}
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View runs fn against a read-only snapshot of the current state.
func (s *Store) View(_ context.Context, fn func(view TransactionView) error) error {
	s.mu.Lock()
	state := s.state.clone()
	s.mu.Unlock()
	return fn(&transactionView{state: &state})
}

// GetInvestor returns the investor record for address, if present.
func (s *Store) GetInvestor(address string) (Investor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.state.investors[address]
	if !ok {
		return Investor{}, false
	}
	return cloneInvestor(inv), true
}

// ListInvestors returns all investor records ordered by address.
func (s *Store) ListInvestors() []Investor {
	s.mu.Lock()
	state := s.state.clone()
	s.mu.Unlock()
	view := transactionView{state: &state}
	return view.ListInvestors()
}

// Raise returns the current raise state.
func (s *Store) Raise() Raise {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRaise(s.state.raise)
}
