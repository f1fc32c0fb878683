// Package memory provides in-memory fungible-balance ledgers standing in for
// the external base-asset and claim-token collaborators. Semantics follow the
// usual fungible-token conventions: balances per holder, owner-granted
// allowances, unconstrained issuer minting.
package memory

import (
	"context"
	"fmt"
	"sync"

	"raisecore/pkg/domain"
)

// Compile-time contract assertions against the domain ledger ports.
var (
	_ domain.AssetLedger = (*Ledger)(nil)
	_ domain.ClaimLedger = (*Ledger)(nil)
)

// InsufficientBalanceError reports a transfer exceeding the holder's balance.
type InsufficientBalanceError struct {
	Holder    string
	Requested domain.Amount
	Available domain.Amount
}

func (e InsufficientBalanceError) Error() string {
	return fmt.Sprintf("holder %s: insufficient balance: requested %s, available %s", e.Holder, e.Requested, e.Available)
}

// InsufficientAllowanceError reports a transfer exceeding the spender's allowance.
type InsufficientAllowanceError struct {
	Owner     string
	Spender   string
	Requested domain.Amount
	Allowed   domain.Amount
}

func (e InsufficientAllowanceError) Error() string {
	return fmt.Sprintf("owner %s: insufficient allowance for %s: requested %s, allowed %s", e.Owner, e.Spender, e.Requested, e.Allowed)
}

// Ledger is a mutex-guarded fungible balance store. TransferFrom treats the
// recipient as the spender, mirroring how the raise custody account pulls
// approved deposits.
type Ledger struct {
	mu         sync.Mutex
	name       string
	symbol     string
	decimals   uint8
	custodian  string
	balances   map[string]domain.Amount
	allowances map[string]map[string]domain.Amount
	total      domain.Amount
}

// NewLedger constructs an empty ledger with the given identity and precision.
func NewLedger(name, symbol string, decimals uint8) *Ledger {
	return &Ledger{
		name:       name,
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[string]domain.Amount),
		allowances: make(map[string]map[string]domain.Amount),
	}
}

// SetCustodian marks addr as the custody account. The custodian moves its own
// funds without a prior allowance; every other holder must approve pulls.
func (l *Ledger) SetCustodian(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.custodian = addr
}

// Name returns the ledger's display name.
func (l *Ledger) Name() string { return l.name }

// Symbol returns the ledger's ticker symbol.
func (l *Ledger) Symbol() string { return l.symbol }

// Decimals returns the ledger's decimal precision.
func (l *Ledger) Decimals() uint8 { return l.decimals }

// BalanceOf returns the holder's current balance.
func (l *Ledger) BalanceOf(holder string) domain.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[holder].Clone()
}

// TotalSupply returns the sum of all minted balances.
func (l *Ledger) TotalSupply() domain.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total.Clone()
}

// Allowance returns what spender may still pull from owner.
func (l *Ledger) Allowance(owner, spender string) domain.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowances[owner][spender].Clone()
}

// Mint credits newly issued units to a holder.
func (l *Ledger) Mint(_ context.Context, to string, amount domain.Amount) error {
	if to == "" {
		return fmt.Errorf("mint: recipient required")
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("mint: negative amount %s", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[to] = l.balances[to].Add(amount)
	l.total = l.total.Add(amount)
	return nil
}

// Approve grants spender the right to pull up to amount from owner,
// replacing any prior allowance.
func (l *Ledger) Approve(owner, spender string, amount domain.Amount) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("approve: negative amount %s", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	grants, ok := l.allowances[owner]
	if !ok {
		grants = make(map[string]domain.Amount)
		l.allowances[owner] = grants
	}
	grants[spender] = amount.Clone()
	return nil
}

// TransferFrom moves amount from one holder to another, consuming the
// recipient's allowance. Self-transfers and transfers initiated from the
// custody account need no allowance.
func (l *Ledger) TransferFrom(_ context.Context, from, to string, amount domain.Amount) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("transfer: negative amount %s", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balances[from]
	if balance.Cmp(amount) < 0 {
		return InsufficientBalanceError{Holder: from, Requested: amount.Clone(), Available: balance.Clone()}
	}
	if from != to && from != l.custodian {
		grants := l.allowances[from]
		allowed := grants[to]
		if allowed.Cmp(amount) < 0 {
			return InsufficientAllowanceError{Owner: from, Spender: to, Requested: amount.Clone(), Allowed: allowed.Clone()}
		}
		if grants != nil {
			grants[to] = allowed.Sub(amount)
		}
	}
	l.balances[from] = balance.Sub(amount)
	l.balances[to] = l.balances[to].Add(amount)
	return nil
}
