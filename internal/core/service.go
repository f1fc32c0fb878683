package core

import (
	"context"
	"fmt"
	"time"

	"raisecore/pkg/domain"
)

// Operation names used in logs, metrics, traces, and receipts.
const (
	opSetInvestorCap = "set_investor_cap"
	opDeposit        = "deposit"
	opCloseRaise     = "close_raise"
	opPullFunds      = "pull_funds"
)

// Config carries the construction surface of the raise ledger. MinInvestment
// is expressed in deposit token units; OperatorAllocationUnit in claim token
// units.
type Config struct {
	Name                   string
	Symbol                 string
	Operator               string
	CustodyAccount         string
	MinInvestment          Amount
	OperatorAllocationUnit Amount
}

// Service exposes the transactional raise ledger operations. All external
// ledger calls happen inside the store transaction scope so that any failure
// discards the pending state mutation.
type Service struct {
	store   PersistentStore
	assets  AssetLedger
	claims  ClaimLedger
	cfg     Config
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	archive ReceiptArchive
	clock   func() time.Time
}

// NewService constructs a service over the given store and ledgers. A fresh
// store is initialized with an active raise and the construction-time
// operator allocation mint; a store that already carries raise state is
// resumed without re-minting.
func NewService(ctx context.Context, store PersistentStore, assets AssetLedger, claims ClaimLedger, cfg Config, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("persistent store required")
	}
	if assets == nil {
		return nil, fmt.Errorf("asset ledger required")
	}
	if claims == nil {
		return nil, fmt.Errorf("claim ledger required")
	}
	if cfg.Name == "" || cfg.Symbol == "" {
		return nil, fmt.Errorf("raise name and symbol required")
	}
	if cfg.Operator == "" {
		return nil, fmt.Errorf("operator identity required")
	}
	if cfg.CustodyAccount == "" {
		return nil, fmt.Errorf("custody account required")
	}
	if cfg.MinInvestment.Sign() < 0 {
		return nil, fmt.Errorf("minimum investment cannot be negative")
	}
	if cfg.OperatorAllocationUnit.Sign() < 0 {
		return nil, fmt.Errorf("operator allocation unit cannot be negative")
	}
	if got := claims.Decimals(); got != ClaimTokenDecimals {
		return nil, fmt.Errorf("claim ledger must use %d decimals, got %d", ClaimTokenDecimals, got)
	}

	s := &Service{
		store:   store,
		assets:  assets,
		claims:  claims,
		cfg:     cfg,
		logger:  noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initRaise(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// initRaise seeds a fresh store with active raise state and mints the
// construction-time operator allocation. Both happen inside one transaction
// so a failed mint leaves the store uninitialized and retryable.
func (s *Service) initRaise(ctx context.Context) error {
	fresh := false
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		raise := tx.Raise()
		if raise.Status != "" {
			if raise.Name != s.cfg.Name {
				s.logger.Warn("resuming raise under different name", "stored", raise.Name, "configured", s.cfg.Name)
			}
			return nil
		}
		fresh = true
		if _, err := tx.UpdateRaise(func(r *Raise) error {
			r.Name = s.cfg.Name
			r.Symbol = s.cfg.Symbol
			r.DepositTokenDecimals = s.assets.Decimals()
			r.MinInvestment = s.cfg.MinInvestment.Clone()
			r.OperatorAllocationUnit = s.cfg.OperatorAllocationUnit.Clone()
			r.Status = RaiseStatusActive
			r.CreatedAt = s.clock().UTC()
			return nil
		}); err != nil {
			return err
		}
		if s.cfg.OperatorAllocationUnit.Sign() > 0 {
			if err := s.claims.Mint(ctx, s.cfg.Operator, s.cfg.OperatorAllocationUnit); err != nil {
				return TransferError{Op: "init_raise", Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if fresh {
		s.logger.Info("raise initialized",
			"name", s.cfg.Name,
			"symbol", s.cfg.Symbol,
			"deposit_decimals", s.assets.Decimals(),
			"min_investment", s.cfg.MinInvestment.String(),
			"operator_allocation_unit", s.cfg.OperatorAllocationUnit.String())
	} else {
		s.logger.Info("raise resumed", "name", s.Raise().Name, "status", s.Raise().Status)
	}
	return nil
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Operator returns the configured privileged identity.
func (s *Service) Operator() string { return s.cfg.Operator }

// Raise returns the current raise state.
func (s *Service) Raise() Raise { return s.store.Raise() }

// Investor returns the cap table entry for address.
func (s *Service) Investor(address string) (Investor, bool) {
	return s.store.GetInvestor(address)
}

// Investors lists all cap table entries ordered by address.
func (s *Service) Investors() []Investor { return s.store.ListInvestors() }

// CustodyBalance reports the deposit token balance currently held in custody.
func (s *Service) CustodyBalance() Amount {
	return s.assets.BalanceOf(s.cfg.CustodyAccount)
}

func (s *Service) requireOperator(op, caller string) error {
	if caller != s.cfg.Operator {
		return LedgerError{Code: CodeUnauthorized, Op: op, Participant: caller, Message: "caller is not the operator"}
	}
	return nil
}

// SetInvestorCap whitelists participant or edits their existing cap. Repeating
// the current value fails with CodeCapUnchanged; undercutting committed funds
// fails with CodeCapBelowDeposited.
func (s *Service) SetInvestorCap(ctx context.Context, caller, participant string, newCap Amount) (Investor, Result, error) {
	ctx, done := s.instrument(ctx, opSetInvestorCap)
	var investor Investor
	res, err := func() (Result, error) {
		if err := s.requireOperator(opSetInvestorCap, caller); err != nil {
			return Result{}, err
		}
		if newCap.Sign() < 0 {
			return Result{}, LedgerError{Code: CodeInvalidAmount, Op: opSetInvestorCap, Participant: participant, Message: "cap cannot be negative"}
		}
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			existing, whitelisted := tx.FindInvestor(participant)
			oldCap := domain.Amount{}
			if whitelisted {
				oldCap = existing.Cap
			}
			if newCap.Cmp(oldCap) == 0 {
				return LedgerError{Code: CodeCapUnchanged, Op: opSetInvestorCap, Participant: participant, Message: fmt.Sprintf("cap already %s", newCap)}
			}
			if whitelisted && newCap.Cmp(existing.Deposited) < 0 {
				return LedgerError{Code: CodeCapBelowDeposited, Op: opSetInvestorCap, Participant: participant, Message: fmt.Sprintf("cap %s below deposited %s", newCap, existing.Deposited)}
			}
			var err error
			if whitelisted {
				investor, err = tx.UpdateInvestor(participant, func(i *Investor) error {
					i.Cap = newCap.Clone()
					return nil
				})
			} else {
				investor, err = tx.PutInvestor(Investor{Address: participant, Cap: newCap.Clone()})
			}
			return err
		})
	}()
	done(err)
	return investor, res, err
}

// DepositOutcome reports the effect of an accepted deposit.
type DepositOutcome struct {
	Participant string `json:"participant"`
	Requested   Amount `json:"requested"`
	Accepted    Amount `json:"accepted"`
	Claimed     Amount `json:"claimed"`
	Deposited   Amount `json:"deposited"`
}

// Deposit admits an investment from caller. Amounts exceeding remaining room
// are truncated to the admissible amount; the excess is never transferred and
// never minted. The custody transfer and claim mint run inside the store
// transaction, so any ledger failure discards the deposited increment.
func (s *Service) Deposit(ctx context.Context, caller string, amount Amount) (DepositOutcome, Result, error) {
	ctx, done := s.instrument(ctx, opDeposit)
	var outcome DepositOutcome
	res, err := func() (Result, error) {
		if amount.Sign() < 0 {
			return Result{}, LedgerError{Code: CodeInvalidAmount, Op: opDeposit, Participant: caller, Message: "deposit amount cannot be negative"}
		}
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			raise := tx.Raise()
			if raise.Status != RaiseStatusActive {
				return LedgerError{Code: CodeRaiseClosed, Op: opDeposit, Participant: caller, Message: "raise is closed"}
			}
			investor, ok := tx.FindInvestor(caller)
			if !ok || investor.Cap.Sign() <= 0 {
				return LedgerError{Code: CodeNotWhitelisted, Op: opDeposit, Participant: caller, Message: "participant has no cap"}
			}
			if amount.Cmp(raise.MinInvestment) < 0 {
				return LedgerError{Code: CodeBelowMinimumInvestment, Op: opDeposit, Participant: caller, Message: fmt.Sprintf("amount %s below minimum %s", amount, raise.MinInvestment)}
			}
			room := investor.Room()
			if room.Sign() <= 0 {
				return LedgerError{Code: CodeCapReached, Op: opDeposit, Participant: caller, Message: "no remaining room"}
			}
			accepted := domain.MinAmount(amount, room)
			claimed := domain.Rescale(accepted, raise.DepositTokenDecimals, ClaimTokenDecimals)

			updated, err := tx.UpdateInvestor(caller, func(i *Investor) error {
				i.Deposited = i.Deposited.Add(accepted)
				return nil
			})
			if err != nil {
				return err
			}
			if err := s.assets.TransferFrom(ctx, caller, s.cfg.CustodyAccount, accepted); err != nil {
				return TransferError{Op: opDeposit, Err: err}
			}
			if err := s.claims.Mint(ctx, caller, claimed); err != nil {
				return TransferError{Op: opDeposit, Err: err}
			}
			outcome = DepositOutcome{
				Participant: caller,
				Requested:   amount.Clone(),
				Accepted:    accepted,
				Claimed:     claimed,
				Deposited:   updated.Deposited,
			}
			return nil
		})
	}()
	done(err)
	if err == nil {
		s.archiveReceipt(ctx, Receipt{
			Operation:   opDeposit,
			Caller:      caller,
			Participant: caller,
			Amount:      outcome.Accepted,
			ClaimAmount: outcome.Claimed,
			RaiseStatus: RaiseStatusActive,
			RecordedAt:  s.clock().UTC(),
		})
	}
	return outcome, res, err
}

// CloseRaise halts further deposits and mints the close-time operator
// allocation. Closing an already closed raise fails with
// CodeRaiseAlreadyClosed so the allocation can never double-mint.
func (s *Service) CloseRaise(ctx context.Context, caller string) (Raise, Result, error) {
	ctx, done := s.instrument(ctx, opCloseRaise)
	var closed Raise
	res, err := func() (Result, error) {
		if err := s.requireOperator(opCloseRaise, caller); err != nil {
			return Result{}, err
		}
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			raise := tx.Raise()
			if raise.Status == RaiseStatusClosed {
				return LedgerError{Code: CodeRaiseAlreadyClosed, Op: opCloseRaise, Message: "raise already closed"}
			}
			var err error
			closed, err = tx.UpdateRaise(func(r *Raise) error {
				r.Status = RaiseStatusClosed
				at := s.clock().UTC()
				r.ClosedAt = &at
				return nil
			})
			if err != nil {
				return err
			}
			if closed.OperatorAllocationUnit.Sign() > 0 {
				if err := s.claims.Mint(ctx, s.cfg.Operator, closed.OperatorAllocationUnit); err != nil {
					return TransferError{Op: opCloseRaise, Err: err}
				}
			}
			return nil
		})
	}()
	done(err)
	if err == nil {
		s.archiveReceipt(ctx, Receipt{
			Operation:   opCloseRaise,
			Caller:      caller,
			ClaimAmount: closed.OperatorAllocationUnit,
			RaiseStatus: RaiseStatusClosed,
			RecordedAt:  s.clock().UTC(),
		})
	}
	return closed, res, err
}

// PullFunds sweeps the entire custody balance to recipient. Callable in any
// raise state; a second consecutive call moves zero.
func (s *Service) PullFunds(ctx context.Context, caller, recipient string) (Amount, error) {
	ctx, done := s.instrument(ctx, opPullFunds)
	swept, err := func() (Amount, error) {
		if err := s.requireOperator(opPullFunds, caller); err != nil {
			return Amount{}, err
		}
		balance := s.assets.BalanceOf(s.cfg.CustodyAccount)
		if balance.Sign() > 0 {
			if err := s.assets.TransferFrom(ctx, s.cfg.CustodyAccount, recipient, balance); err != nil {
				return Amount{}, TransferError{Op: opPullFunds, Err: err}
			}
		}
		return balance, nil
	}()
	done(err)
	if err == nil {
		s.archiveReceipt(ctx, Receipt{
			Operation:   opPullFunds,
			Caller:      caller,
			Recipient:   recipient,
			Amount:      swept,
			RaiseStatus: s.Raise().Status,
			RecordedAt:  s.clock().UTC(),
		})
	}
	return swept, err
}

// archiveReceipt hands the receipt to the configured archive. Failures are
// logged and never surfaced to the caller.
func (s *Service) archiveReceipt(ctx context.Context, receipt Receipt) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Archive(ctx, receipt); err != nil {
		s.logger.Error("receipt archive failed", "operation", receipt.Operation, "error", err)
	}
}
