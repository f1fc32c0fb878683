package core

import "raisecore/pkg/domain"

type (
	EntityType         = domain.EntityType
	RaiseStatus        = domain.RaiseStatus
	Severity           = domain.Severity
	Amount             = domain.Amount
	FailureCode        = domain.FailureCode
	Investor           = domain.Investor
	Raise              = domain.Raise
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	LedgerError        = domain.LedgerError
	TransferError      = domain.TransferError
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	AssetLedger        = domain.AssetLedger
	ClaimLedger        = domain.ClaimLedger
)

const (
	EntityInvestor = domain.EntityInvestor
	EntityRaise    = domain.EntityRaise
)

const (
	RaiseStatusActive = domain.RaiseStatusActive
	RaiseStatusClosed = domain.RaiseStatusClosed
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
)

const (
	CodeUnauthorized           = domain.CodeUnauthorized
	CodeCapUnchanged           = domain.CodeCapUnchanged
	CodeCapBelowDeposited      = domain.CodeCapBelowDeposited
	CodeRaiseClosed            = domain.CodeRaiseClosed
	CodeRaiseAlreadyClosed     = domain.CodeRaiseAlreadyClosed
	CodeNotWhitelisted         = domain.CodeNotWhitelisted
	CodeBelowMinimumInvestment = domain.CodeBelowMinimumInvestment
	CodeCapReached             = domain.CodeCapReached
	CodeInvalidAmount          = domain.CodeInvalidAmount
)

// ClaimTokenDecimals is the fixed precision of the claim token ledger.
const ClaimTokenDecimals = domain.ClaimTokenDecimals
