// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by raisecore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityInvestor identifies a whitelisted participant record.
	EntityInvestor EntityType = "investor"
	// EntityRaise identifies the singleton raise state record.
	EntityRaise EntityType = "raise"
)

// RaiseStatus represents the lifecycle of the raise.
type RaiseStatus string

// Raise lifecycle states. The transition active -> closed happens exactly once
// and is never reversed.
const (
	// RaiseStatusActive admits deposits.
	RaiseStatusActive RaiseStatus = "active"
	// RaiseStatusClosed is terminal; deposits are rejected.
	RaiseStatusClosed RaiseStatus = "closed"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Investor is a whitelisted participant's cap table entry, keyed by address.
// Deposited never exceeds Cap; a zero Cap means "not whitelisted". Records
// are never deleted, only updated.
type Investor struct {
	Address   string    `json:"address"`
	Cap       Amount    `json:"cap"`
	Deposited Amount    `json:"deposited"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Room returns the remaining amount the investor may still deposit.
func (i Investor) Room() Amount {
	return i.Cap.Sub(i.Deposited)
}

// Raise is the singleton process-wide raise state. A zero-valued Status marks
// an uninitialized store; the service sets it to active during construction.
type Raise struct {
	Name                   string      `json:"name"`
	Symbol                 string      `json:"symbol"`
	DepositTokenDecimals   uint8       `json:"deposit_token_decimals"`
	MinInvestment          Amount      `json:"min_investment"`
	OperatorAllocationUnit Amount      `json:"operator_allocation_unit"`
	Status                 RaiseStatus `json:"status"`
	CreatedAt              time.Time   `json:"created_at"`
	ClosedAt               *time.Time  `json:"closed_at,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the mutations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
