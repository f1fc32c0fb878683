package core

import (
	"context"
	"fmt"

	"raisecore/pkg/domain"
)

// NewNonNegativeAmountsRule returns the in-transaction rule rejecting any
// state in which a cap, deposited total, or raise parameter has gone negative.
func NewNonNegativeAmountsRule() domain.Rule {
	return nonNegativeAmountsRule{}
}

type nonNegativeAmountsRule struct{}

func (nonNegativeAmountsRule) Name() string { return "non_negative_amounts" }

func (nonNegativeAmountsRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, investor := range view.ListInvestors() {
		if investor.Cap.Sign() < 0 {
			res.Violations = append(res.Violations, negativeViolation(domain.EntityInvestor, investor.Address, "cap", investor.Cap))
		}
		if investor.Deposited.Sign() < 0 {
			res.Violations = append(res.Violations, negativeViolation(domain.EntityInvestor, investor.Address, "deposited", investor.Deposited))
		}
	}
	raise := view.Raise()
	if raise.MinInvestment.Sign() < 0 {
		res.Violations = append(res.Violations, negativeViolation(domain.EntityRaise, raise.Name, "min_investment", raise.MinInvestment))
	}
	if raise.OperatorAllocationUnit.Sign() < 0 {
		res.Violations = append(res.Violations, negativeViolation(domain.EntityRaise, raise.Name, "operator_allocation_unit", raise.OperatorAllocationUnit))
	}
	return res, nil
}

func negativeViolation(entity domain.EntityType, id, field string, value domain.Amount) domain.Violation {
	return domain.Violation{
		Rule:     "non_negative_amounts",
		Severity: domain.SeverityBlock,
		Message:  fmt.Sprintf("%s %s has negative %s: %s", entity, id, field, value),
		Entity:   entity,
		EntityID: id,
	}
}
