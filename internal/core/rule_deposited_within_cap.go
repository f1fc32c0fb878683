package core

import (
	"context"
	"fmt"

	"raisecore/pkg/domain"
)

// NewDepositedWithinCapRule returns the in-transaction rule enforcing that no
// investor's deposited total ever exceeds their cap.
func NewDepositedWithinCapRule() domain.Rule {
	return depositedWithinCapRule{}
}

type depositedWithinCapRule struct{}

func (depositedWithinCapRule) Name() string { return "deposited_within_cap" }

func (depositedWithinCapRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, investor := range view.ListInvestors() {
		if investor.Deposited.Cmp(investor.Cap) > 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "deposited_within_cap",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("investor %s deposited %s exceeds cap %s", investor.Address, investor.Deposited, investor.Cap),
				Entity:   domain.EntityInvestor,
				EntityID: investor.Address,
			})
		}
	}
	return res, nil
}
