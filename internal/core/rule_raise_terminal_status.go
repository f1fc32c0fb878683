package core

import (
	"context"
	"fmt"

	"raisecore/pkg/domain"
)

// NewRaiseTerminalStatusRule returns the in-transaction rule enforcing that a
// closed raise never transitions back to active and that status writes stay
// within the known enumeration.
func NewRaiseTerminalStatusRule() domain.Rule {
	return raiseTerminalStatusRule{}
}

type raiseTerminalStatusRule struct{}

func (raiseTerminalStatusRule) Name() string { return "raise_terminal_status" }

func (raiseTerminalStatusRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityRaise || change.Action != domain.ActionUpdate {
			continue
		}
		before, okBefore := change.Before.(domain.Raise)
		after, okAfter := change.After.(domain.Raise)
		if !okBefore || !okAfter {
			continue
		}
		if after.Status != domain.RaiseStatusActive && after.Status != domain.RaiseStatusClosed {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "raise_terminal_status",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("raise %s written with unknown status %q", after.Name, after.Status),
				Entity:   domain.EntityRaise,
				EntityID: after.Name,
			})
			continue
		}
		if before.Status == domain.RaiseStatusClosed && after.Status != domain.RaiseStatusClosed {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "raise_terminal_status",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("raise %s cannot leave closed status (attempted %s)", after.Name, after.Status),
				Entity:   domain.EntityRaise,
				EntityID: after.Name,
			})
		}
	}
	return res, nil
}
