package workflow

import (
	"github.com/taalam/backend/internal/models"
)

// transitionRule is one edge of the state machine: who may take it, how
// it is recorded, where it lands, and what must hold before it executes.
type transitionRule struct {
	Role     models.Role
	Action   models.Action
	Next     models.Status
	Validate func(q *models.Question) *ValidationError
}

// advanceTable maps a question's current status to its forward edge.
// This table is the single source of truth for the happy path; Advance
// dispatches here instead of scattering role checks across call sites.
var advanceTable = map[models.Status]transitionRule{
	models.StatusPendingGatherer: {
		Role:     models.RoleGatherer,
		Action:   models.ActionSubmittedToProcessor,
		Next:     models.StatusPendingProcessor,
		Validate: validateGathererSubmission,
	},
	models.StatusSentBack: {
		Role:     models.RoleGatherer,
		Action:   models.ActionResubmittedToProcessor,
		Next:     models.StatusPendingProcessor,
		Validate: validateGathererSubmission,
	},
	models.StatusPendingProcessor: {
		Role:   models.RoleProcessor,
		Action: models.ActionApprovedByProcessor,
		Next:   models.StatusPendingCreator,
	},
	models.StatusPendingCreator: {
		Role:   models.RoleCreator,
		Action: models.ActionSubmittedToExplainer,
		Next:   models.StatusPendingExplainer,
	},
	models.StatusPendingExplainer: {
		Role:     models.RoleExplainer,
		Action:   models.ActionCompleted,
		Next:     models.StatusCompleted,
		Validate: validateExplainerCompletion,
	},
}

// rejectTable maps statuses from which an explicit rejection is legal.
var rejectTable = map[models.Status]transitionRule{
	models.StatusPendingProcessor: {
		Role:   models.RoleProcessor,
		Action: models.ActionRejected,
		Next:   models.StatusRejected,
	},
}

// sendBackTable maps statuses from which a send-back is legal. sent_back
// is its own enum value, not a marker inferred from string inspection.
var sendBackTable = map[models.Status]transitionRule{
	models.StatusPendingProcessor: {
		Role:   models.RoleProcessor,
		Action: models.ActionSentBack,
		Next:   models.StatusSentBack,
	},
}

// flagRule describes one raise/resolve triangle. The question sits at
// HoldAt while the flag is pending; OnReject is the raiser's stage,
// OnApprove whatever stage must act on the accepted flag. The asymmetry
// (resolver is not the raiser, OnApprove is not HoldAt) is deliberate
// and lives here rather than being inferred anywhere.
type flagRule struct {
	From      models.Status
	Raiser    models.Role
	FlagType  models.FlagType
	HoldAt    models.Status
	Resolver  models.Role
	OnApprove models.Status
	OnReject  models.Status
}

var flagTable = []flagRule{
	// A student flags a published question; a processor rules on it.
	{
		From:      models.StatusCompleted,
		Raiser:    models.RoleStudent,
		FlagType:  models.FlagTypeStudent,
		HoldAt:    models.StatusCompleted,
		Resolver:  models.RoleProcessor,
		OnApprove: models.StatusPendingProcessor,
		OnReject:  models.StatusCompleted,
	},
	// An explainer flags an already-completed question they revisit.
	{
		From:      models.StatusCompleted,
		Raiser:    models.RoleExplainer,
		FlagType:  models.FlagTypeExplainer,
		HoldAt:    models.StatusCompleted,
		Resolver:  models.RoleProcessor,
		OnApprove: models.StatusPendingProcessor,
		OnReject:  models.StatusCompleted,
	},
	// A creator flags a question back instead of authoring variants; the
	// question moves to the processor's queue immediately.
	{
		From:      models.StatusPendingCreator,
		Raiser:    models.RoleCreator,
		FlagType:  models.FlagTypeCreator,
		HoldAt:    models.StatusPendingProcessor,
		Resolver:  models.RoleProcessor,
		OnApprove: models.StatusPendingProcessor,
		OnReject:  models.StatusPendingCreator,
	},
	// An explainer flags during the explanation stage; the creator rules.
	{
		From:      models.StatusPendingExplainer,
		Raiser:    models.RoleExplainer,
		FlagType:  models.FlagTypeExplainer,
		HoldAt:    models.StatusPendingExplainer,
		Resolver:  models.RoleCreator,
		OnApprove: models.StatusPendingCreator,
		OnReject:  models.StatusPendingExplainer,
	},
}

// raiseRuleFor finds the flag rule matching a question's current status
// and the raising role. A non-admin's rule follows from their role and
// any flagType argument is ignored. An admin may raise under any rule
// for the status, but when several exist they must name the flag type;
// the match must be unique or no rule is returned.
func raiseRuleFor(status models.Status, raiser models.Role, flagType models.FlagType) (flagRule, bool) {
	var matches []flagRule
	for _, r := range flagTable {
		if r.From != status {
			continue
		}
		if raiser == models.RoleAdmin {
			if flagType == "" || r.FlagType == flagType {
				matches = append(matches, r)
			}
		} else if r.Raiser == raiser {
			matches = append(matches, r)
		}
	}
	if len(matches) != 1 {
		return flagRule{}, false
	}
	return matches[0], true
}

// resolveRuleFor finds the rule that produced a pending flag, keyed by
// where the question is held and the recorded flag type.
func resolveRuleFor(holdAt models.Status, flagType models.FlagType) (flagRule, bool) {
	for _, r := range flagTable {
		if r.HoldAt == holdAt && r.FlagType == flagType {
			return r, true
		}
	}
	return flagRule{}, false
}

// roleAllowed applies the platform convention that admin may perform
// any role-gated transition.
func roleAllowed(actor models.Actor, required models.Role) bool {
	return actor.Role == required || actor.Role == models.RoleAdmin
}
