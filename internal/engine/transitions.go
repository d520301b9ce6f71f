// Package engine is the lifecycle core: the transition state machine,
// its gating predicates, evidence validation, boundary enforcement,
// and journal/decision-ledger bookkeeping. The engine is the only
// mutator of bead state; gates never write.
package engine

import (
	"fmt"
	"strings"

	"github.com/robchristie/loom/internal/model"
)

// happyPath maps each status to its single forward successor.
var happyPath = map[model.BeadStatus]model.BeadStatus{
	model.StatusDraft:               model.StatusSized,
	model.StatusSized:               model.StatusReady,
	model.StatusReady:               model.StatusInProgress,
	model.StatusInProgress:          model.StatusVerificationPending,
	model.StatusVerificationPending: model.StatusVerified,
	model.StatusVerified:            model.StatusApprovalPending,
	model.StatusApprovalPending:     model.StatusDone,
}

// failureTargets are reachable from any non-terminal status;
// superseded is reachable from anywhere.
var failureTargets = map[model.BeadStatus]bool{
	model.StatusBlocked:               true,
	model.StatusAbortedNeedsDiscovery: true,
	model.StatusFailed:                true,
	model.StatusSuperseded:            true,
}

// authority restricts which actor kinds may request an edge. Edges not
// listed admit every kind.
var authority = map[[2]model.BeadStatus][]model.ActorKind{
	{model.StatusVerificationPending, model.StatusVerified}: {model.ActorSystem},
}

// AllowedTransition reports whether from -> to is in the legal table.
func AllowedTransition(from, to model.BeadStatus) bool {
	if failureTargets[to] {
		if to == model.StatusSuperseded {
			return true
		}
		return !from.IsTerminal()
	}
	return happyPath[from] == to
}

// AllowedActorKinds returns the actor kinds permitted on an edge, or
// nil when the edge is unrestricted.
func AllowedActorKinds(from, to model.BeadStatus) []model.ActorKind {
	return authority[[2]model.BeadStatus{from, to}]
}

// ParseTransition splits a "from -> to" request string.
func ParseTransition(transition string) (from, to model.BeadStatus, err error) {
	left, right, found := strings.Cut(transition, "->")
	if !found {
		return "", "", fmt.Errorf("malformed transition %q (expected \"from -> to\")", transition)
	}
	from = model.BeadStatus(strings.TrimSpace(left))
	to = model.BeadStatus(strings.TrimSpace(right))
	if from == "" || to == "" {
		return "", "", fmt.Errorf("malformed transition %q (expected \"from -> to\")", transition)
	}
	return from, to, nil
}

// FormatTransition renders an edge in the canonical "from -> to" form.
func FormatTransition(from, to model.BeadStatus) string {
	return fmt.Sprintf("%s -> %s", from, to)
}

// PhaseForTransition infers the journal phase from the target status:
// sizing work is planning, starting and finishing implementation is
// implementing, everything from verification onward is verifying.
func PhaseForTransition(to model.BeadStatus) model.RunPhase {
	switch to {
	case model.StatusSized, model.StatusReady:
		return model.PhasePlan
	case model.StatusInProgress, model.StatusVerificationPending:
		return model.PhaseImplement
	case model.StatusVerified, model.StatusApprovalPending, model.StatusDone:
		return model.PhaseVerify
	default:
		return model.PhaseImplement
	}
}

// PhaseForTransitionString is PhaseForTransition applied to a raw
// request string; unparseable input maps to implement.
func PhaseForTransitionString(transition string) model.RunPhase {
	_, to, err := ParseTransition(transition)
	if err != nil {
		return model.PhaseImplement
	}
	return PhaseForTransition(to)
}
