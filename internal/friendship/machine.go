// Package friendship holds the relationship state machine. It computes
// the next state of an edge pair for a requested operation and performs
// no I/O; callers commit the result atomically.
package friendship

import (
	"strings"
	"time"

	"FriendFeedwebserver/internal/domain"
)

type Op string

const (
	OpSend   Op = "send_request"
	OpAccept Op = "accept_request"
	OpRemove Op = "remove"
)

type Transition struct {
	Op    Op
	Actor string
	Other string

	// Strict makes a duplicate send fail with domain.ErrAlreadyPending
	// instead of completing as a no-op.
	Strict bool
}

type Outcome string

const (
	// OutcomeApplied means both edges are rewritten with Next.
	OutcomeApplied Outcome = "applied"
	// OutcomeRefreshed means a same-sender duplicate request only moved lastUpdated.
	OutcomeRefreshed Outcome = "refreshed"
	// OutcomePendingByOther means the other party already has a request
	// pending toward the actor. Nothing is written.
	OutcomePendingByOther Outcome = "pending_by_other"
	// OutcomeRemoved means both edges are deleted.
	OutcomeRemoved Outcome = "removed"
	// OutcomeNoop means the pair was already in the requested state.
	OutcomeNoop Outcome = "noop"
)

// Writes reports whether the outcome requires the store to persist Next.
func (o Outcome) Writes() bool {
	switch o {
	case OutcomeApplied, OutcomeRefreshed, OutcomeRemoved:
		return true
	}
	return false
}

type Result struct {
	Next    domain.EdgePair
	Outcome Outcome
}

// Apply computes the pair state after t. cur must be keyed so that
// cur.Forward is edge(t.Actor, t.Other). On error Next equals cur.
func Apply(t Transition, cur domain.EdgePair, now time.Time) (Result, error) {
	if err := t.validate(); err != nil {
		return Result{Next: cur}, err
	}
	cur = keyed(t, cur)

	switch t.Op {
	case OpSend:
		return send(t, cur, now)
	case OpAccept:
		return accept(t, cur, now)
	default:
		return remove(t, cur)
	}
}

func (t Transition) validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(t.Actor) == "" {
		fields["actor"] = "required"
	}
	if strings.TrimSpace(t.Other) == "" {
		fields["other"] = "required"
	}
	switch t.Op {
	case OpSend, OpAccept, OpRemove:
	default:
		fields["op"] = "unknown operation"
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}
	if t.Actor == t.Other {
		return &domain.TransitionError{Op: string(t.Op), Reason: "actor and other user are the same"}
	}
	return nil
}

func send(t Transition, cur domain.EdgePair, now time.Time) (Result, error) {
	if !cur.Consistent() {
		// One-sided or disagreeing records: rewrite both as a fresh request.
		return Result{Next: pair(t, domain.EdgeStatusPending, t.Actor, now), Outcome: OutcomeApplied}, nil
	}

	switch cur.Status() {
	case domain.EdgeStatusNone:
		return Result{Next: pair(t, domain.EdgeStatusPending, t.Actor, now), Outcome: OutcomeApplied}, nil
	case domain.EdgeStatusPending:
		if t.Strict {
			return Result{Next: cur}, domain.ErrAlreadyPending
		}
		if cur.Forward.RequestSender == t.Actor {
			next := cur
			next.Forward.LastUpdated = now
			next.Reverse.LastUpdated = now
			return Result{Next: next, Outcome: OutcomeRefreshed}, nil
		}
		return Result{Next: cur, Outcome: OutcomePendingByOther}, nil
	default:
		return Result{Next: cur}, domain.ErrAlreadyAccepted
	}
}

func accept(t Transition, cur domain.EdgePair, now time.Time) (Result, error) {
	if !cur.Consistent() {
		return Result{Next: cur}, &domain.TransitionError{Op: string(t.Op), From: cur.Forward.Status, Reason: "relationship records disagree"}
	}

	switch cur.Status() {
	case domain.EdgeStatusNone:
		return Result{Next: cur}, &domain.TransitionError{Op: string(t.Op), Reason: "no pending request"}
	case domain.EdgeStatusAccepted:
		return Result{Next: cur}, &domain.TransitionError{Op: string(t.Op), From: domain.EdgeStatusAccepted, Reason: "already friends", Cause: domain.ErrAlreadyAccepted}
	}

	if cur.Forward.RequestSender != t.Other {
		return Result{Next: cur}, &domain.TransitionError{Op: string(t.Op), From: domain.EdgeStatusPending, Reason: "request was sent by the accepting user"}
	}
	return Result{Next: pair(t, domain.EdgeStatusAccepted, t.Other, now), Outcome: OutcomeApplied}, nil
}

func remove(t Transition, cur domain.EdgePair) (Result, error) {
	if !cur.Forward.Exists() && !cur.Reverse.Exists() {
		return Result{Next: cur, Outcome: OutcomeNoop}, nil
	}
	return Result{Next: pair(t, domain.EdgeStatusNone, "", time.Time{}), Outcome: OutcomeRemoved}, nil
}

func pair(t Transition, status domain.EdgeStatus, sender string, now time.Time) domain.EdgePair {
	return domain.EdgePair{
		Forward: domain.Edge{OwnerID: t.Actor, OtherID: t.Other, Status: status, RequestSender: sender, LastUpdated: now},
		Reverse: domain.Edge{OwnerID: t.Other, OtherID: t.Actor, Status: status, RequestSender: sender, LastUpdated: now},
	}
}

// keyed fills in owner/other ids for absent edges so Consistent can
// check the sender against the participants.
func keyed(t Transition, cur domain.EdgePair) domain.EdgePair {
	cur.Forward.OwnerID, cur.Forward.OtherID = t.Actor, t.Other
	cur.Reverse.OwnerID, cur.Reverse.OtherID = t.Other, t.Actor
	return cur
}
