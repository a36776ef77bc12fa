// Package action is the approval-gated queue for outbound side effects.
// Nothing leaves the system without passing through here, and nothing executes
// without a human approval first.
package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/warmline/internal/messaging"
	"github.com/warmline/internal/thread"
)

// ErrInvalidTransition is returned when an action is moved out of order, e.g.
// executing one that was never approved.
var ErrInvalidTransition = errors.New("invalid action transition")

type Gateway struct {
	store    thread.Store
	provider messaging.Provider
	now      func() time.Time
}

func New(store thread.Store, provider messaging.Provider) *Gateway {
	return &Gateway{store: store, provider: provider, now: time.Now}
}

// CreateRequest describes a proposed side effect.
type CreateRequest struct {
	ThreadID   string            `json:"thread_id,omitempty"`
	Type       thread.ActionType `json:"action_type"`
	TargetID   string            `json:"target_id"`
	TargetName string            `json:"target_name,omitempty"`
	Payload    string            `json:"payload"`
}

// Create queues a new pending action. Nothing is sent yet.
func (g *Gateway) Create(ctx context.Context, req CreateRequest) (*thread.Action, error) {
	switch req.Type {
	case thread.ActionSendMessage, thread.ActionSendInvite, thread.ActionCreatePost,
		thread.ActionReact, thread.ActionComment:
	default:
		return nil, fmt.Errorf("%w: unknown action type %q", thread.ErrInvalidID, req.Type)
	}
	if req.TargetID == "" && req.Type != thread.ActionCreatePost {
		return nil, fmt.Errorf("%w: target id is required", thread.ErrInvalidID)
	}
	a := &thread.Action{
		ThreadID:   req.ThreadID,
		Type:       req.Type,
		TargetID:   req.TargetID,
		TargetName: req.TargetName,
		Payload:    req.Payload,
		Status:     thread.ActionPending,
	}
	if err := g.store.CreateAction(ctx, a); err != nil {
		return nil, fmt.Errorf("action: create: %w", err)
	}
	log.Info().Str("action_id", a.ID).Str("type", string(a.Type)).Msg("action queued")
	return a, nil
}

// Approve marks a pending action as approved by a human.
func (g *Gateway) Approve(ctx context.Context, id, approvalID string) (*thread.Action, error) {
	return g.gate(ctx, id, approvalID, thread.ActionApproved)
}

// Reject marks a pending action as rejected. Terminal.
func (g *Gateway) Reject(ctx context.Context, id, approvalID string) (*thread.Action, error) {
	return g.gate(ctx, id, approvalID, thread.ActionRejected)
}

func (g *Gateway) gate(ctx context.Context, id, approvalID string, to thread.ActionStatus) (*thread.Action, error) {
	a, err := g.store.GetAction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("action: load %s: %w", id, err)
	}
	if a.Status != thread.ActionPending {
		return nil, fmt.Errorf("%w: action %s is %s, not pending", ErrInvalidTransition, id, a.Status)
	}
	a.Status = to
	a.ApprovalID = approvalID
	if err := g.store.UpdateAction(ctx, a); err != nil {
		return nil, fmt.Errorf("action: persist %s: %w", id, err)
	}
	log.Info().Str("action_id", id).Str("status", string(to)).Msg("action gated")
	return a, nil
}

// Execute performs an approved action's side effect through the messaging
// provider. On failure the action is marked failed with the error recorded and
// is never retried automatically; retrying means creating a new action.
func (g *Gateway) Execute(ctx context.Context, id string) (*thread.Action, error) {
	a, err := g.store.GetAction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("action: load %s: %w", id, err)
	}
	if a.Status != thread.ActionApproved {
		return nil, fmt.Errorf("%w: action %s is %s, only approved actions execute", ErrInvalidTransition, id, a.Status)
	}
	if g.provider == nil {
		return nil, fmt.Errorf("action: no messaging provider configured")
	}

	execErr := g.dispatch(ctx, a)
	if execErr != nil {
		a.Status = thread.ActionFailed
		a.Error = execErr.Error()
		log.Warn().Err(execErr).Str("action_id", id).Msg("action execution failed")
	} else {
		now := g.now()
		a.Status = thread.ActionExecuted
		a.ExecutedAt = &now
		log.Info().Str("action_id", id).Str("type", string(a.Type)).Msg("action executed")
	}
	if err := g.store.UpdateAction(ctx, a); err != nil {
		return nil, fmt.Errorf("action: persist outcome for %s: %w", id, err)
	}
	return a, nil
}

func (g *Gateway) dispatch(ctx context.Context, a *thread.Action) error {
	switch a.Type {
	case thread.ActionSendMessage:
		return g.provider.SendMessage(ctx, a.TargetID, a.Payload)
	case thread.ActionSendInvite:
		return g.provider.SendInvite(ctx, a.TargetID, a.Payload)
	case thread.ActionCreatePost:
		return g.provider.CreatePost(ctx, a.Payload)
	case thread.ActionReact:
		return g.provider.React(ctx, a.TargetID, a.Payload)
	case thread.ActionComment:
		return g.provider.Comment(ctx, a.TargetID, a.Payload)
	}
	return fmt.Errorf("unknown action type %q", a.Type)
}

// List returns actions, optionally filtered by status.
func (g *Gateway) List(ctx context.Context, status thread.ActionStatus, limit int) ([]*thread.Action, error) {
	return g.store.ListActions(ctx, status, limit)
}
