// Package orchestrator drives the per-user session state machine: which
// prompt goes to the model for each inbound message, when the session
// advances to the next activity, and when it concludes.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wwbp/BCFG-API/internal/domain"
	"github.com/wwbp/BCFG-API/internal/store"
)

// LLMClient is the conversation capability consumed by the orchestrator.
type LLMClient interface {
	// SetupConversation creates the assistant and thread for a session.
	SetupConversation(ctx context.Context, instructions string) (assistantID, threadID string, err error)
	// RunTurn appends message to the thread (when non-empty), runs the
	// model to completion, and returns the latest assistant reply.
	RunTurn(ctx context.Context, assistantID, threadID, message string) (string, error)
}

// Assigner provides the user's activity assignment, creating it on
// first use.
type Assigner interface {
	EnsureAssignment(ctx context.Context, userID string) ([]domain.Activity, error)
}

// Orchestrator coordinates session lifecycle and activity progression.
// All three operations hold a per-user lock end to end, so requests for
// the same user serialize while different users proceed in parallel.
type Orchestrator struct {
	repo     store.Repository
	llm      LLMClient
	assigner Assigner
	locks    *userLocks
}

// New creates an Orchestrator.
func New(repo store.Repository, llm LLMClient, assigner Assigner) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		llm:      llm,
		assigner: assigner,
		locks:    newUserLocks(),
	}
}

// StartSession opens the session for a user: it ensures the activity
// assignment and conversation thread exist, and delivers the opening
// message for the first activity. Calling it again once the session is
// underway is a no-op, so repeated logins never duplicate openings.
func (o *Orchestrator) StartSession(ctx context.Context, userID string) (Result, error) {
	release := o.locks.acquire(userID)
	defer release()
	return o.startLocked(ctx, userID)
}

func (o *Orchestrator) startLocked(ctx context.Context, userID string) (Result, error) {
	user, err := o.loadUser(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	assignment, err := o.assigner.EnsureAssignment(ctx, userID)
	if err != nil {
		return Result{}, newError(ErrorStore, "ensure_assignment", err)
	}

	cfg, err := o.repo.GetPromptConfig(ctx)
	if err != nil {
		return Result{}, newError(ErrorStore, "load_prompt_config", err)
	}

	session, err := o.loadOrNewSession(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	if ok, err := o.ensureThread(ctx, session, cfg, user); err != nil {
		return Result{}, err
	} else if !ok {
		return single(FallbackReply), nil
	}

	if session.State.Phase != domain.PhaseNew {
		// Already mid-conversation or concluded; a re-login must not
		// re-trigger the opening.
		return none(), nil
	}

	if session.CurrentActivityIndex >= len(assignment) {
		return noActivities(), nil
	}
	activity := assignment[session.CurrentActivityIndex]

	reply, err := o.llm.RunTurn(ctx, session.AssistantID, session.ThreadID, openingPrompt(activity))
	if err != nil {
		slog.Error("opening run failed", "user_id", userID, "error", err)
		return single(FallbackReply), nil
	}

	if err := o.repo.AppendTranscript(ctx, userID, "", reply, session.Generation); err != nil {
		return Result{}, newError(ErrorStore, "append_transcript", err)
	}

	session.State = domain.SessionState{Phase: domain.PhaseActive, Round: 0}
	if err := o.repo.SaveSession(ctx, session); err != nil {
		return Result{}, newError(ErrorStore, "save_session", err)
	}

	return single(reply), nil
}

// HandleUserMessage runs one exchange: the user's message goes to the
// model, the reply is transcribed, and the round counter advances. When
// the activity's round budget is exhausted the orchestrator also runs
// the transition (or conclusion) turn and returns both replies.
func (o *Orchestrator) HandleUserMessage(ctx context.Context, userID, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, newError(ErrorValidation, "empty_message", nil)
	}

	release := o.locks.acquire(userID)
	defer release()

	user, err := o.loadUser(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	session, err := o.loadOrNewSession(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	if session.Ended() {
		return ended(), nil
	}

	cfg, err := o.repo.GetPromptConfig(ctx)
	if err != nil {
		return Result{}, newError(ErrorStore, "load_prompt_config", err)
	}

	if ok, err := o.ensureThread(ctx, session, cfg, user); err != nil {
		return Result{}, err
	} else if !ok {
		return single(FallbackReply), nil
	}

	replyA, err := o.llm.RunTurn(ctx, session.AssistantID, session.ThreadID, text)
	if err != nil {
		// The exchange is not counted; a failure must not masquerade as
		// progress.
		slog.Error("turn run failed", "user_id", userID, "error", err)
		return single(FallbackReply), nil
	}

	if err := o.repo.AppendTranscript(ctx, userID, text, replyA, session.Generation); err != nil {
		return Result{}, newError(ErrorStore, "append_transcript", err)
	}

	round := session.State.Round + 1
	session.State = domain.SessionState{Phase: domain.PhaseActive, Round: round}
	if err := o.repo.SaveSession(ctx, session); err != nil {
		return Result{}, newError(ErrorStore, "save_session", err)
	}

	if round < cfg.NumRounds {
		return single(replyA), nil
	}

	return o.advanceActivity(ctx, session, replyA)
}

// advanceActivity runs the admin turn that moves the session to the
// next activity, or concludes it when the assignment is exhausted. The
// completed exchange is already persisted, so a failure here degrades
// to a single reply and the advance is retried on the next message.
func (o *Orchestrator) advanceActivity(ctx context.Context, session *domain.Session, replyA string) (Result, error) {
	assignment, err := o.repo.GetActivityAssignment(ctx, session.UserID)
	if err != nil {
		return Result{}, newError(ErrorStore, "load_assignment", err)
	}

	nextIndex := session.CurrentActivityIndex + 1
	if nextIndex < len(assignment) {
		next := assignment[nextIndex]
		replyB, err := o.llm.RunTurn(ctx, session.AssistantID, session.ThreadID, transitionPrompt(next))
		if err != nil {
			slog.Error("transition run failed", "user_id", session.UserID, "error", err)
			return single(replyA), nil
		}

		if err := o.repo.AppendTranscript(ctx, session.UserID, "", replyB, session.Generation); err != nil {
			return Result{}, newError(ErrorStore, "append_transcript", err)
		}

		session.CurrentActivityIndex = nextIndex
		// The transition message counts as the first exchange of the
		// new activity.
		session.State = domain.SessionState{Phase: domain.PhaseActive, Round: 1}
		if err := o.repo.SaveSession(ctx, session); err != nil {
			return Result{}, newError(ErrorStore, "save_session", err)
		}
		return multiple(replyA, replyB), nil
	}

	replyC, err := o.llm.RunTurn(ctx, session.AssistantID, session.ThreadID, conclusionPrompt())
	if err != nil {
		slog.Error("conclusion run failed", "user_id", session.UserID, "error", err)
		return single(replyA), nil
	}

	if err := o.repo.AppendTranscript(ctx, session.UserID, "", replyC, session.Generation); err != nil {
		return Result{}, newError(ErrorStore, "append_transcript", err)
	}

	session.State = domain.SessionState{Phase: domain.PhaseEnded}
	if err := o.repo.SaveSession(ctx, session); err != nil {
		return Result{}, newError(ErrorStore, "save_session", err)
	}
	return multiple(replyA, replyC), nil
}

// RestartSession rewinds the session to the start of its assignment and
// delivers a fresh opening. The assignment is reused, never re-sampled,
// so a participant replays the same curriculum.
func (o *Orchestrator) RestartSession(ctx context.Context, userID string) (Result, error) {
	release := o.locks.acquire(userID)
	defer release()

	if _, err := o.loadUser(ctx, userID); err != nil {
		return Result{}, err
	}

	session, err := o.loadOrNewSession(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	session.Restart()
	if err := o.repo.SaveSession(ctx, session); err != nil {
		return Result{}, newError(ErrorStore, "save_session", err)
	}

	return o.startLocked(ctx, userID)
}

func (o *Orchestrator) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := o.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, newError(ErrorStore, "load_user", err)
	}
	if user == nil {
		return nil, newError(ErrorUserNotFound, "unknown_user", nil)
	}
	return user, nil
}

func (o *Orchestrator) loadOrNewSession(ctx context.Context, userID string) (*domain.Session, error) {
	session, err := o.repo.GetSession(ctx, userID)
	if err != nil {
		return nil, newError(ErrorStore, "load_session", err)
	}
	if session == nil {
		session = &domain.Session{UserID: userID}
	}
	return session, nil
}

// ensureThread lazily creates the assistant and thread, persisting the
// handles immediately so they are created at most once even if a later
// step in the same call fails. The bool result is false when the vendor
// call failed; that degrades to the fallback reply rather than an error.
func (o *Orchestrator) ensureThread(ctx context.Context, session *domain.Session, cfg *domain.PromptConfig, user *domain.User) (bool, error) {
	if session.HasThread() {
		return true, nil
	}

	assistantID, threadID, err := o.llm.SetupConversation(ctx, systemInstructions(cfg, user.Name))
	if err != nil {
		slog.Error("conversation setup failed", "user_id", user.UserID, "error", err)
		return false, nil
	}

	session.AssistantID = assistantID
	session.ThreadID = threadID
	if err := o.repo.SaveSession(ctx, session); err != nil {
		return false, newError(ErrorStore, "save_session", err)
	}
	return true, nil
}

func systemInstructions(cfg *domain.PromptConfig, name string) string {
	parts := []string{strings.TrimSpace(cfg.Persona)}
	if knowledge := strings.TrimSpace(cfg.Knowledge); knowledge != "" {
		parts = append(parts, knowledge)
	}
	parts = append(parts, fmt.Sprintf("You are talking with %s.", name))
	return strings.Join(parts, "\n\n")
}

func openingPrompt(activity domain.Activity) string {
	return fmt.Sprintf(
		"Open the session by introducing this activity to the participant and inviting them in: %s",
		activity.Content,
	)
}

func transitionPrompt(activity domain.Activity) string {
	return fmt.Sprintf(
		"The current activity is finished. Move the conversation on to the next activity: %s",
		activity.Content,
	)
}

func conclusionPrompt() string {
	return "All activities are finished. Wrap up the session warmly and say goodbye to the participant."
}
