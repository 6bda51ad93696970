package orchestrator

// Fixed reply texts surfaced for degraded or informational outcomes.
const (
	// FallbackReply is returned when an LLM run does not complete; the
	// participant always gets some reply.
	FallbackReply = "There was an error processing your message."
	// NoActivitiesReply is returned when a session has nothing to start.
	NoActivitiesReply = "There are no activities to start right now."
	// SessionEndedReply is returned for messages after session end.
	SessionEndedReply = "This session has ended. Thanks for participating!"
)

// ResultKind discriminates the orchestrator's outcome union.
type ResultKind int

const (
	// ResultNone carries no new content (e.g. re-login mid-conversation).
	ResultNone ResultKind = iota
	// ResultSingle is one assistant reply.
	ResultSingle
	// ResultMultiple is an answer followed by a transition or conclusion.
	ResultMultiple
	// ResultNoActivities means the session had nothing to start.
	ResultNoActivities
	// ResultEnded means the session has already concluded.
	ResultEnded
)

// Result is what an orchestrator operation hands back to its transport.
// Replies holds the renderable texts in delivery order; fixed texts for
// NoActivities/Ended ride along so adapters need no special cases.
type Result struct {
	Kind    ResultKind
	Replies []string
}

func none() Result { return Result{Kind: ResultNone} }

func single(text string) Result {
	return Result{Kind: ResultSingle, Replies: []string{text}}
}

func multiple(first, second string) Result {
	return Result{Kind: ResultMultiple, Replies: []string{first, second}}
}

func noActivities() Result {
	return Result{Kind: ResultNoActivities, Replies: []string{NoActivitiesReply}}
}

func ended() Result {
	return Result{Kind: ResultEnded, Replies: []string{SessionEndedReply}}
}
