package engine

// ActionKind identifies a game action for dispatch and history.
type ActionKind string

const (
	ActionPlaceBid                  ActionKind = "PLACE_BID"
	ActionPlayCard                  ActionKind = "PLAY_CARD"
	ActionPlaceTile                 ActionKind = "PLACE_TILE"
	ActionPass                      ActionKind = "PASS"
	ActionContinueAfterTrickResult  ActionKind = "CONTINUE_AFTER_TRICK_RESULT"
	ActionContinueAfterRoundSummary ActionKind = "CONTINUE_AFTER_ROUND_SUMMARY"
)

// Action is a typed game action. Each game package defines its own concrete
// action types; each carries exactly the fields its reducer needs.
type Action interface {
	Kind() ActionKind
	Actor() string
}

// ContinueAfterTrickResult acknowledges a resolved trick and resumes play.
type ContinueAfterTrickResult struct {
	UserID string
}

func (ContinueAfterTrickResult) Kind() ActionKind { return ActionContinueAfterTrickResult }
func (a ContinueAfterTrickResult) Actor() string  { return a.UserID }

// ContinueAfterRoundSummary acknowledges a round summary and deals the next
// round.
type ContinueAfterRoundSummary struct {
	UserID string
}

func (ContinueAfterRoundSummary) Kind() ActionKind { return ActionContinueAfterRoundSummary }
func (a ContinueAfterRoundSummary) Actor() string  { return a.UserID }
