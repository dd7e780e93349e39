package chat

import (
	"fmt"

	"github.com/antoniostano/datachat/internal/session"
)

// clarificationSeparator joins the original request with the user's answer
// when a clarified turn resumes.
const clarificationSeparator = "\n\n[Clarification response]: "

// ClarificationCoordinator manages the ask/answer round-trip: it parks the
// interrupted input on the session and later rebuilds a combined input the
// planner can work with. Rounds can nest; the parked text is always the full
// combined input the interrupted stage saw.
type ClarificationCoordinator struct{}

func NewClarificationCoordinator() *ClarificationCoordinator {
	return &ClarificationCoordinator{}
}

// Begin records that a clarification question is outstanding for the session.
// originalText must be the input the interrupted stage actually processed;
// intent is set when the question came from the fetch stage.
func (c *ClarificationCoordinator) Begin(sess *session.Session, originalText, intent string) {
	sess.SetPending(session.PendingClarification{
		OriginalText: originalText,
		Intent:       intent,
	})
}

// Resume consumes the pending clarification, if any, and returns the input
// the pipeline should process: the combined original-plus-answer when a
// question was outstanding, the raw text otherwise.
func (c *ClarificationCoordinator) Resume(sess *session.Session, text string) (string, bool) {
	pending := sess.TakePending()
	if pending == nil {
		return text, false
	}
	return Combine(pending.OriginalText, text), true
}

// Combine merges the original request with the clarification answer into a
// single planner input.
func Combine(original, answer string) string {
	return fmt.Sprintf("%s%s%s", original, clarificationSeparator, answer)
}
