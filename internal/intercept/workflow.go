// Package intercept holds the submission interception workflow: every
// outgoing chat message is checked for PII and, when some is found, held
// until the user decides to cancel, send a redacted version or send it
// anyway.
//
// One Controller exists per page context. It is built once when the page
// is opened and Reset on navigation.
package intercept

import (
	"context"

	"privacy-guardian/internal/pii"
)

// State is the controller's position in the workflow.
type State int32

// Workflow states.
const (
	StateIdle State = iota
	StateExtracting
	StateDetecting
	StateAnonymizing
	StatePresenting
	StateRewriting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExtracting:
		return "extracting"
	case StateDetecting:
		return "detecting"
	case StateAnonymizing:
		return "anonymizing"
	case StatePresenting:
		return "presenting"
	case StateRewriting:
		return "rewriting"
	}
	return "unknown"
}

// Outcome is how one HandleSubmission call ended. The values double as
// metrics labels.
type Outcome string

// Submission outcomes.
const (
	OutcomeInactive  Outcome = "inactive"  // monitoring off or no profile; not intercepted
	OutcomeBusy      Outcome = "busy"      // another submission in flight; dropped
	OutcomeNoTarget  Outcome = "no_target" // input not on the page
	OutcomeEmpty     Outcome = "empty"
	OutcomeClean     Outcome = "clean"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeRedacted  Outcome = "redacted"
	OutcomeProceeded Outcome = "proceeded"
	OutcomeFailed    Outcome = "failed"
)

// Resumes reports whether the outcome ends by re-issuing the submission.
func (o Outcome) Resumes() bool {
	switch o {
	case OutcomeClean, OutcomeRedacted, OutcomeProceeded, OutcomeFailed:
		return true
	}
	return false
}

// Decision is the user's answer to a Prompt.
type Decision string

// The three terminal choices.
const (
	DecisionCancel      Decision = "cancel"
	DecisionUseRedacted Decision = "use-redacted"
	DecisionProceed     Decision = "proceed-anyway"
)

// Prompt is what the presenter shows the user.
type Prompt struct {
	Original string
	Result   pii.AnonymizationResult
	Choices  []Decision
}

// NewPrompt builds the prompt for original. The use-redacted choice is
// offered only when the anonymization produced an alternative text.
func NewPrompt(original string, res pii.AnonymizationResult) Prompt {
	p := Prompt{Original: original, Result: res}
	p.Choices = append(p.Choices, DecisionCancel)
	if !res.Failed() && res.HasRedaction(original) {
		p.Choices = append(p.Choices, DecisionUseRedacted)
	}
	p.Choices = append(p.Choices, DecisionProceed)
	return p
}

// Offers reports whether d is one of the prompt's choices.
func (p Prompt) Offers(d Decision) bool {
	for _, c := range p.Choices {
		if c == d {
			return true
		}
	}
	return false
}

// Redacted returns the redacted text when it differs from the original.
func (p Prompt) Redacted() (string, bool) {
	r := p.Result.RedactedText
	return r, r != "" && r != p.Original
}

// Detector classifies text. It never fails; failures degrade internally.
type Detector interface {
	Detect(ctx context.Context, text string) pii.DetectionResult
}

// Anonymizer redacts text. A failed call returns a degraded result.
type Anonymizer interface {
	Anonymize(ctx context.Context, text string) pii.AnonymizationResult
}

// Presenter blocks until the user picks one of the prompt's choices. It has
// no timeout of its own; only ctx ends the wait early.
type Presenter interface {
	Present(ctx context.Context, p Prompt) (Decision, error)
}

// Settings reads persisted boolean flags.
type Settings interface {
	Flag(ctx context.Context, key string, def bool) (bool, error)
}

// submission is the transient record of one workflow run.
type submission struct {
	rawText       string
	detection     *pii.DetectionResult
	anonymization *pii.AnonymizationResult
	decision      Decision
}
