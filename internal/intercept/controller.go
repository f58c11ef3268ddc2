package intercept

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"privacy-guardian/internal/logger"
	"privacy-guardian/internal/metrics"
	"privacy-guardian/internal/platform"
	"privacy-guardian/internal/store"
	"privacy-guardian/internal/surface"
)

// Config wires a Controller. Settings, Logger and Metrics are optional.
type Config struct {
	Profile    platform.Profile
	Page       surface.Page
	Detector   Detector
	Anonymizer Anonymizer
	Presenter  Presenter
	Settings   Settings

	// ResumeDelay is waited before the submission is re-issued.
	ResumeDelay time.Duration
	// RewriteSettle is waited after the input is rewritten so the page can
	// observe the change.
	RewriteSettle time.Duration

	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// Controller runs the interception workflow for one page context.
type Controller struct {
	profile    platform.Profile
	detector   Detector
	anonymizer Anonymizer
	presenter  Presenter
	settings   Settings

	resumeDelay   time.Duration
	rewriteSettle time.Duration

	log     *logger.Logger
	metrics *metrics.Metrics

	mu   sync.Mutex // guards page
	page surface.Page

	// busy is the re-entrancy guard; gen is bumped by Reset so a resume
	// scheduled for a previous page is dropped.
	busy  atomic.Bool
	gen   atomic.Uint64
	state atomic.Int32
}

// New validates cfg and returns an idle Controller.
func New(cfg Config) (*Controller, error) {
	switch {
	case cfg.Page == nil:
		return nil, errors.New("intercept: page is required")
	case cfg.Detector == nil:
		return nil, errors.New("intercept: detector is required")
	case cfg.Anonymizer == nil:
		return nil, errors.New("intercept: anonymizer is required")
	case cfg.Presenter == nil:
		return nil, errors.New("intercept: presenter is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Controller{
		profile:       cfg.Profile,
		detector:      cfg.Detector,
		anonymizer:    cfg.Anonymizer,
		presenter:     cfg.Presenter,
		settings:      cfg.Settings,
		resumeDelay:   cfg.ResumeDelay,
		rewriteSettle: cfg.RewriteSettle,
		log:           log,
		metrics:       cfg.Metrics,
		page:          cfg.Page,
	}, nil
}

// State returns the current workflow state.
func (c *Controller) State() State { return State(c.state.Load()) }

// Busy reports whether a submission is being processed.
func (c *Controller) Busy() bool { return c.busy.Load() }

// Page returns the page the controller currently acts on.
func (c *Controller) Page() surface.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// Reset points the controller at a new page after navigation. A resume still
// pending for the old page is dropped.
func (c *Controller) Reset(page surface.Page) {
	c.mu.Lock()
	c.page = page
	c.mu.Unlock()
	c.gen.Add(1)
	c.log.Infof("reset", "page context reset for %s", page.URL())
}

// HandleSubmission runs the workflow for one user submission. trigger is the
// control the user activated, or nil for a keyboard submission.
//
// Every path except cancel (and the inert ones: inactive, busy, no target,
// empty) ends by re-issuing the submission exactly once. The guard is held
// until the resume delay has passed and released just before the click, on
// every exit path, panics included.
func (c *Controller) HandleSubmission(ctx context.Context, trigger surface.Element) (out Outcome) {
	if !c.active(ctx) {
		return c.record(OutcomeInactive)
	}
	if !c.busy.CompareAndSwap(false, true) {
		c.log.Debug("guard", "submission already in progress, ignoring")
		return c.record(OutcomeBusy)
	}

	gen := c.gen.Load()
	page := c.Page()
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("panic", "workflow aborted, submitting unmodified: %v", r)
			out = OutcomeFailed
		}
		c.state.Store(int32(StateIdle))
		var target surface.Element
		func() {
			defer c.busy.Store(false)
			if out.Resumes() {
				target = c.resumeTarget(ctx, gen, page, trigger)
			}
		}()
		if target != nil {
			c.click(target)
		}
		c.record(out)
	}()

	return c.run(ctx, page)
}

// run executes steps 1-5. The caller resumes according to the outcome.
func (c *Controller) run(ctx context.Context, page surface.Page) Outcome {
	c.setState(StateExtracting)
	input, ok := page.Query(c.profile.InputLocator)
	if !ok {
		c.log.Debugf("extract", "no input at %q", c.profile.InputLocator)
		return OutcomeNoTarget
	}
	sub := submission{rawText: input.Text()}
	if strings.TrimSpace(sub.rawText) == "" {
		return OutcomeEmpty
	}

	c.setState(StateDetecting)
	det := c.detector.Detect(ctx, sub.rawText)
	sub.detection = &det
	if !det.HasPII {
		c.log.Debugf("detect", "no PII (source=%s)", det.Source)
		return OutcomeClean
	}
	c.log.Infof("detect", "PII detected (source=%s)", det.Source)

	c.setState(StateAnonymizing)
	anon := c.anonymizer.Anonymize(ctx, sub.rawText)
	sub.anonymization = &anon

	c.setState(StatePresenting)
	prompt := NewPrompt(sub.rawText, anon)
	dec, err := c.presenter.Present(ctx, prompt)
	if err != nil {
		c.log.Warnf("present", "no decision, submitting unmodified: %v", err)
		return OutcomeFailed
	}
	if !prompt.Offers(dec) {
		c.log.Warnf("present", "decision %q was not offered, treating as proceed", dec)
		dec = DecisionProceed
	}
	sub.decision = dec

	switch sub.decision {
	case DecisionCancel:
		c.log.Info("decision", "submission cancelled by user")
		return OutcomeCancelled
	case DecisionUseRedacted:
		c.setState(StateRewriting)
		if err := input.SetText(anon.RedactedText); err != nil {
			// The user refused the original text; do not send it.
			c.log.Errorf("rewrite", "input not rewritten, submission held: %v", err)
			return OutcomeCancelled
		}
		sleep(ctx, c.rewriteSettle)
		c.log.Infof("decision", "submitting redacted text (%d span(s))", len(anon.Spans))
		return OutcomeRedacted
	default:
		c.log.Info("decision", "submitting unmodified text")
		return OutcomeProceeded
	}
}

// resumeTarget waits out the resume delay and returns the control to click:
// the page's current submit control, or the original trigger when the
// control is gone. nil means the resume is dropped.
func (c *Controller) resumeTarget(ctx context.Context, gen uint64, page surface.Page, trigger surface.Element) (target surface.Element) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("resume", "submit control lookup failed: %v", r)
			target = nil
		}
	}()
	if !sleep(ctx, c.resumeDelay) {
		c.log.Warn("resume", "context ended before resume, submission dropped")
		return nil
	}
	if c.gen.Load() != gen {
		c.log.Info("resume", "page changed since submission, resume dropped")
		return nil
	}
	if el, ok := page.Query(c.profile.SubmitLocator); ok {
		return el
	}
	if trigger == nil {
		c.log.Warnf("resume", "no submit control at %q, skipped", c.profile.SubmitLocator)
		return nil
	}
	return trigger
}

// click re-issues the submission. Element.Click bypasses interception, so
// the guard is already released when this runs.
func (c *Controller) click(target surface.Element) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("resume", "submit failed: %v", r)
		}
	}()
	if err := target.Click(); err != nil {
		c.log.Warnf("resume", "submit failed: %v", err)
	}
}

// active reports whether interception applies at all. A settings read error
// keeps monitoring on.
func (c *Controller) active(ctx context.Context) bool {
	if c.profile.InputLocator == "" {
		return false
	}
	if c.settings == nil {
		return true
	}
	on, err := c.settings.Flag(ctx, store.KeyMonitoringEnabled, true)
	if err != nil {
		c.log.Warnf("settings", "monitoring flag unreadable, keeping it on: %v", err)
		return true
	}
	return on
}

func (c *Controller) setState(s State) { c.state.Store(int32(s)) }

func (c *Controller) record(o Outcome) Outcome {
	if c.metrics != nil {
		c.metrics.RecordOutcome(string(o))
	}
	return o
}

// sleep waits d or until ctx ends, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
