// Package session is the page context: one Session per opened chat page,
// owning the profile match, the interception controller and the history
// scan triggers.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"privacy-guardian/internal/intercept"
	"privacy-guardian/internal/logger"
	"privacy-guardian/internal/metrics"
	"privacy-guardian/internal/pii"
	"privacy-guardian/internal/platform"
	"privacy-guardian/internal/router"
	"privacy-guardian/internal/scan"
	"privacy-guardian/internal/store"
	"privacy-guardian/internal/surface"
)

// ErrInactive is returned by triggers on a page no profile matched.
var ErrInactive = errors.New("session: platform not supported")

// HistoryScanner sends collected messages to the privileged side.
type HistoryScanner interface {
	ScanHistory(ctx context.Context, messages []pii.Message, sourceURL string) router.ScanHistoryResponse
}

// Options wires a Session. Settings, Logger and Metrics are optional.
type Options struct {
	Detector   intercept.Detector
	Anonymizer intercept.Anonymizer
	Presenter  intercept.Presenter
	Scanner    HistoryScanner
	Settings   intercept.Settings

	ResumeDelay      time.Duration
	RewriteSettle    time.Duration
	MinMessageLength int

	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// Session is built once per page context. Its methods are called from the
// page's event loop and are not safe for concurrent use.
type Session struct {
	profile platform.Profile
	active  bool
	ctrl    *intercept.Controller
	opts    Options
	log     *logger.Logger
}

// Open matches page against the supported platforms. With no match the
// session stays inert: it never intercepts and its triggers return
// ErrInactive. Otherwise the controller is built and, when auto-scan is on,
// the page's history is scanned once.
func Open(ctx context.Context, page surface.Page, opts Options) (*Session, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	s := &Session{opts: opts, log: log}

	profile, ok := platform.MatchURL(page.URL())
	if !ok {
		log.Infof("open", "platform not supported: %s", page.URL())
		return s, nil
	}
	if err := s.attach(profile, page); err != nil {
		return nil, err
	}
	log.Infof("open", "initialized on %s", profile.Domain)

	if s.flag(ctx, store.KeyAutoScan) {
		if _, err := s.ScanPage(ctx); err != nil {
			log.Warnf("autoscan", "history scan on load failed: %v", err)
		}
	}
	return s, nil
}

// Active reports whether a profile matched.
func (s *Session) Active() bool { return s.active }

// Profile returns the matched profile.
func (s *Session) Profile() (platform.Profile, bool) { return s.profile, s.active }

// Controller returns the interception controller, nil when inert.
func (s *Session) Controller() *intercept.Controller { return s.ctrl }

// Dispatch forwards a page event to the controller.
func (s *Session) Dispatch(ctx context.Context, ev intercept.Event) (bool, intercept.Outcome) {
	if !s.active {
		return false, intercept.OutcomeInactive
	}
	return s.ctrl.Dispatch(ctx, ev)
}

// Submit runs the workflow for a submission triggered by control (nil for
// the keyboard).
func (s *Session) Submit(ctx context.Context, control surface.Element) intercept.Outcome {
	if !s.active {
		return intercept.OutcomeInactive
	}
	return s.ctrl.HandleSubmission(ctx, control)
}

// ScanPage collects the user's rendered messages and asks for a history
// scan. A page without qualifying messages is not sent.
func (s *Session) ScanPage(ctx context.Context) (router.ScanHistoryResponse, error) {
	if !s.active {
		return router.ScanHistoryResponse{}, ErrInactive
	}
	if s.opts.Scanner == nil {
		return router.ScanHistoryResponse{}, errors.New("session: no history scanner")
	}
	page := s.ctrl.Page()
	msgs := scan.Collect(page, s.profile, s.opts.MinMessageLength)
	if len(msgs) == 0 {
		s.log.Debug("scan", "no user messages to scan")
		return router.ScanHistoryResponse{Success: true}, nil
	}
	s.log.Infof("scan", "scanning %d message(s)", len(msgs))
	resp := s.opts.Scanner.ScanHistory(ctx, msgs, page.URL())
	if !resp.Success {
		return resp, fmt.Errorf("history scan failed: %s", resp.Error)
	}
	return resp, nil
}

// Navigate moves the session to page and matches it again. Within the same
// platform the controller is reset, which drops any pending resume. A page on
// another supported platform gets a fresh controller, and an unsupported page
// makes the session inert until a later Navigate lands on a supported one.
// Navigation never triggers an auto-scan.
func (s *Session) Navigate(page surface.Page) error {
	p, ok := platform.MatchURL(page.URL())
	switch {
	case ok && s.active && p.Name == s.profile.Name:
		s.ctrl.Reset(page)
		return nil
	case !ok:
		if s.active {
			s.log.Infof("navigate", "left %s, interception disabled", s.profile.Domain)
			s.ctrl.Reset(page)
		}
		s.profile, s.active, s.ctrl = platform.Profile{}, false, nil
		return nil
	}
	if s.active {
		s.ctrl.Reset(page)
	}
	if err := s.attach(p, page); err != nil {
		s.profile, s.active, s.ctrl = platform.Profile{}, false, nil
		return err
	}
	s.log.Infof("navigate", "interception enabled on %s", p.Domain)
	return nil
}

// attach builds the controller for profile on page and activates the session.
func (s *Session) attach(profile platform.Profile, page surface.Page) error {
	ctrl, err := intercept.New(intercept.Config{
		Profile:       profile,
		Page:          page,
		Detector:      s.opts.Detector,
		Anonymizer:    s.opts.Anonymizer,
		Presenter:     s.opts.Presenter,
		Settings:      s.opts.Settings,
		ResumeDelay:   s.opts.ResumeDelay,
		RewriteSettle: s.opts.RewriteSettle,
		Logger:        s.log.With("INTERCEPT"),
		Metrics:       s.opts.Metrics,
	})
	if err != nil {
		return err
	}
	s.profile, s.active, s.ctrl = profile, true, ctrl
	return nil
}

func (s *Session) flag(ctx context.Context, key string) bool {
	if s.opts.Settings == nil {
		return true
	}
	v, err := s.opts.Settings.Flag(ctx, key, true)
	if err != nil {
		s.log.Warnf("settings", "%s unreadable: %v", key, err)
	}
	return v
}
