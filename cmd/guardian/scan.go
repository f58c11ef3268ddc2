package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"privacy-guardian/internal/intercept"
	"privacy-guardian/internal/session"
	"privacy-guardian/internal/store"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the user messages of a saved chat page for earlier leaks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		doc, err := openPage(cmd)
		if err != nil {
			return err
		}
		rt, err := newRuntime(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		client := rt.pageClient()
		sess, err := session.Open(cmd.Context(), doc, session.Options{
			Detector:         client,
			Anonymizer:       client,
			Presenter:        cancelPresenter{},
			Scanner:          client,
			Settings:         noAutoScan{rt.store},
			MinMessageLength: cfg.MinHistoryMessageLength,
			Logger:           rt.log.With("SESSION"),
			Metrics:          rt.metrics,
		})
		if err != nil {
			return err
		}
		if !sess.Active() {
			return fmt.Errorf("%s is not a supported chat platform", doc.URL())
		}

		resp, err := sess.ScanPage(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Scan complete: %d potential leak(s) found\n", resp.LeaksFound)
		if resp.LeaksFound > 0 {
			return printReport(cmd.Context(), w, rt.store)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	addPageFlags(scanCmd)
}

// noAutoScan keeps the open-time scan off so the page is scanned once.
type noAutoScan struct{ *store.Store }

func (s noAutoScan) Flag(ctx context.Context, key string, def bool) (bool, error) {
	if key == store.KeyAutoScan {
		return false, nil
	}
	return s.Store.Flag(ctx, key, def)
}

// cancelPresenter holds every submission; scan sessions never submit.
type cancelPresenter struct{}

func (cancelPresenter) Present(context.Context, intercept.Prompt) (intercept.Decision, error) {
	return intercept.DecisionCancel, nil
}
