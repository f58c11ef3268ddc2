package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"privacy-guardian/internal/pii"
)

var detectCmd = &cobra.Command{
	Use:   "detect <text>",
	Short: "Ask the classifier whether text contains personal data",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(loadConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		res := rt.pageClient().Detect(cmd.Context(), strings.Join(args, " "))
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "PII detected: %v (source: %s)\n", res.HasPII, res.Source)
		if res.Message != "" {
			fmt.Fprintln(w, res.Message)
		}
		if res.Source == pii.SourceLocalFallback {
			for _, k := range pii.Matches(strings.Join(args, " ")) {
				fmt.Fprintf(w, "  matched: %s\n", k)
			}
		}
		return nil
	},
}

var anonymizeCmd = &cobra.Command{
	Use:   "anonymize <text>",
	Short: "Ask the classifier for an anonymized rewrite of text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(loadConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		text := strings.Join(args, " ")
		res := rt.pageClient().Anonymize(cmd.Context(), text)
		w := cmd.OutOrStdout()
		if res.Failed() {
			return fmt.Errorf("anonymization unavailable: %s", res.Diagnostic())
		}
		fmt.Fprintln(w, res.RedactedText)
		for _, s := range res.Spans {
			fmt.Fprintf(w, "  %s -> %s\n", s.Original, s.Replacement)
		}
		return nil
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the classifier backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		rt, err := newRuntime(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		res := rt.pageClient().Ping(cmd.Context())
		if !res.Online {
			return fmt.Errorf("classifier at %s is offline: %s", cfg.BackendURL, res.Error)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "classifier at %s is online: %s\n", cfg.BackendURL, res.Message)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the last history-scan report",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(loadConfig())
		if err != nil {
			return err
		}
		defer rt.Close()
		return printReport(cmd.Context(), cmd.OutOrStdout(), rt.store)
	},
}

// reportReader is the slice of the store printReport needs.
type reportReader interface {
	LastReport(ctx context.Context) (pii.ScanReport, bool, error)
}

func printReport(ctx context.Context, w io.Writer, st reportReader) error {
	rep, ok, err := st.LastReport(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(w, "No history scan has run yet.")
		return nil
	}
	fmt.Fprintf(w, "Report %s\n", rep.ID)
	fmt.Fprintf(w, "  Scanned at : %s\n", rep.Timestamp.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Page       : %s\n", rep.SourceURL)
	fmt.Fprintf(w, "  Messages   : %d (%d failed)\n", rep.TotalMessagesScanned, rep.MessagesFailed)
	fmt.Fprintf(w, "  Leaks      : %d\n", rep.TotalLeaksFound)
	if len(rep.Findings) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ORIGINAL\tREPLACEMENT")
	for _, f := range rep.Findings {
		fmt.Fprintf(tw, "%s\t%s\n", f.Original, f.Replacement)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(detectCmd, anonymizeCmd, pingCmd, reportCmd)
}
