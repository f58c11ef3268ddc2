package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"privacy-guardian/internal/intercept"
	"privacy-guardian/internal/platform"
	"privacy-guardian/internal/present"
	"privacy-guardian/internal/session"
	"privacy-guardian/internal/surface"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Replay a message submission against a saved chat page",
	Long: `submit loads a saved chat page, optionally types a message into its input,
and presses send. The message goes through the same checks as in the
browser: PII detection, an anonymized rewrite, and a prompt on this terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		doc, err := openPage(cmd)
		if err != nil {
			return err
		}
		text, _ := cmd.Flags().GetString("text")
		keyboard, _ := cmd.Flags().GetBool("enter")
		outPath, _ := cmd.Flags().GetString("out")

		profile, ok := platform.MatchURL(doc.URL())
		if !ok {
			return fmt.Errorf("%s is not a supported chat platform", doc.URL())
		}
		if cmd.Flags().Changed("text") {
			input, ok := doc.QueryNode(profile.InputLocator)
			if !ok {
				return fmt.Errorf("no %s input on the page (%s)", profile.Name, profile.InputLocator)
			}
			if err := input.SetText(text); err != nil {
				return err
			}
			doc.Focus(input)
		}

		var sent []string
		doc.OnClick(func(*surface.Node) {
			if input, ok := doc.Query(profile.InputLocator); ok {
				sent = append(sent, input.Text())
			}
		})

		rt, err := newRuntime(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		client := rt.pageClient()
		sess, err := session.Open(cmd.Context(), doc, session.Options{
			Detector:         client,
			Anonymizer:       client,
			Presenter:        present.NewTerminal(cmd.InOrStdin(), cmd.OutOrStdout()),
			Scanner:          client,
			Settings:         rt.store,
			ResumeDelay:      cfg.ResumeDelay,
			RewriteSettle:    cfg.RewriteSettle,
			MinMessageLength: cfg.MinHistoryMessageLength,
			Logger:           rt.log.With("SESSION"),
			Metrics:          rt.metrics,
		})
		if err != nil {
			return err
		}

		var out intercept.Outcome
		if keyboard {
			_, out = sess.Dispatch(cmd.Context(), intercept.Event{Kind: intercept.EventKeyDown, Key: "Enter"})
		} else {
			button, ok := doc.Query(profile.SubmitLocator)
			if !ok {
				return fmt.Errorf("no %s send button on the page (%s)", profile.Name, profile.SubmitLocator)
			}
			_, out = sess.Dispatch(cmd.Context(), intercept.Event{Kind: intercept.EventClick, Target: button})
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "\nOutcome: %s\n", out)
		if out == intercept.OutcomeInactive {
			// Monitoring is off: the page's own send runs untouched.
			fmt.Fprintln(w, "Monitoring disabled, message sent as typed.")
		}
		for _, s := range sent {
			fmt.Fprintf(w, "Sent: %s\n", s)
		}
		if outPath != "" {
			html, err := doc.Render()
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, []byte(html), 0o600); err != nil {
				return fmt.Errorf("write page: %w", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	addPageFlags(submitCmd)
	submitCmd.Flags().String("text", "", "Message to type into the input before sending")
	submitCmd.Flags().Bool("enter", false, "Send with the Enter key instead of the send button")
	submitCmd.Flags().String("out", "", "Write the page as it stands after the submission")
}
