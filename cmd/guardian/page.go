package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"privacy-guardian/internal/surface"
)

// addPageFlags registers the flags every snapshot-driven command takes.
func addPageFlags(cmd *cobra.Command) {
	cmd.Flags().String("page", "", "Saved HTML snapshot of the chat page (required)")
	cmd.Flags().String("url", "", "URL the snapshot was taken from (required)")
	cmd.MarkFlagRequired("page") //nolint:errcheck // flag defined above
	cmd.MarkFlagRequired("url")  //nolint:errcheck // flag defined above
}

// openPage parses the snapshot named by the page flags.
func openPage(cmd *cobra.Command) (*surface.Document, error) {
	path, _ := cmd.Flags().GetString("page")
	pageURL, _ := cmd.Flags().GetString("url")

	f, err := os.Open(path) // #nosec G304 -- user-supplied snapshot path
	if err != nil {
		return nil, fmt.Errorf("open page snapshot: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only
	doc, err := surface.Parse(pageURL, f)
	if err != nil {
		return nil, fmt.Errorf("parse page snapshot %s: %w", path, err)
	}
	return doc, nil
}
