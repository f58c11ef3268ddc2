package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"privacy-guardian/internal/store"
)

var monitoringCmd = &cobra.Command{
	Use:       "monitoring [on|off]",
	Short:     "Show or switch submission monitoring",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(loadConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		if len(args) == 1 {
			var on bool
			switch args[0] {
			case "on":
				on = true
			case "off":
			default:
				return fmt.Errorf("monitoring: want on or off, got %q", args[0])
			}
			if err := rt.store.SetFlag(cmd.Context(), store.KeyMonitoringEnabled, on); err != nil {
				return err
			}
		}
		on, err := rt.store.Flag(cmd.Context(), store.KeyMonitoringEnabled, true)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "monitoring: %s\n", onOff(on))
		return nil
	},
}

var prefsKeys = map[string]string{
	"monitoring":    store.KeyMonitoringEnabled,
	"autoscan":      store.KeyAutoScan,
	"notifications": store.KeyNotificationsEnabled,
}

var prefsCmd = &cobra.Command{
	Use:   "prefs [name value]",
	Short: "Show or change preferences (monitoring, autoscan, notifications)",
	Args:  prefsArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(loadConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		if len(args) == 2 {
			key, ok := prefsKeys[args[0]]
			if !ok {
				return fmt.Errorf("prefs: unknown preference %q", args[0])
			}
			v, err := parseOnOff(args[1])
			if err != nil {
				return err
			}
			if err := rt.store.SetFlag(cmd.Context(), key, v); err != nil {
				return err
			}
		}
		p, err := rt.store.Preferences(cmd.Context())
		if err != nil {
			return err
		}
		printPreferences(cmd.OutOrStdout(), p)
		return nil
	},
}

// prefsArgs accepts no arguments (show) or a name and a value (set).
func prefsArgs(_ *cobra.Command, args []string) error {
	switch len(args) {
	case 0, 2:
		return nil
	case 1:
		return fmt.Errorf("prefs: missing value for %q", args[0])
	}
	return fmt.Errorf("prefs: accepts at most 2 args, received %d", len(args))
}

func printPreferences(w io.Writer, p store.Preferences) {
	fmt.Fprintf(w, "monitoring    : %s\n", onOff(p.MonitoringEnabled))
	fmt.Fprintf(w, "autoscan      : %s\n", onOff(p.AutoScan))
	fmt.Fprintf(w, "notifications : %s\n", onOff(p.NotificationsEnabled))
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("want on/off or true/false, got %q", s)
	}
	return v, nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func init() {
	rootCmd.AddCommand(monitoringCmd, prefsCmd)
}
