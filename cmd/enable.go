package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/sleuthgo/galleryd/internal/casedb"
	"github.com/sleuthgo/galleryd/internal/events"
	"github.com/sleuthgo/galleryd/internal/gallery"
)

// enableCmd and disableCmd write the per-case enablement override. The
// override beats the global enabled-by-default preference.
var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable the gallery module for the current case",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabledForCurrentCase(cmd, true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable the gallery module for the current case",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabledForCurrentCase(cmd, false)
	},
}

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
}

func setEnabledForCurrentCase(cmd *cobra.Command, enabled bool) error {
	config := GetConfig()
	logger := log.New(os.Stderr, "[enable] ", log.LstdFlags)

	dispatcher := events.NewDispatcher()
	cases := casedb.NewManager(config.Cases.Dir, dispatcher, logger)

	theCase, err := cases.OpenCurrent(cmd.Context())
	if err != nil {
		return err
	}
	defer cases.Close()

	policy := gallery.NewEnablementPolicy()
	if err := policy.SetEnabledForCase(theCase, enabled); err != nil {
		return err
	}
	fmt.Printf("Gallery module %s for case %q\n", enabledWord(enabled), theCase.Name)
	return nil
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
