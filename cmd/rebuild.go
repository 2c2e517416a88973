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

// rebuildCmd re-catalogs the drawables database for the current case.
var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the drawables database for the current case",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		config := GetConfig()
		logger := log.New(os.Stderr, "[rebuild] ", log.LstdFlags)

		dispatcher := events.NewDispatcher()
		cases := casedb.NewManager(config.Cases.Dir, dispatcher, logger)

		theCase, err := cases.OpenCurrent(ctx)
		if err != nil {
			return err
		}
		defer cases.Close()

		module := gallery.NewModule(cases, dispatcher, logger)
		ctrl, err := module.GetController()
		if err != nil {
			return err
		}
		defer ctrl.Shutdown()

		if err := ctrl.RebuildDatabase(ctx); err != nil {
			return fmt.Errorf("rebuild failed for case %s: %w", theCase.Name, err)
		}

		count, err := ctrl.Database().CountFiles(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Rebuilt drawables database for case %q: %d files\n", theCase.Name, count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}
