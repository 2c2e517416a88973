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

// statusCmd prints the drawables build state for the current case.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show drawables status for the current case",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		config := GetConfig()
		logger := log.New(os.Stderr, "[status] ", log.LstdFlags)

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

		fmt.Printf("Case: %s (%s)\n", theCase.Name, theCase.ID)
		fmt.Printf("Enabled: %v\n", module.IsEnabledForCase(theCase))
		fmt.Printf("Stale: %v\n", ctrl.IsStale())

		count, err := ctrl.Database().CountFiles(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Drawables: %d\n", count)

		statuses, err := ctrl.Database().ListDataSourceStatuses(ctx)
		if err != nil {
			return err
		}
		if len(statuses) == 0 {
			fmt.Println("No data sources registered")
			return nil
		}
		fmt.Println("Data sources:")
		for _, st := range statuses {
			fmt.Printf("  %d  %-12s  %s\n", st.DataSourceID, st.Status, st.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
