package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/sleuthgo/galleryd/internal/casedb"
	"github.com/sleuthgo/galleryd/internal/events"
)

// closeCmd closes the current case.
var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the current case",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config := GetConfig()
		logger := log.New(os.Stderr, "[close] ", log.LstdFlags)

		dispatcher := events.NewDispatcher()
		cases := casedb.NewManager(config.Cases.Dir, dispatcher, logger)

		theCase, err := cases.OpenCurrent(cmd.Context())
		if err != nil {
			if errors.Is(err, casedb.ErrNoCaseOpen) {
				fmt.Println("No case is open")
				return nil
			}
			return err
		}
		cases.Close()
		fmt.Printf("Case %q closed\n", theCase.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(closeCmd)
}
