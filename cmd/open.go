package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sleuthgo/galleryd/internal/casedb"
	"github.com/sleuthgo/galleryd/internal/events"
	"github.com/sleuthgo/galleryd/internal/gallery"
	"github.com/sleuthgo/galleryd/internal/settings"
)

var openDataSources []string

// openCmd opens (creating if needed) a case and makes it current.
var openCmd = &cobra.Command{
	Use:   "open <case-name>",
	Short: "Open a case and make it the current case",
	Args:  cobra.ExactArgs(1),
	RunE:  runOpen,
}

func init() {
	rootCmd.AddCommand(openCmd)
	openCmd.Flags().StringArrayVar(&openDataSources, "data-source", nil, "Data source directory to register (repeatable)")
}

func runOpen(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()
	logger := log.New(os.Stderr, "[open] ", log.LstdFlags)

	dispatcher := events.NewDispatcher()
	cases := casedb.NewManager(config.Cases.Dir, dispatcher, logger)

	theCase, err := cases.Open(ctx, args[0])
	if err != nil {
		return err
	}

	// Seed the tag definitions so the standard tags exist from the start.
	tagProps := settings.NewCaseProperties(theCase)
	if err := settings.SaveTagNameDefinitions(tagProps, settings.LoadTagNameDefinitions(tagProps)); err != nil {
		logger.Printf("Failed to seed tag definitions: %v", err)
	}

	for _, dir := range openDataSources {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("bad data source path %s: %w", dir, err)
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			return fmt.Errorf("data source %s is not a directory", abs)
		}
		ds, err := cases.AddDataSource(ctx, filepath.Base(abs), abs)
		if err != nil {
			return err
		}
		fmt.Printf("Registered data source %d: %s\n", ds.ID, abs)
	}

	fmt.Printf("Case %q is now current\n", theCase.Name)
	fmt.Printf("Module output: %s\n", gallery.ModuleOutputDir(theCase))
	return nil
}
