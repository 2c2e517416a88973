package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sleuthgo/galleryd/internal/bus"
	"github.com/sleuthgo/galleryd/internal/casedb"
	"github.com/sleuthgo/galleryd/internal/datamodel"
	"github.com/sleuthgo/galleryd/internal/events"
	"github.com/sleuthgo/galleryd/internal/gallery"
	"github.com/sleuthgo/galleryd/internal/ingest"
	"github.com/sleuthgo/galleryd/internal/ui"
)

const busConsumerGroup = "galleryd"

var (
	noTUI    bool
	forceTUI bool

	serveCase  string
	serveWatch bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gallery service for the current case",
	Long: `Run the gallery service, which includes:

1. Terminal status view for the drawables database
2. Ingest of the case's data source folders
3. Gallery event routing for ingest and case notifications
4. Redis Streams bridge for multi-node analysis notifications

The serve command runs until interrupted (Ctrl+C) and handles:
- Drawables tracking as files finish ingest
- Per-data-source build status
- Rebuild prompts when remote nodes complete analysis
- Graceful shutdown of all components

Examples:
  # Serve the current case with the status view
  galleryd serve

  # Serve headless (no event listeners are registered)
  galleryd serve --no-tui

  # Keep cataloging files as they appear in data source folders
  galleryd serve --watch`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&noTUI, "no-tui", false, "Run in headless mode without the status view")
	serveCmd.Flags().BoolVar(&forceTUI, "force-tui", false, "Force TUI mode even in unsupported terminals")
	serveCmd.Flags().StringVar(&serveCase, "case", "", "Case to open (default: the current case)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Keep watching data source folders after the initial scan")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()

	willUseTUI := determineTUIMode()

	// File logging in TUI mode keeps the terminal clean; errors still reach
	// stderr through the filter writer.
	var logger *log.Logger
	if willUseTUI {
		logFile := setupFileLogger()
		if logFile != nil {
			logger = log.New(io.MultiWriter(logFile, &errorFilterWriter{os.Stderr}), "[serve] ", log.LstdFlags)
			defer logFile.Close()
		} else {
			logger = log.New(os.Stderr, "[serve] ", log.LstdFlags)
		}
	} else {
		logger = log.New(os.Stderr, "[serve] ", log.LstdFlags)
	}

	logger.Println("Starting galleryd")

	quietLogger := logger
	if willUseTUI {
		quietLogger = log.New(io.Discard, "", 0)
	}

	dispatcher := events.NewDispatcher()
	cases := casedb.NewManager(config.Cases.Dir, dispatcher, logger)

	// Listeners must be in place before the case opens so the controller
	// registry sees the open event. Headless sessions register nothing.
	module := gallery.NewModule(cases, dispatcher, logger)
	module.Start(willUseTUI)

	var theCase *datamodel.Case
	var err error
	if serveCase != "" {
		theCase, err = cases.Open(ctx, serveCase)
	} else {
		theCase, err = cases.OpenCurrent(ctx)
	}
	if err != nil {
		if errors.Is(err, casedb.ErrNoCaseOpen) {
			return fmt.Errorf("no case is open; run 'galleryd open <case-name>' first")
		}
		return err
	}
	defer cases.Close()
	logger.Printf("Serving case %s (%s)", theCase.Name, theCase.ID)

	store, err := cases.CurrentStore()
	if err != nil {
		return err
	}

	// Ingest manager and reference hash set.
	ingestManager := ingest.NewManager(dispatcher, quietLogger)
	if config.Ingest.HashSetPath != "" {
		if err := ingestManager.LoadKnownHashes(config.Ingest.HashSetPath); err != nil {
			logger.Printf("Failed to load hash set: %v", err)
		}
	}

	// Event bus (Redis or Null).
	logger.Println("Connecting to event bus...")
	eventBus := bus.NewBus(config.Redis.URL, quietLogger)
	defer eventBus.Close()

	// Background services stop when serve winds down, TUI exit included.
	serveCtx, stopServices := context.WithCancel(ctx)
	defer stopServices()
	g, gctx := errgroup.WithContext(serveCtx)

	// Local analysis completions go out on the bus so other nodes working
	// this case learn their drawables are stale.
	dispatcher.SubscribeJob(func(ev events.JobEvent) {
		done, ok := ev.(events.AnalysisCompleted)
		if !ok || done.Origin != events.OriginLocal {
			return
		}
		msg := bus.AnalysisMessage{
			NodeID:       config.Node.ID,
			CaseID:       theCase.ID,
			DataSourceID: done.DataSourceID,
			Timestamp:    time.Now().Unix(),
		}
		if err := eventBus.PublishAnalysisCompleted(gctx, msg); err != nil {
			logger.Printf("Failed to publish analysis completion: %v", err)
		}
	})

	// Other nodes' completions replay into the dispatcher with remote origin.
	g.Go(func() error {
		handler := func(ctx context.Context, msg bus.AnalysisMessage) error {
			if msg.NodeID == config.Node.ID || msg.CaseID != theCase.ID {
				return nil
			}
			logger.Printf("Remote node %s completed analysis of data source %d", msg.NodeID, msg.DataSourceID)
			dispatcher.PublishJob(events.AnalysisCompleted{DataSourceID: msg.DataSourceID, Origin: events.OriginRemote})
			return nil
		}
		err := eventBus.ReadAnalysisStream(gctx, busConsumerGroup, config.Node.ID, handler)
		if gctx.Err() != nil {
			return nil
		}
		return err
	})

	// Keep the analysis stream bounded on multi-node deployments.
	if redisBus, ok := eventBus.(*bus.RedisBus); ok {
		g.Go(func() error {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if err := redisBus.TrimStream(gctx, 10000); err != nil {
						logger.Printf("Failed to trim analysis stream: %v", err)
					}
				}
			}
		})
	}

	// One folder ingestor per registered data source.
	sources, err := store.ListDataSources(ctx)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		logger.Println("Case has no data sources; add some with 'galleryd open --data-source'")
	}
	for _, ds := range sources {
		ds := ds
		fing, err := ingest.NewFolderIngestor(ingestManager, store, ds, ingest.FolderOptions{
			Watch:  serveWatch,
			Logger: quietLogger,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := fing.Run(gctx); err != nil && gctx.Err() == nil {
				logger.Printf("Folder ingest error for data source %d: %v", ds.ID, err)
			}
			return nil
		})
	}

	if willUseTUI {
		logger.Println("Starting status view...")
		view := ui.NewUI(module, logger)
		if err := view.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("TUI error: %w", err)
		}
		logger.Println("Status view exited, stopping background services...")
	} else {
		logger.Println("Running in headless mode...")
		<-gctx.Done()
		logger.Println("Received shutdown signal")
	}
	stopServices()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if ctrl, err := module.GetController(); err == nil {
		ctrl.Shutdown()
	}

	logger.Println("galleryd stopped")
	return nil
}

// determineTUIMode determines if the status view will be used.
func determineTUIMode() bool {
	if noTUI {
		return false
	}
	if forceTUI {
		return true
	}
	return isTerminal() && canInitializeTUI()
}

// canInitializeTUI tests if tcell can actually be initialized.
func canInitializeTUI() bool {
	screen, err := tcell.NewScreen()
	if err != nil {
		return false
	}
	if err := screen.Init(); err != nil {
		return false
	}
	screen.Fini()
	return true
}

// isTerminal checks if stdout is a terminal.
func isTerminal() bool {
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// setupFileLogger creates a log file for TUI mode. Returns nil when the file
// cannot be created; the caller falls back to stderr.
func setupFileLogger() *os.File {
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil
	}
	logPath := filepath.Join(logDir, "galleryd-serve.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil
	}
	return logFile
}

// errorFilterWriter only writes error messages to the underlying writer, so
// the TUI screen stays intact while real problems still surface.
type errorFilterWriter struct {
	writer io.Writer
}

func (w *errorFilterWriter) Write(p []byte) (n int, err error) {
	lc := strings.ToLower(string(p))
	if strings.Contains(lc, "error") ||
		strings.Contains(lc, "failed") ||
		strings.Contains(lc, "severe") ||
		strings.Contains(lc, "panic") {
		return w.writer.Write(p)
	}
	return len(p), nil
}
