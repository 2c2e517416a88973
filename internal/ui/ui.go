// Package ui is the terminal interface: a gallery status panel showing
// per-data-source drawables build state, and the rebuild confirmation modal
// fed by the module's prompt channel.
package ui

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/sleuthgo/galleryd/internal/drawabledb"
	"github.com/sleuthgo/galleryd/internal/gallery"
)

const refreshInterval = 2 * time.Second

// UI is the gallery terminal interface.
type UI struct {
	app    *tview.Application
	pages  *tview.Pages
	table  *tview.Table
	header *tview.TextView
	status *tview.TextView

	module *gallery.Module
	logger *log.Logger
}

// NewUI builds the interface around the gallery module.
func NewUI(module *gallery.Module, logger *log.Logger) *UI {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	ui := &UI{
		app:    tview.NewApplication(),
		pages:  tview.NewPages(),
		table:  tview.NewTable(),
		header: tview.NewTextView().SetDynamicColors(true),
		status: tview.NewTextView().SetDynamicColors(true),
		module: module,
		logger: logger,
	}

	ui.table.SetBorders(false).SetSelectable(false, false)
	ui.table.SetBorder(true).SetTitle(" Data Sources ")

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.header, 2, 0, false).
		AddItem(ui.table, 0, 1, true).
		AddItem(ui.status, 1, 0, false)

	ui.pages.AddPage("main", layout, true, true)
	ui.app.SetRoot(ui.pages, true)

	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q':
			ui.app.Stop()
			return nil
		case 'r':
			ui.refresh()
			return nil
		}
		return event
	})

	return ui
}

// Run drives the interface until the context is cancelled or the user
// quits. It marks the gallery view open for the duration, so the router
// knows when a rebuild prompt can reach the user.
func (ui *UI) Run(ctx context.Context) error {
	ui.module.SetViewOpen(true)
	defer ui.module.SetViewOpen(false)

	ui.module.SetViewCloser(func() {
		ui.app.QueueUpdateDraw(func() {
			ui.pages.SwitchToPage("main")
			ui.setStatus("Case closed")
		})
	})

	go ui.promptLoop(ctx)
	go ui.refreshLoop(ctx)

	done := make(chan error, 1)
	go func() { done <- ui.app.Run() }()

	select {
	case <-ctx.Done():
		ui.app.Stop()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (ui *UI) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	ui.refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ui.refresh()
		}
	}
}

func (ui *UI) refresh() {
	ctrl, err := ui.module.GetController()
	if err != nil {
		ui.app.QueueUpdateDraw(func() {
			ui.header.SetText("[yellow]No case open")
			ui.table.Clear()
		})
		return
	}

	statuses, err := ctrl.Database().ListDataSourceStatuses(context.Background())
	if err != nil {
		ui.logger.Printf("Failed to list data source statuses: %v", err)
		return
	}
	count, err := ctrl.Database().CountFiles(context.Background())
	if err != nil {
		ui.logger.Printf("Failed to count drawables: %v", err)
	}

	caseName := ctrl.Case().Name
	stale := ctrl.IsStale()

	ui.app.QueueUpdateDraw(func() {
		header := fmt.Sprintf("[::b]Case:[-:-:-] %s    [::b]Drawables:[-:-:-] %d", caseName, count)
		if stale {
			header += "    [red::b]STALE[-:-:-]"
		}
		ui.header.SetText(header)

		ui.table.Clear()
		ui.table.SetCell(0, 0, tview.NewTableCell("[::b]Data Source").SetSelectable(false))
		ui.table.SetCell(0, 1, tview.NewTableCell("[::b]Status").SetSelectable(false))
		ui.table.SetCell(0, 2, tview.NewTableCell("[::b]Updated").SetSelectable(false))

		for i, st := range statuses {
			row := i + 1
			ui.table.SetCell(row, 0, tview.NewTableCell(fmt.Sprintf("%d", st.DataSourceID)))
			ui.table.SetCell(row, 1, tview.NewTableCell(statusText(st.Status)))
			ui.table.SetCell(row, 2, tview.NewTableCell(st.UpdatedAt.Format("15:04:05")))
		}
	})
}

func statusText(s drawabledb.BuildStatus) string {
	switch s {
	case drawabledb.StatusInProgress:
		return "[yellow]IN_PROGRESS"
	case drawabledb.StatusComplete:
		return "[green]COMPLETE"
	default:
		return "[white]DEFAULT"
	}
}

// promptLoop consumes rebuild prompts from the module and shows the
// three-way confirmation. Rebuild runs off the UI goroutine; No and Cancel
// take no action.
func (ui *UI) promptLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case prompt, ok := <-ui.module.Prompts():
			if !ok {
				return
			}
			ui.showRebuildPrompt(ctx, prompt)
		}
	}
}

func (ui *UI) showRebuildPrompt(ctx context.Context, prompt gallery.RebuildPrompt) {
	ui.app.QueueUpdateDraw(func() {
		modal := tview.NewModal().
			SetText(fmt.Sprintf(
				"A new data source was added and finished ingest.\nThe image/video database for case %q may be out of date.\nDo you want to update the database with ingest results?",
				prompt.CaseName)).
			AddButtons([]string{"Rebuild", "No", "Cancel"}).
			SetDoneFunc(func(buttonIndex int, buttonLabel string) {
				ui.pages.RemovePage("rebuild-prompt")
				if buttonLabel == "Rebuild" {
					go ui.runRebuild(ctx)
				}
			})
		ui.pages.AddPage("rebuild-prompt", modal, true, true)
	})
}

func (ui *UI) runRebuild(ctx context.Context) {
	ctrl, err := ui.module.GetController()
	if err != nil {
		ui.logger.Printf("Rebuild aborted: %v", err)
		return
	}
	ui.setStatusAsync("Rebuilding drawables database...")
	if err := ctrl.RebuildDatabase(ctx); err != nil {
		ui.logger.Printf("Rebuild failed: %v", err)
		ui.setStatusAsync("Rebuild failed, see logs")
		return
	}
	ui.setStatusAsync("Rebuild complete")
	ui.refresh()
}

func (ui *UI) setStatus(text string) {
	ui.status.SetText("[gray]" + text)
}

func (ui *UI) setStatusAsync(text string) {
	ui.app.QueueUpdateDraw(func() { ui.setStatus(text) })
}
