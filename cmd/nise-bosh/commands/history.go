package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"github.com/WuLonghui/nise-bosh/internal/eventstore"
	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
)

const historyTimeFormat = "2006-01-02 15:04:05"

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"l" help:"Number of runs to list (0 lists all)" default:"20"`
	RunID string `arg:"" name:"RUN_ID" optional:"" help:"Show the events of this run"`
}

func (c *HistoryCmd) Run(g *Global, root *CLI) error {
	opts, err := root.Options("", "")
	if err != nil {
		return err
	}
	if opts.JournalPath == "" {
		return errors.ValidationError("No journal configured; pass --journal or set NISE_BOSH_JOURNAL").Build()
	}

	store, err := eventstore.NewSQLiteStore(opts.JournalPath)
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "cannot open journal").
			WithContext("path", opts.JournalPath).Build()
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	var data pterm.TableData
	if c.RunID == "" {
		if data, err = runsTable(ctx, store, c.Limit); err != nil {
			return err
		}
	} else if data, err = eventsTable(ctx, store, c.RunID); err != nil {
		return err
	}

	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).WithSeparator("  ").Srender()
	if err != nil {
		return fmt.Errorf("rendering history: %w", err)
	}
	_, err = fmt.Fprintln(g.Out, out)
	return err
}

func runsTable(ctx context.Context, store eventstore.Store, limit int) (pterm.TableData, error) {
	runs, err := store.Runs(ctx, limit)
	if err != nil {
		return nil, err
	}
	data := pterm.TableData{{"run", "mode", "started", "duration", "events"}}
	for _, r := range runs {
		data = append(data, []string{
			r.RunID,
			r.Mode,
			r.Started.Local().Format(historyTimeFormat),
			r.Last.Sub(r.Started).Round(time.Millisecond).String(),
			strconv.Itoa(r.Events),
		})
	}
	return data, nil
}

func eventsTable(ctx context.Context, store eventstore.Store, runID string) (pterm.TableData, error) {
	events, err := store.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, errors.NotFoundError("Given run does not exist!").
			WithContext("run_id", runID).Build()
	}
	data := pterm.TableData{{"time", "event", "subject", "payload"}}
	for _, e := range events {
		data = append(data, []string{
			e.Timestamp().Local().Format(historyTimeFormat),
			e.Type(),
			e.Subject(),
			string(e.Payload()),
		})
	}
	return data, nil
}
