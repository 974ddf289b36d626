package output

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/agentstation/gatesync/pkg/sync"
)

// timeUnit rounds durations in summaries.
const timeUnit = 10 * time.Millisecond

// SummaryFormatter renders run and reset reports for humans: per-provider
// tables, +created/~updated/-deleted counts per resource kind, and every
// failure with its phase and key.
type SummaryFormatter struct {
	Color bool
}

// Format implements Formatter.
func (f *SummaryFormatter) Format(w io.Writer, data any) error {
	switch report := data.(type) {
	case *sync.RunReport:
		return f.formatRun(w, report)
	case *sync.ResetReport:
		return f.formatReset(w, report)
	default:
		return (&JSONFormatter{}).Format(w, data)
	}
}

func (f *SummaryFormatter) formatRun(w io.Writer, report *sync.RunReport) error {
	if report.DryRun {
		fmt.Fprintln(w, "Dry run: no changes were applied.")
	}

	if len(report.Providers) > 0 {
		table := tablewriter.NewTable(w)
		table.Header("Provider", "Kind", "Status", "Groups", "Models", "Tokens")
		for _, p := range report.Providers {
			status := "ok"
			if !p.Success {
				status = "failed"
			}
			if err := table.Append(
				p.Name, p.Kind, status,
				fmt.Sprintf("%d", p.Groups),
				fmt.Sprintf("%d", p.Models),
				plusMinus(p.Tokens.Created, 0, p.Tokens.Deleted),
			); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	s := report.Diff.Summary
	fmt.Fprintf(w, "\nChannels %s  Models %s  Options ~%d\n",
		plusMinus(s.ChannelsAdded, s.ChannelsUpdated, s.ChannelsRemoved),
		plusMinus(s.ModelsAdded, s.ModelsUpdated, s.ModelsRemoved),
		s.OptionsChanged,
	)
	if report.Apply != nil && report.Apply.OrphansRemoved > 0 {
		fmt.Fprintf(w, "Orphan models purged: %d\n", report.Apply.OrphansRemoved)
	}

	f.printFailures(w, report.Providers, report.Apply)

	if report.Success {
		fmt.Fprintf(w, "\nSync succeeded in %s.\n", report.Duration.Round(timeUnit))
	} else {
		fmt.Fprintf(w, "\nSync failed after %s.\n", report.Duration.Round(timeUnit))
	}
	return nil
}

func (f *SummaryFormatter) formatReset(w io.Writer, report *sync.ResetReport) error {
	s := report.Diff.Summary
	fmt.Fprintf(w, "Reset scope: %v\n", report.Providers)
	fmt.Fprintf(w, "Channels -%d  Models -%d  Options ~%d\n",
		s.ChannelsRemoved, s.ModelsRemoved, s.OptionsChanged)
	for provider, n := range report.TokensDeleted {
		fmt.Fprintf(w, "Tokens deleted on %s: %d\n", provider, n)
	}

	f.printFailures(w, nil, report.Apply)

	if report.Success {
		fmt.Fprintln(w, "Reset succeeded.")
	} else {
		fmt.Fprintln(w, "Reset failed.")
	}
	return nil
}

func (f *SummaryFormatter) printFailures(w io.Writer, providers []sync.ProviderReport, apply *sync.ApplyReport) {
	for _, p := range providers {
		if !p.Success {
			fmt.Fprintf(w, "provider %s: %s\n", p.Name, p.Error)
		}
	}
	if apply == nil {
		return
	}
	for _, e := range apply.Errors {
		fmt.Fprintf(w, "apply %s %q: %s\n", e.Phase, e.Key, e.Message)
	}
}
