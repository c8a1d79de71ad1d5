package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"imagewatch/internal/alerts"
	"imagewatch/internal/auditlog"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
)

func newSitesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Summarize matches per infringing site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			return renderSiteSummary(cmd.OutOrStdout(), store)
		},
	}
	cmd.AddCommand(newSitesShowCommand(ctx))
	return cmd
}

func newSitesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <site>",
		Short: "List every recorded match for one site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			return renderSiteMatches(cmd.OutOrStdout(), store, args[0])
		},
	}
}

func openStore(ctx *commandContext) (*alerts.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, err
	}
	audit := auditlog.New(cfg.Paths.AuditLog)
	return alerts.NewStore(cfg.Paths.AlertsState, audit, logger), nil
}

type siteRow struct {
	site    string
	total   int
	fresh   int
	gone    int
	lastUTC time.Time
}

func renderSiteSummary(out io.Writer, store *alerts.Store) error {
	state := store.Snapshot()
	if len(state.Sites) == 0 {
		fmt.Fprintln(out, "No matches recorded yet")
		return nil
	}

	summaries := make([]siteRow, 0, len(state.Sites))
	for site, siteState := range state.Sites {
		row := siteRow{site: site}
		for _, record := range siteState.Matches {
			row.total++
			switch record.Status {
			case alerts.StatusNew:
				row.fresh++
			case alerts.StatusGone:
				row.gone++
			}
			if record.LastSeenAt.After(row.lastUTC) {
				row.lastUTC = record.LastSeenAt
			}
		}
		summaries = append(summaries, row)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].total != summaries[j].total {
			return summaries[i].total > summaries[j].total
		}
		return summaries[i].site < summaries[j].site
	})

	rows := make([][]string, 0, len(summaries))
	for _, row := range summaries {
		rows = append(rows, []string{
			row.site,
			strconv.Itoa(row.total),
			strconv.Itoa(row.fresh),
			strconv.Itoa(row.gone),
			row.lastUTC.UTC().Format(time.RFC3339),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Site", "Matches", "New", "Gone", "Last Seen (UTC)"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
	return nil
}

func renderSiteMatches(out io.Writer, store *alerts.Store, site string) error {
	key := alerts.SiteKey(site)
	state := store.Snapshot()
	siteState, ok := state.Sites[key]
	if !ok || len(siteState.Matches) == 0 {
		return fmt.Errorf("no matches recorded for site %q", key)
	}

	urls := make([]string, 0, len(siteState.Matches))
	for url := range siteState.Matches {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	colorize := shouldColorize(out)
	rows := make([][]string, 0, len(urls))
	for _, url := range urls {
		record := siteState.Matches[url]
		muted := ""
		if record.Muted {
			muted = "muted"
		}
		rows = append(rows, []string{
			url,
			renderStatus(record.Status, colorize),
			strconv.Itoa(record.SeenCount),
			record.Term,
			record.LastSeenAt.UTC().Format(time.RFC3339),
			muted,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Image URL", "Status", "Seen", "Term", "Last Seen (UTC)", ""},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	))
	return nil
}

func renderStatus(status string, colorize bool) string {
	if !colorize {
		return status
	}
	switch status {
	case alerts.StatusGone, alerts.StatusClosed:
		return ansiGreen + status + ansiReset
	case alerts.StatusError:
		return ansiRed + status + ansiReset
	case alerts.StatusNew:
		return ansiYellow + status + ansiReset
	default:
		return status
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
