package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"whomst/internal/cli"
	"whomst/internal/export"
	"whomst/internal/pipeline"
	"whomst/internal/store"
)

func (a *app) view(ctx context.Context, loader store.EntryLoader, includeInvalid bool) (pipeline.View, error) {
	return pipeline.BuildView(ctx, loader, pipeline.Options{
		IncludeInvalid: includeInvalid,
		TrailingDays:   a.cfg.TrailingDays,
		Now:            time.Now(),
		Policy:         a.cfg.Policy(),
	})
}

func (a *app) windowLabel() string {
	if a.cfg.TrailingDays == 0 {
		return "All time"
	}
	return fmt.Sprintf("Last %dd", a.cfg.TrailingDays)
}

func (a *app) warnSkipped(v pipeline.View) {
	if len(v.Skipped) > 0 {
		fmt.Fprintln(a.errOut, cli.RenderWarning("%d unreadable records were skipped", len(v.Skipped)))
	}
}

func (a *app) listCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries in the trailing window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Cleanup()

			v, err := a.view(cmd.Context(), res.Store(), all)
			if err != nil {
				return err
			}
			a.warnSkipped(v)

			if v.Len() == 0 {
				a.println("\n  No entries found in the selected window.")
				return nil
			}

			headers := pipeline.ListingColumns
			if all {
				headers = append(append([]string{}, headers...), "Valid")
			}
			valid := make(map[string]bool, v.Len())
			for _, r := range v.Rows {
				valid[r.TS] = r.Valid
			}
			rows := make([][]string, 0, v.Len())
			for _, row := range pipeline.Listing(v) {
				cells := row.Cells()
				if all {
					cells = append(cells, fmt.Sprint(valid[row.TS]))
				}
				rows = append(rows, cells)
			}

			a.println()
			a.println(cli.RenderTitle(fmt.Sprintf("ENTRIES  %s", a.windowLabel())))
			a.println()
			a.printf("%s", cli.RenderTable(cli.Table{
				Headers:    headers,
				Rows:       rows,
				RightAlign: map[int]bool{3: true},
			}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include removed entries")
	return cmd
}

func (a *app) reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Totals by spender and by tag",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Cleanup()

			v, err := a.view(cmd.Context(), res.Store(), false)
			if err != nil {
				return err
			}
			a.warnSkipped(v)

			if v.Len() == 0 {
				a.println("\n  No entries found in the selected window.")
				return nil
			}

			a.println()
			a.println(cli.RenderTitle(fmt.Sprintf("SPENDING  %s", a.windowLabel())))
			a.println()

			spenders := make([][]string, 0)
			for _, s := range pipeline.SortedSpenderTotals(v) {
				spenders = append(spenders, []string{s.Spender, cli.FormatAmount(s.Total)})
			}
			spenders = append(spenders, []string{"---"}, []string{"Total", cli.FormatAmount(v.Total())})
			a.printf("%s\n", cli.RenderTable(cli.Table{
				Title:      "Spent by POC",
				Headers:    []string{"POC", "Spent"},
				Rows:       spenders,
				RightAlign: map[int]bool{1: true},
			}))

			tags := make([][]string, 0)
			for _, t := range pipeline.TagTotals(v) {
				tags = append(tags, []string{t.Tag, cli.FormatAmount(t.Total)})
			}
			a.printf("%s\n", cli.RenderTable(cli.Table{
				Title:      "Spending by tag",
				Headers:    []string{"Tag", "Spent"},
				Rows:       tags,
				RightAlign: map[int]bool{1: true},
			}))

			a.printf("%s", cli.RenderTable(facetTable(pipeline.Facets(v))))
			return nil
		},
	}
}

// facetTable lays the spender panels out as a spender by tag grid.
func facetTable(chart pipeline.FacetChart) cli.Table {
	t := cli.Table{
		Title:      "Spending by POC and tag",
		Headers:    append([]string{"POC"}, chart.Tags...),
		RightAlign: make(map[int]bool),
	}
	for i := range chart.Tags {
		t.RightAlign[i+1] = true
	}
	for _, p := range chart.Panels {
		byTag := make(map[string]int64, len(p.Bars))
		for _, b := range p.Bars {
			byTag[b.Tag] = b.Total
		}
		row := []string{p.Spender}
		for _, tag := range chart.Tags {
			if total, ok := byTag[tag]; ok {
				row = append(row, cli.FormatAmount(total))
			} else {
				row = append(row, "")
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func (a *app) dumpCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write every record, removed ones included, to dump.csv",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Cleanup()

			dir := outDir
			if dir == "" {
				dir = a.cfg.DataDir
			}
			path, err := export.DumpFile(cmd.Context(), res.Store(), dir, a.cfg.Policy())
			if err != nil {
				return err
			}
			a.println(cli.RenderOK("Wrote %s", path))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory for dump.csv (defaults to the data directory)")
	return cmd
}
