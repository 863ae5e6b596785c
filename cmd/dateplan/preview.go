package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/dateplan/internal/config"
	"github.com/dukerupert/dateplan/internal/recurrence"
)

type previewOptions struct {
	rule  string
	start string
	end   string
	until string
}

// newPreviewCommand prints the occurrences a series would materialize
// without touching the database.
func newPreviewCommand(root *rootOptions) *cobra.Command {
	opts := &previewOptions{}

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the occurrences of a repeating series",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			horizon, err := cfg.Horizon()
			if err != nil {
				return err
			}

			rule, err := recurrence.ParseRule(opts.rule)
			if err != nil {
				return err
			}
			start, err := time.ParseInLocation("2006-01-02T15:04", opts.start, loc)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			end := start
			if opts.end != "" {
				if end, err = time.ParseInLocation("2006-01-02T15:04", opts.end, loc); err != nil {
					return fmt.Errorf("--end: %w", err)
				}
			}
			until := horizon
			if opts.until != "" {
				if until, err = time.Parse(time.DateOnly, opts.until); err != nil {
					return fmt.Errorf("--until: %w", err)
				}
				if until.After(horizon) {
					until = horizon
				}
			}

			out := cmd.OutOrStdout()
			if rule.Repeats() {
				lastSecond := time.Date(until.Year(), until.Month(), until.Day(), 23, 59, 59, 0, loc)
				if rr, err := rule.RRule(start, lastSecond); err == nil {
					fmt.Fprintf(out, "RRULE:%s\n", rr)
				}
			}
			occs := recurrence.Expand(start, end, rule, until)
			for _, o := range occs {
				fmt.Fprintf(out, "%s  %s\n", o.Start.Format("2006-01-02 Mon 15:04"), o.End.Format("2006-01-02 15:04"))
			}
			fmt.Fprintf(out, "%d occurrences (%s)\n", len(occs), rule.Describe())
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.rule, "rule", "N", "repeat rule (N, D, W, M, Y, HUNDRED_DAYS)")
	f.StringVar(&opts.start, "start", "", "first start, YYYY-MM-DDTHH:MM in the configured timezone")
	f.StringVar(&opts.end, "end", "", "first end, same format as --start")
	f.StringVar(&opts.until, "until", "", "last date a repeat may start on, YYYY-MM-DD (default: calendar horizon)")
	cmd.MarkFlagRequired("start")
	return cmd
}
