package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrypster/reverie/internal/app"
)

func newAddCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [text...]",
		Short: "Add a journal entry (reads stdin when no text is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			if strings.TrimSpace(content) == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				content = string(data)
			}
			if strings.TrimSpace(content) == "" {
				return fmt.Errorf("entry text is empty")
			}

			var createdAt time.Time
			if raw, _ := cmd.Flags().GetString("date"); raw != "" {
				t, err := parseDate(raw)
				if err != nil {
					return err
				}
				createdAt = t
			}

			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				entry, embedded, err := a.Journal.AddEntry(ctx, content, createdAt)
				if err != nil {
					return err
				}
				note := ""
				if !embedded {
					note = " (not embedded yet; run `reverie backfill`)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved entry %s for %s%s\n",
					entry.ID, entry.CreatedAt.Local().Format("2006-01-02 15:04"), note)
				return nil
			})
		},
	}

	cmd.Flags().StringP("date", "d", "", "Entry date, RFC 3339 or YYYY-MM-DD (default: now)")
	return cmd
}

// parseDate accepts RFC 3339 or a local calendar date.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want RFC 3339 or YYYY-MM-DD", raw)
	}
	return t, nil
}
