package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrypster/reverie/internal/app"
	"github.com/scrypster/reverie/internal/importer"
)

func newImportCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Import a directory of Markdown files as journal entries",
		Long: `Import every Markdown file under <dir> as a journal entry. The entry date
comes from frontmatter, then a YYYY-MM-DD file name, then the file's
modification time.

With --watch the command keeps running after the import and adds notes
created under <dir> until interrupted.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quiet, _ := cmd.Flags().GetBool("quiet")
			watch, _ := cmd.Flags().GetBool("watch")

			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				var progress importer.Progress
				if !quiet {
					progress = func(done, total int, rel string) {
						fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s\n", done, total, rel)
					}
				}

				imp := importer.New(a.Journal, nil, c.log)
				result, err := imp.Import(ctx, args[0], progress)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %d of %d files in %s\n",
					result.EntriesCreated, result.FilesFound, result.Duration.Round(time.Millisecond))
				if result.Unembedded > 0 {
					fmt.Fprintf(out, "%d entries were saved without embeddings; run `reverie backfill`\n", result.Unembedded)
				}
				if result.FilesSkipped > 0 {
					fmt.Fprintf(out, "Skipped %d empty files\n", result.FilesSkipped)
				}
				for _, msg := range result.Errors {
					fmt.Fprintf(out, "  error: %s\n", msg)
				}
				if result.FilesFailed > 0 && !watch {
					return fmt.Errorf("%d files failed to import", result.FilesFailed)
				}
				if !watch {
					return nil
				}

				fmt.Fprintf(out, "Watching %s for new notes (Ctrl-C to stop)\n", args[0])
				return imp.Watch(ctx, args[0], func(rel string, res *importer.Result) {
					switch {
					case res.FilesFailed > 0:
						fmt.Fprintf(out, "  error: %s\n", strings.Join(res.Errors, "; "))
					case res.EntriesCreated == 0:
						fmt.Fprintf(out, "Skipped %s (empty)\n", rel)
					case res.Unembedded > 0:
						fmt.Fprintf(out, "Added %s without an embedding\n", rel)
					default:
						fmt.Fprintf(out, "Added %s\n", rel)
					}
				})
			})
		},
	}

	cmd.Flags().BoolP("quiet", "q", false, "Do not print per-file progress")
	cmd.Flags().BoolP("watch", "w", false, "Keep running and import new notes as they are created")
	return cmd
}
