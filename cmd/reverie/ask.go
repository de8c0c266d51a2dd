package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scrypster/reverie/internal/app"
	"github.com/scrypster/reverie/internal/engine"
)

func newAskCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask a question and stream the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, _ := cmd.Flags().GetString("mode")
			showSources, _ := cmd.Flags().GetBool("sources")
			req := engine.Request{Question: strings.Join(args, " "), Mode: mode}

			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				answer, err := a.Pipeline.Ask(ctx, req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if showSources {
					fmt.Fprintf(cmd.ErrOrStderr(), "[%s, %s retrieval, %d entries]\n", answer.Mode, answer.Strategy, answer.Entries)
				}
				err = answer.Deliver(out)
				fmt.Fprintln(out)
				return err
			})
		},
	}

	cmd.Flags().StringP("mode", "m", "", "Persona: coach, therapist, productivity, friend, analyst or content")
	cmd.Flags().Bool("sources", false, "Print the retrieval strategy and entry count to stderr")
	return cmd
}
