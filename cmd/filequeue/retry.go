package main

import (
	"context"
	"fmt"

	"github.com/phrazzld/filequeue/internal/domain"
	"github.com/phrazzld/filequeue/internal/store"
	"github.com/spf13/cobra"
)

func newRetryFailedCmd(root *rootOptions) *cobra.Command {
	var (
		channel string
		keep    bool
	)

	cmd := &cobra.Command{
		Use:   "retry-failed",
		Short: "Replay deadlettered jobs",
		Long: "Re-enqueue every deadlettered job of a channel. Records are deleted after a " +
			"successful replay unless --keep is given. Fails when the configured driver " +
			"has no deadletter support.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.withApp(cmd.Context(), func(ctx context.Context, app *application) error {
				q := app.manager.For(channel)
				dd, ok := store.AsDeadletter(q.Driver())
				if !ok {
					app.logger.Error("driver does not support deadletter operations",
						"driver", app.cfg.Queue.Driver,
						"capabilities", q.Driver().Capabilities().String())
					return fmt.Errorf("%w: %s driver has no deadletter support",
						store.ErrCapabilityUnsupported, app.cfg.Queue.Driver)
				}

				n, err := dd.ReplayDeadletters(ctx, keep)
				if err != nil {
					return fmt.Errorf("failed to replay deadlettered jobs: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Replayed %d job(s) on channel %s.\n", n, channel)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&channel, "channel", domain.DefaultChannel, "channel whose deadlettered jobs are replayed")
	cmd.Flags().BoolVar(&keep, "keep", false, "keep deadletter records after replay")
	return cmd
}
