package main

import (
	"context"
	"fmt"
	"time"

	"github.com/phrazzld/filequeue/internal/domain"
	"github.com/phrazzld/filequeue/internal/store"
	"github.com/spf13/cobra"
)

// defaultReclaimAge is used when neither --older-than nor
// queue.claim_timeout is set.
const defaultReclaimAge = 15 * time.Minute

func newReclaimCmd(root *rootOptions) *cobra.Command {
	var (
		channel   string
		olderThan time.Duration
	)

	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Return stale claims to their channel",
		Long: "A worker that crashes after claiming a job leaves the claim behind. reclaim " +
			"makes claims older than the cutoff available again.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.withApp(cmd.Context(), func(ctx context.Context, app *application) error {
				age := olderThan
				if age <= 0 {
					age = app.cfg.Queue.ClaimTimeout
				}
				if age <= 0 {
					age = defaultReclaimAge
				}

				rc, ok := store.AsReclaimer(app.manager.For(channel).Driver())
				if !ok {
					return fmt.Errorf("%w: %s driver cannot reclaim claims",
						store.ErrCapabilityUnsupported, app.cfg.Queue.Driver)
				}

				n, err := rc.ReclaimStale(ctx, channel, age)
				if err != nil {
					return fmt.Errorf("failed to reclaim stale claims: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reclaimed %d job(s) on channel %s.\n", n, channel)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&channel, "channel", domain.DefaultChannel, "channel to sweep")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "reclaim claims older than this (default queue.claim_timeout, else 15m)")
	return cmd
}
