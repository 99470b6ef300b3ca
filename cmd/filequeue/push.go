package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/filequeue/internal/domain"
	"github.com/spf13/cobra"
)

func newPushCmd(root *rootOptions) *cobra.Command {
	var channel string

	cmd := &cobra.Command{
		Use:   "push <job-type> [json-payload]",
		Short: "Enqueue a job",
		Long: "Enqueue a job of the given type. The payload is a JSON object; a _job_id is " +
			"generated when absent. Built-in jobs: echo {\"message\"}, sleep {\"duration\"} " +
			"and fail {\"message\"}. Durations are strings such as \"250ms\" or \"2s\"; " +
			"a bare number is read as seconds.",
		Example: `  filequeue push echo '{"message":"hello"}'
  filequeue push sleep '{"duration":"2s"}' --channel slow
  filequeue push sleep '{"duration":2}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := domain.Payload{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &payload); err != nil {
					return fmt.Errorf("%w: payload must be a JSON object: %v", domain.ErrInvalidInput, err)
				}
				if payload == nil {
					payload = domain.Payload{}
				}
			}

			id, ok := payload.JobID()
			if !ok {
				u, err := uuid.NewV7()
				if err != nil {
					return fmt.Errorf("failed to generate job id: %w", err)
				}
				id = u.String()
				payload[domain.KeyJobID] = id
			}

			return root.withApp(cmd.Context(), func(ctx context.Context, app *application) error {
				if err := app.manager.For(channel).Push(ctx, args[0], payload); err != nil {
					return fmt.Errorf("failed to push job: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s job %s on channel %s.\n", args[0], id, channel)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&channel, "channel", domain.DefaultChannel, "channel to push to")
	return cmd
}
