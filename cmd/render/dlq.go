package main

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/shortform/internal/queue"
	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

func newDLQCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect the render queues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := openQueue(ctx)
			if err != nil {
				return err
			}
			defer q.Close()

			pending, err := q.GetQueueDepth()
			if err != nil {
				return err
			}
			dead, err := q.GetDLQDepth()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Queue", "Messages"}, [][]string{
				{queue.RenderQueueName, strconv.Itoa(pending)},
				{queue.DeadLetterQueueName, strconv.Itoa(dead)},
			}))
			return nil
		},
	}

	cmd.AddCommand(newDLQReplayCommand(ctx))
	return cmd
}

func newDLQReplayCommand(ctx *commandContext) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Move dead-lettered renders back onto the render queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := openQueue(ctx)
			if err != nil {
				return err
			}
			defer q.Close()

			var (
				mu   sync.Mutex
				rows [][]string
			)
			replay := func(r *models.Render, reason string) error {
				if err := q.RetryFromDLQ(cmd.Context(), r); err != nil {
					return err
				}
				mu.Lock()
				rows = append(rows, []string{r.ID, r.Title, reason})
				mu.Unlock()
				return nil
			}

			if err := q.ConsumeDLQ(cmd.Context(), replay); err != nil {
				return err
			}

			select {
			case <-time.After(wait):
			case <-cmd.Context().Done():
			}

			mu.Lock()
			defer mu.Unlock()
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no renders replayed")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Render", "Title", "Reason"}, rows))
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "How long to drain the dead letter queue")
	return cmd
}

func openQueue(ctx *commandContext) (*queue.Queue, error) {
	cfg, err := ctx.config()
	if err != nil {
		return nil, err
	}
	return queue.New(cfg.Queue)
}
