package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gmq/internal/queue"
	"gmq/internal/transaction/models"
)

func requeueCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "requeue <tx-id> <stage>",
		Short: "Restart a transaction at receipt, rapsheet, retrieval or generation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			tx, err := a.service.RequeueJob(ctx, args[0], models.Stage(args[1]), actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s requeued at %s (state %s)\n", tx.ID, args[1], tx.State)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "cli", "operator recorded in the audit trail")
	return cmd
}

func statsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the pipeline counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.counters.Get(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(snap)
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "visits\t%d\n", snap.Visits)
			fmt.Fprintf(w, "pending\t%d\n", snap.Pending)
			fmt.Fprintf(w, "completed\t%d\n", snap.Completed)
			fmt.Fprintf(w, "failed\t%d\n", snap.Failed)
			return w.Flush()
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	return cmd
}

func deadCmd() *cobra.Command {
	var (
		retry int
		limit int
	)
	cmd := &cobra.Command{
		Use:   "dead <queue>",
		Short: "List dead jobs, or move the oldest back onto the queue with --retry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			dead := queue.NewDeadLetters(a.kv)
			if retry > 0 {
				n, err := dead.Retry(ctx, args[0], retry)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d dead jobs moved back to %s\n", n, args[0])
				return nil
			}
			jobs, err := dead.List(ctx, args[0], limit)
			if err != nil {
				return err
			}
			return printDead(cmd.OutOrStdout(), jobs)
		},
	}
	cmd.Flags().IntVar(&retry, "retry", 0, "number of dead jobs to re-enqueue")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum jobs to list")
	return cmd
}

func printDead(out io.Writer, jobs []queue.Job) error {
	if len(jobs) == 0 {
		fmt.Fprintln(out, "no dead jobs")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JID\tCLASS\tATTEMPTS\tFAILED AT\tERROR")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", j.JID, j.Class, j.RetryAttempt, j.FailedAt, j.Error)
	}
	return w.Flush()
}

func recoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Move jobs left in processing lists back onto their queues",
		Long: `Move jobs left in the per-consumer processing lists back onto their queues.
Only run this while no workers are running; run does it at start.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := queue.Recover(ctx, a.kv, a.cfg.Worker.Queues, a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d jobs recovered\n", n)
			return nil
		},
	}
}
