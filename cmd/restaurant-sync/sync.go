package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSyncCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay queued favorites and reviews",
		Long:  "Mark the client online and replay every pending mutation in the order it was queued.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.openContainer(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			report, err := c.Coordinator().BackgroundSync(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Replayed:  %d\n", report.Replayed)
			fmt.Fprintf(w, "Failed:    %d\n", report.Failed)
			fmt.Fprintf(w, "Remaining: %d\n", report.Remaining)
			fmt.Fprintf(w, "Skipped:   %d\n", report.Skipped)
			if report.Interrupted != nil {
				fmt.Fprintf(w, "Stopped early: %v\n", report.Interrupted)
			}
			return nil
		},
	}
}

func newPendingCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Inspect and manage the offline queue",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List queued mutations, including failed ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.openContainer(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			entries, err := c.Engine().Mutations(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(w, "Queue is empty.")
				return nil
			}
			for _, m := range entries {
				fmt.Fprintf(w, "%3d  %s  %-15s %-7s attempts=%d queued=%s\n",
					m.Seq, m.Hash, m.Kind, m.Status, m.Attempts, m.CreatedAt.Format(time.RFC3339))
				if m.LastError != "" {
					fmt.Fprintf(w, "     last error: %s\n", m.LastError)
				}
			}
			return nil
		},
	}

	retry := &cobra.Command{
		Use:   "retry <hash>",
		Short: "Reset a failed mutation so the next sync replays it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.openContainer(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Engine().Retry(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mutation %s reset to pending\n", args[0])
			return nil
		},
	}

	discard := &cobra.Command{
		Use:   "discard <hash>",
		Short: "Drop a queued mutation without replaying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.openContainer(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Engine().Discard(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mutation %s discarded\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, retry, discard)
	return cmd
}
