package main

import (
	"fmt"

	"github.com/goliatone/go-restaurant-sync/model"
	"github.com/spf13/cobra"
)

func newReviewsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviews <restaurant-id>",
		Short: "List the reviews of a restaurant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := opts.openContainer(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			reviews, err := c.Engine().FetchReviewsByRestaurantID(cmd.Context(), id)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(reviews) == 0 {
				fmt.Fprintln(w, "No reviews yet.")
				return nil
			}
			for _, r := range reviews {
				synced := ""
				if !r.Synced {
					synced = " (unsynced)"
				}
				fmt.Fprintf(w, "#%d %s rated %d/5 on %s%s\n", r.ID, r.Name, r.Rating, r.CreatedAt.Format("Jan 2, 2006"), synced)
				if r.Comments != "" {
					fmt.Fprintf(w, "    %s\n", r.Comments)
				}
			}
			return nil
		},
	}

	var review model.Review
	add := &cobra.Command{
		Use:   "add <restaurant-id>",
		Short: "Add a review; it is queued when offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			review.RestaurantID = id

			c, err := opts.openContainer(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			saved, err := c.Engine().SubmitReview(cmd.Context(), review)
			if err != nil {
				return err
			}
			state := "submitted"
			if !saved.Synced {
				state = "queued"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Review #%d for restaurant %d %s\n", saved.ID, saved.RestaurantID, state)
			return nil
		},
	}
	add.Flags().StringVar(&review.Name, "name", "", "reviewer name (required)")
	add.Flags().IntVar(&review.Rating, "rating", 0, "rating from 1 to 5")
	add.Flags().StringVar(&review.Comments, "comments", "", "review text")

	cmd.AddCommand(add)
	return cmd
}
