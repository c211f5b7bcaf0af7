package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-restaurant-sync/model"
	"github.com/goliatone/go-restaurant-sync/restaurantcache"
	"github.com/spf13/cobra"
)

func newRestaurantsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "restaurants",
		Aliases: []string{"r"},
		Short:   "List, filter and refresh cached restaurants",
	}

	var cuisine, neighborhood string
	list := &cobra.Command{
		Use:   "list",
		Short: "List restaurants, optionally filtered by cuisine and neighborhood",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.openContainer(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			restaurants, err := c.Engine().FetchRestaurantsByCuisineAndNeighborhood(cmd.Context(), cuisine, neighborhood)
			if err != nil {
				return err
			}
			printRestaurants(cmd.OutOrStdout(), restaurants)
			return nil
		},
	}
	list.Flags().StringVar(&cuisine, "cuisine", restaurantcache.All, "cuisine filter")
	list.Flags().StringVar(&neighborhood, "neighborhood", restaurantcache.All, "neighborhood filter")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one restaurant",
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

			r, err := c.Engine().FetchRestaurantByID(cmd.Context(), id)
			if restaurantcache.IsNotFound(err) {
				return fmt.Errorf("no restaurant with id %d", id)
			}
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s (#%d)\n", r.Name, r.ID)
			fmt.Fprintf(w, "  Cuisine:      %s\n", r.CuisineType)
			fmt.Fprintf(w, "  Neighborhood: %s\n", r.Neighborhood)
			fmt.Fprintf(w, "  Address:      %s\n", r.Address)
			fmt.Fprintf(w, "  Favorite:     %s\n", favoriteLabel(r))
			days := make([]string, 0, len(r.OperatingHours))
			for day := range r.OperatingHours {
				days = append(days, day)
			}
			sortDays(days)
			for _, day := range days {
				fmt.Fprintf(w, "  %-13s %s\n", day+":", r.OperatingHours[day])
			}
			return nil
		},
	}

	neighborhoods := &cobra.Command{
		Use:   "neighborhoods",
		Short: "List distinct neighborhoods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.openContainer(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			values, err := c.Engine().FetchNeighborhoods(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(values, "\n"))
			return nil
		},
	}

	cuisines := &cobra.Command{
		Use:   "cuisines",
		Short: "List distinct cuisines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.openContainer(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			values, err := c.Engine().FetchCuisines(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(values, "\n"))
			return nil
		},
	}

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Refetch restaurants from the remote service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.openContainer(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			restaurants, err := c.Engine().RefreshRestaurants(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d restaurants\n", len(restaurants))
			return nil
		},
	}

	cmd.AddCommand(list, show, neighborhoods, cuisines, refresh)
	return cmd
}

func newFavoriteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <restaurant-id> <true|false>",
		Short: "Mark or unmark a restaurant as favorite",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			value, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("favorite value must be true or false: %w", err)
			}

			c, err := opts.openContainer(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Engine().SetFavorite(cmd.Context(), id, value); err != nil {
				return err
			}

			pending, err := c.Engine().Pending(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restaurant %d favorite=%t (%d pending)\n", id, value, len(pending))
			return nil
		},
	}
}

func printRestaurants(w io.Writer, restaurants []model.Restaurant) {
	if len(restaurants) == 0 {
		fmt.Fprintln(w, "No restaurants found.")
		return
	}
	for _, r := range restaurants {
		fmt.Fprintf(w, "%4d  %-32s %-12s %-10s %s\n", r.ID, r.Name, r.Neighborhood, r.CuisineType, favoriteLabel(r))
	}
}

func favoriteLabel(r model.Restaurant) string {
	switch {
	case r.IsFavorite && !r.FavoriteSynced:
		return "★ (unsynced)"
	case r.IsFavorite:
		return "★"
	case !r.FavoriteSynced:
		return "(unsynced)"
	default:
		return ""
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

var weekdays = map[string]int{
	"monday": 1, "tuesday": 2, "wednesday": 3, "thursday": 4,
	"friday": 5, "saturday": 6, "sunday": 7,
}

// sortDays orders weekday names Monday first; anything else follows alphabetically.
func sortDays(days []string) {
	rank := func(day string) int {
		if n, ok := weekdays[strings.ToLower(day)]; ok {
			return n
		}
		return len(weekdays) + 1
	}
	sort.Slice(days, func(i, j int) bool {
		ri, rj := rank(days[i]), rank(days[j])
		if ri != rj {
			return ri < rj
		}
		return days[i] < days[j]
	})
}
