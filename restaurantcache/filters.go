package restaurantcache

import "github.com/goliatone/go-restaurant-sync/model"

// All is the filter value that disables filtering on a dimension.
const All = "all"

// FilterRestaurants keeps the restaurants matching cuisine and neighborhood. All matches
// every value of its dimension.
func FilterRestaurants(restaurants []model.Restaurant, cuisine, neighborhood string) []model.Restaurant {
	out := make([]model.Restaurant, 0, len(restaurants))
	for _, r := range restaurants {
		if cuisine != All && r.CuisineType != cuisine {
			continue
		}
		if neighborhood != All && r.Neighborhood != neighborhood {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Distinct projects each record through key and returns the values in first-seen order
// without duplicates.
func Distinct[T any](records []T, key func(T) string) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0)
	for _, r := range records {
		k := key(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
