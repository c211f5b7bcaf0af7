package restaurantcache

import (
	"context"
	"net/url"
	"strconv"

	"github.com/goliatone/go-restaurant-sync/model"
)

// FetchRestaurants returns every restaurant. The store is read first; only an empty store
// triggers a remote fetch, whose normalized result is written back before returning.
// A populated store is never revalidated.
func (e *Engine) FetchRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	cached, err := e.store.Restaurants.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		e.logger.Debug("restaurants served from store", "count", len(cached))
		return cached, nil
	}

	e.logger.Debug("restaurant store empty, fetching remote")
	return e.populateRestaurants(ctx)
}

// RefreshRestaurants refetches the remote listing and overwrites the store. Favorites with
// an unconfirmed local change keep their local value.
func (e *Engine) RefreshRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	e.invalidateByPrefix(ctx, pathRestaurants)
	return e.populateRestaurants(ctx)
}

func (e *Engine) populateRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	wire, err := fetchRemote[[]restaurantWire](ctx, e, pathRestaurants, nil)
	if err != nil {
		return nil, err
	}
	records := e.normalize.restaurants(wire)

	if err := e.keepLocalFavorites(ctx, records); err != nil {
		return nil, err
	}
	if err := e.store.Restaurants.PutMany(ctx, records); err != nil {
		return nil, err
	}

	e.logger.Debug("restaurant store populated", "count", len(records))
	return records, nil
}

// keepLocalFavorites overlays favorite values that are queued or not yet confirmed, so a
// stale remote value never replaces a pending local one.
func (e *Engine) keepLocalFavorites(ctx context.Context, records []model.Restaurant) error {
	local := make(map[int64]bool)

	cached, err := e.store.Restaurants.GetAll(ctx)
	if err != nil {
		return err
	}
	for _, r := range cached {
		if !r.FavoriteSynced {
			local[r.ID] = r.IsFavorite
		}
	}

	queued, err := e.pendingFavorites(ctx)
	if err != nil {
		return err
	}
	for _, q := range queued {
		local[q.payload.RestaurantID] = q.payload.IsFavorite
	}

	for i := range records {
		if v, ok := local[records[i].ID]; ok {
			records[i].IsFavorite = v
			records[i].FavoriteSynced = false
		}
	}
	return nil
}

// FetchRestaurantByID returns the restaurant with id or a *NotFoundError.
func (e *Engine) FetchRestaurantByID(ctx context.Context, id int64) (model.Restaurant, error) {
	all, err := e.FetchRestaurants(ctx)
	if err != nil {
		return model.Restaurant{}, err
	}
	for _, r := range all {
		if r.ID == id {
			return r, nil
		}
	}
	return model.Restaurant{}, &NotFoundError{Kind: "restaurant", ID: id}
}

// FetchRestaurantsByCuisine returns the restaurants serving cuisine. All matches everything.
func (e *Engine) FetchRestaurantsByCuisine(ctx context.Context, cuisine string) ([]model.Restaurant, error) {
	return e.FetchRestaurantsByCuisineAndNeighborhood(ctx, cuisine, All)
}

// FetchRestaurantsByNeighborhood returns the restaurants in neighborhood. All matches everything.
func (e *Engine) FetchRestaurantsByNeighborhood(ctx context.Context, neighborhood string) ([]model.Restaurant, error) {
	return e.FetchRestaurantsByCuisineAndNeighborhood(ctx, All, neighborhood)
}

// FetchRestaurantsByCuisineAndNeighborhood applies both filters; All disables either one.
func (e *Engine) FetchRestaurantsByCuisineAndNeighborhood(ctx context.Context, cuisine, neighborhood string) ([]model.Restaurant, error) {
	all, err := e.FetchRestaurants(ctx)
	if err != nil {
		return nil, err
	}
	return FilterRestaurants(all, cuisine, neighborhood), nil
}

// FetchNeighborhoods returns the distinct neighborhoods in first-seen order.
func (e *Engine) FetchNeighborhoods(ctx context.Context) ([]string, error) {
	all, err := e.FetchRestaurants(ctx)
	if err != nil {
		return nil, err
	}
	return Distinct(all, func(r model.Restaurant) string { return r.Neighborhood }), nil
}

// FetchCuisines returns the distinct cuisines in first-seen order.
func (e *Engine) FetchCuisines(ctx context.Context) ([]string, error) {
	all, err := e.FetchRestaurants(ctx)
	if err != nil {
		return nil, err
	}
	return Distinct(all, func(r model.Restaurant) string { return r.CuisineType }), nil
}

// FetchReviewsByRestaurantID returns the reviews of a restaurant. An empty result after a
// successful store or remote read is a valid, empty slice.
func (e *Engine) FetchReviewsByRestaurantID(ctx context.Context, restaurantID int64) ([]model.Review, error) {
	cached, err := e.store.Reviews.GetAllByIndex(ctx, "restaurant_id", restaurantID)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		e.logger.Debug("reviews served from store", "restaurant_id", restaurantID, "count", len(cached))
		return cached, nil
	}

	query := url.Values{"restaurant_id": {strconv.FormatInt(restaurantID, 10)}}
	wire, err := fetchRemote[[]reviewWire](ctx, e, pathReviews, query)
	if err != nil {
		return nil, err
	}
	records := e.normalize.reviews(wire)
	if err := e.store.Reviews.PutMany(ctx, records); err != nil {
		return nil, err
	}

	e.logger.Debug("reviews populated", "restaurant_id", restaurantID, "count", len(records))
	return records, nil
}

// FetchReviews returns every review, populating the store on a miss like FetchRestaurants.
func (e *Engine) FetchReviews(ctx context.Context) ([]model.Review, error) {
	cached, err := e.store.Reviews.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		return cached, nil
	}

	wire, err := fetchRemote[[]reviewWire](ctx, e, pathReviews, nil)
	if err != nil {
		return nil, err
	}
	records := e.normalize.reviews(wire)
	if err := e.store.Reviews.PutMany(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}
