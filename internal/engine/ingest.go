package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flipradar/internal/models"
)

// Summary reports one batch evaluation pass.
type Summary struct {
	Listings int
	Created  int
	Updated  int
	Failed   int
}

// SubmitListing persists a scraped listing and immediately re-evaluates it.
func (e *Engine) SubmitListing(ctx context.Context, listing *models.Listing) ([]Event, error) {
	if err := e.Repo.UpsertListing(ctx, listing); err != nil {
		return nil, err
	}
	return e.Evaluate(ctx, listing.ID)
}

// SubmitPrices records fresh price observations and re-evaluates every open
// listing of the product. A failure on one listing does not abort the rest.
func (e *Engine) SubmitPrices(ctx context.Context, productID uuid.UUID, prices []models.PlatformPrice) (Summary, error) {
	for i := range prices {
		prices[i].ProductID = productID
	}
	if err := e.Repo.InsertPlatformPrices(ctx, prices); err != nil {
		return Summary{}, err
	}
	listings, err := e.Repo.ListOpenListingsByProduct(ctx, productID)
	if err != nil {
		return Summary{}, err
	}
	return e.evaluateBatch(ctx, listings), nil
}

// RefreshAll re-evaluates every open listing. The cron runner drives this.
func (e *Engine) RefreshAll(ctx context.Context) (Summary, error) {
	listings, err := e.Repo.ListOpenListings(ctx)
	if err != nil {
		return Summary{}, err
	}
	return e.evaluateBatch(ctx, listings), nil
}

func (e *Engine) evaluateBatch(ctx context.Context, listings []models.Listing) Summary {
	sum := Summary{Listings: len(listings)}
	for _, l := range listings {
		events, err := e.Evaluate(ctx, l.ID)
		if err != nil {
			sum.Failed++
			if e.Logger != nil {
				e.Logger.Warn("listing evaluation failed",
					zap.String("listing_id", l.ID.String()),
					zap.Error(err))
			}
			continue
		}
		for _, ev := range events {
			switch ev.Kind {
			case EventCreated:
				sum.Created++
			case EventUpdated:
				sum.Updated++
			}
		}
	}
	return sum
}
