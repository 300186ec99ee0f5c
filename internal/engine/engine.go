package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"flipradar/internal/confidence"
	"flipradar/internal/costs"
	"flipradar/internal/fees"
	"flipradar/internal/models"
	"flipradar/internal/money"
	"flipradar/internal/repository"
)

// ErrReference means an evaluation was asked about an entity that does not
// exist (unknown listing or product). Caller bug, not data quality.
var ErrReference = errors.New("engine: unknown reference")

type EventKind string

const (
	// EventCreated fires once per newly persisted opportunity.
	EventCreated EventKind = "created"
	// EventUpdated fires when a recomputation changes an existing row,
	// including soft retracts.
	EventUpdated EventKind = "updated"
)

// Event describes one opportunity state change after it has been committed.
type Event struct {
	Kind        EventKind
	Opportunity models.Opportunity
	// Category is the product category at evaluation time, carried so alert
	// matching does not need another lookup.
	Category string
}

// Publisher receives committed events. Implementations must not block.
type Publisher interface {
	Publish(ev Event)
}

// lockStripes bounds the lock table: listings hash onto a fixed set of
// mutexes instead of growing a map entry per listing for the process
// lifetime.
const lockStripes = 64

// Engine turns listing and price state into persisted opportunities. All
// opportunity writes flow through here; a striped per-listing mutex
// serializes concurrent evaluations of the same listing so version numbers
// and events stay coherent.
type Engine struct {
	Repo   repository.Repository
	Fees   *fees.Table
	Costs  costs.Params
	Scorer confidence.Scorer
	Bus    Publisher
	Logger *zap.Logger

	// StalenessWindow bounds which price observations back an estimate.
	StalenessWindow time.Duration

	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time

	locks [lockStripes]sync.Mutex
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func (e *Engine) window() time.Duration {
	if e.StalenessWindow > 0 {
		return e.StalenessWindow
	}
	return 48 * time.Hour
}

func (e *Engine) lockFor(listingID uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(listingID[:])
	return &e.locks[h.Sum32()%lockStripes]
}

// Evaluate recomputes every (listing, platform) opportunity for one listing
// and returns the events that were committed. A closed or expired listing, a
// zero bid, or no usable price evidence produces no events and no error;
// closing a listing never touches its persisted rows.
func (e *Engine) Evaluate(ctx context.Context, listingID uuid.UUID) ([]Event, error) {
	listing, err := e.Repo.GetListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, fmt.Errorf("%w: listing %s", ErrReference, listingID)
	}

	lock := e.lockFor(listing.ID)
	lock.Lock()
	defer lock.Unlock()

	events, err := e.evaluateLocked(ctx, listing)
	if err != nil {
		return nil, err
	}
	if e.Bus != nil {
		for _, ev := range events {
			e.Bus.Publish(ev)
		}
	}
	return events, nil
}

func (e *Engine) evaluateLocked(ctx context.Context, listing *models.Listing) ([]Event, error) {
	now := e.now()

	// A closed or expired listing is ineligible for new opportunity creation,
	// but its existing rows stay exactly as they are. Same for a listing with
	// no bids yet: nothing to price against, not an error.
	if !listing.Open(now) || listing.CurrentBid.IsZero() {
		return nil, nil
	}

	prior, err := e.Repo.ListOpportunitiesByListing(ctx, listing.ID)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]models.Opportunity, len(prior))
	for _, o := range prior {
		existing[o.SellPlatform] = o
	}

	breakdown, err := costs.TotalCost(listing.CurrentBid, e.Costs)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", listing.ID, err)
	}

	comps, err := e.Repo.ListPricesByProduct(ctx, listing.ProductID, nil)
	if err != nil {
		return nil, err
	}
	byPlatform := groupByPlatform(comps)

	category := listing.Product.CategoryName()

	var events []Event
	handled := make(map[string]bool, len(byPlatform))
	for platform, group := range byPlatform {
		handled[platform] = true

		recent := recentOnly(group, now, e.window())
		if len(recent) == 0 {
			// All evidence for this platform is stale; treat as no evidence.
			if ev, err := e.retractOne(ctx, existing, platform); err != nil {
				return nil, err
			} else if ev != nil {
				events = append(events, *ev)
			}
			continue
		}

		sellPrice := medianPrice(recent)
		shipping := meanShipping(recent)

		assessment, err := e.Fees.Assess(platform, category, sellPrice, shipping)
		if err != nil {
			// Unknown platform is a configuration defect: fail the whole
			// listing so the operator notices, instead of silently dropping
			// one platform.
			return nil, fmt.Errorf("listing %s: %w", listing.ID, err)
		}

		profit := assessment.NetRevenue.Sub(breakdown.Total)
		if profit.LessThanOrEqual(decimal.Zero) {
			if ev, err := e.retractOne(ctx, existing, platform); err != nil {
				return nil, err
			} else if ev != nil {
				events = append(events, *ev)
			}
			continue
		}

		roi := money.RoundCents(profit.Div(breakdown.Total).Mul(decimal.NewFromInt(100)))
		next := models.Opportunity{
			ProductID:          listing.ProductID,
			ListingID:          listing.ID,
			SellPlatform:       platform,
			BuyCost:            breakdown.Total,
			EstimatedSellPrice: sellPrice,
			PlatformFees:       assessment.PlatformFees,
			ShippingCost:       assessment.ShippingCost,
			Profit:             profit,
			ROIPct:             roi,
			ConfidenceScore:    e.Scorer.Score(now, group),
			Status:             models.OpportunityStatusActive,
			Version:            1,
		}

		prev, seen := existing[platform]
		if seen {
			if prev.SameFigures(next) {
				// Idempotent recompute: no write, no version bump, no event.
				continue
			}
			next.ID = prev.ID
			next.Version = prev.Version + 1
			next.CreatedAt = prev.CreatedAt
		}

		if err := e.Repo.UpsertOpportunity(ctx, &next); err != nil {
			return nil, err
		}
		kind := EventCreated
		if seen {
			kind = EventUpdated
		}
		events = append(events, Event{Kind: kind, Opportunity: next, Category: category})
	}

	// Platforms that previously had a row but now have zero observations.
	for platform := range existing {
		if handled[platform] {
			continue
		}
		if ev, err := e.retractOne(ctx, existing, platform); err != nil {
			return nil, err
		} else if ev != nil {
			events = append(events, *ev)
		}
	}

	return events, nil
}

// retractOne flips one existing row to inactive. Already-inactive rows are
// left alone so repeated retraction stays a no-op.
func (e *Engine) retractOne(ctx context.Context, existing map[string]models.Opportunity, platform string) (*Event, error) {
	prev, ok := existing[platform]
	if !ok || prev.Status == models.OpportunityStatusInactive {
		return nil, nil
	}
	prev.Status = models.OpportunityStatusInactive
	prev.Version++
	if err := e.Repo.UpsertOpportunity(ctx, &prev); err != nil {
		return nil, err
	}
	return &Event{Kind: EventUpdated, Opportunity: prev}, nil
}

func groupByPlatform(comps []models.PlatformPrice) map[string][]models.PlatformPrice {
	out := make(map[string][]models.PlatformPrice)
	for _, c := range comps {
		out[c.Platform] = append(out[c.Platform], c)
	}
	return out
}

func recentOnly(comps []models.PlatformPrice, now time.Time, window time.Duration) []models.PlatformPrice {
	var out []models.PlatformPrice
	for _, c := range comps {
		if now.Sub(c.FetchedAt) <= window {
			out = append(out, c)
		}
	}
	return out
}

// medianPrice is robust against a single outlier comp; for an even count the
// two middle values are averaged.
func medianPrice(comps []models.PlatformPrice) decimal.Decimal {
	prices := make([]decimal.Decimal, len(comps))
	for i, c := range comps {
		prices[i] = c.Price
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })
	mid := len(prices) / 2
	if len(prices)%2 == 1 {
		return prices[mid]
	}
	return money.RoundCents(prices[mid-1].Add(prices[mid]).Div(decimal.NewFromInt(2)))
}

func meanShipping(comps []models.PlatformPrice) decimal.Decimal {
	sum := decimal.Zero
	for _, c := range comps {
		sum = sum.Add(c.ShippingCost)
	}
	return money.RoundCents(sum.Div(decimal.NewFromInt(int64(len(comps)))))
}
