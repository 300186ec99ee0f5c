package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"flipradar/internal/confidence"
	"flipradar/internal/config"
	"flipradar/internal/costs"
	"flipradar/internal/fees"
	"flipradar/internal/models"
)

var testNow = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

func newTestEngine(repo *stubRepo) *Engine {
	table := fees.NewTable(config.FeesConfig{
		Platforms: map[string]config.PlatformFeeConfig{
			"ebay":     {PercentFee: 0.136, PerOrderFee: 0.40},
			"facebook": {},
		},
	})
	return &Engine{
		Repo: repo,
		Fees: table,
		Costs: costs.ParamsFromConfig(config.CostsConfig{
			BuyerPremiumRate: 0.15,
			LotFee:           3.00,
		}),
		Scorer:          confidence.Scorer{StalenessWindow: 48 * time.Hour},
		StalenessWindow: 48 * time.Hour,
		Now:             func() time.Time { return testNow },
	}
}

func seedListing(repo *stubRepo, bid float64) models.Listing {
	product := models.Product{ID: uuid.New(), Title: "Cordless Drill"}
	repo.products[product.ID] = product
	listing := models.Listing{
		ID:         uuid.New(),
		ExternalID: "lot-1001",
		ProductID:  product.ID,
		CurrentBid: decimal.NewFromFloat(bid),
		Status:     models.ListingStatusActive,
	}
	repo.listings[listing.ID] = listing
	return listing
}

func seedPrice(repo *stubRepo, productID uuid.UUID, platform string, price, shipping float64, age time.Duration) {
	repo.prices = append(repo.prices, models.PlatformPrice{
		ProductID:    productID,
		Platform:     platform,
		Price:        decimal.NewFromFloat(price),
		ShippingCost: decimal.NewFromFloat(shipping),
		FetchedAt:    testNow.Add(-age),
	})
}

func TestEvaluate_CreatesProfitableOpportunity(t *testing.T) {
	repo := newStubRepo()
	eng := newTestEngine(repo)
	listing := seedListing(repo, 100)
	seedPrice(repo, listing.ProductID, "ebay", 180, 10, time.Hour)

	events, err := eng.Evaluate(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventCreated {
		t.Fatalf("events=%v want one created", events)
	}

	opp := events[0].Opportunity
	if opp.BuyCost.StringFixed(2) != "118.00" {
		t.Fatalf("buy_cost=%s want=118.00", opp.BuyCost.StringFixed(2))
	}
	if opp.EstimatedSellPrice.StringFixed(2) != "180.00" {
		t.Fatalf("sell_price=%s want=180.00", opp.EstimatedSellPrice.StringFixed(2))
	}
	if opp.PlatformFees.StringFixed(2) != "24.88" {
		t.Fatalf("fees=%s want=24.88", opp.PlatformFees.StringFixed(2))
	}
	if opp.Profit.StringFixed(2) != "27.12" {
		t.Fatalf("profit=%s want=27.12", opp.Profit.StringFixed(2))
	}
	if opp.ROIPct.StringFixed(2) != "22.98" {
		t.Fatalf("roi=%s want=22.98", opp.ROIPct.StringFixed(2))
	}
	if opp.Status != models.OpportunityStatusActive {
		t.Fatalf("status=%s want=active", opp.Status)
	}
	if opp.Version != 1 {
		t.Fatalf("version=%d want=1", opp.Version)
	}
	if opp.ConfidenceScore <= 0 || opp.ConfidenceScore > 100 {
		t.Fatalf("confidence=%d out of range", opp.ConfidenceScore)
	}
	if len(repo.opps) != 1 {
		t.Fatalf("rows=%d want=1", len(repo.opps))
	}
}

func TestEvaluate_DiscardsUnprofitable(t *testing.T) {
	repo := newStubRepo()
	eng := newTestEngine(repo)
	listing := seedListing(repo, 100)
	// Net revenue 76.00 against buy cost 118.00.
	seedPrice(repo, listing.ProductID, "ebay", 100, 10, time.Hour)

	events, err := eng.Evaluate(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events=%v want none", events)
	}
	if len(repo.opps) != 0 {
		t.Fatalf("rows=%d want=0", len(repo.opps))
	}
}

func TestEvaluate_RecomputeIsIdempotent(t *testing.T) {
	repo := newStubRepo()
	eng := newTestEngine(repo)
	listing := seedListing(repo, 100)
	seedPrice(repo, listing.ProductID, "ebay", 180, 10, time.Hour)

	if _, err := eng.Evaluate(context.Background(), listing.ID); err != nil {
		t.Fatalf("first evaluate: %v", err)
	}
	events, err := eng.Evaluate(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events=%v want none on unchanged recompute", events)
	}
	for _, o := range repo.opps {
		if o.Version != 1 {
			t.Fatalf("version=%d want=1 after no-op recompute", o.Version)
		}
	}
}

func TestEvaluate_UpdateBumpsVersionKeepsRow(t *testing.T) {
	repo := newStubRepo()
	eng := newTestEngine(repo)
	listing := seedListing(repo, 100)
	seedPrice(repo, listing.ProductID, "ebay", 180, 10, time.Hour)

	first, err := eng.Evaluate(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("first evaluate: %v", err)
	}
	firstID := first[0].Opportunity.ID

	// A cheaper comp moves the median to 170.00.
	seedPrice(repo, listing.ProductID, "ebay", 160, 10, 2*time.Hour)

	events, err := eng.Evaluate(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventUpdated {
		t.Fatalf("events=%v want one updated", events)
	}
	opp := events[0].Opportunity
	if opp.ID != firstID {
		t.Fatalf("id=%d want=%d (update in place)", opp.ID, firstID)
	}
	if opp.Version != 2 {
		t.Fatalf("version=%d want=2", opp.Version)
	}
	if opp.EstimatedSellPrice.StringFixed(2) != "170.00" {
		t.Fatalf("sell_price=%s want=170.00", opp.EstimatedSellPrice.StringFixed(2))
	}
	if len(repo.opps) != 1 {
		t.Fatalf("rows=%d want=1", len(repo.opps))
	}
}

func TestEvaluate_SoftRetractsWhenNoLongerProfitable(t *testing.T) {
	repo := newStubRepo()
	eng := newTestEngine(repo)
	listing := seedListing(repo, 100)
	seedPrice(repo, listing.ProductID, "ebay", 180, 10, time.Hour)

	if _, err := eng.Evaluate(context.Background(), listing.ID); err != nil {
		t.Fatalf("first evaluate: %v", err)
	}

	// The bid rises past profitability.
	listing.CurrentBid = decimal.NewFromInt(200)
	repo.listings[listing.ID] = listing

	events, err := eng.Evaluate(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventUpdated {
		t.Fatalf("events=%v want one updated (retract)", events)
	}
	opp := events[0].Opportunity
	if opp.Status != models.OpportunityStatusInactive {
		t.Fatalf("status=%s want=inactive", opp.Status)
	}
	if opp.Version != 2 {
		t.Fatalf("version=%d want=2", opp.Version)
	}
	if len(repo.opps) != 1 {
		t.Fatalf("rows=%d want=1 (retained, not deleted)", len(repo.opps))
	}

	// Retracting again is a no-op.
	events, err = eng.Evaluate(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("third evaluate: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events=%v want none on repeat retract", events)
	}
}

func TestEvaluate_ClosedListingLeavesRowsAlone(t *testing.T) {
	repo := newStubRepo()
	eng := newTestEngine(repo)
	listing := seedListing(repo, 100)
	seedPrice(repo, listing.ProductID, "ebay", 180, 10, time.Hour)

	if _, err := eng.Evaluate(context.Background(), listing.ID); err != nil {
		t.Fatalf("first evaluate: %v", err)
	}

	listing.Status = models.ListingStatusClosed
	repo.listings[listing.ID] = listing

	// Closing makes the listing ineligible for new opportunity creation; the
	// rows it already produced are not retracted.
	events, err := eng.Evaluate(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("evaluate closed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events=%v want none for closed listing", events)
	}
	opp := repo.opps[oppKey(listing.ID, "ebay")]
	if opp.Status != models.OpportunityStatusActive {
		t.Fatalf("status=%s want=active (untouched)", opp.Status)
	}
	if opp.Version != 1 {
		t.Fatalf("version=%d want=1 (untouched)", opp.Version)
	}
}

func TestEvaluate_ExpiredListingLeavesRowsAlone(t *testing.T) {
	repo := newStubRepo()
	eng := newTestEngine(repo)
	listing := seedListing(repo, 100)
	seedPrice(repo, listing.ProductID, "ebay", 180, 10, time.Hour)

	if _, err := eng.Evaluate(context.Background(), listing.ID); err != nil {
		t.Fatalf("first evaluate: %v", err)
	}

	past := testNow.Add(-time.Minute)
	listing.ClosesAt = &past
	repo.listings[listing.ID] = listing

	events, err := eng.Evaluate(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("evaluate expired: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events=%v want none for expired listing", events)
	}
	if opp := repo.opps[oppKey(listing.ID, "ebay")]; opp.Version != 1 || opp.Status != models.OpportunityStatusActive {
		t.Fatalf("opp=%+v want untouched active v1", opp)
	}
}

func TestEvaluate_UnknownListing(t *testing.T) {
	repo := newStubRepo()
	eng := newTestEngine(repo)

	_, err := eng.Evaluate(context.Background(), uuid.New())
	if !errors.Is(err, ErrReference) {
		t.Fatalf("err=%v want ErrReference", err)
	}
}

func TestEvaluate_ZeroBidIsQuiet(t *testing.T) {
	repo := newStubRepo()
	eng := newTestEngine(repo)
	listing := seedListing(repo, 0)
	seedPrice(repo, listing.ProductID, "ebay", 180, 10, time.Hour)

	events, err := eng.Evaluate(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events=%v want none for zero bid", events)
	}
	if len(repo.opps) != 0 {
		t.Fatalf("rows=%d want=0", len(repo.opps))
	}
}

func TestEvaluate_ZeroBidLeavesExistingRowsAlone(t *testing.T) {
	repo := newStubRepo()
	eng := newTestEngine(repo)
	listing := seedListing(repo, 100)
	seedPrice(repo, listing.ProductID, "ebay", 180, 10, time.Hour)

	if _, err := eng.Evaluate(context.Background(), listing.ID); err != nil {
		t.Fatalf("first evaluate: %v", err)
	}

	// Bid data resets to zero (scraper glitch); quiet rejection, rows stay.
	listing.CurrentBid = decimal.Zero
	repo.listings[listing.ID] = listing

	events, err := eng.Evaluate(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("evaluate zero bid: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events=%v want none", events)
	}
	if opp := repo.opps[oppKey(listing.ID, "ebay")]; opp.Version != 1 || opp.Status != models.OpportunityStatusActive {
		t.Fatalf("opp=%+v want untouched active v1", opp)
	}
}

func TestEvaluate_UnknownPlatformFailsListing(t *testing.T) {
	repo := newStubRepo()
	eng := newTestEngine(repo)
	listing := seedListing(repo, 100)
	seedPrice(repo, listing.ProductID, "etsy", 180, 10, time.Hour)

	_, err := eng.Evaluate(context.Background(), listing.ID)
	if !errors.Is(err, fees.ErrUnknownPlatform) {
		t.Fatalf("err=%v want ErrUnknownPlatform", err)
	}
	if len(repo.opps) != 0 {
		t.Fatalf("rows=%d want=0 after failed evaluation", len(repo.opps))
	}
}

func TestEvaluate_StaleEvidenceRetracts(t *testing.T) {
	repo := newStubRepo()
	eng := newTestEngine(repo)
	listing := seedListing(repo, 100)
	seedPrice(repo, listing.ProductID, "ebay", 180, 10, time.Hour)

	if _, err := eng.Evaluate(context.Background(), listing.ID); err != nil {
		t.Fatalf("first evaluate: %v", err)
	}

	// Time passes beyond the staleness window; the comp no longer counts.
	eng.Now = func() time.Time { return testNow.Add(72 * time.Hour) }

	events, err := eng.Evaluate(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if len(events) != 1 || events[0].Opportunity.Status != models.OpportunityStatusInactive {
		t.Fatalf("events=%v want one retract when evidence goes stale", events)
	}
}

func TestEvaluate_MedianOfEvenCount(t *testing.T) {
	repo := newStubRepo()
	eng := newTestEngine(repo)
	listing := seedListing(repo, 100)
	seedPrice(repo, listing.ProductID, "ebay", 170, 10, time.Hour)
	seedPrice(repo, listing.ProductID, "ebay", 190, 10, 2*time.Hour)

	events, err := eng.Evaluate(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events=%v want one", events)
	}
	if got := events[0].Opportunity.EstimatedSellPrice.StringFixed(2); got != "180.00" {
		t.Fatalf("sell_price=%s want=180.00", got)
	}
}

func TestEvaluate_MultiplePlatforms(t *testing.T) {
	repo := newStubRepo()
	eng := newTestEngine(repo)
	listing := seedListing(repo, 100)
	seedPrice(repo, listing.ProductID, "ebay", 180, 10, time.Hour)
	seedPrice(repo, listing.ProductID, "facebook", 150, 0, time.Hour)

	events, err := eng.Evaluate(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events=%d want=2", len(events))
	}
	if len(repo.opps) != 2 {
		t.Fatalf("rows=%d want=2", len(repo.opps))
	}
	// Facebook is feeless: 150.00 - 118.00.
	fb := repo.opps[oppKey(listing.ID, "facebook")]
	if fb.Profit.StringFixed(2) != "32.00" {
		t.Fatalf("facebook profit=%s want=32.00", fb.Profit.StringFixed(2))
	}
}

func TestSubmitPrices_ErrorIsolation(t *testing.T) {
	repo := newStubRepo()
	eng := newTestEngine(repo)

	good := seedListing(repo, 100)
	bad := models.Listing{
		ID:         uuid.New(),
		ExternalID: "lot-1002",
		ProductID:  good.ProductID,
		CurrentBid: decimal.NewFromInt(-5),
		Status:     models.ListingStatusActive,
	}
	repo.listings[bad.ID] = bad

	summary, err := eng.SubmitPrices(context.Background(), good.ProductID, []models.PlatformPrice{
		{Platform: "ebay", Price: decimal.NewFromInt(180), ShippingCost: decimal.NewFromInt(10), FetchedAt: testNow},
	})
	if err != nil {
		t.Fatalf("submit prices: %v", err)
	}
	if summary.Listings != 2 {
		t.Fatalf("listings=%d want=2", summary.Listings)
	}
	if summary.Failed != 1 {
		t.Fatalf("failed=%d want=1", summary.Failed)
	}
	if summary.Created != 1 {
		t.Fatalf("created=%d want=1", summary.Created)
	}
}

func TestEvaluate_ConcurrentKeepsSingleRow(t *testing.T) {
	repo := newStubRepo()
	eng := newTestEngine(repo)
	listing := seedListing(repo, 100)
	seedPrice(repo, listing.ProductID, "ebay", 180, 10, time.Hour)

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		updated  int
		firstErr error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, err := eng.Evaluate(context.Background(), listing.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil && firstErr == nil {
				firstErr = err
				return
			}
			for _, ev := range events {
				switch ev.Kind {
				case EventCreated:
					created++
				case EventUpdated:
					updated++
				}
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		t.Fatalf("evaluate: %v", firstErr)
	}
	if created != 1 {
		t.Fatalf("created=%d want exactly 1 across %d concurrent evaluations", created, workers)
	}
	if updated != 0 {
		t.Fatalf("updated=%d want=0 (identical recomputes are no-ops)", updated)
	}
	if len(repo.opps) != 1 {
		t.Fatalf("rows=%d want=1", len(repo.opps))
	}
	if opp := repo.opps[oppKey(listing.ID, "ebay")]; opp.Version != 1 {
		t.Fatalf("version=%d want=1", opp.Version)
	}
}

func TestEvaluate_PublishesCommittedEvents(t *testing.T) {
	repo := newStubRepo()
	eng := newTestEngine(repo)
	var published []Event
	eng.Bus = publisherFunc(func(ev Event) { published = append(published, ev) })

	listing := seedListing(repo, 100)
	seedPrice(repo, listing.ProductID, "ebay", 180, 10, time.Hour)

	events, err := eng.Evaluate(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(published) != len(events) {
		t.Fatalf("published=%d returned=%d want equal", len(published), len(events))
	}
}

type publisherFunc func(Event)

func (f publisherFunc) Publish(ev Event) { f(ev) }
