package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"flipradar/internal/models"
	"flipradar/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// It implements the full interface but only the engine paths are exercised.
type stubRepo struct {
	products   map[uuid.UUID]models.Product
	listings   map[uuid.UUID]models.Listing
	prices     []models.PlatformPrice
	opps       map[string]models.Opportunity
	settings   map[uuid.UUID]models.AlertSetting
	deliveries []models.AlertDelivery
	nextOppID  uint64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		products: map[uuid.UUID]models.Product{},
		listings: map[uuid.UUID]models.Listing{},
		opps:     map[string]models.Opportunity{},
		settings: map[uuid.UUID]models.AlertSetting{},
	}
}

func oppKey(listingID uuid.UUID, platform string) string {
	return listingID.String() + "|" + platform
}

func (s *stubRepo) UpsertProduct(ctx context.Context, item *models.Product) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	s.products[item.ID] = *item
	return nil
}

func (s *stubRepo) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if p, ok := s.products[id]; ok {
		cp := p
		return &cp, nil
	}
	return nil, nil
}

func (s *stubRepo) GetProductByUPC(ctx context.Context, upc string) (*models.Product, error) {
	for _, p := range s.products {
		if p.UPC != nil && *p.UPC == upc {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) UpsertListing(ctx context.Context, item *models.Listing) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	s.listings[item.ID] = *item
	return nil
}

func (s *stubRepo) GetListingByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	l, ok := s.listings[id]
	if !ok {
		return nil, nil
	}
	if p, ok := s.products[l.ProductID]; ok {
		l.Product = p
	}
	return &l, nil
}

func (s *stubRepo) GetListingByExternalID(ctx context.Context, externalID string) (*models.Listing, error) {
	for _, l := range s.listings {
		if l.ExternalID == externalID {
			cp := l
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) ListListings(ctx context.Context, params repository.ListListingsParams) ([]models.Listing, error) {
	var out []models.Listing
	for _, l := range s.listings {
		out = append(out, l)
	}
	return out, nil
}

func (s *stubRepo) CountListings(ctx context.Context, params repository.ListListingsParams) (int64, error) {
	return int64(len(s.listings)), nil
}

func (s *stubRepo) ListOpenListings(ctx context.Context) ([]models.Listing, error) {
	now := time.Now().UTC()
	var out []models.Listing
	for _, l := range s.listings {
		if l.Open(now) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *stubRepo) ListOpenListingsByProduct(ctx context.Context, productID uuid.UUID) ([]models.Listing, error) {
	now := time.Now().UTC()
	var out []models.Listing
	for _, l := range s.listings {
		if l.ProductID == productID && l.Open(now) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *stubRepo) CloseExpiredListings(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for id, l := range s.listings {
		if l.Status == models.ListingStatusActive && l.ClosesAt != nil && !l.ClosesAt.After(now) {
			l.Status = models.ListingStatusClosed
			s.listings[id] = l
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) InsertPlatformPrices(ctx context.Context, items []models.PlatformPrice) error {
	s.prices = append(s.prices, items...)
	return nil
}

func (s *stubRepo) ListPricesByProduct(ctx context.Context, productID uuid.UUID, since *time.Time) ([]models.PlatformPrice, error) {
	var out []models.PlatformPrice
	for _, p := range s.prices {
		if p.ProductID != productID {
			continue
		}
		if since != nil && p.FetchedAt.Before(*since) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *stubRepo) UpsertOpportunity(ctx context.Context, item *models.Opportunity) error {
	key := oppKey(item.ListingID, item.SellPlatform)
	if prev, ok := s.opps[key]; ok {
		item.ID = prev.ID
	} else if item.ID == 0 {
		s.nextOppID++
		item.ID = s.nextOppID
	}
	s.opps[key] = *item
	return nil
}

func (s *stubRepo) GetOpportunityByID(ctx context.Context, id uint64) (*models.Opportunity, error) {
	for _, o := range s.opps {
		if o.ID == id {
			cp := o
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) ListOpportunitiesByListing(ctx context.Context, listingID uuid.UUID) ([]models.Opportunity, error) {
	var out []models.Opportunity
	for _, o := range s.opps {
		if o.ListingID == listingID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *stubRepo) ListOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) ([]models.Opportunity, error) {
	var out []models.Opportunity
	for _, o := range s.opps {
		out = append(out, o)
	}
	return out, nil
}

func (s *stubRepo) CountOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) (int64, error) {
	return int64(len(s.opps)), nil
}

func (s *stubRepo) CreateAlertSetting(ctx context.Context, item *models.AlertSetting) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	s.settings[item.ID] = *item
	return nil
}

func (s *stubRepo) UpdateAlertSetting(ctx context.Context, item *models.AlertSetting) error {
	if _, ok := s.settings[item.ID]; !ok {
		return fmt.Errorf("setting %s not found", item.ID)
	}
	s.settings[item.ID] = *item
	return nil
}

func (s *stubRepo) GetAlertSettingByID(ctx context.Context, id uuid.UUID) (*models.AlertSetting, error) {
	if v, ok := s.settings[id]; ok {
		cp := v
		return &cp, nil
	}
	return nil, nil
}

func (s *stubRepo) ListAlertSettings(ctx context.Context, activeOnly bool) ([]models.AlertSetting, error) {
	var out []models.AlertSetting
	for _, v := range s.settings {
		if activeOnly && !v.IsActive {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *stubRepo) HasAlertDelivery(ctx context.Context, settingID uuid.UUID, opportunityID uint64, version int) (bool, error) {
	for _, d := range s.deliveries {
		if d.AlertSettingID == settingID && d.OpportunityID == opportunityID && d.Version == version {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) InsertAlertDelivery(ctx context.Context, item *models.AlertDelivery) error {
	s.deliveries = append(s.deliveries, *item)
	return nil
}

func (s *stubRepo) DashboardStats(ctx context.Context) (repository.DashboardStats, error) {
	return repository.DashboardStats{
		TotalOpportunities: int64(len(s.opps)),
	}, nil
}

var _ repository.Repository = (*stubRepo)(nil)
