package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"flipradar/internal/models"
)

// Repository is the persistence boundary for the opportunity engine and the
// API layer. The Opportunity write path is reserved for the engine; everything
// else is shared read access plus ingestion writes.
type Repository interface {
	// Catalog.
	UpsertProduct(ctx context.Context, item *models.Product) error
	GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProductByUPC(ctx context.Context, upc string) (*models.Product, error)

	// Listings (written by ingestion only).
	UpsertListing(ctx context.Context, item *models.Listing) error
	GetListingByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	GetListingByExternalID(ctx context.Context, externalID string) (*models.Listing, error)
	ListListings(ctx context.Context, params ListListingsParams) ([]models.Listing, error)
	CountListings(ctx context.Context, params ListListingsParams) (int64, error)
	ListOpenListings(ctx context.Context) ([]models.Listing, error)
	ListOpenListingsByProduct(ctx context.Context, productID uuid.UUID) ([]models.Listing, error)
	CloseExpiredListings(ctx context.Context, now time.Time) (int64, error)

	// Platform prices (append-only).
	InsertPlatformPrices(ctx context.Context, items []models.PlatformPrice) error
	ListPricesByProduct(ctx context.Context, productID uuid.UUID, since *time.Time) ([]models.PlatformPrice, error)

	// Opportunities (engine-owned write path).
	UpsertOpportunity(ctx context.Context, item *models.Opportunity) error
	GetOpportunityByID(ctx context.Context, id uint64) (*models.Opportunity, error)
	ListOpportunitiesByListing(ctx context.Context, listingID uuid.UUID) ([]models.Opportunity, error)
	ListOpportunities(ctx context.Context, params ListOpportunitiesParams) ([]models.Opportunity, error)
	CountOpportunities(ctx context.Context, params ListOpportunitiesParams) (int64, error)

	// Alert settings and delivery ledger.
	CreateAlertSetting(ctx context.Context, item *models.AlertSetting) error
	UpdateAlertSetting(ctx context.Context, item *models.AlertSetting) error
	GetAlertSettingByID(ctx context.Context, id uuid.UUID) (*models.AlertSetting, error)
	ListAlertSettings(ctx context.Context, activeOnly bool) ([]models.AlertSetting, error)
	HasAlertDelivery(ctx context.Context, settingID uuid.UUID, opportunityID uint64, version int) (bool, error)
	InsertAlertDelivery(ctx context.Context, item *models.AlertDelivery) error

	// Dashboard.
	DashboardStats(ctx context.Context) (DashboardStats, error)
}

type ListListingsParams struct {
	Limit     int
	Offset    int
	Status    *string
	ProductID *uuid.UUID
	OrderBy   string
	Asc       *bool
}

type ListOpportunitiesParams struct {
	Limit     int
	Offset    int
	Platform  *string
	Status    *string
	MinProfit *decimal.Decimal
	MinROI    *decimal.Decimal
	OrderBy   string
	Asc       *bool
}

type CategoryCount struct {
	Category string
	Count    int64
}

type DashboardStats struct {
	TotalOpportunities int64
	AvgProfit          float64
	AvgROI             float64
	ActiveListings     int64
	TopCategories      []CategoryCount
	Recent             []models.Opportunity
}
