package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"flipradar/internal/models"
	"flipradar/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Catalog ----------------------------------------------------------------

func (s *Store) UpsertProduct(ctx context.Context, item *models.Product) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"upc", "asin", "title", "category", "image_url", "extra_data", "updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s == nil || s.db == nil || id == uuid.Nil {
		return nil, nil
	}
	var item models.Product
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetProductByUPC(ctx context.Context, upc string) (*models.Product, error) {
	if s == nil || s.db == nil || strings.TrimSpace(upc) == "" {
		return nil, nil
	}
	var item models.Product
	err := s.db.WithContext(ctx).First(&item, "upc = ?", strings.TrimSpace(upc)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- Listings ---------------------------------------------------------------

func (s *Store) UpsertListing(ctx context.Context, item *models.Listing) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Omit("Product").Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"current_bid", "retail_price", "condition", "auction_type",
			"warehouse_location", "url", "extra_data", "closes_at", "status",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetListingByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	if s == nil || s.db == nil || id == uuid.Nil {
		return nil, nil
	}
	var item models.Listing
	err := s.db.WithContext(ctx).Preload("Product").First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetListingByExternalID(ctx context.Context, externalID string) (*models.Listing, error) {
	if s == nil || s.db == nil || strings.TrimSpace(externalID) == "" {
		return nil, nil
	}
	var item models.Listing
	err := s.db.WithContext(ctx).First(&item, "external_id = ?", strings.TrimSpace(externalID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListListings(ctx context.Context, params repository.ListListingsParams) ([]models.Listing, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyListingFilters(s.db.WithContext(ctx).Model(&models.Listing{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	var items []models.Listing
	if err := query.Preload("Product").
		Limit(normalizeLimit(params.Limit, 50)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountListings(ctx context.Context, params repository.ListListingsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := applyListingFilters(s.db.WithContext(ctx).Model(&models.Listing{}), params).Count(&total).Error
	return total, err
}

func applyListingFilters(query *gorm.DB, params repository.ListListingsParams) *gorm.DB {
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.ProductID != nil && *params.ProductID != uuid.Nil {
		query = query.Where("product_id = ?", *params.ProductID)
	}
	return query
}

func (s *Store) ListOpenListings(ctx context.Context) ([]models.Listing, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Listing
	if err := s.db.WithContext(ctx).
		Where("status <> ?", models.ListingStatusClosed).
		Where("closes_at IS NULL OR closes_at > ?", time.Now().UTC()).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListOpenListingsByProduct(ctx context.Context, productID uuid.UUID) ([]models.Listing, error) {
	if s == nil || s.db == nil || productID == uuid.Nil {
		return nil, nil
	}
	var items []models.Listing
	if err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Where("status <> ?", models.ListingStatusClosed).
		Where("closes_at IS NULL OR closes_at > ?", time.Now().UTC()).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CloseExpiredListings(ctx context.Context, now time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).Model(&models.Listing{}).
		Where("status = ?", models.ListingStatusActive).
		Where("closes_at IS NOT NULL").
		Where("closes_at <= ?", now).
		Update("status", models.ListingStatusClosed)
	return res.RowsAffected, res.Error
}

// --- Platform prices --------------------------------------------------------

func (s *Store) InsertPlatformPrices(ctx context.Context, items []models.PlatformPrice) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(items, 200).Error
}

func (s *Store) ListPricesByProduct(ctx context.Context, productID uuid.UUID, since *time.Time) ([]models.PlatformPrice, error) {
	if s == nil || s.db == nil || productID == uuid.Nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.PlatformPrice{}).
		Where("product_id = ?", productID)
	if since != nil && !since.IsZero() {
		query = query.Where("fetched_at >= ?", *since)
	}
	var items []models.PlatformPrice
	if err := query.Order("fetched_at desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Opportunities ----------------------------------------------------------

// UpsertOpportunity inserts or updates keyed by (listing_id, sell_platform).
// The unique index makes concurrent writers converge on a single row even if
// the engine's per-listing lock is bypassed.
func (s *Store) UpsertOpportunity(ctx context.Context, item *models.Opportunity) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "listing_id"}, {Name: "sell_platform"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"buy_cost", "estimated_sell_price", "platform_fees", "shipping_cost",
			"profit", "roi_pct", "confidence_score", "status", "version",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetOpportunityByID(ctx context.Context, id uint64) (*models.Opportunity, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Opportunity
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListOpportunitiesByListing(ctx context.Context, listingID uuid.UUID) ([]models.Opportunity, error) {
	if s == nil || s.db == nil || listingID == uuid.Nil {
		return nil, nil
	}
	var items []models.Opportunity
	if err := s.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("sell_platform asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) ([]models.Opportunity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyOpportunityFilters(s.db.WithContext(ctx).Model(&models.Opportunity{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "profit")
	var items []models.Opportunity
	if err := query.
		Limit(normalizeLimit(params.Limit, 50)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := applyOpportunityFilters(s.db.WithContext(ctx).Model(&models.Opportunity{}), params).Count(&total).Error
	return total, err
}

func applyOpportunityFilters(query *gorm.DB, params repository.ListOpportunitiesParams) *gorm.DB {
	if params.Platform != nil && strings.TrimSpace(*params.Platform) != "" {
		query = query.Where("sell_platform = ?", strings.ToLower(strings.TrimSpace(*params.Platform)))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.MinProfit != nil {
		query = query.Where("profit >= ?", *params.MinProfit)
	}
	if params.MinROI != nil {
		query = query.Where("roi_pct >= ?", *params.MinROI)
	}
	return query
}

// --- Alert settings ---------------------------------------------------------

func (s *Store) CreateAlertSetting(ctx context.Context, item *models.AlertSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateAlertSetting(ctx context.Context, item *models.AlertSetting) error {
	if s == nil || s.db == nil || item == nil || item.ID == uuid.Nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.AlertSetting{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"email":              item.Email,
			"min_profit":         item.MinProfit,
			"min_roi":            item.MinROI,
			"watched_categories": item.WatchedCategories,
			"is_active":          item.IsActive,
			"updated_at":         time.Now().UTC(),
		}).Error
}

func (s *Store) GetAlertSettingByID(ctx context.Context, id uuid.UUID) (*models.AlertSetting, error) {
	if s == nil || s.db == nil || id == uuid.Nil {
		return nil, nil
	}
	var item models.AlertSetting
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListAlertSettings(ctx context.Context, activeOnly bool) ([]models.AlertSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.AlertSetting{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var items []models.AlertSetting
	if err := query.Order("created_at asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) HasAlertDelivery(ctx context.Context, settingID uuid.UUID, opportunityID uint64, version int) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	var total int64
	err := s.db.WithContext(ctx).Model(&models.AlertDelivery{}).
		Where("alert_setting_id = ?", settingID).
		Where("opportunity_id = ?", opportunityID).
		Where("version = ?", version).
		Count(&total).Error
	return total > 0, err
}

func (s *Store) InsertAlertDelivery(ctx context.Context, item *models.AlertDelivery) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	// DoNothing: a concurrent dispatcher may have recorded the same delivery;
	// that is the dedup working, not an error.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "alert_setting_id"}, {Name: "opportunity_id"}, {Name: "version"}},
		DoNothing: true,
	}).Create(item).Error
}

// --- Dashboard --------------------------------------------------------------

func (s *Store) DashboardStats(ctx context.Context) (repository.DashboardStats, error) {
	if s == nil || s.db == nil {
		return repository.DashboardStats{}, nil
	}
	var out repository.DashboardStats

	if err := s.db.WithContext(ctx).Model(&models.Opportunity{}).
		Count(&out.TotalOpportunities).Error; err != nil {
		return out, err
	}

	var avgRow struct {
		AvgProfit float64
		AvgROI    float64
	}
	if err := s.db.WithContext(ctx).Model(&models.Opportunity{}).
		Select("COALESCE(AVG(profit),0) AS avg_profit, COALESCE(AVG(roi_pct),0) AS avg_roi").
		Scan(&avgRow).Error; err != nil {
		return out, err
	}
	out.AvgProfit = avgRow.AvgProfit
	out.AvgROI = avgRow.AvgROI

	if err := s.db.WithContext(ctx).Model(&models.Listing{}).
		Where("status = ?", models.ListingStatusActive).
		Count(&out.ActiveListings).Error; err != nil {
		return out, err
	}

	var cats []repository.CategoryCount
	if err := s.db.WithContext(ctx).
		Table("products AS p").
		Select("p.category AS category, COUNT(o.id) AS count").
		Joins("JOIN opportunities AS o ON o.product_id = p.id").
		Where("p.category IS NOT NULL").
		Group("p.category").
		Order("count desc").
		Limit(5).
		Scan(&cats).Error; err != nil {
		return out, err
	}
	out.TopCategories = cats

	if err := s.db.WithContext(ctx).Model(&models.Opportunity{}).
		Order("created_at desc").
		Limit(10).
		Find(&out.Recent).Error; err != nil {
		return out, err
	}
	return out, nil
}

// --- Helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 200 {
		return 200
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

var _ repository.Repository = (*Store)(nil)
