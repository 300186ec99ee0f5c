package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"flipradar/internal/engine"
	"flipradar/internal/models"
	"flipradar/internal/repository"
)

// IngestHandler is the write surface for scrapers: listing snapshots and
// platform price observations come in here and flow straight into the engine.
type IngestHandler struct {
	Repo   repository.Repository
	Engine *engine.Engine
}

func (h *IngestHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/ingest")
	group.POST("/listings", h.listings)
	group.POST("/prices", h.prices)
}

type productPayload struct {
	UPC      string         `json:"upc"`
	ASIN     string         `json:"asin"`
	Title    string         `json:"title"`
	Category string         `json:"category"`
	ImageURL string         `json:"image_url"`
	Extra    map[string]any `json:"extra"`
}

type listingPayload struct {
	ExternalID        string         `json:"external_id"`
	Product           productPayload `json:"product"`
	CurrentBid        string         `json:"current_bid"`
	RetailPrice       *string        `json:"retail_price"`
	Condition         string         `json:"condition"`
	AuctionType       *string        `json:"auction_type"`
	WarehouseLocation *string        `json:"warehouse_location"`
	URL               *string        `json:"url"`
	ClosesAt          *time.Time     `json:"closes_at"`
	Status            string         `json:"status"`
}

func (h *IngestHandler) listings(c *gin.Context) {
	if h.Repo == nil || h.Engine == nil {
		Error(c, http.StatusInternalServerError, "ingest unavailable", nil)
		return
	}
	var payload listingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		Error(c, http.StatusBadRequest, "invalid body: "+err.Error(), nil)
		return
	}
	if strings.TrimSpace(payload.ExternalID) == "" {
		Error(c, http.StatusBadRequest, "external_id required", nil)
		return
	}
	if strings.TrimSpace(payload.Product.Title) == "" {
		Error(c, http.StatusBadRequest, "product.title required", nil)
		return
	}
	bid, err := decimal.NewFromString(strings.TrimSpace(payload.CurrentBid))
	if err != nil || bid.IsNegative() {
		Error(c, http.StatusBadRequest, "invalid current_bid", nil)
		return
	}

	ctx := c.Request.Context()

	product, err := h.resolveProduct(c, payload.Product)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if product == nil {
		return // resolveProduct already replied
	}

	listing := &models.Listing{
		ExternalID:        strings.TrimSpace(payload.ExternalID),
		ProductID:         product.ID,
		CurrentBid:        bid,
		Condition:         strings.TrimSpace(payload.Condition),
		AuctionType:       payload.AuctionType,
		WarehouseLocation: payload.WarehouseLocation,
		URL:               payload.URL,
		ClosesAt:          payload.ClosesAt,
		Status:            models.ListingStatusActive,
	}
	if listing.Condition == "" {
		listing.Condition = "unknown"
	}
	if s := strings.TrimSpace(payload.Status); s != "" {
		listing.Status = s
	}
	if payload.RetailPrice != nil {
		rp, err := decimal.NewFromString(strings.TrimSpace(*payload.RetailPrice))
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid retail_price", nil)
			return
		}
		listing.RetailPrice = &rp
	}
	// Re-submitting a known external ID keeps the stored row's identity.
	if prev, err := h.Repo.GetListingByExternalID(ctx, listing.ExternalID); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	} else if prev != nil {
		listing.ID = prev.ID
	}

	events, err := h.Engine.SubmitListing(ctx, listing)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"listing": listing, "events": len(events)}, nil)
}

// resolveProduct finds or creates the product a listing refers to, matching by
// UPC when present. Replies with an error itself and returns nil,nil when the
// payload is unusable.
func (h *IngestHandler) resolveProduct(c *gin.Context, payload productPayload) (*models.Product, error) {
	ctx := c.Request.Context()

	var existing *models.Product
	if upc := strings.TrimSpace(payload.UPC); upc != "" {
		found, err := h.Repo.GetProductByUPC(ctx, upc)
		if err != nil {
			return nil, err
		}
		existing = found
	}

	product := &models.Product{Title: strings.TrimSpace(payload.Title)}
	if existing != nil {
		product = existing
		if t := strings.TrimSpace(payload.Title); t != "" {
			product.Title = t
		}
	} else {
		product.ID = uuid.New()
	}
	if upc := strings.TrimSpace(payload.UPC); upc != "" {
		product.UPC = &upc
	}
	if asin := strings.TrimSpace(payload.ASIN); asin != "" {
		product.ASIN = &asin
	}
	if cat := strings.TrimSpace(payload.Category); cat != "" {
		product.Category = &cat
	}
	if img := strings.TrimSpace(payload.ImageURL); img != "" {
		product.ImageURL = &img
	}
	if len(payload.Extra) > 0 {
		raw, err := json.Marshal(payload.Extra)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid product.extra", nil)
			return nil, nil
		}
		product.ExtraData = datatypes.JSON(raw)
	}

	if err := h.Repo.UpsertProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

type pricePayload struct {
	Platform     string     `json:"platform"`
	Price        string     `json:"price"`
	ShippingCost string     `json:"shipping_cost"`
	Condition    *string    `json:"condition"`
	URL          *string    `json:"url"`
	SellerInfo   *string    `json:"seller_info"`
	FetchedAt    *time.Time `json:"fetched_at"`
}

type pricesPayload struct {
	ProductID uuid.UUID      `json:"product_id"`
	Prices    []pricePayload `json:"prices"`
}

func (h *IngestHandler) prices(c *gin.Context) {
	if h.Repo == nil || h.Engine == nil {
		Error(c, http.StatusInternalServerError, "ingest unavailable", nil)
		return
	}
	var payload pricesPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		Error(c, http.StatusBadRequest, "invalid body: "+err.Error(), nil)
		return
	}
	if payload.ProductID == uuid.Nil {
		Error(c, http.StatusBadRequest, "product_id required", nil)
		return
	}
	if len(payload.Prices) == 0 {
		Error(c, http.StatusBadRequest, "prices required", nil)
		return
	}

	ctx := c.Request.Context()
	product, err := h.Repo.GetProductByID(ctx, payload.ProductID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if product == nil {
		Error(c, http.StatusNotFound, "product not found", nil)
		return
	}

	now := time.Now().UTC()
	items := make([]models.PlatformPrice, 0, len(payload.Prices))
	for i, p := range payload.Prices {
		platform := strings.ToLower(strings.TrimSpace(p.Platform))
		if platform == "" {
			Error(c, http.StatusBadRequest, "prices["+strconv.Itoa(i)+"].platform required", nil)
			return
		}
		price, err := decimal.NewFromString(strings.TrimSpace(p.Price))
		if err != nil || !price.IsPositive() {
			Error(c, http.StatusBadRequest, "prices["+strconv.Itoa(i)+"].price invalid", nil)
			return
		}
		shipping := decimal.Zero
		if s := strings.TrimSpace(p.ShippingCost); s != "" {
			shipping, err = decimal.NewFromString(s)
			if err != nil || shipping.IsNegative() {
				Error(c, http.StatusBadRequest, "prices["+strconv.Itoa(i)+"].shipping_cost invalid", nil)
				return
			}
		}
		fetchedAt := now
		if p.FetchedAt != nil && !p.FetchedAt.IsZero() {
			fetchedAt = p.FetchedAt.UTC()
		}
		items = append(items, models.PlatformPrice{
			ProductID:    payload.ProductID,
			Platform:     platform,
			Price:        price,
			ShippingCost: shipping,
			Condition:    p.Condition,
			URL:          p.URL,
			SellerInfo:   p.SellerInfo,
			FetchedAt:    fetchedAt,
		})
	}

	summary, err := h.Engine.SubmitPrices(ctx, payload.ProductID, items)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{
		"inserted": len(items),
		"listings": summary.Listings,
		"created":  summary.Created,
		"updated":  summary.Updated,
		"failed":   summary.Failed,
	}, nil)
}

