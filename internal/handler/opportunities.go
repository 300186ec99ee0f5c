package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"flipradar/internal/repository"
)

type OpportunityHandler struct {
	Repo repository.Repository
	// StalenessWindow scopes the comparable prices shown on the detail view.
	StalenessWindow time.Duration
}

func (h *OpportunityHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/opportunities")
	group.GET("", h.list)
	group.GET("/:id", h.get)
}

func (h *OpportunityHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	platform := strQueryPtr(c, "platform")
	status := strQueryPtr(c, "status")
	minProfit := decimalQueryPtr(c, "min_profit")
	minROI := decimalQueryPtr(c, "min_roi")
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	orderBy := parseOrder(c.Query("sort_by"), map[string]string{
		"profit":     "profit",
		"roi":        "roi_pct",
		"roi_pct":    "roi_pct",
		"confidence": "confidence_score",
		"created_at": "created_at",
		"updated_at": "updated_at",
	})
	if orderBy == "" {
		orderBy = "profit"
	}
	asc := strings.EqualFold(strings.TrimSpace(c.Query("order")), "asc")

	params := repository.ListOpportunitiesParams{
		Limit:     limit,
		Offset:    offset,
		Platform:  platform,
		Status:    status,
		MinProfit: minProfit,
		MinROI:    minROI,
		OrderBy:   orderBy,
		Asc:       boolPtr(asc),
	}
	items, err := h.Repo.ListOpportunities(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountOpportunities(c.Request.Context(), repository.ListOpportunitiesParams{
		Platform:  platform,
		Status:    status,
		MinProfit: minProfit,
		MinROI:    minROI,
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *OpportunityHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetOpportunityByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "opportunity not found", nil)
		return
	}

	listing, err := h.Repo.GetListingByID(c.Request.Context(), item.ListingID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}

	window := h.StalenessWindow
	if window <= 0 {
		window = 48 * time.Hour
	}
	since := time.Now().UTC().Add(-window)
	prices, err := h.Repo.ListPricesByProduct(c.Request.Context(), item.ProductID, &since)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}

	resp := gin.H{
		"opportunity": item,
		"prices":      prices,
	}
	if listing != nil {
		resp["listing"] = listing
		resp["product"] = listing.Product
	}
	Ok(c, resp, nil)
}
