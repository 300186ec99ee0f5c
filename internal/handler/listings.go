package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"flipradar/internal/repository"
)

type ListingHandler struct {
	Repo repository.Repository
}

func (h *ListingHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/listings")
	group.GET("", h.list)
	group.GET("/:id", h.get)
}

func (h *ListingHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	status := strQueryPtr(c, "status")
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	var productID *uuid.UUID
	if raw := strings.TrimSpace(c.Query("product_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid product_id", nil)
			return
		}
		productID = &id
	}

	orderBy := parseOrder(c.Query("sort_by"), map[string]string{
		"current_bid": "current_bid",
		"closes_at":   "closes_at",
		"created_at":  "created_at",
		"updated_at":  "updated_at",
	})
	if orderBy == "" {
		orderBy = "created_at"
	}
	asc := strings.EqualFold(strings.TrimSpace(c.Query("order")), "asc")

	params := repository.ListListingsParams{
		Limit:     limit,
		Offset:    offset,
		Status:    status,
		ProductID: productID,
		OrderBy:   orderBy,
		Asc:       boolPtr(asc),
	}
	items, err := h.Repo.ListListings(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountListings(c.Request.Context(), repository.ListListingsParams{
		Status:    status,
		ProductID: productID,
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *ListingHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uuidParam(c, "id")
	if id == uuid.Nil {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetListingByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "listing not found", nil)
		return
	}
	opps, err := h.Repo.ListOpportunitiesByListing(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"listing": item, "opportunities": opps}, nil)
}
