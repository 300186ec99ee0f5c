package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"flipradar/internal/repository"
)

type DashboardHandler struct {
	Repo repository.Repository
}

func (h *DashboardHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/dashboard/stats", h.stats)
}

func (h *DashboardHandler) stats(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	stats, err := h.Repo.DashboardStats(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{
		"total_opportunities": stats.TotalOpportunities,
		"avg_profit":          stats.AvgProfit,
		"avg_roi":             stats.AvgROI,
		"active_listings":     stats.ActiveListings,
		"top_categories":      stats.TopCategories,
		"recent":              stats.Recent,
	}, nil)
}
