package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"flipradar/internal/models"
	"flipradar/internal/repository"
)

type AlertSettingHandler struct {
	Repo repository.Repository
}

func (h *AlertSettingHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/alerts")
	group.GET("", h.list)
	group.POST("", h.create)
	group.GET("/:id", h.get)
	group.PATCH("/:id", h.update)
}

type alertSettingPayload struct {
	Email             string   `json:"email"`
	MinProfit         *string  `json:"min_profit"`
	MinROI            *string  `json:"min_roi"`
	WatchedCategories []string `json:"watched_categories"`
	IsActive          *bool    `json:"is_active"`
}

func (h *AlertSettingHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	activeOnly := strings.EqualFold(c.Query("active"), "true")
	items, err := h.Repo.ListAlertSettings(c.Request.Context(), activeOnly)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"count": len(items)})
}

func (h *AlertSettingHandler) create(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var payload alertSettingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		Error(c, http.StatusBadRequest, "invalid body: "+err.Error(), nil)
		return
	}
	email := strings.TrimSpace(payload.Email)
	if email == "" || !strings.Contains(email, "@") {
		Error(c, http.StatusBadRequest, "valid email required", nil)
		return
	}

	item := &models.AlertSetting{
		ID:        uuid.New(),
		Email:     email,
		MinProfit: decimal.NewFromInt(10),
		MinROI:    decimal.NewFromInt(20),
		IsActive:  true,
	}
	if payload.MinProfit != nil {
		v, err := decimal.NewFromString(*payload.MinProfit)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid min_profit", nil)
			return
		}
		item.MinProfit = v
	}
	if payload.MinROI != nil {
		v, err := decimal.NewFromString(*payload.MinROI)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid min_roi", nil)
			return
		}
		item.MinROI = v
	}
	if payload.IsActive != nil {
		item.IsActive = *payload.IsActive
	}
	if len(payload.WatchedCategories) > 0 {
		raw, err := json.Marshal(payload.WatchedCategories)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid watched_categories", nil)
			return
		}
		item.WatchedCategories = datatypes.JSON(raw)
	}

	if err := h.Repo.CreateAlertSetting(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *AlertSettingHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uuidParam(c, "id")
	if id == uuid.Nil {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetAlertSettingByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "alert setting not found", nil)
		return
	}
	Ok(c, item, nil)
}

func (h *AlertSettingHandler) update(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uuidParam(c, "id")
	if id == uuid.Nil {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetAlertSettingByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "alert setting not found", nil)
		return
	}

	var payload alertSettingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		Error(c, http.StatusBadRequest, "invalid body: "+err.Error(), nil)
		return
	}
	if email := strings.TrimSpace(payload.Email); email != "" {
		if !strings.Contains(email, "@") {
			Error(c, http.StatusBadRequest, "valid email required", nil)
			return
		}
		item.Email = email
	}
	if payload.MinProfit != nil {
		v, err := decimal.NewFromString(*payload.MinProfit)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid min_profit", nil)
			return
		}
		item.MinProfit = v
	}
	if payload.MinROI != nil {
		v, err := decimal.NewFromString(*payload.MinROI)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid min_roi", nil)
			return
		}
		item.MinROI = v
	}
	if payload.IsActive != nil {
		item.IsActive = *payload.IsActive
	}
	if payload.WatchedCategories != nil {
		if len(payload.WatchedCategories) == 0 {
			// Explicit empty list resets to watch-all.
			item.WatchedCategories = nil
		} else {
			raw, err := json.Marshal(payload.WatchedCategories)
			if err != nil {
				Error(c, http.StatusBadRequest, "invalid watched_categories", nil)
				return
			}
			item.WatchedCategories = datatypes.JSON(raw)
		}
	}

	if err := h.Repo.UpdateAlertSetting(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}
