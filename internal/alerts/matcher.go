package alerts

import (
	"flipradar/internal/models"
)

// Matches reports whether an opportunity satisfies one alert setting. Pure
// function over its inputs; persistence and delivery live in the dispatcher.
//
// A retracted opportunity never matches, regardless of its recorded figures.
func Matches(setting models.AlertSetting, opp models.Opportunity, category string) bool {
	if !setting.IsActive {
		return false
	}
	if opp.Status != models.OpportunityStatusActive {
		return false
	}
	if opp.Profit.LessThan(setting.MinProfit) {
		return false
	}
	if opp.ROIPct.LessThan(setting.MinROI) {
		return false
	}
	watched := setting.Categories()
	if watched == nil {
		return true
	}
	for _, c := range watched {
		if c == category {
			return true
		}
	}
	return false
}

// Match filters the settings an opportunity should notify.
func Match(settings []models.AlertSetting, opp models.Opportunity, category string) []models.AlertSetting {
	var out []models.AlertSetting
	for _, s := range settings {
		if Matches(s, opp, category) {
			out = append(out, s)
		}
	}
	return out
}
