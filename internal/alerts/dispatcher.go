package alerts

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"flipradar/internal/engine"
	"flipradar/internal/models"
	"flipradar/internal/repository"
)

// Mailer delivers one rendered alert. Kept as an interface so tests and the
// default deployment (log-only) avoid an SMTP dependency.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes alerts to the log instead of sending mail. Useful until an
// outbound mail provider is wired up.
type LogMailer struct {
	Logger *zap.Logger
	From   string
}

func (m LogMailer) Send(_ context.Context, to, subject, body string) error {
	if m.Logger != nil {
		m.Logger.Info("alert",
			zap.String("from", m.From),
			zap.String("to", to),
			zap.String("subject", subject),
			zap.String("body", body))
	}
	return nil
}

// Dispatcher consumes engine events and notifies matching alert settings,
// recording each delivery so a given (setting, opportunity, version) is sent
// at most once.
type Dispatcher struct {
	Repo   repository.Repository
	Mailer Mailer
	Logger *zap.Logger
}

// Run drains the event channel until it closes or the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context, events <-chan engine.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := d.Handle(ctx, ev); err != nil && d.Logger != nil {
				d.Logger.Warn("alert dispatch failed",
					zap.Uint64("opportunity_id", ev.Opportunity.ID),
					zap.Error(err))
			}
		}
	}
}

// Handle processes one committed event. Delivery failures for one setting do
// not block the others; the first error is returned after the loop.
func (d *Dispatcher) Handle(ctx context.Context, ev engine.Event) error {
	opp := ev.Opportunity
	if opp.Status != models.OpportunityStatusActive {
		return nil
	}
	settings, err := d.Repo.ListAlertSettings(ctx, true)
	if err != nil {
		return err
	}

	var firstErr error
	for _, setting := range Match(settings, opp, ev.Category) {
		sent, err := d.Repo.HasAlertDelivery(ctx, setting.ID, opp.ID, opp.Version)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if sent {
			continue
		}

		subject := fmt.Sprintf("Flip opportunity: $%s profit (%s%% ROI) on %s",
			opp.Profit.StringFixed(2), opp.ROIPct.StringFixed(2), opp.SellPlatform)
		body := fmt.Sprintf(
			"Buy for $%s, sell on %s around $%s.\nEstimated profit $%s (ROI %s%%), confidence %d/100.",
			opp.BuyCost.StringFixed(2), opp.SellPlatform, opp.EstimatedSellPrice.StringFixed(2),
			opp.Profit.StringFixed(2), opp.ROIPct.StringFixed(2), opp.ConfidenceScore)

		if err := d.Mailer.Send(ctx, setting.Email, subject, body); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		delivery := &models.AlertDelivery{
			AlertSettingID: setting.ID,
			OpportunityID:  opp.ID,
			Version:        opp.Version,
			Email:          setting.Email,
			Subject:        subject,
		}
		if err := d.Repo.InsertAlertDelivery(ctx, delivery); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
