package monitor

import (
	"context"
	"fmt"

	"bitbucket.org/cashlens/forecast_backend/config"
	"bitbucket.org/cashlens/forecast_backend/models"
	"bitbucket.org/cashlens/forecast_backend/utils"
	"github.com/sirupsen/logrus"
)

// Notifier requests delivery of one alert notification on one channel.
type Notifier interface {
	Notify(ctx context.Context, req config.NotificationRequest) error
}

// LogNotifier writes the notification to the structured log. It is the default
// channel and always available.
type LogNotifier struct {
	Log *logrus.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, req config.NotificationRequest) error {
	n.Log.WithFields(logrus.Fields{
		"module":         "monitor",
		"user_id":        req.UserId,
		"alert_id":       req.AlertId,
		"severity":       req.Severity,
		"channel":        req.Channel,
		"correlation_id": req.CorrelationId,
	}).Warn(req.Message)
	return nil
}

// PubSubNotifier hands the request to the notification topic; downstream
// delivery workers own the actual email/SMS transport.
type PubSubNotifier struct{}

func (n *PubSubNotifier) Notify(ctx context.Context, req config.NotificationRequest) error {
	_, err := config.PublishAlertNotification(ctx, req)
	return err
}

func (m *Monitor) notifierFor(channel string) Notifier {
	if channel == "log" {
		return &LogNotifier{Log: m.log}
	}
	return &PubSubNotifier{}
}

// dispatchNotifications sends critical active alerts over every enabled
// channel. Delivery is fire-and-log: a failed channel never fails the monitor
// run.
func (m *Monitor) dispatchNotifications(ctx context.Context, alerts []*models.CashGapAlert, settings *models.AlertSettings) int {
	channels := settings.NotificationChannels
	if len(channels) == 0 {
		channels = []string{"log"}
	}

	sent := 0
	for _, alert := range alerts {
		if alert.Severity != models.SeverityCritical || alert.CurrentStatus != models.AlertStatusActive {
			continue
		}
		message := fmt.Sprintf("%s: %s", alert.Title, alert.Description)
		correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
		for _, channel := range channels {
			req := config.NotificationRequest{
				UserId:        alert.UserId,
				AlertId:       alert.ID,
				Channel:       channel,
				Severity:      string(alert.Severity),
				Message:       message,
				RequestedAt:   m.now(),
				CorrelationId: correlationId,
			}
			if err := m.notifierFor(channel).Notify(ctx, req); err != nil {
				config.LogError(m.log, "monitor", "dispatchNotifications", "notify "+channel, req, err)
				continue
			}
			sent++
		}
	}
	return sent
}
