package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/rfontaine/atelier/internal/domain"
)

// highValueThresholdCents marks orders worth flagging for manual review.
// Strictly greater-than: an order at exactly the threshold is not flagged.
const highValueThresholdCents int64 = 200_000

type notificationService struct {
	store  domain.NotificationStore
	logger *slog.Logger
}

// NewNotificationService creates a new NotificationService instance.
func NewNotificationService(store domain.NotificationStore, logger *slog.Logger) domain.NotificationService {
	return &notificationService{
		store:  store,
		logger: logger.With("service", "notification"),
	}
}

// DispatchOrderNotifications emits a new_order alert and, above the
// high-value threshold, an additional high-priority alert. Both inserts are
// attempted even if the first fails; the joined error is returned so the
// caller can log it without failing the pipeline.
func (s *notificationService) DispatchOrderNotifications(ctx context.Context, order domain.Order) error {
	var errs []error

	amount := domain.FormatAmount(order.TotalCents)
	currency := strings.ToUpper(order.Currency)

	_, err := s.store.CreateNotification(ctx, domain.Notification{
		ID:       uuid.New(),
		Type:     domain.NotificationNewOrder,
		Priority: domain.PriorityNormal,
		Title:    "New order received",
		Message:  fmt.Sprintf("Order %s for %s %s from %s", order.OrderNumber, amount, currency, order.Email),
		OrderID:  order.ID,
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("new_order notification: %w", err))
	}

	if order.TotalCents > highValueThresholdCents {
		_, err := s.store.CreateNotification(ctx, domain.Notification{
			ID:       uuid.New(),
			Type:     domain.NotificationHighValueOrder,
			Priority: domain.PriorityHigh,
			Title:    "High-value order",
			Message:  fmt.Sprintf("Order %s totals %s %s and may warrant review", order.OrderNumber, amount, currency),
			OrderID:  order.ID,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("high_value_order notification: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	s.logger.Debug("order notifications dispatched",
		"order_id", order.ID,
		"high_value", order.TotalCents > highValueThresholdCents)
	return nil
}

// ListNotifications returns recent notifications, newest first.
func (s *notificationService) ListNotifications(ctx context.Context, limit, offset int32) ([]domain.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListNotifications(ctx, limit, offset)
}

// MarkNotificationRead acknowledges a notification.
func (s *notificationService) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	return s.store.MarkNotificationRead(ctx, id)
}
