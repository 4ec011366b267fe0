package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
	"github.com/angelmondragon/vendorpay-backend/pkg/outbox"
	"github.com/angelmondragon/vendorpay-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/vendorpay-backend/pkg/outbox/registry"
)

const orderNotificationConsumer = "order-notifications"

type notificationWriter interface {
	CreateMany(ctx context.Context, notifications []models.Notification) error
}

type idempotencyGuard interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer turns order domain events into in-app notifications for buyers and vendors.
type Consumer struct {
	repo         notificationWriter
	subscription *pubsub.Subscriber
	idempotency  idempotencyGuard
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewConsumer builds an order notification consumer.
func NewConsumer(repo notificationWriter, subscription *pubsub.Subscriber, guard idempotencyGuard, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  guard,
		decoders:     registry.OrderDecoders(),
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg.ID, msg.Attributes, msg.Data)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

// process acks poison messages (bad envelope, unknown version, invalid payload)
// and nacks only failures that a redelivery can fix.
func (c *Consumer) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) processResult {
	eventType := enums.OutboxEventType(attrs["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": eventType,
	})

	if !c.decoders.Handles(eventType) {
		c.logg.Debug(logCtx, "skipping event without notifications")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "envelope_version", envelope.Version)

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	decoded, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return processResult{ack: true}
	}
	notifications := buildNotifications(decoded)

	claimed, err := c.idempotency.Claim(ctx, orderNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !claimed {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if len(notifications) > 0 {
		if err := c.repo.CreateMany(ctx, notifications); err != nil {
			c.logg.Error(logCtx, "notification handling failed", err)
			if relErr := c.idempotency.Release(ctx, orderNotificationConsumer, eventID); relErr != nil {
				c.logg.Error(logCtx, "failed to release idempotency key", relErr)
			}
			return processResult{nack: true}
		}
	}

	c.logg.Info(c.logg.WithField(logCtx, "notifications", len(notifications)), "order notifications stored")
	return processResult{ack: true}
}

func buildNotifications(decoded any) []models.Notification {
	switch payload := decoded.(type) {
	case *payloads.OrderCreatedEvent:
		return orderCreatedNotifications(*payload)
	case *payloads.OrderItemStatusChangedEvent:
		return itemStatusNotifications(*payload)
	default:
		return nil
	}
}

func orderCreatedNotifications(payload payloads.OrderCreatedEvent) []models.Notification {
	link := statusLink(payload.OrderID)
	title := "Order placed"
	message := fmt.Sprintf("Order %s was paid: %s %s sent to %d vendor(s).",
		payload.OrderID, payload.TotalPaid.String(), payload.Currency, len(payload.PaidVendors))
	switch payload.OverallStatus {
	case enums.OrderStatusPartiallyCompleted:
		title = "Order partially paid"
		message = fmt.Sprintf("Order %s was only partially paid; %d vendor(s) received %s %s.",
			payload.OrderID, len(payload.PaidVendors), payload.TotalPaid.String(), payload.Currency)
	case enums.OrderStatusFailed:
		title = "Order payment failed"
		message = fmt.Sprintf("No vendor could be paid for order %s.", payload.OrderID)
	}

	out := []models.Notification{{
		RecipientEmail: payload.CustomerEmail,
		Type:           enums.NotificationTypeOrderReceived,
		Title:          title,
		Message:        message,
		Link:           &link,
		OrderID:        stringPtr(payload.OrderID),
	}}

	seen := map[string]struct{}{}
	for _, payout := range payload.PaidVendors {
		email := strings.ToLower(strings.TrimSpace(payout.VendorEmail))
		if email == "" {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		vendorLink := "/vendor/orders"
		out = append(out, models.Notification{
			RecipientEmail: email,
			Type:           enums.NotificationTypeOrderReceived,
			Title:          "New order received",
			Message: fmt.Sprintf("Order %s paid you %s %s for %d item(s).",
				payload.OrderID, payout.Amount.String(), payload.Currency, payout.ItemCount),
			Link:    &vendorLink,
			OrderID: stringPtr(payload.OrderID),
		})
	}
	return out
}

func itemStatusNotifications(payload payloads.OrderItemStatusChangedEvent) []models.Notification {
	if strings.TrimSpace(payload.CustomerEmail) == "" || payload.PreviousStatus == payload.Status {
		return nil
	}
	link := statusLink(payload.OrderID)
	return []models.Notification{{
		RecipientEmail: payload.CustomerEmail,
		Type:           enums.NotificationTypeOrderItemUpdated,
		Title:          "Item " + strings.ToLower(string(payload.Status)),
		Message:        fmt.Sprintf("An item in order %s is now %s.", payload.OrderID, payload.Status),
		Link:           &link,
		OrderID:        stringPtr(payload.OrderID),
	}}
}

func statusLink(orderID string) string {
	return "/orders/" + orderID + "/status"
}

func stringPtr(value string) *string {
	return &value
}
