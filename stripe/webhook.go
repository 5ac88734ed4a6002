// Package stripe processes Stripe webhook events that affect the auth
// user record. Subscription changes flip isSubscribed, which makes every
// outstanding session token stale for that user.
package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	stripego "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	auth "github.com/ukcheckpoints/go-auth"
)

// WebhookHandler verifies Stripe signatures and applies the events it
// recognizes to the users repository.
type WebhookHandler struct {
	users         auth.Users
	webhookSecret string
	logger        auth.Logger
}

// NewWebhookHandler creates a handler bound to the users repository.
func NewWebhookHandler(users auth.Users, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{
		users:         users,
		webhookSecret: webhookSecret,
		logger:        auth.DefaultLogger(),
	}
}

// WithLogger overrides the handler logger.
func (h *WebhookHandler) WithLogger(logger auth.Logger) *WebhookHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// Handle is the POST /stripe/webhook endpoint.
func (h *WebhookHandler) Handle(ctx router.Context) error {
	event, err := webhook.ConstructEvent(ctx.Body(), ctx.GetString("Stripe-Signature", ""), h.webhookSecret)
	if err != nil {
		h.logger.Error("Webhook signature verification failed: %v", err)
		return ctx.JSON(router.StatusBadRequest, router.ViewContext{
			"message": "Webhook Error: Invalid Signature",
		})
	}

	if err := h.Process(ctx, event); err != nil {
		h.logger.Error("Webhook processing failed: %v", err)
		return ctx.JSON(router.StatusInternalServerError, router.ViewContext{
			"message": "Webhook processing failed",
		})
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"received": true,
	})
}

// Process applies a verified event. Unknown event types are logged and
// acknowledged.
func (h *WebhookHandler) Process(ctx router.Context, event stripego.Event) error {
	switch event.Type {
	case "payment_intent.succeeded":
		var intent stripego.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return fmt.Errorf("stripe: decode payment intent: %w", err)
		}
		h.logger.Info("PaymentIntent was successful: %s", intent.ID)

	case "customer.created":
		var customer stripego.Customer
		if err := json.Unmarshal(event.Data.Raw, &customer); err != nil {
			return fmt.Errorf("stripe: decode customer: %w", err)
		}
		if customer.Email != "" {
			h.attachCustomer(ctx, customer.Email, customer.ID)
		}
		h.logger.Info("Customer created with ID: %s", customer.ID)

	case "customer.subscription.created":
		var sub stripego.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("stripe: decode subscription: %w", err)
		}
		if sub.Customer != nil {
			start := time.Unix(sub.CurrentPeriodStart, 0)
			h.updateSubscription(ctx, sub.Customer.ID, true, &start)
		}
		h.logger.Info("Subscription created: %s", sub.ID)

	case "customer.subscription.deleted":
		var sub stripego.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("stripe: decode subscription: %w", err)
		}
		if sub.Customer != nil {
			h.updateSubscription(ctx, sub.Customer.ID, false, nil)
		}
		h.logger.Info("Subscription canceled: %s", sub.ID)

	case "invoice.payment_succeeded":
		var invoice stripego.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("stripe: decode invoice: %w", err)
		}
		h.logger.Info("Invoice payment succeeded: %s", invoice.ID)

	default:
		h.logger.Warn("Unhandled event type: %s", event.Type)
	}

	return nil
}

func (h *WebhookHandler) attachCustomer(ctx router.Context, email, customerID string) {
	user, err := h.users.GetByEmail(ctx.Context(), email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			h.logger.Warn("No user found with email: %s", email)
			return
		}
		h.logger.Error("Customer lookup failed: %v", err)
		return
	}

	if err := h.users.SetStripeCustomer(ctx.Context(), user.ID, customerID); err != nil {
		h.logger.Error("Failed to attach Stripe customer %s to user %d: %v", customerID, user.ID, err)
		return
	}

	h.logger.Info("Updated user %d with Stripe customer ID: %s", user.ID, customerID)
}

func (h *WebhookHandler) updateSubscription(ctx router.Context, customerID string, subscribed bool, subscribedAt *time.Time) {
	user, err := h.users.GetByStripeCustomer(ctx.Context(), customerID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			h.logger.Warn("No user found with Stripe customer ID: %s", customerID)
			return
		}
		h.logger.Error("Subscription lookup failed: %v", err)
		return
	}

	if _, err := h.users.UpdateSubscription(ctx.Context(), user.ID, subscribed, subscribedAt); err != nil {
		h.logger.Error("Failed to update subscription for user %d: %v", user.ID, err)
		return
	}

	h.logger.Info("Updated user %d subscription status: %t", user.ID, subscribed)
}
