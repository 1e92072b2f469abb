package controllers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/remnashop/backoffice/app/models"
	"github.com/remnashop/backoffice/app/repository"
	"github.com/remnashop/backoffice/internal/pkg/gateway"
	"github.com/remnashop/backoffice/internal/pkg/metrics/counter"
	"github.com/remnashop/backoffice/internal/pkg/payment"
	"gorm.io/gorm"
)

// Processor is the part of payment.Service the webhook handler drives.
type Processor interface {
	Process(ctx context.Context, p *payment.WebhookPayload) (*payment.Outcome, error)
}

// WebhookRecorder counts webhook results per gateway.
type WebhookRecorder interface {
	Record(ctx context.Context, gateway, result string)
}

// PaymentWebhookController receives gateway webhooks on
// POST /webhook/payments/:gateway.
type PaymentWebhookController struct {
	registry  *gateway.Registry
	processor Processor
	gateways  repository.GatewayRepository
	events    repository.WebhookEventRepository
	secrets   map[string]string
	recorder  WebhookRecorder
}

func NewPaymentWebhookController(registry *gateway.Registry, processor Processor, repos *repository.Repositories, secrets map[string]string) *PaymentWebhookController {
	return &PaymentWebhookController{
		registry:  registry,
		processor: processor,
		gateways:  repos.Gateway,
		events:    repos.WebhookEvent,
		secrets:   secrets,
	}
}

// WithCounter records every webhook result on rec.
func (pc *PaymentWebhookController) WithCounter(rec WebhookRecorder) *PaymentWebhookController {
	pc.recorder = rec
	return pc
}

func (pc *PaymentWebhookController) HandleWebhook(c *fiber.Ctx) error {
	ctx := c.UserContext()
	adapter, ok := pc.registry.Get(c.Params("gateway"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown_gateway"})
	}
	name := adapter.Name()

	gw, err := pc.gateways.GetByName(ctx, nil, name)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("[Webhook] Failed to load gateway %s: %v", name, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "gateway_lookup_failed"})
	}
	if gw == nil || !gw.IsActive {
		log.Warnf("[Webhook] Rejected webhook for disabled gateway %s", name)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "gateway_disabled"})
	}

	rawBody := append([]byte(nil), c.BodyRaw()...)
	var signature string
	if header := adapter.SignatureHeader(); header != "" {
		signature = strings.TrimSpace(c.Get(header))
	}
	// Unauthenticated deliveries never reach the delivery log.
	if !adapter.ValidateSignature(rawBody, signature, pc.secrets[name]) {
		log.Warnf("[Webhook] Invalid %s signature from %s", name, c.IP())
		pc.count(ctx, name, counter.ResultInvalidSignature)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	created, stored, err := pc.events.CreateIfNotExists(ctx, &models.PaymentWebhookEvent{
		Gateway:        name,
		EventKey:       eventKey(rawBody),
		PayloadJSON:    string(rawBody),
		SignatureValid: true,
	})
	if err != nil {
		log.Errorf("[Webhook] Failed to record %s delivery: %v", name, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		pc.count(ctx, name, counter.ResultDuplicate)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	payload, err := adapter.ParsePayload(rawBody)
	if err != nil {
		if errors.Is(err, payment.ErrUnsupportedEvent) {
			pc.markProcessed(ctx, stored.ID, nil)
			log.Infof("[Webhook] Ignored %s event: %v", name, err)
			pc.count(ctx, name, counter.ResultIgnored)
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
		}
		pc.markProcessed(ctx, stored.ID, err)
		log.Warnf("[Webhook] Invalid %s payload: %v", name, err)
		pc.count(ctx, name, counter.ResultInvalidPayload)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}
	if payload.GatewayID == nil {
		payload.GatewayID = &gw.ID
	}

	outcome, err := pc.processor.Process(ctx, payload)
	pc.markProcessed(ctx, stored.ID, err)
	if err != nil {
		status, code := webhookStatusCode(err)
		pc.count(ctx, name, counter.ResultError)
		log.Errorf("[Webhook] %s payment %s/%s failed: %v", name, payload.PaymentID, payload.ExternalID, err)
		return c.Status(status).JSON(fiber.Map{"error": code})
	}

	pc.count(ctx, name, string(outcome.Status))
	resp := fiber.Map{
		"ok":             true,
		"status":         outcome.Status,
		"transaction_id": outcome.TransactionID,
	}
	if outcome.Status == payment.OutcomeDuplicate {
		resp["duplicate"] = true
	}
	if failed := outcome.FailedSideEffects(); len(failed) > 0 {
		steps := make([]string, 0, len(failed))
		for _, se := range failed {
			steps = append(steps, se.Step)
		}
		resp["failed_side_effects"] = steps
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (pc *PaymentWebhookController) count(ctx context.Context, gateway, result string) {
	if pc.recorder != nil {
		pc.recorder.Record(ctx, gateway, result)
	}
}

func (pc *PaymentWebhookController) markProcessed(ctx context.Context, id uint, processingErr error) {
	msg := ""
	if processingErr != nil {
		msg = processingErr.Error()
	}
	if err := pc.events.MarkProcessed(ctx, id, msg); err != nil {
		log.Warnf("[Webhook] Failed to mark delivery %d processed: %v", id, err)
	}
}

// webhookStatusCode maps processing errors onto the HTTP status the gateway
// sees. 5xx makes the gateway retry.
func webhookStatusCode(err error) (int, string) {
	switch {
	case errors.Is(err, payment.ErrSignatureInvalid):
		return fiber.StatusUnauthorized, "invalid_signature"
	case errors.Is(err, payment.ErrMalformedPayload):
		return fiber.StatusBadRequest, "invalid_payload"
	case errors.Is(err, payment.ErrTransactionNotFound):
		return fiber.StatusInternalServerError, "transaction_not_found"
	case errors.Is(err, payment.ErrUserNotFound):
		return fiber.StatusInternalServerError, "user_not_found"
	default:
		return fiber.StatusInternalServerError, "processing_failed"
	}
}

func eventKey(rawBody []byte) string {
	sum := sha256.Sum256(rawBody)
	return fmt.Sprintf("hash:%s", hex.EncodeToString(sum[:]))
}
