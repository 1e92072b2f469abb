package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/remnashop/backoffice/app/models"
	"github.com/remnashop/backoffice/app/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultProcessingTimeout bounds the whole reconciliation of one webhook.
const DefaultProcessingTimeout = 5 * time.Second

// Service reconciles normalized webhooks against the transaction ledger.
type Service struct {
	db       *gorm.DB
	repos    *repository.Repositories
	appliers SideEffectApplier
	notifier NotificationEmitter
	timeout  time.Duration
	now      func() time.Time
}

type Option func(*Service)

// WithTimeout overrides DefaultProcessingTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock sets the time source for paid_at and subscription windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAppliers replaces the default GORM backed side effects.
func WithAppliers(a SideEffectApplier) Option {
	return func(s *Service) {
		s.appliers = a
	}
}

func NewService(db *gorm.DB, repos *repository.Repositories, notifier NotificationEmitter, opts ...Option) *Service {
	if notifier == nil {
		notifier = NopEmitter{}
	}
	s := &Service{
		db:       db,
		repos:    repos,
		notifier: notifier,
		timeout:  DefaultProcessingTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.appliers == nil {
		s.appliers = NewAppliers(repos, s.now)
	}
	return s
}

// Process dispatches a payload on its status. Pending and refunded payloads
// are acknowledged without touching the ledger.
func (s *Service) Process(ctx context.Context, p *WebhookPayload) (*Outcome, error) {
	switch p.Status {
	case StatusSuccess:
		return s.ProcessSuccessfulPayment(ctx, p)
	case StatusFailed:
		return s.ProcessFailedPayment(ctx, p)
	case StatusPending, StatusRefunded:
		log.Infof("[Payments] %s payment %s/%s reported %s, no transition", p.Gateway, p.PaymentID, p.ExternalID, p.Status)
		return &Outcome{Status: OutcomeAcknowledged}, nil
	default:
		return nil, Malformed("unknown status %q", p.Status)
	}
}

// pendingNotice is emitted once the transaction has committed.
type pendingNotice func(ctx context.Context) error

// ProcessSuccessfulPayment completes the ledger row and applies the cascade
// in one transaction. Side effect failures are rolled back to their own
// savepoint and reported in the outcome; they never fail the payment.
func (s *Service) ProcessSuccessfulPayment(ctx context.Context, p *WebhookPayload) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outcome := &Outcome{}
	var notices []pendingNotice

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.resolveTransaction(ctx, tx, p)
		if err != nil {
			return err
		}
		outcome.TransactionID = txn.ID
		outcome.UserID = txn.UserID
		if txn.IsTerminal() {
			log.Infof("[Payments] Transaction %s already %s, skipping duplicate %s webhook", txn.ID, txn.Status, p.Gateway)
			outcome.Status = OutcomeDuplicate
			return nil
		}

		user, err := s.repos.User.GetByID(ctx, tx, txn.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %d of transaction %s", ErrUserNotFound, txn.UserID, txn.ID)
			}
			return fmt.Errorf("%w: load user %d: %v", ErrLedger, txn.UserID, err)
		}

		fields := map[string]interface{}{
			"status":        models.TransactionStatusCompleted,
			"paid_at":       s.now().UTC(),
			"error_message": "",
		}
		if p.ExternalID != "" {
			fields["external_id"] = p.ExternalID
		}
		if err := s.repos.Transaction.Update(ctx, tx, txn.ID, fields); err != nil {
			return fmt.Errorf("%w: complete transaction %s: %v", ErrLedger, txn.ID, err)
		}

		amount, currency := s.paidAmount(p, txn)
		received := PaymentReceivedEvent{
			TransactionID: txn.ID,
			Gateway:       p.Gateway,
			Amount:        amount,
			Currency:      currency,
		}

		switch meta := resolveMetadata(p, txn).(type) {
		case SubscriptionMetadata:
			received.PaymentType = meta.PaymentType()
			received.PlanID = meta.PlanID
			received.DurationDays = meta.DurationDays
			outcome.SideEffects = append(outcome.SideEffects, s.apply(tx, StepActivateSubscription, txn, amount, func(sp *gorm.DB) error {
				sub, err := s.appliers.ActivateSubscription(ctx, sp, user.ID, meta)
				if err == nil {
					expireAt := sub.ExpireAt
					received.ExpireAt = &expireAt
				}
				return err
			}))
		case BalanceMetadata:
			received.PaymentType = meta.PaymentType()
			outcome.SideEffects = append(outcome.SideEffects, s.apply(tx, StepAddBalance, txn, amount, func(sp *gorm.DB) error {
				return s.appliers.AddBalance(ctx, sp, user.ID, amount)
			}))
		case IncompleteMetadata:
			received.PaymentType = meta.PaymentType()
			log.Warnf("[Payments] Transaction %s: subscription not activated: %s", txn.ID, meta.Reason)
			outcome.SideEffects = append(outcome.SideEffects, SideEffectResult{Step: StepActivateSubscription, Skipped: meta.Reason})
		case nil:
			received.PaymentType = models.PaymentTypeOther
		default:
			received.PaymentType = meta.PaymentType()
		}

		if user.ReferredBy != nil && *user.ReferredBy != 0 && *user.ReferredBy != user.ID {
			referrerID := *user.ReferredBy
			outcome.SideEffects = append(outcome.SideEffects, s.apply(tx, StepAccrueReferralPoints, txn, amount, func(sp *gorm.DB) error {
				_, err := s.appliers.AccrueReferralPoints(ctx, sp, referrerID, user.ID, amount)
				return err
			}))
		}

		if user.PartnerID != nil && *user.PartnerID != 0 {
			partnerID := *user.PartnerID
			outcome.SideEffects = append(outcome.SideEffects, s.apply(tx, StepAccruePartnerCommission, txn, amount, func(sp *gorm.DB) error {
				commission, err := s.appliers.AccruePartnerCommission(ctx, sp, partnerID, user.ID, amount, txn.ID, currency)
				if err != nil {
					return err
				}
				notices = append(notices, func(ctx context.Context) error {
					return s.notifier.EmitPartnerCommission(ctx, commission.OwnerUserID, commission.Amount, txn.ID, currency)
				})
				return nil
			}))
		}

		userID := user.ID
		notices = append([]pendingNotice{func(ctx context.Context) error {
			return s.notifier.EmitPaymentReceived(ctx, userID, received)
		}}, notices...)

		outcome.Status = OutcomeProcessed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if failed := outcome.FailedSideEffects(); len(failed) > 0 {
		log.Warnf("[Payments] Transaction %s completed with %d failed side effects", outcome.TransactionID, len(failed))
	} else if outcome.Status == OutcomeProcessed {
		log.Infof("[Payments] Transaction %s completed via %s", outcome.TransactionID, p.Gateway)
	}
	s.emit(ctx, notices)
	return outcome, nil
}

// ProcessFailedPayment moves a pending row to failed. Failure webhooks for
// unknown transactions are acknowledged so the gateway stops retrying.
func (s *Service) ProcessFailedPayment(ctx context.Context, p *WebhookPayload) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outcome := &Outcome{}
	reason := p.ErrorMessage
	if reason == "" {
		reason = "payment failed"
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.resolveTransaction(ctx, tx, p)
		if errors.Is(err, ErrTransactionNotFound) {
			log.Warnf("[Payments] Failure webhook from %s for unknown transaction (%s/%s) acknowledged", p.Gateway, p.PaymentID, p.ExternalID)
			outcome.Status = OutcomeAcknowledged
			return nil
		}
		if err != nil {
			return err
		}
		outcome.TransactionID = txn.ID
		outcome.UserID = txn.UserID
		if txn.IsTerminal() {
			log.Infof("[Payments] Transaction %s already %s, ignoring failure webhook", txn.ID, txn.Status)
			outcome.Status = OutcomeDuplicate
			return nil
		}

		fields := map[string]interface{}{
			"status":        models.TransactionStatusFailed,
			"error_message": reason,
		}
		if p.ExternalID != "" {
			fields["external_id"] = p.ExternalID
		}
		if err := s.repos.Transaction.Update(ctx, tx, txn.ID, fields); err != nil {
			return fmt.Errorf("%w: fail transaction %s: %v", ErrLedger, txn.ID, err)
		}
		outcome.Status = OutcomeProcessed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome.Status == OutcomeProcessed {
		log.Infof("[Payments] Transaction %s failed via %s: %s", outcome.TransactionID, p.Gateway, reason)
		userID, txnID := outcome.UserID, outcome.TransactionID
		s.emit(ctx, []pendingNotice{func(ctx context.Context) error {
			return s.notifier.EmitPaymentFailed(ctx, userID, txnID, reason)
		}})
	}
	return outcome, nil
}

// resolveTransaction finds the ledger row by (external_id, gateway_id) and
// then by payment id. The row is locked for the rest of the transaction.
func (s *Service) resolveTransaction(ctx context.Context, tx *gorm.DB, p *WebhookPayload) (*models.PaymentTransaction, error) {
	gatewayID, err := s.gatewayID(ctx, tx, p)
	if err != nil {
		return nil, err
	}

	if p.ExternalID != "" && gatewayID != 0 {
		txn, err := s.repos.Transaction.GetByExternalID(ctx, tx, p.ExternalID, gatewayID)
		if err == nil {
			return txn, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: lookup by external id: %v", ErrLedger, err)
		}
	}

	if p.PaymentID != "" {
		txn, err := s.repos.Transaction.GetByID(ctx, tx, p.PaymentID)
		if err == nil {
			if gatewayID != 0 && txn.GatewayID != gatewayID {
				log.Warnf("[Payments] Transaction %s belongs to gateway %d, webhook came from %s", txn.ID, txn.GatewayID, p.Gateway)
				return nil, fmt.Errorf("%w: %s is not a %s transaction", ErrTransactionNotFound, txn.ID, p.Gateway)
			}
			return txn, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: lookup by id: %v", ErrLedger, err)
		}
	}

	return nil, fmt.Errorf("%w: %s external id %q, payment id %q", ErrTransactionNotFound, p.Gateway, p.ExternalID, p.PaymentID)
}

func (s *Service) gatewayID(ctx context.Context, tx *gorm.DB, p *WebhookPayload) (uint, error) {
	if p.GatewayID != nil {
		return *p.GatewayID, nil
	}
	gw, err := s.repos.Gateway.GetByName(ctx, tx, p.Gateway)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: lookup gateway %s: %v", ErrLedger, p.Gateway, err)
	}
	return gw.ID, nil
}

// paidAmount prefers the amount the gateway reports and falls back to the
// amount recorded at initiation.
func (s *Service) paidAmount(p *WebhookPayload, txn *models.PaymentTransaction) (decimal.Decimal, string) {
	amount, currency := p.Amount, p.Currency
	if !amount.IsPositive() {
		amount = txn.Amount
	} else if !amount.Equal(txn.Amount) {
		log.Warnf("[Payments] Transaction %s: %s reported %s, ledger has %s", txn.ID, p.Gateway, amount.String(), txn.Amount.String())
	}
	if currency == "" {
		currency = txn.Currency
	}
	return amount, currency
}

// apply runs one side effect in a savepoint and converts its failure,
// including a panic, into a SideEffectResult.
func (s *Service) apply(tx *gorm.DB, step string, txn *models.PaymentTransaction, amount decimal.Decimal, fn func(sp *gorm.DB) error) SideEffectResult {
	err := tx.Transaction(func(sp *gorm.DB) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn(sp)
	})
	if err != nil {
		seErr := &SideEffectError{Step: step, TransactionID: txn.ID, UserID: txn.UserID, Amount: amount, Err: err}
		log.Errorf("[Payments] %v", seErr)
		return SideEffectResult{Step: step, Err: seErr}
	}
	return SideEffectResult{Step: step, Applied: true}
}

// emit delivers notifications after commit. The processing deadline does
// not apply to them.
func (s *Service) emit(ctx context.Context, notices []pendingNotice) {
	ctx = context.WithoutCancel(ctx)
	for _, notice := range notices {
		if err := notice(ctx); err != nil {
			log.Warnf("[Payments] Notification failed: %v", err)
		}
	}
}

// resolveMetadata uses the payload metadata when it names a payment type and
// otherwise the metadata stored at initiation, overlaid with the payload's.
func resolveMetadata(p *WebhookPayload, txn *models.PaymentTransaction) Metadata {
	if p.Metadata != nil {
		return p.Metadata
	}
	raw := txn.MetadataStrings()
	if lookup(raw, "type", "paymentType", "payment_type") == "" && txn.Type != "" {
		raw["type"] = txn.Type
	}
	for k, v := range p.RawMetadata {
		raw[k] = v
	}
	return ParseMetadata(raw)
}
