package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/remnashop/backoffice/app/models"
	"github.com/remnashop/backoffice/app/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReferralRate is the share of a payment credited to the referrer as points.
var ReferralRate = decimal.RequireFromString("0.1")

var percent = decimal.NewFromInt(100)

// SideEffectApplier performs the cascade that follows a completed payment.
// Every call runs inside a savepoint of the payment transaction.
type SideEffectApplier interface {
	ActivateSubscription(ctx context.Context, tx *gorm.DB, userID uint, meta SubscriptionMetadata) (*models.Subscription, error)
	AddBalance(ctx context.Context, tx *gorm.DB, userID uint, amount decimal.Decimal) error
	AccrueReferralPoints(ctx context.Context, tx *gorm.DB, referrerID, referredID uint, amount decimal.Decimal) (int64, error)
	AccruePartnerCommission(ctx context.Context, tx *gorm.DB, partnerID, userID uint, amount decimal.Decimal, orderID, currency string) (*PartnerCommission, error)
}

// PartnerCommission is what a partner earned from one payment.
type PartnerCommission struct {
	PartnerID   uint
	OwnerUserID uint
	Amount      decimal.Decimal
	Rate        decimal.Decimal
}

// Appliers is the GORM backed SideEffectApplier.
type Appliers struct {
	users     repository.UserRepository
	subs      repository.SubscriptionRepository
	referrals repository.ReferralRepository
	partners  repository.PartnerRepository
	now       func() time.Time
}

func NewAppliers(repos *repository.Repositories, now func() time.Time) *Appliers {
	if now == nil {
		now = time.Now
	}
	return &Appliers{
		users:     repos.User,
		subs:      repos.Subscription,
		referrals: repos.Referral,
		partners:  repos.Partner,
		now:       now,
	}
}

// ActivateSubscription adds DurationDays to the user's active subscription,
// or creates one expiring DurationDays from now when none is active.
//
// Renewals are additive: the new ExpireAt is max(ExpireAt, now) plus
// DurationDays. A row still marked active whose ExpireAt has passed is
// therefore extended from now, so the lapsed gap is not credited back.
// PlanID is replaced by the paid plan.
func (a *Appliers) ActivateSubscription(ctx context.Context, tx *gorm.DB, userID uint, meta SubscriptionMetadata) (*models.Subscription, error) {
	if meta.DurationDays <= 0 {
		return nil, fmt.Errorf("invalid duration %d days", meta.DurationDays)
	}
	now := a.now().UTC()

	sub, err := a.subs.GetActive(ctx, tx, userID)
	switch {
	case err == nil:
		base := sub.ExpireAt
		if base.Before(now) {
			base = now
		}
		expireAt := base.AddDate(0, 0, meta.DurationDays)
		if err := a.subs.Extend(ctx, tx, sub.ID, meta.PlanID, expireAt); err != nil {
			return nil, fmt.Errorf("extend subscription %d: %w", sub.ID, err)
		}
		sub.PlanID = meta.PlanID
		sub.ExpireAt = expireAt
		return sub, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		sub = &models.Subscription{
			UserID:   userID,
			PlanID:   meta.PlanID,
			Status:   models.SubscriptionStatusActive,
			ExpireAt: now.AddDate(0, 0, meta.DurationDays),
		}
		if err := a.subs.Create(ctx, tx, sub); err != nil {
			return nil, fmt.Errorf("create subscription: %w", err)
		}
		return sub, nil
	default:
		return nil, fmt.Errorf("load active subscription: %w", err)
	}
}

func (a *Appliers) AddBalance(ctx context.Context, tx *gorm.DB, userID uint, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("balance top-up must be positive, got %s", amount.String())
	}
	if err := a.users.AddBalance(ctx, tx, userID, amount); err != nil {
		return fmt.Errorf("add balance to user %d: %w", userID, err)
	}
	return nil
}

// AccrueReferralPoints credits floor(amount * ReferralRate) points. A zero
// result is still recorded.
func (a *Appliers) AccrueReferralPoints(ctx context.Context, tx *gorm.DB, referrerID, referredID uint, amount decimal.Decimal) (int64, error) {
	points := amount.Mul(ReferralRate).Floor().IntPart()
	if points < 0 {
		points = 0
	}
	if err := a.referrals.Accrue(ctx, tx, referrerID, referredID, points); err != nil {
		return 0, fmt.Errorf("accrue referral points for %d: %w", referrerID, err)
	}
	return points, nil
}

// AccruePartnerCommission books a pending earning at the partner's current
// rate and credits the partner balance. Amounts are truncated to cents.
func (a *Appliers) AccruePartnerCommission(ctx context.Context, tx *gorm.DB, partnerID, userID uint, amount decimal.Decimal, orderID, currency string) (*PartnerCommission, error) {
	partner, err := a.partners.GetByID(ctx, tx, partnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("partner %d is missing or deleted: %w", partnerID, err)
		}
		return nil, fmt.Errorf("load partner %d: %w", partnerID, err)
	}

	rate := partner.EffectiveRate()
	commission := amount.Mul(rate).Div(percent).Truncate(2)
	earning := &models.PartnerEarning{
		PartnerID:     partner.ID,
		UserID:        userID,
		OrderID:       orderID,
		PaymentAmount: amount,
		Amount:        commission,
		Rate:          rate,
		Currency:      currency,
		Status:        models.PartnerEarningStatusPending,
	}
	if err := a.partners.CreateEarning(ctx, tx, earning); err != nil {
		return nil, fmt.Errorf("record partner earning: %w", err)
	}
	if err := a.partners.Credit(ctx, tx, partner.ID, commission); err != nil {
		return nil, fmt.Errorf("credit partner %d: %w", partner.ID, err)
	}
	return &PartnerCommission{
		PartnerID:   partner.ID,
		OwnerUserID: partner.UserID,
		Amount:      commission,
		Rate:        rate,
	}, nil
}
