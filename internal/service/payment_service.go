package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// MetadataReservationID is the checkout metadata key that ties a provider
// session (and its webhooks) back to a reservation.
const MetadataReservationID = "reservation_id"

// confirmAttempts bounds how often ConfirmPayment re-reads after losing a
// compare-and-set race.
const confirmAttempts = 3

// PaymentOutcome is the provider-asserted result of a checkout.
type PaymentOutcome string

const (
	OutcomeSucceeded PaymentOutcome = "succeeded"
	OutcomeFailed    PaymentOutcome = "failed"
)

func (o PaymentOutcome) target() (model.PaymentStatus, bool) {
	switch o {
	case OutcomeSucceeded:
		return model.PaymentPaid, true
	case OutcomeFailed:
		return model.PaymentFailed, true
	}
	return "", false
}

// ConfirmStatus classifies what ConfirmPayment did.
type ConfirmStatus string

const (
	ConfirmApplied   ConfirmStatus = "applied"
	ConfirmDuplicate ConfirmStatus = "duplicate"
	ConfirmIgnored   ConfirmStatus = "ignored"
)

// ConfirmResult reports the outcome of ConfirmPayment.  Reservation is the
// zero value when the reservation is unknown.
type ConfirmResult struct {
	Status      ConfirmStatus
	Reservation model.Reservation
}

// PaymentSession is returned to the guest to continue checkout.
type PaymentSession struct {
	ReservationID string `json:"reservation_id"`
	SessionID     string `json:"session_id"`
	URL           string `json:"url"`
}

// RedirectConfig holds the return paths appended to the caller's origin.
type RedirectConfig struct {
	DefaultOrigin string
	SuccessPath   string
	CancelPath    string
}

// PaymentService drives a reservation's payment status: it opens checkout
// sessions and applies provider outcomes exactly once.
type PaymentService struct {
	ledger    Ledger
	inventory Inventory
	provider  PaymentProvider
	redirects RedirectConfig
	log       *zap.Logger
}

func NewPaymentService(ledger Ledger, inv Inventory, provider PaymentProvider, redirects RedirectConfig, log *zap.Logger) *PaymentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentService{ledger: ledger, inventory: inv, provider: provider, redirects: redirects, log: log}
}

// BeginPayment opens a checkout session for the caller's reservation and
// moves it to PENDING.  A FAILED reservation may be retried; a PENDING
// one gets a fresh session.  origin is the caller's front-end origin used
// for the return URLs.
func (s *PaymentService) BeginPayment(ctx context.Context, reservationID, userID, origin string) (sess PaymentSession, err error) {
	ctx, span := startSpan(ctx, "payment.begin")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("reservation.id", reservationID))

	res, err := s.ledger.FindByID(ctx, reservationID)
	if errors.Is(err, repository.ErrNotFound) {
		return PaymentSession{}, ErrReservationNotFound
	}
	if err != nil {
		return PaymentSession{}, fmt.Errorf("load reservation: %w", err)
	}
	if res.UserID != userID {
		return PaymentSession{}, ErrForbidden
	}
	if res.PaymentStatus == model.PaymentPaid {
		return PaymentSession{}, ErrAlreadyPaid
	}
	if s.provider == nil {
		return PaymentSession{}, fmt.Errorf("%w: payments are not configured", ErrPaymentProvider)
	}

	description := "Hotel booking"
	hotel, err := s.inventory.Hotel(ctx, res.HotelID)
	switch {
	case err == nil:
		description = hotel.Name
	case errors.Is(err, repository.ErrNotFound):
	default:
		return PaymentSession{}, fmt.Errorf("load hotel: %w", err)
	}

	base := strings.TrimRight(origin, "/")
	if base == "" {
		base = strings.TrimRight(s.redirects.DefaultOrigin, "/")
	}
	cs, err := s.provider.CreateCheckoutSession(ctx, CheckoutRequest{
		AmountCents: res.TotalPriceCents,
		Currency:    res.Currency,
		Description: description,
		SuccessURL:  base + s.redirects.SuccessPath,
		CancelURL:   base + s.redirects.CancelPath,
		Metadata:    map[string]string{MetadataReservationID: res.ID},
	})
	if err != nil {
		s.log.Error("checkout session failed", zap.String("reservation_id", res.ID), zap.Error(err))
		return PaymentSession{}, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	_, err = s.ledger.UpdatePaymentStatus(ctx, res.ID, res.PaymentStatus, model.PaymentPending, cs.ID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrConflict), errors.Is(err, repository.ErrInvalidTransition):
		// Someone moved the status since we read it; a fast webhook may
		// already have settled the payment.
		if cur, ferr := s.ledger.FindByID(ctx, res.ID); ferr == nil && cur.PaymentStatus == model.PaymentPaid {
			return PaymentSession{}, ErrAlreadyPaid
		}
		return PaymentSession{}, ErrConflict
	default:
		return PaymentSession{}, fmt.Errorf("mark payment pending: %w", err)
	}

	s.log.Info("checkout session created",
		zap.String("reservation_id", res.ID),
		zap.String("session_id", cs.ID),
		zap.String("previous_status", string(res.PaymentStatus)),
	)
	return PaymentSession{ReservationID: res.ID, SessionID: cs.ID, URL: cs.URL}, nil
}

// ConfirmPayment applies a provider outcome to a reservation.  Duplicate
// deliveries are reported as ConfirmDuplicate.  Outcomes for unknown
// reservations, and outcomes that would move a settled payment backwards,
// are logged and reported as ConfirmIgnored.  Only storage failures are
// returned as errors so the provider redelivers.
func (s *PaymentService) ConfirmPayment(ctx context.Context, reservationID string, outcome PaymentOutcome, paymentRef string) (result ConfirmResult, err error) {
	ctx, span := startSpan(ctx, "payment.confirm")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("reservation.id", reservationID),
		attribute.String("payment.outcome", string(outcome)),
	)

	target, ok := outcome.target()
	if !ok {
		return ConfirmResult{}, fmt.Errorf("%w: unknown payment outcome %q", ErrInvalidRequest, outcome)
	}
	log := s.log.With(zap.String("reservation_id", reservationID), zap.String("outcome", string(outcome)))

	for attempt := 0; attempt < confirmAttempts; attempt++ {
		cur, err := s.ledger.FindByID(ctx, reservationID)
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("payment outcome for unknown reservation ignored")
			return ConfirmResult{Status: ConfirmIgnored}, nil
		}
		if err != nil {
			return ConfirmResult{}, fmt.Errorf("load reservation: %w", err)
		}
		if cur.PaymentStatus == target {
			log.Info("duplicate payment outcome")
			return ConfirmResult{Status: ConfirmDuplicate, Reservation: cur}, nil
		}
		if !cur.PaymentStatus.CanTransitionTo(target) {
			log.Warn("stale payment outcome ignored", zap.String("current_status", string(cur.PaymentStatus)))
			return ConfirmResult{Status: ConfirmIgnored, Reservation: cur}, nil
		}

		updated, err := s.ledger.UpdatePaymentStatus(ctx, reservationID, cur.PaymentStatus, target, paymentRef)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			return ConfirmResult{}, fmt.Errorf("update payment status: %w", err)
		}
		log.Info("payment status updated",
			zap.String("from", string(cur.PaymentStatus)),
			zap.String("to", string(updated.PaymentStatus)),
		)
		return ConfirmResult{Status: ConfirmApplied, Reservation: updated}, nil
	}

	// Every attempt lost a race to another delivery; that delivery applied
	// its outcome, which is what the provider needs to know.
	log.Warn("payment outcome raced repeatedly; treating as applied elsewhere")
	return ConfirmResult{Status: ConfirmDuplicate}, nil
}
