package donation

import (
	"context"
	"errors"
	"math"
	"strings"

	"kaluma-be/internal/fault"
	"kaluma-be/internal/logger"
	"kaluma-be/internal/pesapal"

	"go.uber.org/zap"
)

// Deployment defaults applied when the donor leaves them unset.
const (
	defaultCurrency    = "KES"
	defaultLanguage    = "EN"
	defaultCountryCode = "KE"
	defaultCity        = "Nairobi"
	defaultDescription = "Donation for KalumaBoy Initiative"
)

type Service interface {
	// CreateOrder drives the checkout sequence and returns the hosted-page
	// redirect for the payer.
	CreateOrder(ctx context.Context, donor DonorInfo) (*OrderResult, error)
	// Reconcile fetches the authoritative status for a tracking id and
	// commits it. Safe to trigger from both the IPN push and the return
	// redirect for the same transaction.
	Reconcile(ctx context.Context, trackingID, merchantRef string) (*Transaction, error)
	// Receipt returns the committed record by merchant reference, falling
	// back to tracking id.
	Receipt(ctx context.Context, id string) (*Transaction, error)
}

// Options carries the deployment-fixed parts of every order.
type Options struct {
	// CallbackURL is where the hosted page sends the payer's browser back.
	CallbackURL string
	// NotificationURL is the IPN push endpoint registered with the gateway.
	NotificationURL string
}

type service struct {
	gw       pesapal.Gateway
	registry *pesapal.IPNRegistry
	repo     Repository
	opts     Options
}

func NewService(gw pesapal.Gateway, registry *pesapal.IPNRegistry, repo Repository, opts Options) Service {
	return &service{
		gw:       gw,
		registry: registry,
		repo:     repo,
		opts:     opts,
	}
}

func (s *service) CreateOrder(ctx context.Context, donor DonorInfo) (*OrderResult, error) {
	if err := validateDonor(donor); err != nil {
		return nil, err
	}

	log := logger.FromCtx(ctx).With(
		zap.Float64("amount", donor.Amount),
		zap.String("email", donor.Email),
	)

	token, err := s.gw.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	ipnID, err := s.registry.Resolve(ctx, token.Token, s.opts.NotificationURL)
	if err != nil {
		return nil, err
	}

	reference := NewReference()
	order := pesapal.SanitizeOrder(s.buildOrder(donor, reference, ipnID))

	resp, err := s.gw.SubmitOrder(ctx, token.Token, &order)
	if err != nil {
		return nil, err
	}

	log.Info("donation order created",
		zap.String("order_tracking_id", resp.OrderTrackingID),
		zap.String("merchant_reference", resp.MerchantReference),
	)

	return &OrderResult{
		RedirectURL:       resp.RedirectURL,
		OrderTrackingID:   resp.OrderTrackingID,
		MerchantReference: resp.MerchantReference,
	}, nil
}

func (s *service) Reconcile(ctx context.Context, trackingID, merchantRef string) (*Transaction, error) {
	log := logger.FromCtx(ctx).With(zap.String("order_tracking_id", trackingID))

	token, err := s.gw.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	status, err := s.gw.TransactionStatus(ctx, token.Token, trackingID)
	if err != nil {
		return nil, err
	}

	if merchantRef == "" {
		merchantRef = status.MerchantReference
	}

	t := &Transaction{
		OrderTrackingID:   trackingID,
		MerchantReference: merchantRef,
		StatusCode:        status.StatusCode,
		StatusDescription: status.PaymentStatusDescription,
		PaymentMethod:     status.PaymentMethod,
		ConfirmationCode:  status.ConfirmationCode,
		Amount:            status.Amount,
		Currency:          status.Currency,
	}

	if err := s.repo.UpsertTransaction(ctx, t); err != nil {
		// Propagate so the IPN sender redelivers and a later commit lands.
		log.Error("failed to commit transaction", zap.Error(err))
		return nil, err
	}

	log.Info("transaction reconciled",
		zap.String("status", status.PaymentStatusDescription),
		zap.String("confirmation_code", status.ConfirmationCode),
	)
	return t, nil
}

func (s *service) Receipt(ctx context.Context, id string) (*Transaction, error) {
	t, err := s.repo.GetByReference(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return s.repo.GetByTrackingID(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func validateDonor(donor DonorInfo) error {
	var missing []string
	if donor.Amount <= 0 || math.IsNaN(donor.Amount) || math.IsInf(donor.Amount, 0) {
		missing = append(missing, "amount")
	}
	if donor.FirstName == "" {
		missing = append(missing, "firstName")
	}
	if donor.LastName == "" {
		missing = append(missing, "lastName")
	}
	if donor.Email == "" {
		missing = append(missing, "email")
	}
	if donor.Phone == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return fault.Validationf(missing, "missing required fields")
	}
	return nil
}

func (s *service) buildOrder(donor DonorInfo, reference, ipnID string) pesapal.OrderRequest {
	currency := donor.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	country := donor.CountryCode
	if country == "" {
		country = defaultCountryCode
	}
	city := donor.City
	if city == "" {
		city = defaultCity
	}
	description := donor.Description
	if description == "" {
		description = defaultDescription
	}

	return pesapal.OrderRequest{
		ID:             reference,
		Currency:       currency,
		Amount:         donor.Amount,
		Description:    description,
		CallbackURL:    s.opts.CallbackURL,
		NotificationID: ipnID,
		Language:       defaultLanguage,
		BillingAddress: pesapal.BillingAddress{
			PhoneNumber:  normalizePhone(donor.Phone),
			EmailAddress: donor.Email,
			CountryCode:  country,
			FirstName:    donor.FirstName,
			LastName:     donor.LastName,
			City:         city,
			State:        donor.State,
			PostalCode:   donor.PostalCode,
			ZipCode:      donor.ZipCode,
		},
	}
}

// normalizePhone strips all whitespace so "+254 712 345 678" submits cleanly.
func normalizePhone(phone string) string {
	return strings.Join(strings.Fields(phone), "")
}
