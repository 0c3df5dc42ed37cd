package donation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"kaluma-be/internal/fault"
	"kaluma-be/internal/pesapal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Authenticate(ctx context.Context) (*pesapal.AccessToken, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pesapal.AccessToken), args.Error(1)
}

func (m *MockGateway) ListIPNs(ctx context.Context, token string) ([]pesapal.IPNRegistration, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pesapal.IPNRegistration), args.Error(1)
}

func (m *MockGateway) RegisterIPN(ctx context.Context, token, callbackURL string, nt pesapal.NotificationType) (*pesapal.IPNRegistration, error) {
	args := m.Called(ctx, token, callbackURL, nt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pesapal.IPNRegistration), args.Error(1)
}

func (m *MockGateway) SubmitOrder(ctx context.Context, token string, order *pesapal.OrderRequest) (*pesapal.OrderResponse, error) {
	args := m.Called(ctx, token, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pesapal.OrderResponse), args.Error(1)
}

func (m *MockGateway) TransactionStatus(ctx context.Context, token, trackingID string) (*pesapal.TransactionStatus, error) {
	args := m.Called(ctx, token, trackingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pesapal.TransactionStatus), args.Error(1)
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) UpsertTransaction(ctx context.Context, t *Transaction) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockRepository) GetByReference(ctx context.Context, reference string) (*Transaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Transaction), args.Error(1)
}

func (m *MockRepository) GetByTrackingID(ctx context.Context, trackingID string) (*Transaction, error) {
	args := m.Called(ctx, trackingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Transaction), args.Error(1)
}

// --- Helpers ---

const (
	testCallbackURL = "https://api.example.com/api/payments/return"
	testIPNURL      = "https://api.example.com/api/payments/ipn"
)

func newTestService(gw pesapal.Gateway, repo Repository, seedIPN string) Service {
	registry := pesapal.NewIPNRegistry(gw, pesapal.NotifyGET)
	if seedIPN != "" {
		registry.Seed(testIPNURL, seedIPN)
	}
	return NewService(gw, registry, repo, Options{
		CallbackURL:     testCallbackURL,
		NotificationURL: testIPNURL,
	})
}

func validDonor() DonorInfo {
	return DonorInfo{
		Amount:    1000,
		FirstName: "Jane",
		LastName:  "Donor",
		Email:     "donor@example.com",
		Phone:     "254 712 345 678",
	}
}

// --- CreateOrder ---

func TestService_CreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_DefaultsAndSanitization", func(t *testing.T) {
		mockGw := new(MockGateway)
		mockRepo := new(MockRepository)
		svc := newTestService(mockGw, mockRepo, "ipn-1")

		donor := validDonor()
		donor.State = "California" // over the 3-char bound, must be cleared
		donor.ZipCode = "12345"    // within bound, passes through

		mockGw.On("Authenticate", mock.Anything).
			Return(&pesapal.AccessToken{Token: "tok-123"}, nil)

		mockGw.On("SubmitOrder", mock.Anything, "tok-123", mock.MatchedBy(func(o *pesapal.OrderRequest) bool {
			return o.Currency == "KES" &&
				o.Language == "EN" &&
				o.CallbackURL == testCallbackURL &&
				o.NotificationID == "ipn-1" &&
				o.Description == "Donation for KalumaBoy Initiative" &&
				o.BillingAddress.PhoneNumber == "254712345678" &&
				o.BillingAddress.CountryCode == "KE" &&
				o.BillingAddress.City == "Nairobi" &&
				o.BillingAddress.State == "" &&
				o.BillingAddress.ZipCode == "12345" &&
				strings.HasPrefix(o.ID, "KLB-")
		})).Return(&pesapal.OrderResponse{
			OrderTrackingID:   "track-123",
			MerchantReference: "KLB-ref",
			RedirectURL:       "https://cybqa.pesapal.com/pesapaliframe/track-123",
		}, nil)

		result, err := svc.CreateOrder(ctx, donor)
		require.NoError(t, err)
		assert.Equal(t, "track-123", result.OrderTrackingID)
		assert.Equal(t, "KLB-ref", result.MerchantReference)
		assert.Contains(t, result.RedirectURL, "pesapal.com")

		mockGw.AssertExpectations(t)
		// Seeded registry: no registration traffic.
		mockGw.AssertNotCalled(t, "ListIPNs")
		mockGw.AssertNotCalled(t, "RegisterIPN")
	})

	t.Run("Success_CallerOverridesKept", func(t *testing.T) {
		mockGw := new(MockGateway)
		mockRepo := new(MockRepository)
		svc := newTestService(mockGw, mockRepo, "ipn-1")

		donor := validDonor()
		donor.Currency = "USD"
		donor.CountryCode = "US"
		donor.Description = "In memory of..."

		mockGw.On("Authenticate", mock.Anything).
			Return(&pesapal.AccessToken{Token: "tok-123"}, nil)
		mockGw.On("SubmitOrder", mock.Anything, "tok-123", mock.MatchedBy(func(o *pesapal.OrderRequest) bool {
			return o.Currency == "USD" &&
				o.BillingAddress.CountryCode == "US" &&
				o.Description == "In memory of..."
		})).Return(&pesapal.OrderResponse{
			OrderTrackingID: "track-456",
			RedirectURL:     "https://cybqa.pesapal.com/pesapaliframe/track-456",
		}, nil)

		_, err := svc.CreateOrder(ctx, donor)
		require.NoError(t, err)
		mockGw.AssertExpectations(t)
	})

	t.Run("MissingEmail_NoNetworkCall", func(t *testing.T) {
		mockGw := new(MockGateway)
		mockRepo := new(MockRepository)
		svc := newTestService(mockGw, mockRepo, "ipn-1")

		donor := validDonor()
		donor.Email = ""

		_, err := svc.CreateOrder(ctx, donor)
		require.Error(t, err)
		assert.True(t, fault.Is(err, fault.Validation))
		assert.Contains(t, fault.FieldsOf(err), "email")

		mockGw.AssertNotCalled(t, "Authenticate")
		mockGw.AssertNotCalled(t, "SubmitOrder")
	})

	t.Run("MissingEverything_AllFieldsListed", func(t *testing.T) {
		mockGw := new(MockGateway)
		mockRepo := new(MockRepository)
		svc := newTestService(mockGw, mockRepo, "ipn-1")

		_, err := svc.CreateOrder(ctx, DonorInfo{})
		require.Error(t, err)
		assert.ElementsMatch(t,
			[]string{"amount", "firstName", "lastName", "email", "phone"},
			fault.FieldsOf(err),
		)
	})

	t.Run("NegativeAmount_Rejected", func(t *testing.T) {
		mockGw := new(MockGateway)
		mockRepo := new(MockRepository)
		svc := newTestService(mockGw, mockRepo, "ipn-1")

		donor := validDonor()
		donor.Amount = -50

		_, err := svc.CreateOrder(ctx, donor)
		require.Error(t, err)
		assert.True(t, fault.Is(err, fault.Validation))
	})

	t.Run("AuthFailure_StopsSequence", func(t *testing.T) {
		mockGw := new(MockGateway)
		mockRepo := new(MockRepository)
		svc := newTestService(mockGw, mockRepo, "") // unseeded registry

		mockGw.On("Authenticate", mock.Anything).
			Return(nil, fault.Authf(nil, `{"message":"bad key"}`, "token request returned status 401"))

		_, err := svc.CreateOrder(ctx, validDonor())
		require.Error(t, err)
		assert.True(t, fault.Is(err, fault.Auth))

		mockGw.AssertNotCalled(t, "ListIPNs")
		mockGw.AssertNotCalled(t, "RegisterIPN")
		mockGw.AssertNotCalled(t, "SubmitOrder")
	})

	t.Run("ResolvesIPNWhenUnseeded", func(t *testing.T) {
		mockGw := new(MockGateway)
		mockRepo := new(MockRepository)
		svc := newTestService(mockGw, mockRepo, "")

		mockGw.On("Authenticate", mock.Anything).
			Return(&pesapal.AccessToken{Token: "tok-123"}, nil)
		mockGw.On("ListIPNs", mock.Anything, "tok-123").
			Return([]pesapal.IPNRegistration{}, nil)
		mockGw.On("RegisterIPN", mock.Anything, "tok-123", testIPNURL, pesapal.NotifyGET).
			Return(&pesapal.IPNRegistration{IPNID: "ipn-fresh", URL: testIPNURL}, nil)
		mockGw.On("SubmitOrder", mock.Anything, "tok-123", mock.MatchedBy(func(o *pesapal.OrderRequest) bool {
			return o.NotificationID == "ipn-fresh"
		})).Return(&pesapal.OrderResponse{
			OrderTrackingID: "track-789",
			RedirectURL:     "https://cybqa.pesapal.com/pesapaliframe/track-789",
		}, nil)

		_, err := svc.CreateOrder(ctx, validDonor())
		require.NoError(t, err)
		mockGw.AssertExpectations(t)
	})

	t.Run("SubmitFailure_Propagated", func(t *testing.T) {
		mockGw := new(MockGateway)
		mockRepo := new(MockRepository)
		svc := newTestService(mockGw, mockRepo, "ipn-1")

		mockGw.On("Authenticate", mock.Anything).
			Return(&pesapal.AccessToken{Token: "tok-123"}, nil)
		mockGw.On("SubmitOrder", mock.Anything, "tok-123", mock.Anything).
			Return(nil, fault.Upstreamf(nil, `{"message":"no"}`, "no redirect URL returned"))

		_, err := svc.CreateOrder(ctx, validDonor())
		require.Error(t, err)
		assert.True(t, fault.Is(err, fault.Upstream))
	})
}

// --- Reconcile ---

func TestService_Reconcile(t *testing.T) {
	ctx := context.Background()

	completed := &pesapal.TransactionStatus{
		PaymentMethod:            "MpesaKE",
		Amount:                   1000,
		ConfirmationCode:         "QWE123RTY",
		PaymentStatusDescription: "Completed",
		StatusCode:               1,
		MerchantReference:        "KLB-from-gateway",
		Currency:                 "KES",
	}

	t.Run("Success_CommitsStatus", func(t *testing.T) {
		mockGw := new(MockGateway)
		mockRepo := new(MockRepository)
		svc := newTestService(mockGw, mockRepo, "ipn-1")

		mockGw.On("Authenticate", mock.Anything).
			Return(&pesapal.AccessToken{Token: "tok-123"}, nil)
		mockGw.On("TransactionStatus", mock.Anything, "tok-123", "track-123").
			Return(completed, nil)
		mockRepo.On("UpsertTransaction", mock.Anything, mock.MatchedBy(func(tx *Transaction) bool {
			return tx.OrderTrackingID == "track-123" &&
				tx.MerchantReference == "KLB-explicit" &&
				tx.StatusDescription == "Completed" &&
				tx.ConfirmationCode == "QWE123RTY" &&
				tx.Amount == 1000
		})).Return(nil)

		tx, err := svc.Reconcile(ctx, "track-123", "KLB-explicit")
		require.NoError(t, err)
		assert.Equal(t, "Completed", tx.StatusDescription)

		mockGw.AssertExpectations(t)
		mockRepo.AssertExpectations(t)
	})

	t.Run("MerchantReferenceFallsBackToGateway", func(t *testing.T) {
		mockGw := new(MockGateway)
		mockRepo := new(MockRepository)
		svc := newTestService(mockGw, mockRepo, "ipn-1")

		mockGw.On("Authenticate", mock.Anything).
			Return(&pesapal.AccessToken{Token: "tok-123"}, nil)
		mockGw.On("TransactionStatus", mock.Anything, "tok-123", "track-123").
			Return(completed, nil)
		mockRepo.On("UpsertTransaction", mock.Anything, mock.MatchedBy(func(tx *Transaction) bool {
			return tx.MerchantReference == "KLB-from-gateway"
		})).Return(nil)

		tx, err := svc.Reconcile(ctx, "track-123", "")
		require.NoError(t, err)
		assert.Equal(t, "KLB-from-gateway", tx.MerchantReference)
	})

	t.Run("DoubleDelivery_SameKeyBothTimes", func(t *testing.T) {
		// Both delivery paths fire; each run commits via the upsert, which
		// the store collapses onto the single tracking-id row.
		mockGw := new(MockGateway)
		mockRepo := new(MockRepository)
		svc := newTestService(mockGw, mockRepo, "ipn-1")

		mockGw.On("Authenticate", mock.Anything).
			Return(&pesapal.AccessToken{Token: "tok-123"}, nil)
		mockGw.On("TransactionStatus", mock.Anything, "tok-123", "track-123").
			Return(completed, nil)
		mockRepo.On("UpsertTransaction", mock.Anything, mock.MatchedBy(func(tx *Transaction) bool {
			return tx.OrderTrackingID == "track-123"
		})).Return(nil)

		_, err := svc.Reconcile(ctx, "track-123", "")
		require.NoError(t, err)
		_, err = svc.Reconcile(ctx, "track-123", "")
		require.NoError(t, err)

		mockRepo.AssertNumberOfCalls(t, "UpsertTransaction", 2)
	})

	t.Run("StoreFailure_Propagated", func(t *testing.T) {
		mockGw := new(MockGateway)
		mockRepo := new(MockRepository)
		svc := newTestService(mockGw, mockRepo, "ipn-1")

		mockGw.On("Authenticate", mock.Anything).
			Return(&pesapal.AccessToken{Token: "tok-123"}, nil)
		mockGw.On("TransactionStatus", mock.Anything, "tok-123", "track-123").
			Return(completed, nil)
		mockRepo.On("UpsertTransaction", mock.Anything, mock.Anything).
			Return(fault.Storef(errors.New("connection reset"), "failed to commit transaction track-123"))

		_, err := svc.Reconcile(ctx, "track-123", "")
		require.Error(t, err)
		assert.True(t, fault.Is(err, fault.Store))
	})

	t.Run("AuthFailure_NoStatusFetch", func(t *testing.T) {
		mockGw := new(MockGateway)
		mockRepo := new(MockRepository)
		svc := newTestService(mockGw, mockRepo, "ipn-1")

		mockGw.On("Authenticate", mock.Anything).
			Return(nil, fault.Authf(nil, "", "token request failed"))

		_, err := svc.Reconcile(ctx, "track-123", "")
		require.Error(t, err)
		assert.True(t, fault.Is(err, fault.Auth))
		mockGw.AssertNotCalled(t, "TransactionStatus")
		mockRepo.AssertNotCalled(t, "UpsertTransaction")
	})
}

// --- Receipt ---

func TestService_Receipt(t *testing.T) {
	ctx := context.Background()

	record := &Transaction{
		OrderTrackingID:   "track-123",
		MerchantReference: "KLB-ref",
		StatusDescription: "Completed",
	}

	t.Run("FoundByReference", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(new(MockGateway), mockRepo, "ipn-1")

		mockRepo.On("GetByReference", mock.Anything, "KLB-ref").Return(record, nil)

		tx, err := svc.Receipt(ctx, "KLB-ref")
		require.NoError(t, err)
		assert.Equal(t, "track-123", tx.OrderTrackingID)
		mockRepo.AssertNotCalled(t, "GetByTrackingID")
	})

	t.Run("FallsBackToTrackingID", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(new(MockGateway), mockRepo, "ipn-1")

		mockRepo.On("GetByReference", mock.Anything, "track-123").Return(nil, ErrNotFound)
		mockRepo.On("GetByTrackingID", mock.Anything, "track-123").Return(record, nil)

		tx, err := svc.Receipt(ctx, "track-123")
		require.NoError(t, err)
		assert.Equal(t, "KLB-ref", tx.MerchantReference)
	})

	t.Run("NotFoundAnywhere", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(new(MockGateway), mockRepo, "ipn-1")

		mockRepo.On("GetByReference", mock.Anything, "nope").Return(nil, ErrNotFound)
		mockRepo.On("GetByTrackingID", mock.Anything, "nope").Return(nil, ErrNotFound)

		_, err := svc.Receipt(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
