package donation

import "time"

// DonorInfo is the caller-supplied input for a donation checkout. Only
// amount, names, email and phone are required; everything else falls back
// to the deployment defaults.
type DonorInfo struct {
	Amount      float64 `json:"amount"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	Description string  `json:"description,omitempty"`
	Currency    string  `json:"currency,omitempty"`
	CountryCode string  `json:"countryCode,omitempty"`
	City        string  `json:"city,omitempty"`
	State       string  `json:"state,omitempty"`
	PostalCode  string  `json:"postalCode,omitempty"`
	ZipCode     string  `json:"zipCode,omitempty"`
}

// OrderResult is what the frontend needs to hand the payer over to the
// hosted payment page.
type OrderResult struct {
	RedirectURL       string `json:"redirect_url"`
	OrderTrackingID   string `json:"order_tracking_id"`
	MerchantReference string `json:"merchant_reference"`
}

// Transaction is the committed settlement record, keyed by the gateway's
// tracking id. Reconciliation replaces it in place, so double delivery of
// the completion signal converges on a single row.
type Transaction struct {
	ID                int64     `json:"-"`
	OrderTrackingID   string    `json:"order_tracking_id"`
	MerchantReference string    `json:"merchant_reference"`
	StatusCode        int       `json:"status_code"`
	StatusDescription string    `json:"payment_status_description"`
	PaymentMethod     string    `json:"payment_method"`
	ConfirmationCode  string    `json:"confirmation_code"`
	Amount            float64   `json:"amount"`
	Currency          string    `json:"currency"`
	CommittedAt       time.Time `json:"committed_at"`
}
