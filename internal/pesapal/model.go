package pesapal

// Environment selects which Pesapal deployment the client talks to.
type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

const (
	sandboxBaseURL    = "https://cybqa.pesapal.com/pesapalv3"
	productionBaseURL = "https://pay.pesapal.com/v3"
)

// Credential is the merchant consumer key pair issued by Pesapal. It is
// provided at process start and only ever used to mint access tokens.
type Credential struct {
	ConsumerKey    string
	ConsumerSecret string
}

// AccessToken is a bearer token minted per orchestration run. Tokens are
// capabilities, not identities; they are never persisted.
type AccessToken struct {
	Token      string `json:"token"`
	ExpiryDate string `json:"expiryDate"`
	Message    string `json:"message,omitempty"`
}

// NotificationType is how Pesapal will invoke the registered IPN URL.
type NotificationType string

const (
	NotifyGET  NotificationType = "GET"
	NotifyPOST NotificationType = "POST"
)

// IPNRegistration is a gateway-side subscription that pushes
// transaction-completion events to the registered URL.
type IPNRegistration struct {
	IPNID            string `json:"ipn_id"`
	URL              string `json:"url"`
	CreatedDate      string `json:"created_date,omitempty"`
	NotificationType string `json:"ipn_notification_type,omitempty"`
	Status           string `json:"ipn_status,omitempty"`
}

type BillingAddress struct {
	PhoneNumber  string `json:"phone_number"`
	EmailAddress string `json:"email_address"`
	CountryCode  string `json:"country_code"`
	FirstName    string `json:"first_name"`
	MiddleName   string `json:"middle_name,omitempty"`
	LastName     string `json:"last_name"`
	Line1        string `json:"line_1,omitempty"`
	Line2        string `json:"line_2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	ZipCode      string `json:"zip_code"`
}

// OrderRequest is the submit-order payload. ID is the merchant reference,
// unique per submission; Pesapal uses it as the idempotency key.
type OrderRequest struct {
	ID             string         `json:"id"`
	Currency       string         `json:"currency"`
	Amount         float64        `json:"amount"`
	Description    string         `json:"description"`
	CallbackURL    string         `json:"callback_url"`
	NotificationID string         `json:"notification_id"`
	Language       string         `json:"language"`
	BillingAddress BillingAddress `json:"billing_address"`
}

type OrderResponse struct {
	OrderTrackingID   string `json:"order_tracking_id"`
	MerchantReference string `json:"merchant_reference"`
	RedirectURL       string `json:"redirect_url"`
	Message           string `json:"message,omitempty"`
}

// TransactionStatus is the authoritative settlement record for a tracking
// id; everything reported before it is provisional.
type TransactionStatus struct {
	PaymentMethod            string  `json:"payment_method"`
	Amount                   float64 `json:"amount"`
	CreatedDate              string  `json:"created_date"`
	ConfirmationCode         string  `json:"confirmation_code"`
	PaymentStatusDescription string  `json:"payment_status_description"`
	Description              string  `json:"description"`
	Message                  string  `json:"message"`
	PaymentAccount           string  `json:"payment_account"`
	CallBackURL              string  `json:"call_back_url"`
	StatusCode               int     `json:"status_code"`
	MerchantReference        string  `json:"merchant_reference"`
	PaymentStatusCode        string  `json:"payment_status_code"`
	Currency                 string  `json:"currency"`
}
