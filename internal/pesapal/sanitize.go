package pesapal

import "strings"

// Pesapal rejects oversized optional address fields, so anything past the
// bound is dropped entirely rather than truncated.
const (
	maxStateLen      = 3
	maxPostalCodeLen = 10
	maxZipCodeLen    = 10
)

func trimBound(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) > max {
		return ""
	}
	return s
}

// SanitizeOrder returns a copy of order with the optional billing-address
// fields trimmed, and cleared where they exceed the gateway's bounds.
// Applying it twice yields the same result as applying it once.
func SanitizeOrder(order OrderRequest) OrderRequest {
	addr := &order.BillingAddress
	addr.State = trimBound(addr.State, maxStateLen)
	addr.PostalCode = trimBound(addr.PostalCode, maxPostalCodeLen)
	addr.ZipCode = trimBound(addr.ZipCode, maxZipCodeLen)
	return order
}
