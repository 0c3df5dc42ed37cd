package donation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const referencePrefix = "KLB"

// NewReference returns a merchant reference unique per invocation:
// KLB-YYYYMMDD-HHMMSS-mmm-<12 hex chars>. Pesapal treats it as the
// idempotency key for order submission, so two orders created within the
// same millisecond still must not collide.
func NewReference() string {
	now := time.Now().UTC()
	millis := now.Nanosecond() / int(time.Millisecond)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	return fmt.Sprintf(
		"%s-%s-%03d-%s",
		referencePrefix,
		now.Format("20060102-150405"),
		millis,
		suffix,
	)
}
