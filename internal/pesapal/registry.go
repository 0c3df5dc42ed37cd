package pesapal

import (
	"context"
	"sync"

	"kaluma-be/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// IPNRegistry resolves the IPN registration id for a callback URL, lazily
// registering the URL on first use and caching the id for the process
// lifetime. Concurrent first resolutions of the same URL share a single
// upstream round trip, so at most one registration is ever created per URL.
type IPNRegistry struct {
	gw    Gateway
	nt    NotificationType
	group singleflight.Group

	mu  sync.RWMutex
	ids map[string]string
}

func NewIPNRegistry(gw Gateway, nt NotificationType) *IPNRegistry {
	return &IPNRegistry{
		gw:  gw,
		nt:  nt,
		ids: make(map[string]string),
	}
}

// Seed pre-populates the cache, e.g. with a PESAPAL_IPN_ID registered by a
// previous deployment. Empty arguments are ignored.
func (r *IPNRegistry) Seed(callbackURL, ipnID string) {
	if callbackURL == "" || ipnID == "" {
		return
	}
	r.mu.Lock()
	r.ids[callbackURL] = ipnID
	r.mu.Unlock()
}

// Reset drops all cached registrations.
func (r *IPNRegistry) Reset() {
	r.mu.Lock()
	r.ids = make(map[string]string)
	r.mu.Unlock()
}

// Resolve returns the registration id for callbackURL. On a cache miss it
// scans the already registered URLs before registering a new one. Failed
// resolutions are not cached; the next call retries.
func (r *IPNRegistry) Resolve(ctx context.Context, token, callbackURL string) (string, error) {
	r.mu.RLock()
	id, ok := r.ids[callbackURL]
	r.mu.RUnlock()
	if ok {
		return id, nil
	}

	v, err, _ := r.group.Do(callbackURL, func() (interface{}, error) {
		// A concurrent winner may have populated the cache already.
		r.mu.RLock()
		id, ok := r.ids[callbackURL]
		r.mu.RUnlock()
		if ok {
			return id, nil
		}

		id, err := r.lookupOrRegister(ctx, token, callbackURL)
		if err != nil {
			return "", err
		}

		r.mu.Lock()
		r.ids[callbackURL] = id
		r.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *IPNRegistry) lookupOrRegister(ctx context.Context, token, callbackURL string) (string, error) {
	log := logger.L().With(zap.String("callback_url", callbackURL))

	registered, err := r.gw.ListIPNs(ctx, token)
	if err != nil {
		return "", err
	}
	for _, ipn := range registered {
		if ipn.URL == callbackURL {
			log.Info("reusing existing IPN registration", zap.String("ipn_id", ipn.IPNID))
			return ipn.IPNID, nil
		}
	}

	created, err := r.gw.RegisterIPN(ctx, token, callbackURL, r.nt)
	if err != nil {
		return "", err
	}
	return created.IPNID, nil
}
