// Package vendorkeys resolves vendor emails to payable wallet addresses.
package vendorkeys

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/ledger"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
	"github.com/angelmondragon/vendorpay-backend/pkg/redis"
)

const (
	cacheKind  = "vendorkey"
	defaultTTL = time.Hour
)

type vendorSource interface {
	FindVendorsByEmails(ctx context.Context, emails []string) ([]models.User, error)
}

type addressCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(kind, id string) string
}

// Directory maps vendor email to payment address with a read-through TTL cache.
// It never returns the zero address or a malformed address.
type Directory struct {
	source vendorSource
	cache  addressCache
	ttl    time.Duration
	logg   *logger.Logger
}

// NewDirectory builds a directory. cache may be nil to disable caching.
func NewDirectory(source vendorSource, cache addressCache, ttl time.Duration, logg *logger.Logger) (*Directory, error) {
	if source == nil {
		return nil, fmt.Errorf("vendor source is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Directory{source: source, cache: cache, ttl: ttl, logg: logg}, nil
}

// ResolveVendorAddress returns the payable address for one vendor or NotFound.
func (d *Directory) ResolveVendorAddress(ctx context.Context, email string) (string, error) {
	key := normalizeEmail(email)
	if key == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "vendor email is required")
	}
	resolved, err := d.ResolveVendorAddresses(ctx, []string{key})
	if err != nil {
		return "", err
	}
	address, ok := resolved[key]
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "no payment address registered for vendor")
	}
	return address, nil
}

// ResolveVendorAddresses returns the payable addresses keyed by normalized email.
// Emails without a vendor or without a valid address are absent from the map.
func (d *Directory) ResolveVendorAddresses(ctx context.Context, emails []string) (map[string]string, error) {
	wanted := distinctEmails(emails)
	out := make(map[string]string, len(wanted))
	if len(wanted) == 0 {
		return out, nil
	}

	misses := make([]string, 0, len(wanted))
	for _, email := range wanted {
		if address, ok := d.cached(ctx, email); ok {
			out[email] = address
			continue
		}
		misses = append(misses, email)
	}
	if len(misses) == 0 {
		return out, nil
	}

	vendors, err := d.source.FindVendorsByEmails(ctx, misses)
	if err != nil {
		return nil, pkgerrors.Degraded("identity", err)
	}
	for _, vendor := range vendors {
		email := normalizeEmail(vendor.Email)
		if vendor.PaymentAddress == nil {
			continue
		}
		address := strings.TrimSpace(*vendor.PaymentAddress)
		if !ledger.IsPayableAddress(address) {
			continue
		}
		out[email] = address
		d.store(ctx, email, address)
	}
	return out, nil
}

// Invalidate drops the cached address for email so the next lookup reads the store.
func (d *Directory) Invalidate(ctx context.Context, email string) error {
	if d.cache == nil {
		return nil
	}
	key := normalizeEmail(email)
	if key == "" {
		return nil
	}
	return d.cache.Del(ctx, d.cache.CacheKey(cacheKind, key))
}

func (d *Directory) cached(ctx context.Context, email string) (string, bool) {
	if d.cache == nil {
		return "", false
	}
	value, err := d.cache.Get(ctx, d.cache.CacheKey(cacheKind, email))
	if err != nil {
		if !redis.IsMiss(err) && d.logg != nil {
			d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "vendor key cache read failed")
		}
		return "", false
	}
	if !ledger.IsPayableAddress(value) {
		return "", false
	}
	return value, true
}

func (d *Directory) store(ctx context.Context, email, address string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Set(ctx, d.cache.CacheKey(cacheKind, email), address, d.ttl); err != nil && d.logg != nil {
		d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "vendor key cache write failed")
	}
}

func distinctEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, email := range emails {
		key := normalizeEmail(email)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
