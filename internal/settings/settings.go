// Package settings stores runtime-tunable key/value configuration.
//
// The P2P timer durations live here so admins can tune them without a
// deploy. State-machine code never reads keys directly; it takes a Config
// snapshot per operation via the service's P2PConfig method.
package settings

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/mintora/mintora/internal/p2p"
)

var ErrSettingNotFound = errors.New("setting not found")

// Well-known keys.
const (
	KeyPaymentDeadlineMinutes = "p2p_payment_deadline_minutes"
	KeyAutoReleaseMinutes     = "p2p_auto_release_minutes"
)

// Setting is one configuration entry.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists settings.
type Store interface {
	Get(ctx context.Context, key string) (*Setting, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) ([]*Setting, error)
}

// Service reads and writes settings and produces typed snapshots.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a settings service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger.With("component", "settings")}
}

// Get returns one setting.
func (s *Service) Get(ctx context.Context, key string) (*Setting, error) {
	return s.store.Get(ctx, key)
}

// Set writes one setting.
func (s *Service) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, key, value)
}

// All returns every setting.
func (s *Service) All(ctx context.Context) ([]*Setting, error) {
	return s.store.All(ctx)
}

// P2PConfig builds the timer snapshot from the current settings. Missing or
// malformed values fall back to the documented defaults rather than failing
// the operation that asked for them.
func (s *Service) P2PConfig(ctx context.Context) p2p.Config {
	return p2p.Config{
		PaymentDeadline: s.minutes(ctx, KeyPaymentDeadlineMinutes, p2p.DefaultPaymentDeadline),
		AutoRelease:     s.minutes(ctx, KeyAutoReleaseMinutes, p2p.DefaultAutoRelease),
	}
}

func (s *Service) minutes(ctx context.Context, key string, fallback time.Duration) time.Duration {
	setting, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrSettingNotFound) {
			s.logger.Warn("settings read failed, using default", "key", key, "error", err)
		}
		return fallback
	}
	mins, err := strconv.Atoi(setting.Value)
	if err != nil || mins <= 0 {
		s.logger.Warn("invalid setting value, using default", "key", key, "value", setting.Value)
		return fallback
	}
	return time.Duration(mins) * time.Minute
}

// Compile-time assertion that Service satisfies the snapshot interface.
var _ p2p.ConfigProvider = (*Service)(nil)
