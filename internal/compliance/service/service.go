// Package service implements the compliance registry: role-gated investor
// verification with expiry, blacklisting, country restrictions, and a pause
// switch over new verifications.
//
// Capability checks are centralized in authorize: the registry owner is the
// super-admin and implicitly holds every role; everyone else needs an
// explicit grant. Blacklisting is independent of verification state, and
// both gates feed the IsVerified verdict.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"brickshare/internal/compliance/cache"
	"brickshare/internal/compliance/models"
	"brickshare/internal/compliance/store"
	"brickshare/internal/platform/metrics"
	"brickshare/pkg/domain"
	dErrors "brickshare/pkg/domain-errors"
	"brickshare/pkg/platform/events"
	"brickshare/pkg/platform/sentinel"
	textutil "brickshare/pkg/platform/strings"
	"brickshare/pkg/requestcontext"
)

const component = "compliance"

// Service owns all compliance state transitions.
type Service struct {
	mu        sync.Mutex
	store     store.Store
	cache     *cache.VerificationCache
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	owner     domain.AccountID
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics enables operation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCache enables the Redis verification cache.
func WithCache(c *cache.VerificationCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// NewService wires the registry. owner is the super-admin: it implicitly
// holds the Admin and Verifier roles and is the only account that can grant
// or revoke them.
func NewService(st store.Store, publisher events.Publisher, logger *slog.Logger, owner domain.AccountID, opts ...Option) *Service {
	s := &Service{
		store:     st,
		publisher: publisher,
		logger:    logger,
		owner:     owner,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VerifyInvestor marks a wallet verified at the given level until
// validityDays from now. Verifier role required; refused while the registry
// is paused or the wallet is blacklisted.
func (s *Service) VerifyInvestor(ctx context.Context, caller, wallet domain.AccountID, level models.Level, validityDays uint64, verificationHash string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "verify_investor", err) }()

	if err := s.authorize(ctx, caller, models.RoleVerifier); err != nil {
		return err
	}
	paused, err := s.store.Paused(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read registry state")
	}
	if paused {
		return dErrors.New(dErrors.CodeInvalidState, "Registry is paused")
	}
	if wallet.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "Invalid address")
	}
	if !level.Valid() {
		return dErrors.New(dErrors.CodeValidation, "Invalid verification level")
	}
	if validityDays == 0 {
		return dErrors.New(dErrors.CodeValidation, "Validity must be greater than zero")
	}
	if verificationHash == "" {
		return dErrors.New(dErrors.CodeValidation, "Verification hash required")
	}
	blacklisted, err := s.store.IsBlacklisted(ctx, wallet)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read blacklist")
	}
	if blacklisted {
		return dErrors.New(dErrors.CodeInvalidState, "Investor is blacklisted")
	}

	now := requestcontext.Now(ctx)
	record := &models.InvestorRecord{
		Wallet:           wallet,
		Level:            level,
		VerificationDate: now,
		ExpirationDate:   now.Add(time.Duration(validityDays) * 24 * time.Hour),
		IsActive:         true,
		VerificationHash: verificationHash,
		UpdatedAt:        now,
	}
	if err := s.apply(ctx, models.Mutation{Investors: []*models.InvestorRecord{record}}); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, wallet)

	s.emit(ctx, events.Event{
		Name:      events.EventInvestorVerified,
		Timestamp: now,
		Actor:     caller,
		Subject:   wallet,
		Value:     uint64(level),
		Deadline:  record.ExpirationDate,
	})
	return nil
}

// RevokeVerification deactivates a wallet's verification, keeping its
// level. Verifier role required.
func (s *Service) RevokeVerification(ctx context.Context, caller, wallet domain.AccountID, reason string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "revoke_verification", err) }()

	return s.deactivate(ctx, caller, wallet, reason, false)
}

// RejectInvestor deactivates a wallet's verification and resets its level
// to none. Verifier role required.
func (s *Service) RejectInvestor(ctx context.Context, caller, wallet domain.AccountID, reason string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "reject_investor", err) }()

	return s.deactivate(ctx, caller, wallet, reason, true)
}

func (s *Service) deactivate(ctx context.Context, caller, wallet domain.AccountID, reason string, resetLevel bool) error {
	if err := s.authorize(ctx, caller, models.RoleVerifier); err != nil {
		return err
	}
	record, err := s.findInvestor(ctx, wallet)
	if err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	record.IsActive = false
	name := events.EventVerificationRevoked
	if resetLevel {
		record.Level = models.LevelNone
		name = events.EventInvestorRejected
	}
	record.UpdatedAt = now
	if err := s.apply(ctx, models.Mutation{Investors: []*models.InvestorRecord{record}}); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, wallet)

	s.emit(ctx, events.Event{
		Name:      name,
		Timestamp: now,
		Actor:     caller,
		Subject:   wallet,
		Reason:    reason,
	})
	return nil
}

// RenewVerification extends an active wallet's expiry to validityDays from
// now. Verifier role required.
func (s *Service) RenewVerification(ctx context.Context, caller, wallet domain.AccountID, validityDays uint64) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "renew_verification", err) }()

	if err := s.authorize(ctx, caller, models.RoleVerifier); err != nil {
		return err
	}
	if validityDays == 0 {
		return dErrors.New(dErrors.CodeValidation, "Validity must be greater than zero")
	}
	record, err := s.findInvestor(ctx, wallet)
	if err != nil {
		return err
	}
	if !record.IsActive {
		return dErrors.New(dErrors.CodeInvalidState, "Investor not active")
	}

	now := requestcontext.Now(ctx)
	record.ExpirationDate = now.Add(time.Duration(validityDays) * 24 * time.Hour)
	record.UpdatedAt = now
	if err := s.apply(ctx, models.Mutation{Investors: []*models.InvestorRecord{record}}); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, wallet)

	s.emit(ctx, events.Event{
		Name:      events.EventVerificationRenewed,
		Timestamp: now,
		Actor:     caller,
		Subject:   wallet,
		Deadline:  record.ExpirationDate,
	})
	return nil
}

// BlacklistInvestor bars a wallet from verification and from passing
// IsVerified. Admin role required. Independent of the verification record.
func (s *Service) BlacklistInvestor(ctx context.Context, caller, wallet domain.AccountID, reason string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "blacklist_investor", err) }()

	if err := s.authorize(ctx, caller, models.RoleAdmin); err != nil {
		return err
	}
	if wallet.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "Invalid address")
	}

	now := requestcontext.Now(ctx)
	if err := s.apply(ctx, models.Mutation{
		Blacklist: []*models.BlacklistEntry{{Wallet: wallet, Reason: reason, ListedAt: now}},
	}); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, wallet)

	s.emit(ctx, events.Event{
		Name:      events.EventInvestorBlacklisted,
		Timestamp: now,
		Actor:     caller,
		Subject:   wallet,
		Reason:    reason,
	})
	return nil
}

// UnblacklistInvestor lifts a wallet's blacklist entry. Admin role required.
func (s *Service) UnblacklistInvestor(ctx context.Context, caller, wallet domain.AccountID) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "unblacklist_investor", err) }()

	if err := s.authorize(ctx, caller, models.RoleAdmin); err != nil {
		return err
	}
	if err := s.apply(ctx, models.Mutation{Unblacklist: []domain.AccountID{wallet}}); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, wallet)

	s.emit(ctx, events.Event{
		Name:      events.EventInvestorUnblacklisted,
		Timestamp: requestcontext.Now(ctx),
		Actor:     caller,
		Subject:   wallet,
	})
	return nil
}

// UpdateCountryRestriction sets or clears a country's restricted flag.
// Admin role required.
func (s *Service) UpdateCountryRestriction(ctx context.Context, caller domain.AccountID, code string, restricted bool) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "update_country_restriction", err) }()

	if err := s.authorize(ctx, caller, models.RoleAdmin); err != nil {
		return err
	}
	code = textutil.NormalizeCode(code)
	if code == "" {
		return dErrors.New(dErrors.CodeValidation, "Country code cannot be empty")
	}
	if err := s.apply(ctx, models.Mutation{Countries: map[string]bool{code: restricted}}); err != nil {
		return err
	}

	s.emit(ctx, events.Event{
		Name:      events.EventCountryRestrictionUpdated,
		Timestamp: requestcontext.Now(ctx),
		Actor:     caller,
		Label:     code,
		Flag:      restricted,
	})
	return nil
}

// Pause stops new verifications. Admin role required.
func (s *Service) Pause(ctx context.Context, caller domain.AccountID) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "pause", err) }()

	return s.setPaused(ctx, caller, true)
}

// Unpause resumes verifications. Admin role required.
func (s *Service) Unpause(ctx context.Context, caller domain.AccountID) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "unpause", err) }()

	return s.setPaused(ctx, caller, false)
}

func (s *Service) setPaused(ctx context.Context, caller domain.AccountID, paused bool) error {
	if err := s.authorize(ctx, caller, models.RoleAdmin); err != nil {
		return err
	}
	if err := s.apply(ctx, models.Mutation{Paused: &paused}); err != nil {
		return err
	}

	name := events.EventRegistryUnpaused
	if paused {
		name = events.EventRegistryPaused
	}
	s.emit(ctx, events.Event{
		Name:      name,
		Timestamp: requestcontext.Now(ctx),
		Actor:     caller,
	})
	return nil
}

// GrantRole gives an account a registry role. Super-admin only.
func (s *Service) GrantRole(ctx context.Context, caller, account domain.AccountID, role models.Role) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "grant_role", err) }()

	if caller != s.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "Not authorized")
	}
	if account.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "Invalid address")
	}
	if err := s.apply(ctx, models.Mutation{Grants: []models.RoleGrant{{Account: account, Role: role}}}); err != nil {
		return err
	}

	s.emit(ctx, events.Event{
		Name:      events.EventRoleGranted,
		Timestamp: requestcontext.Now(ctx),
		Actor:     caller,
		Subject:   account,
		Label:     string(role),
	})
	return nil
}

// RevokeRole removes an account's registry role. Super-admin only.
func (s *Service) RevokeRole(ctx context.Context, caller, account domain.AccountID, role models.Role) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "revoke_role", err) }()

	if caller != s.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "Not authorized")
	}
	if err := s.apply(ctx, models.Mutation{Revocations: []models.RoleGrant{{Account: account, Role: role}}}); err != nil {
		return err
	}

	s.emit(ctx, events.Event{
		Name:      events.EventRoleRevoked,
		Timestamp: requestcontext.Now(ctx),
		Actor:     caller,
		Subject:   account,
		Label:     string(role),
	})
	return nil
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

// IsVerified reports whether a wallet is active, unexpired, off the
// blacklist, and at or above the required level. Verdicts are served from
// the cache when one is configured.
func (s *Service) IsVerified(ctx context.Context, wallet domain.AccountID, requiredLevel models.Level) (bool, error) {
	if verdict, ok := s.cache.Get(ctx, wallet, requiredLevel); ok {
		return verdict, nil
	}

	record, err := s.store.FindInvestor(ctx, wallet)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.cache.Set(ctx, wallet, requiredLevel, false)
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load investor")
	}
	blacklisted, err := s.store.IsBlacklisted(ctx, wallet)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read blacklist")
	}

	now := requestcontext.Now(ctx)
	verified := record.IsActive &&
		!blacklisted &&
		!now.After(record.ExpirationDate) &&
		record.Level >= requiredLevel
	s.cache.Set(ctx, wallet, requiredLevel, verified)
	return verified, nil
}

// HasExpired reports whether the wallet's verification has lapsed.
func (s *Service) HasExpired(ctx context.Context, wallet domain.AccountID) (bool, error) {
	record, err := s.findInvestor(ctx, wallet)
	if err != nil {
		return false, err
	}
	return requestcontext.Now(ctx).After(record.ExpirationDate), nil
}

// GetVerificationDetails returns the wallet's record joined with its
// blacklist status.
func (s *Service) GetVerificationDetails(ctx context.Context, wallet domain.AccountID) (*models.VerificationDetails, error) {
	record, err := s.findInvestor(ctx, wallet)
	if err != nil {
		return nil, err
	}
	blacklisted, err := s.store.IsBlacklisted(ctx, wallet)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read blacklist")
	}
	return &models.VerificationDetails{
		Wallet:           record.Wallet,
		Level:            record.Level,
		VerificationDate: record.VerificationDate,
		ExpirationDate:   record.ExpirationDate,
		IsActive:         record.IsActive,
		Blacklisted:      blacklisted,
	}, nil
}

// IsCountryRestricted reports whether a country code is restricted.
func (s *Service) IsCountryRestricted(ctx context.Context, code string) (bool, error) {
	restricted, err := s.store.IsCountryRestricted(ctx, textutil.NormalizeCode(code))
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read country restriction")
	}
	return restricted, nil
}

// IsPaused reports whether registry writes are currently halted.
func (s *Service) IsPaused(ctx context.Context) (bool, error) {
	paused, err := s.store.Paused(ctx)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read registry state")
	}
	return paused, nil
}

// HasRole reports whether the account holds the role. The super-admin holds
// every role implicitly.
func (s *Service) HasRole(ctx context.Context, account domain.AccountID, role models.Role) (bool, error) {
	if account == s.owner {
		return true, nil
	}
	granted, err := s.store.HasRole(ctx, account, role)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read role grant")
	}
	return granted, nil
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

// authorize is the single capability gate every write goes through.
func (s *Service) authorize(ctx context.Context, caller domain.AccountID, role models.Role) error {
	granted, err := s.HasRole(ctx, caller, role)
	if err != nil {
		return err
	}
	if !granted {
		return dErrors.New(dErrors.CodeUnauthorized, "Not authorized")
	}
	return nil
}

func (s *Service) findInvestor(ctx context.Context, wallet domain.AccountID) (*models.InvestorRecord, error) {
	record, err := s.store.FindInvestor(ctx, wallet)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "Investor not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load investor")
	}
	return record, nil
}

func (s *Service) apply(ctx context.Context, mutation models.Mutation) error {
	if err := s.store.Apply(ctx, mutation); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply compliance mutation")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit compliance event",
			"event", event.Name, "error", err)
		return
	}
	s.metrics.IncEventsEmitted()
}
