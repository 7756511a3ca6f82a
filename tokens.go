package authgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/revocation"
	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// IssueTokens issues a fresh pair for account with no prior-token
// bookkeeping. The pair carries the account's current token version; when
// the store cannot say what that is, hybrid and jwt-only modes issue at
// version 0 and strict mode fails with ErrStoreUnavailable.
//
// A version-0 pair for an account that has logged out everywhere before is
// rejected as ErrRevoked by hybrid checks once the store is back, and the
// client has to log in again.
func (e *Engine) IssueTokens(ctx context.Context, account Account) (*TokenPair, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	if account.ID == "" {
		return nil, ErrInvalidRequest
	}

	version, err := e.accountVersion(ctx, account.ID)
	if err != nil {
		if e.config.ValidationMode == ModeStrict {
			return nil, err
		}
		e.log.WithError(err).WithField("account_id", account.ID).Warn("account version unavailable, issuing at version 0")
		e.metricInc(MetricStoreDegraded)
		version = 0
	}

	return e.issuePair(account, version)
}

func (e *Engine) issuePair(account Account, version int64) (*TokenPair, error) {
	base := jwt.Claims{
		Email:   account.Identity,
		Version: version,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject: account.ID,
		},
	}

	access := base
	access.ID = uuid.NewString()
	accessToken, err := e.codec.Issue(access, jwt.KindAccess, e.config.JWT.AccessTTL)
	if err != nil {
		return nil, err
	}

	refresh := base
	refresh.ID = uuid.NewString()
	refreshToken, err := e.codec.Issue(refresh, jwt.KindRefresh, e.config.JWT.RefreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
	}, nil
}

func (e *Engine) accountVersion(ctx context.Context, accountID string) (int64, error) {
	if e.revocation == nil {
		return 0, nil
	}
	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()

	v, err := e.revocation.AccountVersion(storeCtx, accountID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return v, nil
}

// Verify decodes token as kind and, depending on ValidationMode, rejects it
// when blacklisted or older than the account's token version.
func (e *Engine) Verify(ctx context.Context, token string, kind TokenKind) (*Claims, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	return e.verify(ctx, token, kind, e.config.ValidationMode)
}

// Validate verifies an access token with a per-route mode override.
// ModeInherit uses Config.ValidationMode.
func (e *Engine) Validate(ctx context.Context, token string, mode RouteMode) (*Claims, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	switch mode {
	case ModeInherit:
		mode = e.config.ValidationMode
	case ModeJWTOnly, ModeHybrid, ModeStrict:
	default:
		return nil, fmt.Errorf("%w: unknown route mode %d", ErrInvalidRequest, int(mode))
	}
	return e.verify(ctx, token, TokenAccess, mode)
}

func (e *Engine) verify(ctx context.Context, token string, kind TokenKind, mode ValidationMode) (*Claims, error) {
	start := time.Now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricVerifyLatency, time.Since(start))
		}
	}()

	raw, err := e.decode(token, kind)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil, err
	}
	if mode == ModeJWTOnly {
		return toClaims(raw), nil
	}

	if e.revocation == nil {
		if mode == ModeStrict {
			return nil, ErrStoreUnavailable
		}
		return toClaims(raw), nil
	}

	storeCtx, cancel := e.storeContext(ctx)
	revoked, version, err := e.revocation.Status(storeCtx, string(kind), token, raw.Subject)
	cancel()
	if err != nil {
		if mode == ModeStrict {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		e.log.WithError(err).Warn("revocation check skipped, store unavailable")
		e.metricInc(MetricStoreDegraded)
		return toClaims(raw), nil
	}
	if revoked || raw.Version < version {
		e.metricInc(MetricTokenRejected)
		return nil, ErrRevoked
	}

	return toClaims(raw), nil
}

func (e *Engine) decode(token string, kind TokenKind) (*jwt.Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	raw, err := e.codec.DecodeTyped(token, kind)
	switch {
	case err == nil:
		return raw, nil
	case errors.Is(err, jwt.ErrWrongTokenType):
		return nil, ErrWrongTokenType
	default:
		return nil, ErrInvalidToken
	}
}

// rotate redeems a refresh token. The presented token is blacklisted with
// SET NX before the new pair is issued, so of two concurrent redemptions
// exactly one succeeds and the other sees ErrRevoked. A token already on
// the blacklist is rejected as ErrRevoked before the account is consulted.
// Every store failure fails closed.
func (e *Engine) rotate(ctx context.Context, refreshToken string) (*TokenPair, *Claims, error) {
	raw, err := e.decode(refreshToken, TokenRefresh)
	if err != nil {
		return nil, nil, err
	}
	if e.revocation == nil {
		return nil, nil, ErrStoreUnavailable
	}

	storeCtx, cancel := e.storeContext(ctx)
	used, version, err := e.revocation.Status(storeCtx, string(TokenRefresh), refreshToken, raw.Subject)
	cancel()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if used {
		e.metricInc(MetricRefreshReuseDetected)
		return nil, toClaims(raw), ErrRevoked
	}
	if raw.Version < version {
		return nil, nil, ErrRevoked
	}

	account, err := e.refreshAccount(ctx, raw.Subject)
	if err != nil {
		return nil, nil, err
	}
	if !account.Active {
		return nil, nil, ErrInactiveAccount
	}

	storeCtx, cancel = e.storeContext(ctx)
	created, err := e.revocation.Revoke(storeCtx, string(TokenRefresh), refreshToken, e.codec.Remaining(raw))
	cancel()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !created {
		e.metricInc(MetricRefreshReuseDetected)
		return nil, nil, ErrRevoked
	}

	pair, err := e.issuePair(Account{ID: account.ID, Identity: account.Identity, Active: true}, version)
	if err != nil {
		return nil, nil, err
	}
	return pair, toClaims(raw), nil
}

// refreshAccount reads the account through the short-lived cache. A cache
// miss or corrupt entry falls through to the account store; a store outage
// fails closed.
func (e *Engine) refreshAccount(ctx context.Context, accountID string) (*revocation.Account, error) {
	storeCtx, cancel := e.storeContext(ctx)
	cached, err := e.revocation.CachedAccount(storeCtx, accountID)
	cancel()
	switch {
	case err == nil:
		return cached, nil
	case errors.Is(err, revocation.ErrCacheMiss), errors.Is(err, revocation.ErrCacheCorrupt):
	default:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	account, err := e.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	snapshot := &revocation.Account{ID: account.ID, Identity: account.Identity, Active: account.Active}
	e.cacheAccount(ctx, snapshot)
	return snapshot, nil
}

func (e *Engine) cacheAccount(ctx context.Context, snapshot *revocation.Account) {
	if e.revocation == nil || e.config.Revocation.AccountCacheTTL <= 0 {
		return
	}
	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()
	if err := e.revocation.CacheAccount(storeCtx, snapshot, e.config.Revocation.AccountCacheTTL); err != nil {
		e.log.WithError(err).WithField("account_id", snapshot.ID).Debug("account cache write failed")
	}
}

// revokeSession is the best-effort half of logout. Nothing here can fail
// the caller.
func (e *Engine) revokeSession(ctx context.Context, access *jwt.Claims, accessToken, refreshToken string) {
	log := e.log.WithField("account_id", access.Subject)

	if e.revocation == nil {
		log.Warn("logout without revocation store, token stays valid until expiry")
		return
	}

	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()

	if _, err := e.revocation.Revoke(storeCtx, string(TokenAccess), accessToken, e.codec.Remaining(access)); err != nil {
		log.WithError(err).Warn("logout: access token blacklist failed")
	}

	if refreshToken != "" {
		refresh, err := e.codec.DecodeTyped(refreshToken, jwt.KindRefresh)
		switch {
		case err != nil:
			log.WithError(err).Debug("logout: ignoring undecodable refresh token")
		case refresh.Subject != access.Subject:
			log.Warn("logout: refresh token belongs to another account, ignored")
		default:
			if _, err := e.revocation.Revoke(storeCtx, string(TokenRefresh), refreshToken, e.codec.Remaining(refresh)); err != nil {
				log.WithError(err).Warn("logout: refresh token blacklist failed")
			}
		}
	}

	if err := e.revocation.DropAccount(storeCtx, access.Subject); err != nil {
		log.WithError(err).Warn("logout: account cache drop failed")
	}
}

// invalidateAccount bumps the token version so every token issued before
// this call fails Verify and Refresh, and drops the account cache.
func (e *Engine) invalidateAccount(ctx context.Context, accountID string) (int64, error) {
	if e.revocation == nil {
		return 0, ErrStoreUnavailable
	}
	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()

	version, err := e.revocation.InvalidateAccount(storeCtx, accountID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.log.WithFields(logrus.Fields{
		"account_id": accountID,
		"version":    version,
	}).Info("account tokens invalidated")
	return version, nil
}

func toClaims(raw *jwt.Claims) *Claims {
	c := &Claims{
		AccountID: raw.Subject,
		Email:     raw.Email,
		Kind:      raw.Type,
		Version:   raw.Version,
		TokenID:   raw.ID,
	}
	if raw.IssuedAt != nil {
		c.IssuedAt = raw.IssuedAt.Time
	}
	if raw.ExpiresAt != nil {
		c.ExpiresAt = raw.ExpiresAt.Time
	}
	return c
}
