package authgate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authgate/internal/rate"
	"github.com/MrEthical07/authgate/password"
	"github.com/MrEthical07/authgate/revocation"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Login authenticates req and issues a token pair.
//
// The limiter runs before any credential work: a denied request never
// reaches the account store or the password hasher. Unknown identities and
// wrong passwords both return ErrInvalidCredentials after one argon2
// verification each.
//
//	Performance: 1-4 Redis INCRs (limiter), 1 account lookup, 1 argon2 verify,
//	1 Redis GET (version), 1 Redis SET (account cache).
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}

	ip := resolveIP(ctx, req.IP)
	identity := rate.NormalizeIdentity(req.Identity)
	fingerprint := e.Fingerprint(identity)

	if err := e.enforce(ctx, ActionLogin, ip, identity); err != nil {
		return nil, err
	}

	fail := func(accountID string, err error) (*LoginResult, error) {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditLogin, false, accountID, fingerprint, ip, err, nil)
		return nil, err
	}

	if identity == "" || req.Password == "" {
		return fail("", ErrInvalidCredentials)
	}

	account, err := e.accounts.FindAccountByIdentity(ctx, identity)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		_, _ = e.hasher.Verify(req.Password, e.dummyHash)
		return fail("", ErrInvalidCredentials)
	case err != nil:
		e.log.WithError(err).WithField("fingerprint", fingerprint).Error("login: account lookup failed")
		return fail("", fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}

	ok, err := e.hasher.Verify(req.Password, account.SecretHash)
	if err != nil {
		if !errors.Is(err, password.ErrPasswordTooLong) {
			e.log.WithError(err).WithField("account_id", account.ID).Error("login: stored hash unreadable")
		}
		return fail(account.ID, ErrInvalidCredentials)
	}
	if !ok {
		return fail(account.ID, ErrInvalidCredentials)
	}
	if !account.Active {
		return fail(account.ID, ErrInactiveAccount)
	}

	e.upgradeSecret(ctx, account, req.Password)
	e.cacheAccount(ctx, &revocation.Account{ID: account.ID, Identity: account.Identity, Active: account.Active})

	pair, err := e.IssueTokens(ctx, *account)
	if err != nil {
		return fail(account.ID, err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditLogin, true, account.ID, fingerprint, ip, nil, nil)

	out := *account
	out.SecretHash = ""
	return &LoginResult{TokenPair: *pair, Account: out}, nil
}

// Register creates an active account for req.Identity. The returned account
// has SecretHash cleared.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}

	ip := resolveIP(ctx, req.IP)
	identity := rate.NormalizeIdentity(req.Identity)
	fingerprint := e.Fingerprint(identity)

	if err := e.enforce(ctx, ActionRegister, ip, identity); err != nil {
		return nil, err
	}

	fail := func(err error) (*Account, error) {
		e.emitAudit(ctx, auditRegister, false, "", fingerprint, ip, err, nil)
		return nil, err
	}

	if identity == "" || strings.ContainsAny(identity, " \t\r\n") {
		return fail(fmt.Errorf("%w: identity", ErrInvalidRequest))
	}

	_, err := e.accounts.FindAccountByIdentity(ctx, identity)
	switch {
	case err == nil:
		e.metricInc(MetricRegisterDuplicate)
		return fail(ErrAccountExists)
	case !errors.Is(err, ErrAccountNotFound):
		return fail(fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrInvalidRequest, err))
	}

	created, err := e.accounts.CreateAccount(ctx, Account{
		ID:         uuid.NewString(),
		Identity:   identity,
		SecretHash: hash,
		Active:     true,
		CreatedAt:  e.now().UTC(),
	})
	switch {
	case errors.Is(err, ErrAccountExists):
		e.metricInc(MetricRegisterDuplicate)
		return fail(ErrAccountExists)
	case err != nil:
		return fail(fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditRegister, true, created.ID, fingerprint, ip, nil, nil)
	e.publish(ctx, EventRegistered, created.ID, 0)

	out := *created
	out.SecretHash = ""
	return &out, nil
}

// Refresh rotates req.RefreshToken into a new pair. The presented token is
// single use: a second redemption, concurrent or not, returns ErrRevoked.
// Refresh fails closed with ErrStoreUnavailable whenever the revocation
// store cannot be consulted.
//
//	Performance: 1-2 Redis INCRs (limiter), 1 GET (version), 1 GET (account
//	cache), 1 SET NX.
func (e *Engine) Refresh(ctx context.Context, req RefreshRequest) (*TokenPair, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}

	ip := resolveIP(ctx, req.IP)
	if err := e.enforce(ctx, ActionRefresh, ip, ""); err != nil {
		return nil, err
	}

	pair, claims, err := e.rotate(ctx, req.RefreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		event := auditRefresh
		if errors.Is(err, ErrRevoked) {
			event = auditRefreshUsed
		}
		var accountID string
		if claims != nil {
			accountID = claims.AccountID
		}
		e.emitAudit(ctx, event, false, accountID, "", ip, err, nil)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditRefresh, true, claims.AccountID, "", ip, nil, nil)
	return pair, nil
}

// Logout revokes req.AccessToken and, when present, req.RefreshToken.
//
// Only a limiter denial or an access token that does not decode fails the
// call. Store errors after that are logged and swallowed: the client is
// logged out as far as it can tell.
func (e *Engine) Logout(ctx context.Context, req LogoutRequest) error {
	if e == nil || e.codec == nil {
		return ErrEngineNotReady
	}

	ip := resolveIP(ctx, req.IP)
	if err := e.enforce(ctx, ActionLogout, ip, ""); err != nil {
		return err
	}

	access, err := e.decode(req.AccessToken, TokenAccess)
	if err != nil {
		e.emitAudit(ctx, auditLogout, false, "", "", ip, err, nil)
		return err
	}

	e.revokeSession(ctx, access, req.AccessToken, req.RefreshToken)

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditLogout, true, access.Subject, "", ip, nil, nil)
	e.publish(ctx, EventLogout, access.Subject, access.Version)
	return nil
}

// LogoutAll invalidates every token issued to the account behind
// req.AccessToken, including the one presented. Unlike Logout it reports
// ErrStoreUnavailable when the version bump could not be recorded.
func (e *Engine) LogoutAll(ctx context.Context, req LogoutRequest) error {
	if e == nil || e.codec == nil {
		return ErrEngineNotReady
	}

	ip := resolveIP(ctx, req.IP)
	if err := e.enforce(ctx, ActionLogoutAll, ip, ""); err != nil {
		return err
	}

	claims, err := e.Verify(ctx, req.AccessToken, TokenAccess)
	if err != nil {
		e.emitAudit(ctx, auditLogoutAll, false, "", "", ip, err, nil)
		return err
	}

	version, err := e.invalidateAccount(ctx, claims.AccountID)
	if err != nil {
		e.log.WithError(err).WithField("account_id", claims.AccountID).Error("logout-all failed")
		e.emitAudit(ctx, auditLogoutAll, false, claims.AccountID, "", ip, err, nil)
		return err
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditLogoutAll, true, claims.AccountID, "", ip, nil, map[string]string{
		"version": fmt.Sprint(version),
	})
	e.publish(ctx, EventLogoutAll, claims.AccountID, version)
	return nil
}

// upgradeSecret rehashes plain at the current cost when the stored hash is
// weaker. The login has already succeeded, so failures are only logged.
func (e *Engine) upgradeSecret(ctx context.Context, account *Account, plain string) {
	updater, ok := e.accounts.(SecretUpdater)
	if !ok {
		return
	}
	stale, err := e.hasher.NeedsUpgrade(account.SecretHash)
	if err != nil || !stale {
		return
	}

	log := e.log.WithField("account_id", account.ID)
	hash, err := e.hasher.Hash(plain)
	if err != nil {
		log.WithError(err).Debug("password rehash skipped")
		return
	}
	if err := updater.UpdateSecretHash(ctx, account.ID, hash); err != nil {
		log.WithError(err).Warn("password rehash failed")
		return
	}
	account.SecretHash = hash
	log.Info("password rehashed with current parameters")
}

// enforce runs the limiter and maps its denial to the public error type.
func (e *Engine) enforce(ctx context.Context, action Action, ip, identity string) error {
	if e.limiter == nil {
		return nil
	}
	err := e.limiter.Enforce(ctx, string(action), ip, identity)
	if err == nil {
		return nil
	}

	var denied *rate.RateLimitError
	if errors.As(err, &denied) {
		return &RateLimitError{Action: action, RetryAfter: denied.RetryAfter}
	}

	e.log.WithError(err).WithFields(logrus.Fields{"action": string(action)}).Error("rate limiter failed")
	return err
}
