// Package auth implements the WebAuthn registration and authentication
// ceremonies and the session token lifecycle built on top of them.
package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"passkeyd/internal/audit"
	auditdomain "passkeyd/internal/audit/domain"
	"passkeyd/internal/challenge"
	credentialdomain "passkeyd/internal/credential/domain"
	credentialrepo "passkeyd/internal/credential/repository"
	"passkeyd/internal/events"
	"passkeyd/internal/policy/engine"
	"passkeyd/internal/revocation"
	"passkeyd/internal/security"
	userdomain "passkeyd/internal/user/domain"
)

// Sentinel errors for the auth service; the handler maps them to HTTP codes.
// The handler collapses the verification failures (origin, signature, unknown
// credential, counter, malformed) into one generic external response so the
// endpoint cannot be used as a verification oracle.
var (
	ErrInvalidHandle       = errors.New("invalid handle")
	ErrHandleTaken         = errors.New("handle already registered")
	ErrUserNotFound        = errors.New("user not found")
	ErrNoCredentials       = errors.New("no credentials registered")
	ErrDuplicateCredential = errors.New("credential already registered")
	ErrUnknownCredential   = errors.New("unknown credential")
	ErrOriginMismatch      = errors.New("origin mismatch")
	ErrMalformedResponse   = errors.New("malformed authenticator response")
	ErrSignatureInvalid    = errors.New("signature verification failed")
	ErrCounterRegression   = credentialrepo.ErrCounterRegression
	ErrTokenRevoked        = errors.New("token revoked")
	ErrUnknownUser         = errors.New("token subject no longer exists")
)

var handleRe = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,64}$`)

// TokenResult holds an issued session token.
type TokenResult struct {
	Token     string
	ExpiresAt time.Time
	UserID    string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByHandle(ctx context.Context, handle string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// CredentialRepo is the minimal credential repository needed by the auth service.
type CredentialRepo interface {
	GetByCredentialID(ctx context.Context, credentialID []byte) (*credentialdomain.Credential, error)
	ListByUser(ctx context.Context, userID string) ([]*credentialdomain.Credential, error)
	Create(ctx context.Context, c *credentialdomain.Credential) error
	UpdateSignCount(ctx context.Context, credentialID []byte, signCount uint32) error
}

// Config holds the relying-party parameters for the auth service.
type Config struct {
	RPID          string
	RPDisplayName string
	RPOrigins     []string
	ChallengeTTL  time.Duration
	// AllowZeroSignCount permits authenticators that report a zero counter on
	// every assertion. Evaluated by the sign-count policy.
	AllowZeroSignCount bool
}

// Service implements passkey registration, authentication, and the session
// token lifecycle (issue on login, validate, refresh, revoke).
type Service struct {
	webAuthn    *webauthn.WebAuthn
	users       UserRepo
	credentials CredentialRepo
	challenges  challenge.Store
	tokens      *security.TokenProvider
	revoked     revocation.Store
	policy      engine.Evaluator
	auditLog    audit.AuditLogger
	emitter     events.EventEmitter

	rpOrigins    map[string]struct{}
	challengeTTL time.Duration
	allowZero    bool
}

// NewService returns a Service with the given dependencies.
// auditLog and emitter may be nil (audit trail / event stream disabled).
func NewService(
	cfg Config,
	users UserRepo,
	credentials CredentialRepo,
	challenges challenge.Store,
	tokens *security.TokenProvider,
	revoked revocation.Store,
	policy engine.Evaluator,
	auditLog audit.AuditLogger,
	emitter events.EventEmitter,
) (*Service, error) {
	w, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
		Timeouts: webauthn.TimeoutsConfig{
			Login:        webauthn.TimeoutConfig{Enforce: false, Timeout: cfg.ChallengeTTL},
			Registration: webauthn.TimeoutConfig{Enforce: false, Timeout: cfg.ChallengeTTL},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("webauthn config: %w", err)
	}
	origins := make(map[string]struct{}, len(cfg.RPOrigins))
	for _, o := range cfg.RPOrigins {
		origins[o] = struct{}{}
	}
	return &Service{
		webAuthn:     w,
		users:        users,
		credentials:  credentials,
		challenges:   challenges,
		tokens:       tokens,
		revoked:      revoked,
		policy:       policy,
		auditLog:     auditLog,
		emitter:      emitter,
		rpOrigins:    origins,
		challengeTTL: cfg.ChallengeTTL,
		allowZero:    cfg.AllowZeroSignCount,
	}, nil
}

// StartRegistration begins a registration ceremony for handle, creating the
// user row if it does not exist yet. A handle that already owns credentials is
// taken; a handle with zero credentials (a previously abandoned registration)
// is reused. Returns the credential creation options for the client.
func (s *Service) StartRegistration(ctx context.Context, handle, displayName string) (*protocol.CredentialCreation, error) {
	handle = strings.TrimSpace(handle)
	if !handleRe.MatchString(handle) {
		return nil, ErrInvalidHandle
	}
	user, err := s.users.GetByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	var creds []*credentialdomain.Credential
	if user != nil {
		creds, err = s.credentials.ListByUser(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if len(creds) > 0 {
			return nil, ErrHandleTaken
		}
	} else {
		user = &userdomain.User{
			ID:          uuid.New().String(),
			Handle:      handle,
			DisplayName: strings.TrimSpace(displayName),
			CreatedAt:   time.Now().UTC(),
		}
		if err := user.Validate(); err != nil {
			return nil, ErrInvalidHandle
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
	}

	cu := &ceremonyUser{user: user, creds: creds}
	var opts []webauthn.RegistrationOption
	if len(creds) > 0 {
		opts = append(opts, webauthn.WithExclusions(credentialDescriptors(creds)))
	}
	options, session, err := s.webAuthn.BeginRegistration(cu, opts...)
	if err != nil {
		return nil, err
	}
	s.challenges.Issue(ctx, user.ID, challenge.CeremonyRegistration, session, s.challengeTTL)
	s.audit(ctx, user.ID, auditdomain.ActionRegistrationStarted, "credential", "")
	return options, nil
}

// FinishRegistration verifies the authenticator's attestation response and
// stores the new credential. The outstanding registration challenge is
// consumed on success and on expiry; a mismatched response leaves it in place.
func (s *Service) FinishRegistration(ctx context.Context, handle string, response []byte) (*credentialdomain.Credential, error) {
	user, err := s.users.GetByHandle(ctx, strings.TrimSpace(handle))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, ErrMalformedResponse
	}

	session, err := s.challenges.Consume(ctx, user.ID, challenge.CeremonyRegistration, parsed.Response.CollectedClientData.Challenge)
	if err != nil {
		return nil, err
	}
	if _, ok := s.rpOrigins[parsed.Response.CollectedClientData.Origin]; !ok {
		return nil, ErrOriginMismatch
	}

	existing, err := s.credentials.GetByCredentialID(ctx, parsed.RawID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateCredential
	}

	creds, err := s.credentials.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	cu := &ceremonyUser{user: user, creds: creds}
	wcred, err := s.webAuthn.CreateCredential(cu, *session, parsed)
	if err != nil {
		return nil, ErrSignatureInvalid
	}

	cred := credentialdomain.FromWebAuthn(user.ID, wcred, time.Now().UTC())
	if err := s.credentials.Create(ctx, cred); err != nil {
		return nil, err
	}
	s.audit(ctx, user.ID, auditdomain.ActionRegistrationCompleted, "credential", "")
	events.EmitAsync(s.emitter, ctx, events.New(events.TypeRegistrationCompleted, user.ID, ""))
	return cred, nil
}

// StartAuthentication begins an authentication ceremony for handle.
// Returns the assertion options for the client.
func (s *Service) StartAuthentication(ctx context.Context, handle string) (*protocol.CredentialAssertion, error) {
	user, err := s.users.GetByHandle(ctx, strings.TrimSpace(handle))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	creds, err := s.credentials.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}

	cu := &ceremonyUser{user: user, creds: creds}
	options, session, err := s.webAuthn.BeginLogin(cu)
	if err != nil {
		return nil, err
	}
	s.challenges.Issue(ctx, user.ID, challenge.CeremonyAuthentication, session, s.challengeTTL)
	s.audit(ctx, user.ID, auditdomain.ActionLoginStarted, "credential", "")
	return options, nil
}

// FinishAuthentication verifies the authenticator's assertion response,
// enforces the signature counter policy, and issues a session token.
func (s *Service) FinishAuthentication(ctx context.Context, handle string, response []byte) (*TokenResult, error) {
	user, err := s.users.GetByHandle(ctx, strings.TrimSpace(handle))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, ErrMalformedResponse
	}

	session, err := s.challenges.Consume(ctx, user.ID, challenge.CeremonyAuthentication, parsed.Response.CollectedClientData.Challenge)
	if err != nil {
		return nil, err
	}
	if _, ok := s.rpOrigins[parsed.Response.CollectedClientData.Origin]; !ok {
		return nil, s.loginFailed(ctx, user.ID, ErrOriginMismatch)
	}

	stored, err := s.credentials.GetByCredentialID(ctx, parsed.RawID)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.UserID != user.ID {
		return nil, s.loginFailed(ctx, user.ID, ErrUnknownCredential)
	}

	creds, err := s.credentials.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	cu := &ceremonyUser{user: user, creds: creds}
	if _, err := s.webAuthn.ValidateLogin(cu, *session, parsed); err != nil {
		return nil, s.loginFailed(ctx, user.ID, ErrSignatureInvalid)
	}

	// The library keeps the stored counter when the authenticator's counter
	// regressed, so read the reported value from the raw authenticator data.
	reported := parsed.Response.AuthenticatorData.Counter
	result, err := s.policy.EvaluateSignCount(ctx, stored.SignCount, reported, s.allowZero)
	if err != nil {
		return nil, err
	}
	if !result.Allow {
		if result.Flag {
			meta := fmt.Sprintf(`{"stored":%d,"reported":%d}`, stored.SignCount, reported)
			s.audit(ctx, user.ID, auditdomain.ActionCredentialFlagged, "credential", meta)
			events.EmitAsync(s.emitter, ctx, events.New(events.TypeCredentialFlagged, user.ID, meta))
		}
		return nil, s.loginFailed(ctx, user.ID, ErrCounterRegression)
	}
	if reported > stored.SignCount {
		if err := s.credentials.UpdateSignCount(ctx, stored.ID, reported); err != nil {
			if errors.Is(err, credentialrepo.ErrCounterRegression) {
				return nil, s.loginFailed(ctx, user.ID, ErrCounterRegression)
			}
			return nil, err
		}
	}

	token, _, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, user.ID, auditdomain.ActionLoginSucceeded, "credential", "")
	events.EmitAsync(s.emitter, ctx, events.New(events.TypeLoginSucceeded, user.ID, ""))
	return &TokenResult{Token: token, ExpiresAt: expiresAt, UserID: user.ID}, nil
}

// Validate checks the session token (signature, expiry, revocation) and that
// its subject still exists. Returns the user ID.
func (s *Service) Validate(ctx context.Context, token string) (string, error) {
	userID, jti, _, err := s.tokens.Validate(token)
	if err != nil {
		return "", err
	}
	if s.revoked.IsRevoked(ctx, jti) {
		return "", ErrTokenRevoked
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUnknownUser
	}
	return userID, nil
}

// Refresh validates the token and issues a fresh one for the same user.
// The old token remains valid until its own expiry unless revoked.
func (s *Service) Refresh(ctx context.Context, token string) (*TokenResult, error) {
	userID, err := s.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	newToken, _, expiresAt, err := s.tokens.Issue(userID)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, userID, auditdomain.ActionTokenRefreshed, "token", "")
	events.EmitAsync(s.emitter, ctx, events.New(events.TypeTokenRefreshed, userID, ""))
	return &TokenResult{Token: newToken, ExpiresAt: expiresAt, UserID: userID}, nil
}

// Revoke invalidates the token for the remainder of its lifetime.
// Revoking an already revoked token succeeds (idempotent); revoking an
// expired or malformed token fails validation.
func (s *Service) Revoke(ctx context.Context, token string) error {
	userID, jti, expiresAt, err := s.tokens.Validate(token)
	if err != nil {
		return err
	}
	s.revoked.Revoke(ctx, jti, expiresAt)
	s.audit(ctx, userID, auditdomain.ActionTokenRevoked, "token", "")
	events.EmitAsync(s.emitter, ctx, events.New(events.TypeTokenRevoked, userID, ""))
	return nil
}

// GetUser returns the user for id, or ErrUserNotFound.
func (s *Service) GetUser(ctx context.Context, userID string) (*userdomain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ListCredentials returns the user's registered credentials in registration order.
func (s *Service) ListCredentials(ctx context.Context, userID string) ([]*credentialdomain.Credential, error) {
	return s.credentials.ListByUser(ctx, userID)
}

// loginFailed records the audit trail and event stream entry for a failed
// authentication and returns cause unchanged.
func (s *Service) loginFailed(ctx context.Context, userID string, cause error) error {
	s.audit(ctx, userID, auditdomain.ActionLoginFailed, "credential", cause.Error())
	events.EmitAsync(s.emitter, ctx, events.New(events.TypeLoginFailed, userID, cause.Error()))
	return cause
}

func (s *Service) audit(ctx context.Context, userID, action, resource, metadata string) {
	if s.auditLog == nil {
		return
	}
	s.auditLog.LogEvent(ctx, userID, action, resource, metadata)
}

func credentialDescriptors(creds []*credentialdomain.Credential) []protocol.CredentialDescriptor {
	out := make([]protocol.CredentialDescriptor, 0, len(creds))
	for _, c := range creds {
		wc := c.WebAuthn()
		out = append(out, wc.Descriptor())
	}
	return out
}

// ceremonyUser adapts a user row and its credentials to the webauthn.User interface.
type ceremonyUser struct {
	user  *userdomain.User
	creds []*credentialdomain.Credential
}

func (u *ceremonyUser) WebAuthnID() []byte          { return []byte(u.user.ID) }
func (u *ceremonyUser) WebAuthnName() string        { return u.user.Handle }
func (u *ceremonyUser) WebAuthnDisplayName() string { return u.user.DisplayName }
func (u *ceremonyUser) WebAuthnIcon() string        { return "" }

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	out := make([]webauthn.Credential, 0, len(u.creds))
	for _, c := range u.creds {
		out = append(out, c.WebAuthn())
	}
	return out
}
