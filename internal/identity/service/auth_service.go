package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"identity-gateway/internal/mfa"
	mfadomain "identity-gateway/internal/mfa/domain"
	"identity-gateway/internal/policy/engine"
	"identity-gateway/internal/supabase"
	"identity-gateway/internal/telemetry"
	telemetrydomain "identity-gateway/internal/telemetry/domain"
	userdomain "identity-gateway/internal/user/domain"
	"identity-gateway/internal/user/repository"
)

// DefaultCodeTTL is how long an emailed 2FA code stays valid when no TTL is configured.
const DefaultCodeTTL = 5 * time.Minute

// AuthProvider is the hosted auth API used by the service.
type AuthProvider interface {
	SignUp(ctx context.Context, email, password string) (*supabase.AuthResponse, error)
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.AuthResponse, error)
	AuthorizeURL(provider, redirectTo string) (string, error)
}

// UserRepo is the users-row store needed by the auth service. See repository.Repository.
type UserRepo interface {
	UpsertProfile(ctx context.Context, p *userdomain.Profile) error
	SetChallenge(ctx context.Context, email string, c mfadomain.Challenge) error
	GetChallenge(ctx context.Context, email string) (*mfadomain.Challenge, error)
	ClearChallenge(ctx context.Context, email string, enable bool) error
}

// PasswordHasher hashes the password copy stored on the users row.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// CodeGenerator produces 2FA codes.
type CodeGenerator interface {
	Generate() (string, error)
}

// Options holds the configurable parts of AuthService.
type Options struct {
	// OAuthProvider is the provider passed to the authorize endpoint (default github).
	OAuthProvider string
	// CodeTTL is the 2FA code lifetime (default DefaultCodeTTL).
	CodeTTL time.Duration
	// ReturnCode includes the generated 2FA code in the Enable2FA result.
	ReturnCode bool
}

// RegisterInput is the registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string // optional
}

// AuthResult is the outcome of Register and Login. User is the auth service's user JSON (plus name and phone on
// registration); Session is passed through unchanged and is null when no session was issued.
type AuthResult struct {
	Message string
	User    map[string]any
	Session json.RawMessage
}

// OAuthResult holds the provider authorization URL.
type OAuthResult struct {
	Message string
	URL     string
}

// ChallengeResult is the outcome of Enable2FA. Code is empty unless Options.ReturnCode is set.
type ChallengeResult struct {
	Message   string
	Code      string
	ExpiresAt time.Time
}

// AuthService implements registration, password login, OAuth redirect, and the email-2FA code lifecycle on top of
// the hosted identity service. It keeps no state between calls.
type AuthService struct {
	auth       AuthProvider
	users      UserRepo
	hasher     PasswordHasher
	codes      CodeGenerator
	redirects  engine.RedirectEvaluator
	emitter    telemetry.EventEmitter
	provider   string
	codeTTL    time.Duration
	returnCode bool
	now        func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. redirects and emitter may be nil.
func NewAuthService(
	auth AuthProvider,
	users UserRepo,
	hasher PasswordHasher,
	codes CodeGenerator,
	redirects engine.RedirectEvaluator,
	emitter telemetry.EventEmitter,
	opts Options,
) *AuthService {
	if opts.OAuthProvider == "" {
		opts.OAuthProvider = "github"
	}
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = DefaultCodeTTL
	}
	return &AuthService{
		auth:       auth,
		users:      users,
		hasher:     hasher,
		codes:      codes,
		redirects:  redirects,
		emitter:    emitter,
		provider:   opts.OAuthProvider,
		codeTTL:    opts.CodeTTL,
		returnCode: opts.ReturnCode,
		now:        time.Now,
	}
}

// Register signs the user up with the auth service, then upserts the users row keyed by the returned id with name,
// phone, email and a bcrypt hash of the password. The returned user view never contains a password.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	resp, err := s.auth.SignUp(ctx, email, in.Password)
	if err != nil {
		return nil, Translate(err, ContextRegistration)
	}
	userID := resp.UserID()
	if userID == "" {
		return nil, Translate(ErrMissingUserID, ContextRegistrationData)
	}
	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, Translate(err, ContextRegistrationData)
	}
	profile := &userdomain.Profile{
		ID:           userID,
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hashed,
	}
	if err := s.users.UpsertProfile(ctx, profile); err != nil {
		return nil, Translate(err, ContextRegistrationData)
	}

	user := make(map[string]any, len(resp.User)+2)
	for k, v := range resp.User {
		user[k] = v
	}
	delete(user, userdomain.ColumnPassword)
	user[userdomain.ColumnName] = profile.Name
	if profile.Phone != "" {
		user[userdomain.ColumnPhone] = profile.Phone
	} else {
		user[userdomain.ColumnPhone] = nil
	}
	s.emit(ctx, telemetrydomain.EventRegistered, userID, "success")
	return &AuthResult{
		Message: "user registered successfully; check your email to confirm the account",
		User:    user,
		Session: resp.Session,
	}, nil
}

// Login exchanges email and password for a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	resp, err := s.auth.SignInWithPassword(ctx, normalizeEmail(email), password)
	if err != nil {
		s.emit(ctx, telemetrydomain.EventLogin, "", "failure")
		return nil, Translate(err, ContextLogin)
	}
	s.emit(ctx, telemetrydomain.EventLogin, resp.UserID(), "success")
	return &AuthResult{
		Message: "login successful",
		User:    resp.User,
		Session: resp.Session,
	}, nil
}

// LoginWithOAuth returns the authorize URL for the configured provider. A non-empty redirectTo must pass the
// redirect policy.
func (s *AuthService) LoginWithOAuth(ctx context.Context, redirectTo string) (*OAuthResult, error) {
	redirectTo = strings.TrimSpace(redirectTo)
	if redirectTo != "" && s.redirects != nil {
		allowed, err := s.redirects.AllowRedirect(ctx, redirectTo)
		if err != nil {
			return nil, Translate(err, ContextOAuthLogin)
		}
		if !allowed {
			return nil, Translate(ErrRedirectNotAllowed, ContextOAuthLogin)
		}
	}
	u, err := s.auth.AuthorizeURL(s.provider, redirectTo)
	if err != nil {
		return nil, Translate(err, ContextOAuthLogin)
	}
	s.emit(ctx, telemetrydomain.EventOAuthURLIssued, "", "success")
	return &OAuthResult{
		Message: fmt.Sprintf("redirecting to %s for authentication", s.provider),
		URL:     u,
	}, nil
}

// Enable2FA generates a code, stores it with its expiry on the users row matched by email, and returns the expiry
// (and the code when configured to).
func (s *AuthService) Enable2FA(ctx context.Context, email string) (*ChallengeResult, error) {
	email = normalizeEmail(email)
	code, err := s.codes.Generate()
	if err != nil {
		return nil, Translate(err, ContextTwoFAActivation)
	}
	challenge := mfadomain.Challenge{Code: code, ExpiresAt: s.now().Add(s.codeTTL).UTC()}
	if err := s.users.SetChallenge(ctx, email, challenge); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, Translate(ErrUserNotFound, ContextTwoFAActivation)
		}
		return nil, Translate(err, ContextTwoFAActivation)
	}
	s.emit(ctx, telemetrydomain.EventTwoFAEnabled, "", "success")
	out := &ChallengeResult{
		Message:   "2FA code generated",
		ExpiresAt: challenge.ExpiresAt,
	}
	if s.returnCode {
		out.Code = code
	}
	return out, nil
}

// Verify2FA checks code against the pending challenge for email. An incorrect code leaves the challenge in place;
// an expired one is cleared; a correct one enables 2FA and clears the challenge in a single update.
func (s *AuthService) Verify2FA(ctx context.Context, email, code string) (string, error) {
	email = normalizeEmail(email)
	challenge, err := s.users.GetChallenge(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "", Translate(ErrUserNotFound, ContextTwoFAVerification)
	case errors.Is(err, repository.ErrMultipleUsers):
		return "", Translate(ErrMultipleUsers, ContextTwoFAVerification)
	case err != nil:
		return "", Translate(err, ContextTwoFAVerification)
	}
	if !challenge.Pending() {
		return "", Translate(ErrNoChallenge, ContextTwoFAVerification)
	}
	if !mfa.CodeEqual(code, challenge.Code) {
		s.emit(ctx, telemetrydomain.EventTwoFAFailed, "", "failure")
		return "", Translate(ErrIncorrectCode, ContextTwoFAVerification)
	}
	if challenge.Expired(s.now()) {
		if err := s.users.ClearChallenge(ctx, email, false); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return "", Translate(err, ContextTwoFAVerification)
		}
		s.emit(ctx, telemetrydomain.EventTwoFAFailed, "", "failure")
		return "", Translate(ErrCodeExpired, ContextTwoFAVerification)
	}
	if err := s.users.ClearChallenge(ctx, email, true); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", Translate(ErrUserNotFound, ContextFinalTwoFAActivation)
		}
		return "", Translate(err, ContextFinalTwoFAActivation)
	}
	s.emit(ctx, telemetrydomain.EventTwoFAVerified, "", "success")
	return "2FA enabled for this user", nil
}

func (s *AuthService) emit(ctx context.Context, eventType, userID, outcome string) {
	if s.emitter == nil {
		return
	}
	requestID, _ := telemetry.GetRequestID(ctx)
	telemetry.EmitAsync(s.emitter, ctx, &telemetrydomain.Event{
		UserID:    userID,
		RequestID: requestID,
		EventType: eventType,
		Source:    "identity",
		Outcome:   outcome,
		CreatedAt: s.now().UTC(),
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
