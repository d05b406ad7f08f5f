package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/agro-insight/agroinsight/internal/fakebackend/identity"
	"github.com/agro-insight/agroinsight/internal/fakebackend/notification"
)

// ErrInvalidCode covers wrong and expired codes alike.
var ErrInvalidCode = errors.New("invalid or expired code")

const codeDigits = 6

const (
	purposeLogin = "login:"
	purposeReset = "reset:"
)

// Grant is the result of a verified second factor.
type Grant struct {
	AccessToken string
	ExpiresAt   time.Time
	User        identity.User
}

// Service runs the two-step login and the password reset flow.
type Service struct {
	ids        *identity.Service
	tokens     *Issuer
	challenges ChallengeStore
	notifier   notification.Notifier
	codeTTL    time.Duration
}

// NewService wires the auth flows.
func NewService(ids *identity.Service, tokens *Issuer, challenges ChallengeStore, notifier notification.Notifier, codeTTL time.Duration) *Service {
	return &Service{ids: ids, tokens: tokens, challenges: challenges, notifier: notifier, codeTTL: codeTTL}
}

func normalise(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// StartLogin checks the password and emails a fresh code.
func (s *Service) StartLogin(ctx context.Context, creds identity.Credentials) (identity.User, error) {
	user, err := s.ids.Authenticate(ctx, creds)
	if err != nil {
		return identity.User{}, err
	}
	if err := s.issueCode(ctx, purposeLogin, notification.KindLoginCode, user.Email, "Your AgroInsight verification code"); err != nil {
		return identity.User{}, err
	}
	return user, nil
}

// ResendLogin re-sends the pending code without replacing it, so a code
// already on its way stays valid.
func (s *Service) ResendLogin(ctx context.Context, email string) error {
	email = normalise(email)
	code, err := s.challenges.Get(ctx, purposeLogin+email)
	if err != nil {
		return err
	}
	return s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindLoginCode,
		Destination: email,
		Body:        "Your AgroInsight verification code",
		Code:        code,
	})
}

// Verify exchanges a login code for an access token.
func (s *Service) Verify(ctx context.Context, email, code string) (Grant, error) {
	email = normalise(email)
	if err := s.consume(ctx, purposeLogin+email, code); err != nil {
		return Grant{}, err
	}
	user, err := s.ids.Lookup(ctx, email)
	if err != nil {
		return Grant{}, err
	}
	token, exp, err := s.tokens.Issue(user)
	if err != nil {
		return Grant{}, err
	}
	return Grant{AccessToken: token, ExpiresAt: exp, User: user}, nil
}

// ForgotPassword emails a reset code when the account exists. Unknown
// emails succeed silently.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.ids.Lookup(ctx, email)
	if errors.Is(err, identity.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.issueCode(ctx, purposeReset, notification.KindPasswordReset, user.Email, "Your AgroInsight password reset code")
}

// ResetPassword sets a new password with a reset code.
func (s *Service) ResetPassword(ctx context.Context, email, code, password string) error {
	email = normalise(email)
	if err := s.consume(ctx, purposeReset+email, code); err != nil {
		return err
	}
	user, err := s.ids.Lookup(ctx, email)
	if err != nil {
		return err
	}
	return s.ids.SetPassword(ctx, user.ID, password)
}

func (s *Service) issueCode(ctx context.Context, purpose, kind, email, body string) error {
	code, err := newCode()
	if err != nil {
		return err
	}
	if err := s.challenges.Put(ctx, purpose+email, code, s.codeTTL); err != nil {
		return err
	}
	return s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: email, Body: body, Code: code})
}

func (s *Service) consume(ctx context.Context, key, code string) error {
	want, err := s.challenges.Get(ctx, key)
	if errors.Is(err, ErrNoChallenge) {
		return ErrInvalidCode
	}
	if err != nil {
		return err
	}
	if strings.TrimSpace(code) != want {
		return ErrInvalidCode
	}
	return s.challenges.Delete(ctx, key)
}

func newCode() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
