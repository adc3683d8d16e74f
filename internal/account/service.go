package account

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"ecom-server/internal/apperror"
	"ecom-server/internal/observability"
)

const (
	credentialTokenTTL = 15 * time.Minute

	lockedMessage     = "Your account is temporarily locked. Please contact our support team."
	invalidCredential = "Invalid credential"
	pleaseLogInAgain  = "Authentication failed. Please log in again."
)

// Store is the persistence surface the auth flows need. Implemented by
// *Repository; tests substitute an in-memory fake.
type Store interface {
	CreateAccount(ctx context.Context, acc Account) error
	AccountByID(ctx context.Context, id string) (Account, error)
	AccountByEmail(ctx context.Context, email string) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)

	SetVerificationToken(ctx context.Context, id, token string, expiry time.Time) error
	MarkEmailVerified(ctx context.Context, id, refreshToken string) error
	SetResetToken(ctx context.Context, id, token string, expiry time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error

	RecordLogin(ctx context.Context, id, refreshToken string, at time.Time) error
	SetRefreshToken(ctx context.Context, id, token string) error

	ResetFailures(ctx context.Context, id string, kind failureKind, unfreeze bool) error
	RecordFailure(ctx context.Context, id string, kind failureKind, count int, freeze bool) error

	SetBan(ctx context.Context, id string, ban Ban) error
	Deactivate(ctx context.Context, id string, d Deactivation) error
}

// Mailer sends the transactional mail the auth flows produce. Failures
// are logged, never surfaced: mail is best-effort.
type Mailer interface {
	SendVerification(email, name string, role Role, token, userID string) error
	SendPasswordReset(email, name, token string) error
	SendWelcome(email, name string, role Role) error
}

type Service struct {
	store       Store
	tokens      *TokenIssuer
	hasher      PasswordHasher
	mailer      Mailer
	logger      *observability.Logger
	adminSecret string
	maxFailures int
	now         func() time.Time
}

func NewService(store Store, tokens *TokenIssuer, hasher PasswordHasher, mailer Mailer, logger *observability.Logger, adminSecret string, maxFailures int) *Service {
	if maxFailures <= 0 {
		maxFailures = 4
	}

	return &Service{
		store:       store,
		tokens:      tokens,
		hasher:      hasher,
		mailer:      mailer,
		logger:      logger,
		adminSecret: adminSecret,
		maxFailures: maxFailures,
		now:         time.Now,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	Secret   string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	_, err := s.store.AccountByEmail(ctx, email)
	if err == nil {
		return apperror.New("User already exist", http.StatusBadRequest)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	role := RoleUser
	if in.Role == "admin" && in.Secret != "" {
		if in.Secret != s.adminSecret || s.adminSecret == "" {
			return apperror.New("Invalid admin secret code", http.StatusBadRequest)
		}
		role = RoleAdmin
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate account id: %w", err)
	}

	now := s.now().UTC()
	acc := Account{
		ID:           id.String(),
		Name:         in.Name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateAccount(ctx, acc); err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	return s.issueVerification(ctx, acc)
}

// issueVerification stores a hashed one-time token and mails the
// verification link carrying it.
func (s *Service) issueVerification(ctx context.Context, acc Account) error {
	token, err := randomToken(32)
	if err != nil {
		return fmt.Errorf("generate verification token: %w", err)
	}
	hashed := hashToken(token)

	if err := s.store.SetVerificationToken(ctx, acc.ID, hashed, s.now().UTC().Add(credentialTokenTTL)); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}

	if err := s.mailer.SendVerification(acc.Email, acc.Name, acc.Role, hashed, acc.ID); err != nil {
		s.logger.Warn("verification_mail_failed", map[string]any{"user_id": acc.ID, "error": err.Error()})
	}

	return nil
}

// VerifyEmail checks the mailed token under the lockout policy and, on
// success, marks the account verified and opens a session.
func (s *Service) VerifyEmail(ctx context.Context, userID, token string) (Account, TokenPair, error) {
	acc, err := s.store.AccountByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, TokenPair{}, apperror.New("User does not exist", http.StatusBadRequest)
		}
		return Account{}, TokenPair{}, err
	}

	if err := s.rolloverCounters(ctx, &acc, credentialFailure); err != nil {
		return Account{}, TokenPair{}, err
	}
	if acc.Status == StatusFrozen {
		return Account{}, TokenPair{}, apperror.New(lockedMessage, http.StatusUnauthorized)
	}

	if acc.EmailVerifyToken == "" || acc.EmailVerifyToken != token {
		frozeNow, err := s.registerFailure(ctx, &acc, credentialFailure)
		if err != nil {
			return Account{}, TokenPair{}, err
		}
		if frozeNow {
			return Account{}, TokenPair{}, apperror.New(lockedMessage, http.StatusUnauthorized)
		}
		return Account{}, TokenPair{}, apperror.New("Invalid verify token", http.StatusBadRequest)
	}

	if acc.EmailVerifyTokenExpiry == nil || s.now().UTC().After(*acc.EmailVerifyTokenExpiry) {
		return Account{}, TokenPair{}, apperror.New("Verify token has expired", http.StatusBadRequest)
	}

	pair, err := s.tokens.Issue(acc.ID, acc.Email)
	if err != nil {
		return Account{}, TokenPair{}, err
	}
	if err := s.store.MarkEmailVerified(ctx, acc.ID, pair.RefreshToken); err != nil {
		return Account{}, TokenPair{}, fmt.Errorf("mark verified: %w", err)
	}

	if err := s.mailer.SendWelcome(acc.Email, acc.Name, acc.Role); err != nil {
		s.logger.Warn("welcome_mail_failed", map[string]any{"user_id": acc.ID, "error": err.Error()})
	}

	acc.EmailVerified = true
	return acc, pair, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Account, TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	acc, err := s.store.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Same wording as a bad password: existence stays hidden.
			return Account{}, TokenPair{}, apperror.New(invalidCredential, http.StatusUnauthorized)
		}
		return Account{}, TokenPair{}, err
	}

	if !acc.EmailVerified {
		if err := s.issueVerification(ctx, acc); err != nil {
			return Account{}, TokenPair{}, err
		}
		return Account{}, TokenPair{}, apperror.New("Please verify your email", http.StatusBadRequest)
	}

	if err := s.rolloverCounters(ctx, &acc, loginFailure); err != nil {
		return Account{}, TokenPair{}, err
	}
	if acc.Status == StatusFrozen {
		return Account{}, TokenPair{}, apperror.New(lockedMessage, http.StatusUnauthorized)
	}

	if !s.hasher.Verify(password, acc.PasswordHash) {
		frozeNow, err := s.registerFailure(ctx, &acc, loginFailure)
		if err != nil {
			return Account{}, TokenPair{}, err
		}
		if frozeNow {
			return Account{}, TokenPair{}, apperror.New(lockedMessage, http.StatusUnauthorized)
		}
		return Account{}, TokenPair{}, apperror.New(invalidCredential, http.StatusUnauthorized)
	}

	pair, err := s.tokens.Issue(acc.ID, acc.Email)
	if err != nil {
		return Account{}, TokenPair{}, err
	}
	if err := s.store.RecordLogin(ctx, acc.ID, pair.RefreshToken, s.now().UTC()); err != nil {
		return Account{}, TokenPair{}, fmt.Errorf("record login: %w", err)
	}

	return acc, pair, nil
}

// Logout invalidates the stored refresh token by overwriting it with an
// opaque random value no future request can present.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return apperror.New(pleaseLogInAgain, http.StatusUnauthorized)
	}
	if claims.UserID == "" || claims.Email == "" {
		return apperror.New(pleaseLogInAgain, http.StatusUnauthorized)
	}

	if _, err := s.store.AccountByEmail(ctx, claims.Email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.New(pleaseLogInAgain, http.StatusUnauthorized)
		}
		return err
	}

	scrambled, err := randomToken(32)
	if err != nil {
		return fmt.Errorf("generate logout token: %w", err)
	}

	return s.store.SetRefreshToken(ctx, claims.UserID, scrambled)
}

func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	acc, err := s.store.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.New("User does not exist", http.StatusBadRequest)
		}
		return err
	}

	token, err := randomToken(32)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.store.SetResetToken(ctx, acc.ID, token, s.now().UTC().Add(credentialTokenTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(acc.Email, acc.Name, token); err != nil {
		s.logger.Warn("reset_mail_failed", map[string]any{"user_id": acc.ID, "error": err.Error()})
	}

	return nil
}

// ResetWithToken consumes a mailed reset token under the lockout policy
// and installs the new password.
func (s *Service) ResetWithToken(ctx context.Context, email, token, newPassword string) (Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	acc, err := s.store.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, apperror.New("User does not exist", http.StatusBadRequest)
		}
		return Account{}, err
	}

	if err := s.rolloverCounters(ctx, &acc, credentialFailure); err != nil {
		return Account{}, err
	}
	if acc.Status == StatusFrozen {
		return Account{}, apperror.New(lockedMessage, http.StatusUnauthorized)
	}

	if acc.ResetTokenExpiry == nil || s.now().UTC().After(*acc.ResetTokenExpiry) {
		return Account{}, apperror.New("Reset token has expired", http.StatusUnauthorized)
	}

	if acc.ResetToken == "" || acc.ResetToken != token {
		frozeNow, err := s.registerFailure(ctx, &acc, credentialFailure)
		if err != nil {
			return Account{}, err
		}
		if frozeNow {
			return Account{}, apperror.New(lockedMessage, http.StatusUnauthorized)
		}
		return Account{}, apperror.New("Invalid reset token.", http.StatusUnauthorized)
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdatePassword(ctx, acc.ID, passwordHash, s.now().UTC()); err != nil {
		return Account{}, fmt.Errorf("update password: %w", err)
	}

	return acc, nil
}

// ChangePassword is the authenticated variant: old password instead of a
// mailed token, no lockout counter involved.
func (s *Service) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	acc, err := s.store.AccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.New("User does not exist", http.StatusBadRequest)
		}
		return err
	}

	if !s.hasher.Verify(oldPassword, acc.PasswordHash) {
		return apperror.New("Old password is incorrect", http.StatusBadRequest)
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.store.UpdatePassword(ctx, acc.ID, passwordHash, s.now().UTC())
}

func (s *Service) Deactivate(ctx context.Context, accountID, reason string) error {
	now := s.now().UTC()
	if err := s.store.Deactivate(ctx, accountID, Deactivation{
		IsDeactivated: true,
		Reason:        reason,
		DeactivatedAt: &now,
	}); err != nil {
		return err
	}

	// Kill the active session along with the account.
	scrambled, err := randomToken(32)
	if err != nil {
		return fmt.Errorf("generate deactivation token: %w", err)
	}
	return s.store.SetRefreshToken(ctx, accountID, scrambled)
}

// ValidateAccess resolves an access token to an identity. JWT parse
// errors pass through untouched so the middleware can distinguish
// expiry (rotate) from tampering (reject).
func (s *Service) ValidateAccess(ctx context.Context, token string) (Identity, error) {
	claims, err := s.tokens.ParseAccess(token)
	if err != nil {
		return Identity{}, err
	}

	acc, err := s.store.AccountByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, apperror.New(pleaseLogInAgain, http.StatusUnauthorized)
		}
		return Identity{}, err
	}

	if acc.Ban.IsBanned {
		return Identity{}, apperror.New("Account suspended", http.StatusForbidden)
	}

	if acc.PasswordChangedAt != nil && claims.IssuedAt != nil &&
		claims.IssuedAt.Time.Before(*acc.PasswordChangedAt) {
		return Identity{}, apperror.New("Password was recently changed. Please log in again.", http.StatusUnauthorized)
	}

	return identityOf(acc), nil
}

// Rotate trades a refresh token for a fresh pair. Three checks, all
// mandatory: the embedded email matches, the account exists, and the
// presented token equals the stored one. The store write is
// last-write-wins; a concurrent rotation may strand its sibling, whose
// next rotation then fails the equality check.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (Identity, TokenPair, error) {
	unauthorized := apperror.New(pleaseLogInAgain, http.StatusUnauthorized)

	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return Identity{}, TokenPair{}, unauthorized
	}

	acc, err := s.store.AccountByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, TokenPair{}, unauthorized
		}
		return Identity{}, TokenPair{}, err
	}

	if acc.Email != claims.Email {
		return Identity{}, TokenPair{}, unauthorized
	}
	if acc.RefreshToken == "" || acc.RefreshToken != refreshToken {
		return Identity{}, TokenPair{}, unauthorized
	}

	pair, err := s.tokens.Issue(acc.ID, acc.Email)
	if err != nil {
		return Identity{}, TokenPair{}, err
	}
	if err := s.store.SetRefreshToken(ctx, acc.ID, pair.RefreshToken); err != nil {
		return Identity{}, TokenPair{}, fmt.Errorf("persist rotated token: %w", err)
	}

	return identityOf(acc), pair, nil
}

func (s *Service) Account(ctx context.Context, id string) (Account, error) {
	acc, err := s.store.AccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, apperror.New("User does not exist", http.StatusBadRequest)
		}
		return Account{}, err
	}
	return acc, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.store.ListAccounts(ctx)
}

// SetBan records or lifts an explicit admin ban.
func (s *Service) SetBan(ctx context.Context, adminID, userID string, banned bool, reason string) error {
	if _, err := s.store.AccountByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.New("User does not exist", http.StatusBadRequest)
		}
		return err
	}

	ban := Ban{}
	if banned {
		now := s.now().UTC()
		ban = Ban{IsBanned: true, AdminID: adminID, Reason: reason, BannedAt: &now}
	}

	return s.store.SetBan(ctx, userID, ban)
}

// rolloverCounters implements the calendar-day reset: once the account's
// last mutation is no longer "today", the counter drops to zero and a
// counter-induced freeze lifts.
func (s *Service) rolloverCounters(ctx context.Context, acc *Account, kind failureKind) error {
	now := s.now().UTC()
	if sameDay(acc.UpdatedAt.UTC(), now) {
		return nil
	}

	unfreeze := acc.Status == StatusFrozen
	if err := s.store.ResetFailures(ctx, acc.ID, kind, unfreeze); err != nil {
		return fmt.Errorf("reset failure counter: %w", err)
	}

	if kind == loginFailure {
		acc.LoginErrorCount = 0
	} else {
		acc.ErrorCount = 0
	}
	if unfreeze {
		acc.Status = StatusActive
	}
	acc.UpdatedAt = now

	return nil
}

// registerFailure bumps the counter, freezing the account once the
// threshold is reached. Reports whether this attempt caused the freeze.
func (s *Service) registerFailure(ctx context.Context, acc *Account, kind failureKind) (bool, error) {
	count := acc.failureCount(kind)
	if count >= s.maxFailures {
		if err := s.store.RecordFailure(ctx, acc.ID, kind, s.maxFailures+1, true); err != nil {
			return false, fmt.Errorf("freeze account: %w", err)
		}
		return true, nil
	}

	if err := s.store.RecordFailure(ctx, acc.ID, kind, count+1, false); err != nil {
		return false, fmt.Errorf("record failure: %w", err)
	}
	return false, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func randomToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}
