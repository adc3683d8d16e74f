package account

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository persists accounts in Postgres. Document-shaped fields
// (image, ban, deactivation) live in jsonb columns.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const accountColumns = `id, name, email, password_hash, image, role, status, is_email_verified,
	error_count, login_error_count, refresh_token, reset_token, reset_token_expiry,
	email_verify_token, email_verify_token_expiry, password_changed_at,
	ban, deactivation, last_login, created_at, updated_at`

func (r *Repository) CreateAccount(ctx context.Context, acc Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		acc.ID, acc.Name, acc.Email, acc.PasswordHash, acc.Role, acc.Status, acc.CreatedAt, acc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *Repository) AccountByID(ctx context.Context, id string) (Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
	return scanAccount(row)
}

func (r *Repository) AccountByEmail(ctx context.Context, email string) (Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM users WHERE email = $1`, email)
	return scanAccount(row)
}

func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func (r *Repository) SetVerificationToken(ctx context.Context, id, token string, expiry time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email_verify_token = $2, email_verify_token_expiry = $3, updated_at = now()
		WHERE id = $1`,
		id, token, expiry,
	)
	if err != nil {
		return fmt.Errorf("set verification token: %w", err)
	}
	return nil
}

func (r *Repository) MarkEmailVerified(ctx context.Context, id, refreshToken string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified = TRUE,
		    email_verify_token = '', email_verify_token_expiry = NULL,
		    error_count = 0, refresh_token = $2, updated_at = now()
		WHERE id = $1`,
		id, refreshToken,
	)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return nil
}

func (r *Repository) SetResetToken(ctx context.Context, id, token string, expiry time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET reset_token = $2, reset_token_expiry = $3, updated_at = now()
		WHERE id = $1`,
		id, token, expiry,
	)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return nil
}

func (r *Repository) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2, password_changed_at = $3,
		    reset_token = '', reset_token_expiry = NULL,
		    error_count = 0, updated_at = now()
		WHERE id = $1`,
		id, passwordHash, changedAt,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (r *Repository) RecordLogin(ctx context.Context, id, refreshToken string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET refresh_token = $2, last_login = $3, login_error_count = 0, updated_at = now()
		WHERE id = $1`,
		id, refreshToken, at,
	)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

func (r *Repository) SetRefreshToken(ctx context.Context, id, token string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET refresh_token = $2, updated_at = now() WHERE id = $1`,
		id, token,
	)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	return nil
}

func (r *Repository) ResetFailures(ctx context.Context, id string, kind failureKind, unfreeze bool) error {
	column := failureColumn(kind)

	query := `UPDATE users SET ` + column + ` = 0, updated_at = now() WHERE id = $1`
	if unfreeze {
		query = `UPDATE users SET ` + column + ` = 0, status = 'ACTIVE', updated_at = now() WHERE id = $1`
	}

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("reset failures: %w", err)
	}
	return nil
}

func (r *Repository) RecordFailure(ctx context.Context, id string, kind failureKind, count int, freeze bool) error {
	column := failureColumn(kind)

	query := `UPDATE users SET ` + column + ` = $2, updated_at = now() WHERE id = $1`
	if freeze {
		query = `UPDATE users SET ` + column + ` = $2, status = 'FREEZE', updated_at = now() WHERE id = $1`
	}

	if _, err := r.db.ExecContext(ctx, query, id, count); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

func (r *Repository) SetBan(ctx context.Context, id string, ban Ban) error {
	payload, err := json.Marshal(ban)
	if err != nil {
		return fmt.Errorf("marshal ban: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `
		UPDATE users SET ban = $2, updated_at = now() WHERE id = $1`,
		id, payload,
	); err != nil {
		return fmt.Errorf("set ban: %w", err)
	}
	return nil
}

func (r *Repository) Deactivate(ctx context.Context, id string, d Deactivation) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal deactivation: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `
		UPDATE users SET deactivation = $2, updated_at = now() WHERE id = $1`,
		id, payload,
	); err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	return nil
}

// SetImage replaces the profile image document. Used by the media
// handlers, not by the auth flows.
func (r *Repository) SetImage(ctx context.Context, id string, img *Image) error {
	var payload any
	if img != nil {
		raw, err := json.Marshal(img)
		if err != nil {
			return fmt.Errorf("marshal image: %w", err)
		}
		payload = raw
	}
	if _, err := r.db.ExecContext(ctx, `
		UPDATE users SET image = $2, updated_at = now() WHERE id = $1`,
		id, payload,
	); err != nil {
		return fmt.Errorf("set image: %w", err)
	}
	return nil
}

// PurgeExpiredCredentialTokens clears verification and reset tokens whose
// expiry has passed. Called from the maintenance endpoint.
func (r *Repository) PurgeExpiredCredentialTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email_verify_token = CASE WHEN email_verify_token_expiry < $1 THEN '' ELSE email_verify_token END,
		    email_verify_token_expiry = CASE WHEN email_verify_token_expiry < $1 THEN NULL ELSE email_verify_token_expiry END,
		    reset_token = CASE WHEN reset_token_expiry < $1 THEN '' ELSE reset_token END,
		    reset_token_expiry = CASE WHEN reset_token_expiry < $1 THEN NULL ELSE reset_token_expiry END
		WHERE email_verify_token_expiry < $1 OR reset_token_expiry < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("purge credential tokens: %w", err)
	}
	return res.RowsAffected()
}

// PurgeDeactivatedRefreshTokens clears refresh tokens still stored on
// deactivated accounts so their sessions can never rotate again. Called
// from the maintenance endpoint.
func (r *Repository) PurgeDeactivatedRefreshTokens(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET refresh_token = '', updated_at = now()
		WHERE deactivation->>'isDeactivated' = 'true' AND refresh_token <> ''`,
	)
	if err != nil {
		return 0, fmt.Errorf("purge deactivated refresh tokens: %w", err)
	}
	return res.RowsAffected()
}

func failureColumn(kind failureKind) string {
	if kind == loginFailure {
		return "login_error_count"
	}
	return "error_count"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var (
		acc          Account
		image        []byte
		ban          []byte
		deactivation []byte
		resetExpiry  sql.NullTime
		verifyExpiry sql.NullTime
		pwChangedAt  sql.NullTime
		lastLogin    sql.NullTime
	)

	err := row.Scan(
		&acc.ID, &acc.Name, &acc.Email, &acc.PasswordHash, &image, &acc.Role, &acc.Status,
		&acc.EmailVerified, &acc.ErrorCount, &acc.LoginErrorCount,
		&acc.RefreshToken, &acc.ResetToken, &resetExpiry,
		&acc.EmailVerifyToken, &verifyExpiry, &pwChangedAt,
		&ban, &deactivation, &lastLogin, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return Account{}, err
	}

	if len(image) > 0 {
		acc.Image = &Image{}
		if err := json.Unmarshal(image, acc.Image); err != nil {
			return Account{}, fmt.Errorf("decode image: %w", err)
		}
	}
	if len(ban) > 0 {
		if err := json.Unmarshal(ban, &acc.Ban); err != nil {
			return Account{}, fmt.Errorf("decode ban: %w", err)
		}
	}
	if len(deactivation) > 0 {
		if err := json.Unmarshal(deactivation, &acc.Deactivation); err != nil {
			return Account{}, fmt.Errorf("decode deactivation: %w", err)
		}
	}
	if resetExpiry.Valid {
		acc.ResetTokenExpiry = &resetExpiry.Time
	}
	if verifyExpiry.Valid {
		acc.EmailVerifyTokenExpiry = &verifyExpiry.Time
	}
	if pwChangedAt.Valid {
		acc.PasswordChangedAt = &pwChangedAt.Time
	}
	if lastLogin.Valid {
		acc.LastLogin = &lastLogin.Time
	}

	return acc, nil
}
