package account

import "time"

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusFrozen Status = "FREEZE"
)

// Ban is set by an admin and is independent of the counter-driven FREEZE
// status: it never lifts on a day rollover.
type Ban struct {
	IsBanned bool       `json:"isBanned"`
	AdminID  string     `json:"adminId,omitempty"`
	Reason   string     `json:"reason,omitempty"`
	BannedAt *time.Time `json:"bannedAt,omitempty"`
}

type Deactivation struct {
	IsDeactivated bool       `json:"isDeactivated"`
	Reason        string     `json:"reason,omitempty"`
	DeactivatedAt *time.Time `json:"deactivatedAt,omitempty"`
}

type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

type Account struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	PasswordHash  string  `json:"-"`
	Image         *Image  `json:"image"`
	Role          Role    `json:"role"`
	Status        Status  `json:"status"`
	EmailVerified bool    `json:"isEmailVerified"`

	// ErrorCount guards the email-verification and reset-token flows;
	// LoginErrorCount guards login. Same lockout algorithm, separate
	// ledgers.
	ErrorCount      int `json:"-"`
	LoginErrorCount int `json:"-"`

	RefreshToken           string     `json:"-"`
	ResetToken             string     `json:"-"`
	ResetTokenExpiry       *time.Time `json:"-"`
	EmailVerifyToken       string     `json:"-"`
	EmailVerifyTokenExpiry *time.Time `json:"-"`
	PasswordChangedAt      *time.Time `json:"-"`

	Ban          Ban          `json:"ban"`
	Deactivation Deactivation `json:"deActivate"`

	LastLogin *time.Time `json:"lastLogin"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Identity is the request-scoped result of session validation, threaded
// through handlers as an explicit context value.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (i Identity) Admin() bool {
	return i.Role == RoleAdmin
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type failureKind int

const (
	loginFailure failureKind = iota
	credentialFailure
)

func (a *Account) failureCount(kind failureKind) int {
	if kind == loginFailure {
		return a.LoginErrorCount
	}
	return a.ErrorCount
}

func identityOf(a Account) Identity {
	return Identity{ID: a.ID, Name: a.Name, Email: a.Email, Role: a.Role}
}
