package account

import (
	"net/http"
	"unicode"

	"ecom-server/internal/apperror"
	"ecom-server/internal/httpjson"
)

// Handler exposes the auth endpoints. Session state travels exclusively
// in cookies; responses carry the account summary when one is opened.
type Handler struct {
	svc     *Service
	cookies *CookieBaker
	respond *httpjson.Responder
}

func NewHandler(svc *Service, cookies *CookieBaker, respond *httpjson.Responder) *Handler {
	return &Handler{svc: svc, cookies: cookies, respond: respond}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=5"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
	Secret   string `json:"secret" validate:"omitempty"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyEmailRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
	Token  string `json:"token" validate:"required,min=10"`
}

type forgetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type forgetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Token    string `json:"token" validate:"required,min=10"`
	Password string `json:"password" validate:"required,min=8"`
}

type resetPasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

type deactivateRequest struct {
	Reason string `json:"reason" validate:"omitempty,min=5"`
}

func userSummary(acc Account) map[string]any {
	return map[string]any{
		"id":    acc.ID,
		"name":  acc.Name,
		"email": acc.Email,
		"role":  acc.Role,
	}
}

// passwordStrong requires at least one letter and one digit, letters and
// digits only.
func passwordStrong(password string) bool {
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			return false
		}
	}
	return hasLetter && hasDigit
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.respond.Err(w, err)
		return
	}
	if !passwordStrong(req.Password) {
		h.respond.Err(w, apperror.New("Password must contain only letters and numbers, with at least one of each", http.StatusBadRequest))
		return
	}

	err := h.svc.Register(r.Context(), RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Secret:   req.Secret,
	})
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	h.respond.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Registered successfully. Please verify your email.",
	})
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.respond.Err(w, err)
		return
	}

	acc, pair, err := h.svc.VerifyEmail(r.Context(), req.UserID, req.Token)
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	h.cookies.SetAuth(w, pair)
	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Email verified successfully",
		"user":    userSummary(acc),
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.respond.Err(w, err)
		return
	}

	acc, pair, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	h.cookies.SetAuth(w, pair)
	h.respond.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Logged in successfully",
		"user":    userSummary(acc),
	})
}

// Logout invalidates the stored refresh token and clears both cookies.
// Cookies are cleared even when invalidation fails so a broken session
// cannot strand the client.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(RefreshTokenCookie); err == nil && cookie.Value != "" {
		if err := h.svc.Logout(r.Context(), cookie.Value); err != nil && !apperror.Is(err) {
			h.respond.Err(w, err)
			return
		}
	}

	h.cookies.Clear(w)
	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully. See you soon.",
	})
}

func (h *Handler) Forget(w http.ResponseWriter, r *http.Request) {
	var req forgetRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.respond.Err(w, err)
		return
	}

	if err := h.svc.SendPasswordReset(r.Context(), req.Email); err != nil {
		h.respond.Err(w, err)
		return
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Reset email sent!",
	})
}

// ForgetPassword consumes the mailed reset token.
func (h *Handler) ForgetPassword(w http.ResponseWriter, r *http.Request) {
	var req forgetPasswordRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.respond.Err(w, err)
		return
	}
	if !passwordStrong(req.Password) {
		h.respond.Err(w, apperror.New("Password must contain only letters and numbers, with at least one of each", http.StatusBadRequest))
		return
	}

	acc, err := h.svc.ResetWithToken(r.Context(), req.Email, req.Token, req.Password)
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Password has been changed successfully",
		"user":    userSummary(acc),
	})
}

// ResetPassword is the authenticated change: requires the old password.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := FromContext(r)
	if !ok {
		h.respond.Fail(w, http.StatusUnauthorized, "Authentication failed. Please log in again.")
		return
	}

	var req resetPasswordRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.respond.Err(w, err)
		return
	}
	if !passwordStrong(req.NewPassword) {
		h.respond.Err(w, apperror.New("Password must contain only letters and numbers, with at least one of each", http.StatusBadRequest))
		return
	}

	if err := h.svc.ChangePassword(r.Context(), identity.ID, req.OldPassword, req.NewPassword); err != nil {
		h.respond.Err(w, err)
		return
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Password updated successfully",
	})
}

// VerifyAuth reports the session's identity; the middleware has already
// rotated tokens if needed.
func (h *Handler) VerifyAuth(w http.ResponseWriter, r *http.Request) {
	identity, ok := FromContext(r)
	if !ok {
		h.respond.Fail(w, http.StatusUnauthorized, "Authentication failed. Please log in again.")
		return
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    identity,
	})
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	identity, ok := FromContext(r)
	if !ok {
		h.respond.Fail(w, http.StatusUnauthorized, "Authentication failed. Please log in again.")
		return
	}

	var req deactivateRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.respond.Err(w, err)
		return
	}

	if err := h.svc.Deactivate(r.Context(), identity.ID, req.Reason); err != nil {
		h.respond.Err(w, err)
		return
	}

	h.cookies.Clear(w)
	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Account deactivated",
	})
}
