package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dmehra2102/checkout-service/internal/account/application"
	"github.com/dmehra2102/checkout-service/pkg/store"
)

type Handler struct {
	log      *slog.Logger
	accounts *application.Service
	validate *validator.Validate
}

func NewHandler(log *slog.Logger, accounts *application.Service) *Handler {
	return &Handler{
		log:      log,
		accounts: accounts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type resetRequestReq struct {
	Email string `json:"email" validate:"required,email"`
}

type resetReq struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// Routes returns the auth API for mounting under /auth.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Post("/refresh", h.refresh)
	r.Get("/email-verification", h.verifyEmail)
	r.Post("/request-reset-password", h.requestReset)
	r.Post("/password-reset", h.resetPassword)
	r.With(Authenticator(h.log, h.accounts)).Get("/me", h.me)
	return r
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req application.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "User registered successfully", "user": p})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if !h.decode(w, r, &req) {
		return
	}
	sess, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if !h.decode(w, r, &req) {
		return
	}
	issued, err := h.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"access_token": issued.Token, "exp": issued.ExpiresAt})
}

func (h *Handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	p, err := h.accounts.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) requestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequestReq
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset link has been sent to your email"})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetReq
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.accounts.ResetPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	p, err := h.accounts.Profile(r.Context(), claims.UserID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Malformed request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Request validation failed")
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status, detail := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("auth request failed", "err", err)
	} else {
		h.log.Warn("auth request rejected", "status", status, "err", err)
	}
	writeDetail(w, status, detail)
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, application.ErrInvalidCredentials):
		return http.StatusBadRequest, "Your provided credentials is wrong"
	case errors.Is(err, application.ErrInactive):
		return http.StatusBadRequest, "Your account is inactive. Please contact admin."
	case errors.Is(err, application.ErrEmailNotVerified):
		return http.StatusBadRequest, "Email had not been provided or verified yet"
	case errors.Is(err, application.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid provided token"
	case errors.Is(err, application.ErrUserNotFound):
		return http.StatusNotFound, "User is not found"
	case errors.Is(err, application.ErrEmailTaken):
		return http.StatusConflict, "Email is already registered"
	case errors.Is(err, store.ErrValidation):
		return http.StatusUnprocessableEntity, "Request validation failed"
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
