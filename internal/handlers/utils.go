package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/lumenbank/apiserver/internal/services"
	"github.com/lumenbank/apiserver/types"
)

const (
	defaultPage     = 1
	defaultLimit    = 20
	maxLimit        = 100
	maxRequestBytes = 1 << 20

	msgNotAuthenticated = "Not authenticated"
	msgInvalidRequest   = "Invalid request"
	msgInternal         = "Internal server error"
)

type contextKey string

const contextUserKey contextKey = "user"

func withUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

// userFromContext returns the user placed there by RequireAuth.
func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok && user.ID != ""
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: message})
}

// errorStatuses maps service errors to a status and the message shown to
// the user. Errors not listed here are internal.
var errorStatuses = []struct {
	err     error
	status  int
	message string
}{
	{services.ErrMissingFields, http.StatusBadRequest, "All fields are required"},
	{services.ErrPasswordMismatch, http.StatusBadRequest, "Passwords do not match"},
	{services.ErrEmailTaken, http.StatusConflict, "Email already exists"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{services.ErrUserNotFound, http.StatusNotFound, "User not found"},

	{services.ErrInvalidAccountType, http.StatusBadRequest, "Please select a valid account type"},
	{services.ErrNegativeDeposit, http.StatusBadRequest, "Initial deposit must be a positive number"},
	{services.ErrAccountNumberExhausted, http.StatusInternalServerError, msgInternal},

	{services.ErrAccountNotFound, http.StatusNotFound, "Account not found"},
	{services.ErrInvalidAmount, http.StatusBadRequest, "Amount must be positive"},
	{services.ErrInvalidTransactionType, http.StatusBadRequest, "Invalid transaction type"},
	{services.ErrInsufficientFunds, http.StatusUnprocessableEntity, "Insufficient funds"},
	{services.ErrInvalidIdempotencyKey, http.StatusBadRequest, "Idempotency key is too long"},

	{services.ErrNotificationInvalid, http.StatusBadRequest, "Title and message are required"},
	{services.ErrNotificationType, http.StatusBadRequest, "Invalid notification type or priority"},
	{services.ErrNotificationNotFound, http.StatusNotFound, "Notification not found"},

	{services.ErrBillSplitNotFound, http.StatusNotFound, "Bill split not found"},
	{services.ErrInvestmentNotFound, http.StatusNotFound, "Investment not found"},

	{services.ErrStorageDisabled, http.StatusServiceUnavailable, "Statement archive is not configured"},
	{services.ErrStatementNotFound, http.StatusNotFound, "Statement not found"},
}

// writeServiceError writes the user-facing form of err and logs anything
// unexpected.
func writeServiceError(w http.ResponseWriter, logger log.Logger, err error) {
	var minErr *services.MinimumDepositError
	if errors.As(err, &minErr) {
		writeError(w, http.StatusBadRequest, minErr.Error())
		return
	}
	var vErr *services.ValidationError
	if errors.As(err, &vErr) && (errors.Is(err, services.ErrBillSplitInvalid) || errors.Is(err, services.ErrInvestmentInvalid)) {
		writeError(w, http.StatusBadRequest, capitalize(vErr.Detail))
		return
	}
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			if e.status >= http.StatusInternalServerError {
				logger.Log("msg", "request failed", "err", err)
			}
			writeError(w, e.status, e.message)
			return
		}
	}
	logger.Log("msg", "request failed", "err", err)
	writeError(w, http.StatusInternalServerError, msgInternal)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if page-1 > math.MaxInt/limit {
		return 0, 0, 0, errors.New("invalid page")
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

// Healthz reports that the process is serving.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
