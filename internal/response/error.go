package response

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/centraflow/banksync-backend/internal/errs"
	"github.com/centraflow/banksync-backend/pkg/logger"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *responseHandler) WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
	}); err != nil {
		// Use context logger if encoding fails
		log := logger.FromContext(r.Context())
		log.Error("failed to encode error response", "error", err, "status", status, "code", code)
	}
}

func (h *responseHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	switch e := err.(type) {
	case *errs.NotFoundError:
		log.Warn("resource not found", "error", e.Message)
		h.WriteError(w, r, http.StatusNotFound, "not_found", e.Message)

	case *errs.AlreadyExistsError:
		log.Warn("resource already exists", "error", e.Message)
		h.WriteError(w, r, http.StatusConflict, "already_exists", e.Message)

	case *errs.ValidationError:
		log.Warn("validation failed", "error", e.Message)
		h.WriteError(w, r, http.StatusBadRequest, "invalid_input", e.Message)

	case *errs.AuthExchangeError:
		log.Warn("oauth code exchange rejected",
			"provider", e.Provider,
			"error", e.Message)
		h.WriteError(w, r, http.StatusBadRequest, "auth_exchange_failed",
			"The authorization could not be completed; please re-link the connection")

	case *errs.TokenRefreshUnavailableError:
		log.Warn("token refresh unavailable",
			"provider", e.Provider,
			"error", e.Message)
		h.WriteError(w, r, http.StatusConflict, "reauthorization_required",
			"The connection needs to be re-authorized")

	case *errs.ProviderUnavailableError:
		log.Warn("provider unavailable",
			"provider", e.Provider,
			"error", e.Message)
		h.WriteError(w, r, http.StatusServiceUnavailable, "provider_unavailable",
			"The banking provider is temporarily unavailable")

	case *errs.ProviderDataError:
		// Raw payload goes to the log for diagnosis, never to the client.
		log.Error("provider data error",
			"provider", e.Provider,
			"error", e.Message,
			"raw", e.Raw)
		h.WriteError(w, r, http.StatusBadGateway, "provider_data_error",
			"The banking provider returned an unexpected response")

	case *errs.DatabaseError:
		log.Error("database error",
			"operation", e.Operation,
			"error", e.Message)
		h.WriteError(w, r, http.StatusInternalServerError, "internal_error",
			"An error occurred")

	default:
		log.Error("unexpected error",
			"error", err,
			"type", fmt.Sprintf("%T", err))
		h.WriteError(w, r, http.StatusInternalServerError, "internal_error",
			"An unexpected error occurred")
	}
}
