package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/rs/zerolog"
)

type errorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
	Item    string      `json:"item,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.EmptyCart:
		return http.StatusUnprocessableEntity
	case apperr.InvalidInput, apperr.InvalidRatingScore:
		return http.StatusBadRequest
	case apperr.Unauthorized:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InsufficientStock, apperr.NotFinalized, apperr.AlreadyRated,
		apperr.InvalidTransition, apperr.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err with its kind. Errors without a kind are logged and
// reported as internal.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Kind: apperr.KindOf(err), Message: apperr.Message(err)}
	var e *apperr.Error
	if errors.As(err, &e) {
		body.Item = e.Item
	}
	code := statusOf(body.Kind)
	if code >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("kind", string(body.Kind)).Msg("request failed")
	}
	writeJSON(w, code, map[string]errorBody{"error": body})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.New(apperr.InvalidInput, "invalid json")
	}
	return nil
}
