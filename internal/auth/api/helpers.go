package authapi

import (
	"net/http"

	"github.com/KhaledSayed04/Askfm-Clone/internal/auth/session"
	"github.com/KhaledSayed04/Askfm-Clone/internal/identity"
)

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

func toTokensResponse(out session.Outcome) tokensResponse {
	t := out.Tokens
	return tokensResponse{
		Message:               out.Message,
		AccessToken:           t.AccessToken,
		AccessTokenExpiresAt:  t.AccessTokenExpiresAt,
		RefreshToken:          t.RefreshToken,
		RefreshTokenExpiresAt: t.RefreshTokenExpiresAt,
		DeviceID:              t.DeviceID,
	}
}

// statusFor maps a failed Outcome onto an HTTP status.
func statusFor(code session.Code) int {
	switch code.Kind() {
	case session.KindValidation, session.KindNotFound:
		return http.StatusBadRequest
	case session.KindAuthentication:
		return http.StatusUnauthorized
	case session.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeOutcomeError(w http.ResponseWriter, out session.Outcome) {
	if out.Retryable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, statusFor(out.Code), string(out.Code), out.Message)
}

func writeServerError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "server_error", "internal error")
}
