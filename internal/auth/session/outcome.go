package session

import "time"

// Code identifies the result of a session operation.
type Code string

const (
	CodeOK                    Code = "ok"
	CodeInvalidInput          Code = "invalid_input"
	CodeDuplicateEmail        Code = "duplicate_email"
	CodeInvalidCredentials    Code = "invalid_credentials"
	CodeEmptyToken            Code = "empty_token"
	CodeInvalidToken          Code = "invalid_token"
	CodeTokenExpiredOrRevoked Code = "token_expired_or_revoked"
	CodeNoActiveSession       Code = "no_active_session"
	CodeNoActiveSessions      Code = "no_active_sessions"
	CodeConflict              Code = "conflict"
)

// Kind is the failure taxonomy a Code belongs to.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindAuthentication
	KindConflict
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "none"
	}
}

// Kind maps c onto the failure taxonomy.
func (c Code) Kind() Kind {
	switch c {
	case CodeInvalidInput, CodeEmptyToken:
		return KindValidation
	case CodeInvalidCredentials, CodeInvalidToken, CodeTokenExpiredOrRevoked:
		return KindAuthentication
	case CodeDuplicateEmail, CodeConflict:
		return KindConflict
	case CodeNoActiveSession, CodeNoActiveSessions:
		return KindNotFound
	default:
		return KindNone
	}
}

// Caller-facing messages. Authentication failures share one message per flow.
const (
	msgRegistered         = "user registered"
	msgLoggedIn           = "login successful"
	msgRefreshed          = "token refreshed"
	msgLoggedOut          = "logged out"
	msgLoggedOutAll       = "logged out from all devices"
	msgInvalidCredentials = "invalid email or password"
	msgDuplicateEmail     = "email is already registered"
	msgEmptyToken         = "refresh token is required"
	msgInvalidToken       = "invalid refresh token"
	msgExpiredOrRevoked   = "refresh token is expired or revoked"
	msgNoActiveSession    = "no active session for this device"
	msgNoActiveSessions   = "no active sessions"
	msgConflict           = "concurrent session update, retry the request"
)

// Tokens is the token payload of a successful Login or RefreshToken.
type Tokens struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	DeviceID              string
}

// Outcome is the result of a session operation.
//
// Success is false for every business failure; Code and Message describe it.
// Tokens is set only by Login and RefreshToken. UserID is set by Register.
type Outcome struct {
	Success   bool
	Code      Code
	Message   string
	UserID    string
	Tokens    *Tokens
	Retryable bool
}

func success(msg string) Outcome {
	return Outcome{Success: true, Code: CodeOK, Message: msg}
}

func fail(code Code, msg string) Outcome {
	return Outcome{Code: code, Message: msg, Retryable: code == CodeConflict}
}
