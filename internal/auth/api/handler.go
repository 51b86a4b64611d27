package authapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/KhaledSayed04/Askfm-Clone/internal/auth/session"
	"github.com/KhaledSayed04/Askfm-Clone/internal/identity"
)

// ThrottleObserver is notified when a request is rejected by the login limiter.
type ThrottleObserver interface {
	ObserveThrottled(route string)
}

// Handler wires HTTP auth endpoints to the identity store and session service.
type Handler struct {
	log *slog.Logger
	cfg Config

	sessions *session.Service
	users    identity.Store

	limiter   LoginLimiter
	throttled ThrottleObserver
	now       func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithLoginLimiter overrides the default in-memory login limiter.
func WithLoginLimiter(l LoginLimiter) HandlerOption {
	return func(h *Handler) {
		if h == nil || l == nil {
			return
		}
		h.limiter = l
	}
}

// WithThrottleObserver reports throttled requests (metrics).
func WithThrottleObserver(o ThrottleObserver) HandlerOption {
	return func(h *Handler) {
		if h == nil || o == nil {
			return
		}
		h.throttled = o
	}
}

// WithNow overrides the clock used for token verification and throttling.
func WithNow(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if h == nil || now == nil {
			return
		}
		h.now = now
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, sessions *session.Service, users identity.Store, opts ...HandlerOption) (*Handler, error) {
	if sessions == nil {
		return nil, errors.New("auth: nil session service")
	}
	if users == nil {
		return nil, errors.New("auth: nil identity store")
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		sessions: sessions,
		users:    users,
		limiter:  NewMemoryLimiter(cfg.LoginIPMax, cfg.LoginIPWindow),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/register", h.handleRegister)
	mux.HandleFunc("/login", h.handleLogin)
	mux.HandleFunc("/refresh-token", h.handleRefresh)
	mux.HandleFunc("/logout", h.handleLogout)
	mux.HandleFunc("/logout-all", h.handleLogoutAll)
	mux.HandleFunc("/me", h.handleMe)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	out, err := h.sessions.Register(r.Context(), session.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServerError(w)
		return
	}
	if !out.Success {
		writeOutcomeError(w, out)
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{Message: out.Message, UserID: out.UserID})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	ctx := r.Context()

	// IP-based throttling before any credential work.
	if ip := clientIP(r, h.cfg.TrustProxy); ip != nil {
		allowed, retryAfter, err := h.limiter.Allow(ctx, "login:"+ip.String(), h.now().UTC())
		if err != nil {
			h.log.Error("auth.login.throttle_ip.fail", "err", err)
			writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
			return
		}
		if !allowed {
			h.log.Warn("auth.login.throttled", "ip", ip.String())
			if h.throttled != nil {
				h.throttled.ObserveThrottled("/login")
			}
			writeRateLimited(w, retryAfter)
			return
		}
	}

	out, err := h.sessions.Login(ctx, session.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		DeviceID: req.DeviceID,
	})
	if err != nil {
		writeServerError(w)
		return
	}
	if !out.Success {
		writeOutcomeError(w, out)
		return
	}

	writeJSON(w, http.StatusOK, toTokensResponse(out))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeDecodeError(w, err)
			return
		}
	}

	out, err := h.sessions.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		writeServerError(w)
		return
	}
	if !out.Success {
		writeOutcomeError(w, out)
		return
	}

	writeJSON(w, http.StatusOK, toTokensResponse(out))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req logoutRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	out, err := h.sessions.Logout(r.Context(), claims.UserID(), req.DeviceID)
	if err != nil {
		writeServerError(w)
		return
	}
	if !out.Success {
		writeOutcomeError(w, out)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: out.Message})
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	out, err := h.sessions.LogoutAll(r.Context(), claims.UserID())
	if err != nil {
		writeServerError(w)
		return
	}
	if !out.Success {
		writeOutcomeError(w, out)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: out.Message})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	u, err := h.users.FindByID(ctx, claims.UserID())
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "not_found", "user not found")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// ---- helpers ----

// requireAuth verifies the bearer access token. Access tokens are stateless:
// revocation takes effect when they expire.
func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (session.AccessClaims, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return session.AccessClaims{}, false
	}
	claims, err := h.sessions.Signer().VerifyAccessToken(token, h.now().UTC())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return session.AccessClaims{}, false
	}
	return claims, true
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for _, p := range parts {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
