// Package main provides a CI-friendly smoke test for the Askfm auth lifecycle.
//
// It validates:
//   - register + duplicate email rejection
//   - login and the authenticated /me lookup
//   - refresh rotation
//   - logout-all and rejection of every revoked token
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxReadBytes = 1 << 20 // 1MiB

type smokeClient struct {
	base    string
	http    *http.Client
	timeout time.Duration
	verbose bool
}

type tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	DeviceID     string `json:"deviceId"`
}

type apiError struct {
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func main() {
	var (
		baseURL = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		pass    = flag.String("password", "smoke-pass-1", "Password for the throwaway account")
		device  = flag.String("device", "smoke-device", "Device id to log in with")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}

	c := &smokeClient{
		base:    strings.TrimRight(*baseURL, "/"),
		http:    &http.Client{},
		timeout: *timeout,
		verbose: *verbose,
	}
	root := context.Background()

	email := fmt.Sprintf("smoke-%s@example.com", uuid.NewString())

	var reg struct {
		UserID string `json:"userId"`
	}
	c.mustCall(root, "/register", "", map[string]string{"name": "Smoke", "email": email, "password": *pass}, http.StatusOK, &reg)
	if reg.UserID == "" {
		fatalf("register: missing userId")
	}
	c.mustFail(root, "/register", "", map[string]string{"name": "Smoke", "email": strings.ToUpper(email), "password": *pass}, http.StatusConflict, "duplicate_email")

	var first tokens
	c.mustCall(root, "/login", "", map[string]string{"email": email, "password": *pass, "deviceId": *device}, http.StatusOK, &first)
	if first.DeviceID != *device {
		fatalf("login: device id mismatch: got=%q want=%q", first.DeviceID, *device)
	}

	var me struct {
		ID string `json:"id"`
	}
	c.mustGet(root, "/me", first.AccessToken, &me)
	if me.ID != reg.UserID {
		fatalf("me: id mismatch: got=%q want=%q", me.ID, reg.UserID)
	}

	var second tokens
	c.mustCall(root, "/refresh-token", "", map[string]string{"refreshToken": first.RefreshToken}, http.StatusOK, &second)
	if second.RefreshToken == first.RefreshToken {
		fatalf("refresh: token was not rotated")
	}

	c.mustCall(root, "/logout-all", second.AccessToken, nil, http.StatusOK, nil)
	c.mustFail(root, "/refresh-token", "", map[string]string{"refreshToken": second.RefreshToken}, http.StatusUnauthorized, "token_expired_or_revoked")
	c.mustFail(root, "/logout-all", second.AccessToken, nil, http.StatusBadRequest, "no_active_sessions")

	fmt.Printf("OK: user_id=%s device_id=%s\n", reg.UserID, first.DeviceID)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func (c *smokeClient) do(parent context.Context, method, path, bearer string, body any) (int, []byte) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(mustJSON(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		fatalf("%s %s: build request: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if err != nil {
		fatalf("%s %s: read body: %v", method, path, err)
	}
	if c.verbose {
		fmt.Printf("%s %s -> %d %s\n", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return resp.StatusCode, raw
}

func (c *smokeClient) mustCall(parent context.Context, path, bearer string, body any, wantStatus int, out any) {
	status, raw := c.do(parent, http.MethodPost, path, bearer, body)
	if status != wantStatus {
		fatalf("POST %s: status=%d want=%d body=%s", path, status, wantStatus, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			fatalf("POST %s: decode: %v", path, err)
		}
	}
}

func (c *smokeClient) mustGet(parent context.Context, path, bearer string, out any) {
	status, raw := c.do(parent, http.MethodGet, path, bearer, nil)
	if status != http.StatusOK {
		fatalf("GET %s: status=%d body=%s", path, status, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		fatalf("GET %s: decode: %v", path, err)
	}
}

func (c *smokeClient) mustFail(parent context.Context, path, bearer string, body any, wantStatus int, wantCode string) {
	status, raw := c.do(parent, http.MethodPost, path, bearer, body)
	if status != wantStatus {
		fatalf("POST %s: status=%d want=%d body=%s", path, status, wantStatus, raw)
	}
	var e apiError
	if err := json.Unmarshal(raw, &e); err != nil {
		fatalf("POST %s: decode error body: %v", path, err)
	}
	if e.Error.Code != wantCode {
		fatalf("POST %s: code=%q want=%q", path, e.Error.Code, wantCode)
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		fatalf("marshal: %v", err)
	}
	return b
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
