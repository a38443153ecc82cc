// Package hcaptcha verifies registration captcha tokens.
package hcaptcha

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
)

const siteverifyURL = "https://hcaptcha.com/siteverify"

var (
	ErrNoToken       = errors.New("hcaptcha: empty token")
	ErrNotConfigured = errors.New("hcaptcha: secret not set")
)

// RejectedError is returned when hCaptcha answered but did not accept the token.
type RejectedError struct {
	Codes []string
}

func (e *RejectedError) Error() string {
	if len(e.Codes) == 0 {
		return "hcaptcha: token rejected"
	}
	return "hcaptcha: token rejected: " + strings.Join(e.Codes, ", ")
}

type Verifier struct {
	Secret     string
	VerifyURL  string
	HTTPClient *http.Client
}

func NewVerifierFromEnv() *Verifier {
	return &Verifier{
		Secret:     strings.TrimSpace(env.GetEnv("HCAPTCHA_SECRET", "")),
		VerifyURL:  siteverifyURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether registration must pass a captcha.
func (v *Verifier) Enabled() bool {
	return v != nil && v.Secret != ""
}

// Verify returns nil only when hCaptcha accepts the token. remoteIP is
// optional.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	switch {
	case token == "":
		return ErrNoToken
	case !v.Enabled():
		return ErrNotConfigured
	}

	form := url.Values{"secret": {v.Secret}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("hcaptcha: siteverify: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("hcaptcha: read response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("hcaptcha: unexpected response (HTTP %d)", resp.StatusCode)
	}

	result := gjson.ParseBytes(body)
	if result.Get("success").Bool() {
		return nil
	}
	rejected := &RejectedError{}
	for _, code := range result.Get("error-codes").Array() {
		rejected.Codes = append(rejected.Codes, code.String())
	}
	return rejected
}
