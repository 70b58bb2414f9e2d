package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Attempt describes one delivery attempt.
type Attempt struct {
	Number     int
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Sender posts signed JSON payloads with retries.
type Sender struct {
	client     *http.Client
	secret     string
	timeout    time.Duration
	maxRetries int
	backoff    Backoff
	userAgent  string
	onAttempt  func(Attempt)
	now        func() time.Time
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithSecret enables request signing.
func WithSecret(secret string) SenderOption {
	return func(s *Sender) { s.secret = secret }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) SenderOption {
	return func(s *Sender) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTimeout bounds each attempt. Default 10s.
func WithTimeout(d time.Duration) SenderOption {
	return func(s *Sender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxRetries sets how many times a failed attempt is retried. Default 3.
func WithMaxRetries(n int) SenderOption {
	return func(s *Sender) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithBackoff sets the delay strategy between retries.
func WithBackoff(b Backoff) SenderOption {
	return func(s *Sender) {
		if b != nil {
			s.backoff = b
		}
	}
}

// WithAttemptHook is called after every attempt.
func WithAttemptHook(fn func(Attempt)) SenderOption {
	return func(s *Sender) { s.onAttempt = fn }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) SenderOption {
	return func(s *Sender) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

func NewSender(opts ...SenderOption) *Sender {
	s := &Sender{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout:    10 * time.Second,
		maxRetries: 3,
		backoff:    DefaultBackoff(),
		userAgent:  "billingcore-webhook/1.0",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send marshals data to JSON and posts it to target.
func (s *Sender) Send(ctx context.Context, target string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if err := validateTarget(target); err != nil {
		return err
	}
	if len(payload) == 0 || string(payload) == "null" {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(s.backoff.NextInterval(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		status, took, err := s.post(ctx, target, payload)
		if s.onAttempt != nil {
			s.onAttempt(Attempt{Number: attempt + 1, StatusCode: status, Duration: took, Err: err})
		}
		if err == nil {
			return nil
		}
		lastErr = err
		if permanent(status) {
			return fmt.Errorf("%w: %w", ErrPermanentFailure, err)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, s.maxRetries+1, lastErr)
}

func (s *Sender) post(ctx context.Context, target string, payload []byte) (int, time.Duration, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return 0, time.Since(start), fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	if s.secret != "" {
		sig, err := Sign(s.secret, payload, s.now())
		if err != nil {
			return 0, time.Since(start), err
		}
		sig.Apply(req.Header)
	}

	resp, err := s.client.Do(req)
	took := time.Since(start)
	if err != nil {
		return 0, took, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return resp.StatusCode, took, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.ReplaceAll(string(body), "\n", " ")
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return resp.StatusCode, took, fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, msg)
}

func validateTarget(target string) error {
	if target == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return nil
}

// permanent reports 4xx responses that will not change on retry.
func permanent(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}
