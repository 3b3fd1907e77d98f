// Package client is a typed Go client for the Storylinez platform API.
//
// A *Client is constructed once and passed explicitly to every call site; it
// is safe for concurrent use. Resource operations validate their inputs
// locally and never issue a request when validation fails.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/storylinez/storylinez-go/pkg/apierr"
)

// DefaultBaseURL is the production endpoint.
const DefaultBaseURL = "https://api.storylinez.com"

// Config holds everything needed to build a Client.
type Config struct {
	APIKey    string
	APISecret string
	OrgID     string
	BaseURL   string
	Timeout   time.Duration
	// RateLimit caps outgoing requests per second. Zero disables throttling.
	RateLimit  float64
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client executes authenticated requests against the platform.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
	defaultOrg atomic.Pointer[string]
	limiter    *rate.Limiter
	validate   *validator.Validate
	log        *slog.Logger
}

// New creates a client. Missing BaseURL and Timeout fall back to the
// production endpoint and 120 seconds.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		validate:   sharedValidator,
		log:        logger.With("component", "storylinez-api"),
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	c.SetDefaultOrg(cfg.OrgID)
	return c
}

// IsConfigured returns true if credentials are present.
func (c *Client) IsConfigured() bool {
	return c.apiKey != "" && c.apiSecret != ""
}

// BaseURL returns the endpoint requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetDefaultOrg switches the organization used when a call does not name one.
// Requests already in flight keep the organization they started with.
func (c *Client) SetDefaultOrg(orgID string) {
	id := strings.TrimSpace(orgID)
	c.defaultOrg.Store(&id)
}

// DefaultOrg returns the current default organization, possibly empty.
func (c *Client) DefaultOrg() string {
	if p := c.defaultOrg.Load(); p != nil {
		return *p
	}
	return ""
}

// orgID resolves an explicit organization against the default.
func (c *Client) orgID(op, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if org := c.DefaultOrg(); org != "" {
		return org, nil
	}
	return "", apierr.Validation(op, "organization id is required: pass one or set a default organization")
}

// Do sends one request and decodes the JSON response into out (which may be nil).
// It never retries.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	op := method + " " + path

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return apierr.FromTransport(op, ctxErr)
			}
			return apierr.Wrap(apierr.KindTimeout, op, err)
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return apierr.Wrap(apierr.KindValidation, op, fmt.Errorf("failed to marshal request: %w", err))
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return apierr.Wrap(apierr.KindValidation, op, fmt.Errorf("failed to create request: %w", err))
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-API-Secret", c.apiSecret)
	req.Header.Set("X-Request-ID", requestID)
	if org := c.DefaultOrg(); org != "" {
		req.Header.Set("X-Organization-ID", org)
	}

	c.log.DebugContext(ctx, "→ request", "method", method, "url", endpoint, "request_id", requestID)
	started := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.DebugContext(ctx, "✗ request failed", "method", method, "url", endpoint, "request_id", requestID, "error", err)
		return apierr.FromTransport(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierr.FromTransport(op, fmt.Errorf("failed to read response: %w", err))
	}

	c.log.DebugContext(ctx, "← response",
		"status", resp.StatusCode,
		"method", method,
		"url", endpoint,
		"request_id", requestID,
		"latency", time.Since(started),
		"bytes", len(respBody),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apierr.Error{
			Kind:       apierr.FromStatus(resp.StatusCode),
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    remoteMessage(respBody),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		c.log.WarnContext(ctx, "unmarshal error", "method", method, "url", endpoint, "error", err)
		return apierr.Wrap(apierr.KindServer, op, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, query, body, out)
}

func (c *Client) put(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, query, body, out)
}

func (c *Client) del(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.Do(ctx, http.MethodDelete, path, query, body, out)
}

// check runs struct tag validation and converts failures into a validation error.
func (c *Client) check(op string, req any) error {
	return validateWith(c.validate, op, req)
}

var sharedValidator = newValidator()

// ValidateStruct checks the validate tags of v using json field names in messages.
func ValidateStruct(op string, v any) error {
	return validateWith(sharedValidator, op, v)
}

func validateWith(validate *validator.Validate, op string, req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, describeFieldError(fe))
		}
		return apierr.Validation(op, "%s", strings.Join(msgs, "; "))
	}
	return apierr.Wrap(apierr.KindValidation, op, err)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_without":
		return fmt.Sprintf("%s is required when %s is not set", field, fe.Param())
	case "http_url":
		return fmt.Sprintf("%s must be an http(s) URL, got %q", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "gte", "min":
		return fmt.Sprintf("%s must be >= %s, got %v", field, fe.Param(), deref(fe.Value()))
	case "lte", "max":
		return fmt.Sprintf("%s must be <= %s, got %v", field, fe.Param(), deref(fe.Value()))
	default:
		return fmt.Sprintf("%s failed %q validation", field, fe.Tag())
	}
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	if rv.Kind() == reflect.Slice {
		return rv.Len()
	}
	return v
}

// requireOne fails unless at least one of the ids is set.
func requireOne(op string, names [2]string, a, b string) error {
	if a == "" && b == "" {
		return apierr.Validation(op, "either %s or %s must be provided", names[0], names[1])
	}
	return nil
}

// Ref identifies a generated resource either by its own id or through its project.
type Ref struct {
	ID        string
	ProjectID string
}

func (r Ref) check(op, idName string) error {
	return requireOne(op, [2]string{idName, "project_id"}, r.ID, r.ProjectID)
}

func (r Ref) query(op, idName string) (url.Values, error) {
	if err := r.check(op, idName); err != nil {
		return nil, err
	}
	q := url.Values{}
	if r.ID != "" {
		q.Set(idName, r.ID)
	}
	if r.ProjectID != "" {
		q.Set("project_id", r.ProjectID)
	}
	return q, nil
}

func (r Ref) body(op, idName string) (map[string]string, error) {
	if err := r.check(op, idName); err != nil {
		return nil, err
	}
	body := map[string]string{}
	if r.ID != "" {
		body[idName] = r.ID
	}
	if r.ProjectID != "" {
		body["project_id"] = r.ProjectID
	}
	return body, nil
}

func remoteMessage(body []byte) string {
	var payload struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
		Detail  any    `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, v := range []any{payload.Error, payload.Message, payload.Detail} {
			switch m := v.(type) {
			case string:
				if m != "" {
					return m
				}
			case map[string]any:
				if s, ok := m["message"].(string); ok && s != "" {
					return s
				}
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512] + "…"
	}
	return msg
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func boolParam(b bool) string {
	return strconv.FormatBool(b)
}

// Float returns a pointer to v, for optional request fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for optional request fields.
func Int(v int) *int { return &v }

// Bool returns a pointer to v, for optional request fields.
func Bool(v bool) *bool { return &v }
