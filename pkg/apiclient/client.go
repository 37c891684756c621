package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/enrollment-console/pkg/errors"
)

// CredentialSource yields the bearer credential attached to authenticated calls.
type CredentialSource interface {
	Credential(ctx context.Context) (string, bool)
}

// Observer receives timing for every upstream call.
type Observer interface {
	ObserveUpstreamCall(method, route string, status int, duration time.Duration)
}

// Options configures the upstream client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// ResilientEndpoints lists collection paths whose GET failures degrade to
	// an empty collection instead of an error.
	ResilientEndpoints []string
	// ListEndpoints lists path prefixes known to return collections.
	ListEndpoints []string
	Credentials   CredentialSource
	Observer      Observer
	Logger        *zap.Logger
	HTTPClient    *http.Client
}

// Request describes one upstream call.
type Request struct {
	Method   string
	Endpoint string
	Body     interface{}
	// Public skips the bearer credential.
	Public bool
}

// Failure is attached as Details to request errors raised from structured payloads.
type Failure struct {
	Status  int         `json:"status"`
	Code    string      `json:"code,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// Client wraps outbound calls to the registry REST backend.
type Client struct {
	http      *resty.Client
	resilient map[string]struct{}
	lists     []string
	creds     CredentialSource
	observer  Observer
	logger    *zap.Logger
}

// DefaultListEndpoints are the collection roots exposed by the registry backend.
var DefaultListEndpoints = []string{"/estudiantes", "/materias", "/inscripciones"}

// New constructs a Client.
func New(opts Options) *Client {
	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}

	resilient := make(map[string]struct{}, len(opts.ResilientEndpoints))
	for _, endpoint := range opts.ResilientEndpoints {
		resilient[normalizePath(endpoint)] = struct{}{}
	}
	lists := opts.ListEndpoints
	if len(lists) == 0 {
		lists = DefaultListEndpoints
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		http:      rc,
		resilient: resilient,
		lists:     lists,
		creds:     opts.Credentials,
		observer:  opts.Observer,
		logger:    logger,
	}
}

// Call performs the request and decodes a successful JSON body into out.
//
// Empty successful bodies yield an empty collection for list endpoints (when
// out points at a slice) and leave out untouched otherwise. Failures on a
// resilient endpoint yield an empty collection too.
func (c *Client) Call(ctx context.Context, req Request, out interface{}) error {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	r := c.http.R().SetContext(ctx)
	if !req.Public && c.creds != nil {
		if token, ok := c.creds.Credential(ctx); ok && token != "" {
			r.SetAuthToken(token)
		}
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	start := time.Now()
	resp, err := r.Execute(method, req.Endpoint)
	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}
	if c.observer != nil {
		c.observer.ObserveUpstreamCall(method, routeLabel(req.Endpoint), status, time.Since(start))
	}
	if err != nil {
		c.logger.Warn("upstream call failed", zap.String("method", method), zap.String("endpoint", req.Endpoint), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrServer.Code, appErrors.ErrServer.Status, "backend unreachable")
	}

	ok := status >= 200 && status < 300
	degradable := method == http.MethodGet && c.isResilient(req.Endpoint)
	body := bytes.TrimSpace(resp.Body())
	c.logger.Debug("upstream call", zap.String("method", method), zap.String("endpoint", req.Endpoint), zap.Int("status", status), zap.Int("bytes", len(body)))

	if len(body) == 0 {
		if ok {
			if c.isList(req.Endpoint) {
				setEmptySlice(out)
			}
			return nil
		}
		if degradable {
			c.logger.Warn("empty error response on resilient endpoint, returning empty collection", zap.String("endpoint", req.Endpoint), zap.Int("status", status))
			setEmptySlice(out)
			return nil
		}
		return appErrors.WithDetails(appErrors.ErrServer, fmt.Sprintf("Error %d: empty response from server", status), Failure{Status: status})
	}

	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return &appErrors.Error{
			Code:    appErrors.ErrMalformedResponse.Code,
			Status:  appErrors.ErrMalformedResponse.Status,
			Message: "error processing response: " + string(body),
			Details: map[string]interface{}{"status": status, "raw": string(body)},
			Err:     err,
		}
	}

	if !ok {
		if degradable {
			c.logger.Warn("error response on resilient endpoint, returning empty collection", zap.String("endpoint", req.Endpoint), zap.Int("status", status), zap.Any("payload", payload))
			setEmptySlice(out)
			return nil
		}
		return requestError(status, payload)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &appErrors.Error{
			Code:    appErrors.ErrMalformedResponse.Code,
			Status:  appErrors.ErrMalformedResponse.Status,
			Message: "unexpected response shape from " + req.Endpoint,
			Details: map[string]interface{}{"status": status, "raw": string(body)},
			Err:     err,
		}
	}
	return nil
}

// Get issues an authenticated GET.
func (c *Client) Get(ctx context.Context, endpoint string, out interface{}) error {
	return c.Call(ctx, Request{Method: http.MethodGet, Endpoint: endpoint}, out)
}

// Post issues an authenticated POST.
func (c *Client) Post(ctx context.Context, endpoint string, body, out interface{}) error {
	return c.Call(ctx, Request{Method: http.MethodPost, Endpoint: endpoint, Body: body}, out)
}

// Put issues an authenticated PUT.
func (c *Client) Put(ctx context.Context, endpoint string, body, out interface{}) error {
	return c.Call(ctx, Request{Method: http.MethodPut, Endpoint: endpoint, Body: body}, out)
}

// Delete issues an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, endpoint string) error {
	return c.Call(ctx, Request{Method: http.MethodDelete, Endpoint: endpoint}, nil)
}

func (c *Client) isResilient(endpoint string) bool {
	_, ok := c.resilient[normalizePath(endpoint)]
	return ok
}

func (c *Client) isList(endpoint string) bool {
	path := normalizePath(endpoint)
	for _, prefix := range c.lists {
		p := normalizePath(prefix)
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// requestError builds the most specific message the payload offers:
// detail > message > error > generic status text.
func requestError(status int, payload interface{}) *appErrors.Error {
	message := fmt.Sprintf("Error %d", status)
	code := ""
	if fields, ok := payload.(map[string]interface{}); ok {
		if m := firstString(fields, "error"); m != "" {
			message = m
		}
		if m := firstString(fields, "mensaje", "message"); m != "" {
			message = m
		}
		if m := firstString(fields, "detalles", "detail"); m != "" {
			message = m
		}
		code = firstString(fields, "code", "codigo")
	}

	httpStatus := appErrors.ErrRequest.Status
	if status >= 400 && status < 500 {
		httpStatus = status
	}
	return &appErrors.Error{
		Code:    appErrors.ErrRequest.Code,
		Status:  httpStatus,
		Message: message,
		Details: Failure{Status: status, Code: code, Payload: payload},
	}
}

func firstString(fields map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := fields[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func setEmptySlice(out interface{}) {
	if out == nil {
		return
	}
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return
	}
	elem := v.Elem()
	if elem.Kind() == reflect.Slice && elem.CanSet() {
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
	}
}

func normalizePath(endpoint string) string {
	if i := strings.IndexAny(endpoint, "?#"); i >= 0 {
		endpoint = endpoint[:i]
	}
	endpoint = strings.TrimRight(endpoint, "/")
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return endpoint
}

var numericSegment = regexp.MustCompile(`/\d+(/|$)`)

// routeLabel collapses numeric ids so metrics labels stay bounded.
func routeLabel(endpoint string) string {
	path := normalizePath(endpoint)
	for numericSegment.MatchString(path) {
		path = numericSegment.ReplaceAllString(path, "/:id$1")
	}
	return path
}
