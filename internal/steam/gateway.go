package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kula-app/steam-app-info/internal/appid"
)

const (
	// logoffTimeout bounds the best-effort logoff issued by Close
	logoffTimeout = 5 * time.Second

	// errorBodyLimit caps how much of an error response is kept for the message
	errorBodyLimit = 4 << 10
)

// GatewayDialer opens sessions against a PICS gateway speaking JSON over HTTP.
//
//	POST   {base}/v1/sessions/anonymous  -> {"session": "<token>"}
//	GET    {base}/v1/info?apps=1,2,3     -> {"status": "success", "data": {...}}
//	DELETE {base}/v1/sessions/<token>
type GatewayDialer struct {
	baseURL *url.URL
	client  *http.Client
	logger  *slog.Logger
}

// NewGatewayDialer creates a dialer for the gateway at baseURL. A nil client
// means http.DefaultClient and a nil logger means slog.Default().
func NewGatewayDialer(baseURL string, client *http.Client, logger *slog.Logger) (*GatewayDialer, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid gateway URL %q: scheme and host are required", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GatewayDialer{
		baseURL: u,
		client:  client,
		logger:  logger,
	}, nil
}

type sessionResponse struct {
	Session string `json:"session"`
}

type infoResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// OpenAnonymousSession implements Dialer
func (d *GatewayDialer) OpenAnonymousSession(ctx context.Context) (Session, error) {
	endpoint := d.baseURL.JoinPath("v1", "sessions", "anonymous")
	d.logger.Debug("opening anonymous session", "endpoint", endpoint.Redacted())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), nil)
	if err != nil {
		return nil, &AuthenticationError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &AuthenticationError{Err: &NetworkError{Op: "login", Err: err}}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &AuthenticationError{Err: statusError("login", resp)}
	}

	var body sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &AuthenticationError{Err: &ProtocolError{Op: "login", Message: fmt.Sprintf("malformed response: %v", err)}}
	}
	if body.Session == "" {
		return nil, &AuthenticationError{Err: &ProtocolError{Op: "login", Message: "no session token in response"}}
	}

	d.logger.Debug("anonymous session opened")
	return &gatewaySession{dialer: d, token: body.Session}, nil
}

type gatewaySession struct {
	dialer *GatewayDialer
	token  string

	closeOnce sync.Once
	closeErr  error
}

// QueryProductInfo implements Session
func (s *gatewaySession) QueryProductInfo(ctx context.Context, apps []uint32) (ProductInfo, error) {
	d := s.dialer
	endpoint := d.baseURL.JoinPath("v1", "info")
	endpoint.RawQuery = url.Values{"apps": {appid.Join(apps)}}.Encode()

	d.logger.Debug("requesting product info", "app_count", len(apps))
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return ProductInfo{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := d.client.Do(req)
	if err != nil {
		return ProductInfo{}, &NetworkError{Op: "product info", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ProductInfo{}, statusError("product info", resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ProductInfo{}, &NetworkError{Op: "product info", Err: err}
	}

	var body infoResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return ProductInfo{}, &ProtocolError{Op: "product info", Message: fmt.Sprintf("malformed response: %v", err)}
	}
	if body.Status != "success" {
		msg := body.Message
		if msg == "" {
			msg = fmt.Sprintf("status %q", body.Status)
		}
		return ProductInfo{}, &ProtocolError{Op: "product info", Message: msg}
	}
	if len(body.Data) == 0 || string(body.Data) == "null" {
		return ProductInfo{}, &ProtocolError{Op: "product info", Message: "response has no data"}
	}

	info, err := NewProductInfo(body.Data)
	if err != nil {
		return ProductInfo{}, &ProtocolError{Op: "product info", Message: err.Error()}
	}

	d.logger.Debug("product info received",
		"app_count", len(apps),
		"bytes", len(body.Data),
		"duration", time.Since(startTime))
	return info, nil
}

// Close logs the session off. It is safe to call more than once.
func (s *gatewaySession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.logoff()
	})
	return s.closeErr
}

func (s *gatewaySession) logoff() error {
	d := s.dialer
	ctx, cancel := context.WithTimeout(context.Background(), logoffTimeout)
	defer cancel()

	endpoint := d.baseURL.JoinPath("v1", "sessions", s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := d.client.Do(req)
	if err != nil {
		return &NetworkError{Op: "logoff", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	// A session the gateway already forgot is as good as closed
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ProtocolError{Op: "logoff", StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}

// statusError builds a ProtocolError from a non-2xx response, preferring the
// gateway's own message when the body carries one.
func statusError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))

	msg := http.StatusText(resp.StatusCode)
	var body errorResponse
	switch text := strings.TrimSpace(string(raw)); {
	case json.Unmarshal(raw, &body) == nil:
		if body.Message != "" {
			msg = body.Message
		}
	case text != "":
		msg = text
	}
	return &ProtocolError{Op: op, StatusCode: resp.StatusCode, Message: msg}
}
