// Package paypal is the PayPal Orders v2 gateway client.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/dmehra2102/checkout-service/internal/payment/domain"
)

const (
	tokenPath  = "/v1/oauth2/token"
	ordersPath = "/v2/checkout/orders"
	// provider error bodies are cut to this size before logging or wrapping
	maxErrBody = 4 << 10
)

type Config struct {
	APIURI       string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	// RequestsPerSecond caps outbound calls; zero disables the limit.
	RequestsPerSecond float64
	Burst             int
}

// Client is stateless: every operation takes the access token it should use
// and no token is cached between calls.
type Client struct {
	log        *slog.Logger
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	tracer     trace.Tracer
}

func New(log *slog.Logger, cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.APIURI = strings.TrimRight(cfg.APIURI, "/")

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Client{
		log:        log,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		tracer:     otel.Tracer("paypal-client"),
	}
}

func (c *Client) Name() string {
	return domain.SourcePayPal
}

// Authenticate exchanges the client credentials for a short-lived token.
func (c *Client) Authenticate(ctx context.Context) (domain.AccessToken, error) {
	form := url.Values{"grant_type": {domain.GrantTypeClientID}}
	body, err := c.do(ctx, "authenticate", http.MethodPost, tokenPath, func(req *http.Request) {
		req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.AccessToken{}, err
	}

	res := gjson.ParseBytes(body)
	tok := res.Get("access_token").String()
	if tok == "" {
		return domain.AccessToken{}, &domain.GatewayError{Op: "authenticate", StatusCode: http.StatusOK, Body: "missing access_token"}
	}
	return domain.AccessToken{
		Value:     tok,
		TokenType: res.Get("token_type").String(),
		ExpiresIn: res.Get("expires_in").Int(),
	}, nil
}

func (c *Client) CreateRemoteOrder(ctx context.Context, payload domain.CreateOrderRequest, token domain.AccessToken) (domain.RemoteOrder, error) {
	body, err := c.doJSON(ctx, "create_order", http.MethodPost, ordersPath, token, payload)
	if err != nil {
		return domain.RemoteOrder{}, err
	}
	var out domain.RemoteOrder
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.RemoteOrder{}, fmt.Errorf("decode create_order: %w", err)
	}
	out.ApproveURL = approveURL(body)
	return out, nil
}

func (c *Client) ConfirmPaymentSource(ctx context.Context, remoteOrderID string, payload domain.ConfirmPaymentSourceRequest, token domain.AccessToken) (domain.ConfirmationResult, error) {
	path := ordersPath + "/" + url.PathEscape(remoteOrderID) + "/confirm-payment-source"
	body, err := c.doJSON(ctx, "confirm_payment_source", http.MethodPost, path, token, payload)
	if err != nil {
		return domain.ConfirmationResult{}, err
	}
	var out domain.ConfirmationResult
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.ConfirmationResult{}, fmt.Errorf("decode confirm_payment_source: %w", err)
	}
	out.ApproveURL = approveURL(body)
	return out, nil
}

func (c *Client) GetRemoteOrderDetail(ctx context.Context, remoteOrderID string, token domain.AccessToken) (domain.RemoteOrderDetail, error) {
	path := ordersPath + "/" + url.PathEscape(remoteOrderID)
	body, err := c.do(ctx, "order_detail", http.MethodGet, path, bearer(token), nil)
	if err != nil {
		return domain.RemoteOrderDetail{}, err
	}
	if !gjson.ValidBytes(body) {
		return domain.RemoteOrderDetail{}, fmt.Errorf("decode order_detail: invalid json")
	}
	res := gjson.ParseBytes(body)
	return domain.RemoteOrderDetail{
		ID:     res.Get("id").String(),
		Status: res.Get("status").String(),
		Raw:    json.RawMessage(body),
	}, nil
}

func (c *Client) CaptureOrder(ctx context.Context, remoteOrderID string, token domain.AccessToken) (domain.CaptureResult, error) {
	path := ordersPath + "/" + url.PathEscape(remoteOrderID) + "/capture"
	body, err := c.doJSON(ctx, "capture_order", http.MethodPost, path, token, struct{}{})
	if err != nil {
		return domain.CaptureResult{}, err
	}
	res := gjson.ParseBytes(body)
	return domain.CaptureResult{
		ID:      res.Get("id").String(),
		Status:  res.Get("status").String(),
		PayerID: res.Get("payer.payer_id").String(),
	}, nil
}

// approveURL picks the link the payer must visit. Orders created with a
// payment source carry it as payer-action rather than approve.
func approveURL(body []byte) string {
	if u := gjson.GetBytes(body, `links.#(rel=="approve").href`).String(); u != "" {
		return u
	}
	return gjson.GetBytes(body, `links.#(rel=="payer-action").href`).String()
}

func bearer(token domain.AccessToken) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token.Value)
	}
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, token domain.AccessToken, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", op, err)
	}
	return c.do(ctx, op, method, path, func(req *http.Request) {
		bearer(token)(req)
		req.Header.Set("Content-Type", "application/json")
	}, bytes.NewReader(raw))
}

func (c *Client) do(ctx context.Context, op, method, path string, prepare func(*http.Request), body io.Reader) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "paypal."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("paypal.path", path))

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.fail(span, &domain.GatewayError{Op: op, Err: err})
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIURI+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	prepare(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(span, &domain.GatewayError{Op: op, Err: err})
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(span, &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: err})
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.log.Debug("paypal call", "op", op, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(respBody) > maxErrBody {
			respBody = respBody[:maxErrBody]
		}
		gwErr := &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
		c.log.Warn("paypal call rejected", "op", op, "status", resp.StatusCode,
			"debug_id", resp.Header.Get("Paypal-Debug-Id"), "body", gwErr.Body)
		return nil, c.fail(span, gwErr)
	}
	return respBody, nil
}

func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
