// Package rci is the client of the remote criminal-record system (RCI): rap
// sheet requests, certificate retrieval, and certificate validation.
//
// A 200 or a 400 is a business answer and is returned as a Response. Anything
// else, including transport failures and an open circuit, is a
// remote_unavailable error that workers retry.
package rci

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gmq/internal/platform/config"
	dErrors "gmq/pkg/domain-errors"
	"gmq/pkg/platform/circuit"
)

const maxBody = 16 << 20

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gmq_rci_request_duration_seconds",
		Help:    "Latency of RCI calls by endpoint and HTTP status",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "status"})

	breakerOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gmq_rci_circuit_open",
		Help: "1 while the RCI circuit breaker is open",
	})
)

// Endpoint paths.
const (
	pathRequest  = "/v1/api/rap/request"
	pathRetrieve = "/v1/api/rap/retrieve"
	pathValidate = "/v1/api/rap/validate"
)

// RemoteError is the body of an RCI 400.
type RemoteError struct {
	Status  int    `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is a business answer from RCI.
type Response struct {
	Status int
	Body   []byte
	// Remote is set for 400 responses whose body parsed.
	Remote *RemoteError
}

// OK reports a 200.
func (r *Response) OK() bool { return r.Status == http.StatusOK }

// RapRequest identifies the citizen for a rap-sheet request.
type RapRequest struct {
	TxID           string
	FirstName      string
	MiddleName     string
	LastName       string
	MotherLastName string
	SSN            string
	License        string
	BirthDate      string // DD/MM/YYYY
}

// Certificate is the retrieve payload when no callback is used.
type Certificate struct {
	CertificateBase64 string `json:"certificate_base64"`
}

// Validation is the validate payload. Dates are epoch milliseconds.
type Validation struct {
	Name          string `json:"name"`
	GeneratedDate int64  `json:"generated_date"`
	BirthDate     int64  `json:"birth_date"`
}

type Client struct {
	baseURL     string
	user        string
	password    string
	callbackURL string
	loc         *time.Location
	http        *http.Client
	breaker     *circuit.Breaker
	tracer      trace.Tracer
	logger      *slog.Logger
}

type Option func(*Client)

// WithLogger logs every call with its transaction id and outcome. Citizen
// fields are never logged.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient replaces the transport, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithBreaker replaces the default breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

// New creates a client for cfg. Birth dates are converted at midnight in loc.
func New(cfg config.RCIConfig, loc *time.Location, opts ...Option) *Client {
	if loc == nil {
		loc = config.LoadLocation(config.DefaultTimezone)
	}
	breaker := circuit.New("rci",
		circuit.WithFailureThreshold(cfg.BreakerThreshold),
		circuit.WithCooldown(cfg.BreakerCooldown),
	)
	c := &Client{
		baseURL:     cfg.BaseURL,
		user:        cfg.User,
		password:    cfg.Password,
		callbackURL: cfg.CallbackURL,
		loc:         loc,
		http:        &http.Client{Timeout: cfg.Timeout},
		breaker:     breaker,
		tracer:      otel.Tracer("gmq/rci"),
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Location is the zone used for date conversion.
func (c *Client) Location() *time.Location { return c.loc }

// Request asks RCI to evaluate the citizen's record. The certificate is
// delivered later through the callback.
func (c *Client) Request(ctx context.Context, req RapRequest) (*Response, error) {
	birth, err := ToEpochMillis(req.BirthDate, c.loc)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("tx_id", req.TxID)
	q.Set("first_name", req.FirstName)
	if req.MiddleName != "" {
		q.Set("middle_name", req.MiddleName)
	}
	q.Set("last_name", req.LastName)
	if req.MotherLastName != "" {
		q.Set("mother_last_name", req.MotherLastName)
	}
	q.Set("ssn", req.SSN)
	q.Set("license", req.License)
	q.Set("birth_date", strconv.FormatInt(birth, 10))
	if c.callbackURL != "" {
		q.Set("callback_url", c.callbackURL)
	}
	return c.get(ctx, "request", pathRequest, q)
}

// Retrieve fetches the certificate of txID. With callback the certificate
// is posted back to the callback URL instead of returned.
func (c *Client) Retrieve(ctx context.Context, txID string, callback bool) (*Response, error) {
	q := url.Values{}
	q.Set("tx_id", txID)
	if callback && c.callbackURL != "" {
		q.Set("callback_url", c.callbackURL)
	}
	return c.get(ctx, "retrieve", pathRetrieve, q)
}

// Validate checks that txID names a certificate RCI issued.
func (c *Client) Validate(ctx context.Context, txID string) (*Response, error) {
	q := url.Values{}
	q.Set("tx_id", txID)
	return c.get(ctx, "validate", pathValidate, q)
}

func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "rci."+endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	txID := q.Get("tx_id")
	span.SetAttributes(attribute.String("gmq.tx_id", txID))
	log := c.logger.With("endpoint", endpoint, "tx_id", txID, "callback", q.Has("callback_url"))

	if !c.breaker.Allow() {
		span.SetStatus(codes.Error, "circuit open")
		log.WarnContext(ctx, "rci call skipped, circuit open")
		return nil, unavailable(endpoint, "circuit open", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "build rci request")
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Accept", "application/json")

	log.InfoContext(ctx, "rci call")
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.failure()
		elapsed := time.Since(start).Seconds()
		requestDuration.WithLabelValues(endpoint, "error").Observe(elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		log.WarnContext(ctx, "rci call failed", "duration_s", elapsed, "error", err)
		return nil, unavailable(endpoint, "transport", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	elapsed := time.Since(start).Seconds()
	requestDuration.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Observe(elapsed)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	log = log.With("remote_status", resp.StatusCode, "duration_s", elapsed)
	if err != nil {
		c.failure()
		log.WarnContext(ctx, "rci response unreadable", "error", err)
		return nil, unavailable(endpoint, "read body", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		c.success()
		log.InfoContext(ctx, "rci answered")
		return &Response{Status: resp.StatusCode, Body: body}, nil
	case http.StatusBadRequest:
		c.success()
		out := &Response{Status: resp.StatusCode, Body: body}
		var remote RemoteError
		if json.Unmarshal(body, &remote) == nil && remote.Code != 0 {
			out.Remote = &remote
			log = log.With("remote_code", remote.Code)
		}
		log.InfoContext(ctx, "rci answered")
		return out, nil
	default:
		c.failure()
		span.SetStatus(codes.Error, resp.Status)
		log.WarnContext(ctx, "rci unavailable")
		return nil, &dErrors.Error{
			Code:    dErrors.CodeRemoteUnavailable,
			AppCode: dErrors.AppRemoteUnavailable,
			Message: fmt.Sprintf("rci %s returned %d", endpoint, resp.StatusCode),
			Remote:  &dErrors.Remote{Status: resp.StatusCode, Message: string(truncate(body, 256))},
		}
	}
}

func (c *Client) failure() {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		breakerOpen.Set(1)
	}
}

func (c *Client) success() {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		breakerOpen.Set(0)
	}
}

func unavailable(endpoint, msg string, err error) error {
	return &dErrors.Error{
		Code:    dErrors.CodeRemoteUnavailable,
		AppCode: dErrors.AppRemoteUnavailable,
		Message: "rci " + endpoint + ": " + msg,
		Err:     err,
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

// DecodeCertificate parses a retrieve 200 body.
func DecodeCertificate(body []byte) (Certificate, error) {
	var cert Certificate
	if err := json.Unmarshal(body, &cert); err != nil || cert.CertificateBase64 == "" {
		return Certificate{}, &dErrors.Error{
			Code:    dErrors.CodeRemoteUnavailable,
			AppCode: dErrors.AppRemoteUnavailable,
			Message: "rci returned no certificate",
			Err:     err,
		}
	}
	return cert, nil
}

// DecodeValidation parses a validate 200 body.
func DecodeValidation(body []byte) (Validation, error) {
	var v Validation
	if err := json.Unmarshal(body, &v); err != nil || v.Name == "" || v.GeneratedDate == 0 || v.BirthDate == 0 {
		return Validation{}, &dErrors.Error{
			Code:    dErrors.CodeCorruptRecord,
			AppCode: dErrors.AppInvalidNonJSONRecord,
			Message: "rci returned an unexpected validation payload",
			Err:     err,
		}
	}
	return v, nil
}
