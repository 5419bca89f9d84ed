// Package gateway is the Remote Gateway client: generic list/read/create/
// update/upload request functions against the flowswitch CRUD backend, plus
// the typed wrappers the session engines call. Every call is a single
// asynchronous operation that resolves to a payload or rejects with an error
// carrying the server's message.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Reecheble2022/flowswitch-verify/internal/capture"
	"github.com/Reecheble2022/flowswitch-verify/internal/identity"
	"github.com/Reecheble2022/flowswitch-verify/internal/platform/metrics"
	"github.com/Reecheble2022/flowswitch-verify/pkg/platform/circuit"
	"github.com/Reecheble2022/flowswitch-verify/pkg/verrs"
)

// envelope is the backend's response wrapper.
type envelope struct {
	Data        json.RawMessage `json:"Data"`
	TotalPages  int             `json:"totalPages"`
	CurrentPage int             `json:"currentPage"`
	Message     string          `json:"message,omitempty"`
}

// Page reports list pagination.
type Page struct {
	TotalPages  int
	CurrentPage int
}

// UploadResult is the canonical payload of a successful file upload. For
// cash notes the backend derives serial number, denomination and currency
// from the image; those values are authoritative over any local guess.
type UploadResult struct {
	GUID         string `json:"guid,omitempty"`
	URL          string `json:"url"`
	SerialNumber string `json:"serialNumber,omitempty"`
	Denomination string `json:"denomination,omitempty"`
	Currency     string `json:"currency,omitempty"`
}

// CashNoteRecord is the wire shape of one logged cash note. PayerGUID and
// VerifierGUID must be resolved identities before Create is called.
type CashNoteRecord struct {
	SerialNumber   string `json:"serialNumber"`
	NoteValue      string `json:"noteValue"`
	NotePhoto      string `json:"notePhoto"`
	PayerEntity    string `json:"payerEntity"`
	PayerGUID      string `json:"payerGuid"`
	PayerID        string `json:"payerId"`
	VerifierEntity string `json:"verifierEntity"`
	VerifierGUID   string `json:"verifierGuid"`
	VerifierID     string `json:"verifierId"`
	Currency       string `json:"currency"`
	Amount         string `json:"amount"`
}

// LocationUpdate is the field map written to an agent record when their
// home base is verified.
type LocationUpdate struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	LocationPhoto    string  `json:"locationPhoto"`
	LocationVerified bool    `json:"locationVerified"`
}

// Client talks to the backend. Safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	cache   *LookupCache
	breaker *circuit.Breaker
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		if httpc != nil {
			c.httpc = httpc
		}
	}
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLookupCache enables Redis-backed caching of agent identity lookups.
func WithLookupCache(cache *LookupCache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithBreaker guards backend calls with a circuit breaker. While open,
// calls fail fast without touching the network.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List queries an entity collection with a filter map and decodes the Data
// sequence into out.
func (c *Client) List(ctx context.Context, entity string, filters map[string]string, out any) (Page, error) {
	body := map[string]any{}
	if len(filters) > 0 {
		body["filters"] = filters
	}
	env, err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/%s/list", c.baseURL, entity), body, "list")
	if err != nil {
		return Page{}, err
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return Page{}, verrs.Wrap(err, verrs.CodeTransport, "Unexpected response from the server.")
		}
	}
	return Page{TotalPages: env.TotalPages, CurrentPage: env.CurrentPage}, nil
}

// Read fetches a single record by guid.
func (c *Client) Read(ctx context.Context, entity, guid string, out any) error {
	env, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%s/%s", c.baseURL, entity, guid), nil, "read")
	if err != nil {
		return err
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return verrs.Wrap(err, verrs.CodeTransport, "Unexpected response from the server.")
		}
	}
	return nil
}

// Create registers a new record.
func (c *Client) Create(ctx context.Context, entity string, fields any, out any) error {
	env, err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/%s/register", c.baseURL, entity), fields, "create")
	if err != nil {
		return err
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return verrs.Wrap(err, verrs.CodeTransport, "Unexpected response from the server.")
		}
	}
	return nil
}

// UpdateFields patches selected fields on a record.
func (c *Client) UpdateFields(ctx context.Context, entity, guid string, fields any) error {
	_, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("%s/%s/%s", c.baseURL, entity, guid), fields, "update")
	return err
}

// UploadFile posts a binary payload as multipart form data and returns the
// canonical upload result.
func (c *Client) UploadFile(ctx context.Context, entity string, frame capture.Frame, filename string, extra map[string]string) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, verrs.Wrap(err, verrs.CodeInternal, "Failed to prepare the photo for upload.")
	}
	if _, err := part.Write(frame.Bytes); err != nil {
		return nil, verrs.Wrap(err, verrs.CodeInternal, "Failed to prepare the photo for upload.")
	}
	for k, v := range extra {
		if err := mw.WriteField(k, v); err != nil {
			return nil, verrs.Wrap(err, verrs.CodeInternal, "Failed to prepare the photo for upload.")
		}
	}
	if err := mw.Close(); err != nil {
		return nil, verrs.Wrap(err, verrs.CodeInternal, "Failed to prepare the photo for upload.")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/%s", c.baseURL, entity), &buf)
	if err != nil {
		return nil, verrs.Wrap(err, verrs.CodeInternal, "Failed to prepare the photo for upload.")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	env, err := c.send(req, "upload")
	if err != nil {
		return nil, err
	}
	var result UploadResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		return nil, verrs.Wrap(err, verrs.CodeTransport, "Unexpected response from the server.")
	}
	return &result, nil
}

// AgentsByCode looks agents up by their USSD code. Results pass through the
// lookup cache when one is configured.
func (c *Client) AgentsByCode(ctx context.Context, code string) ([]identity.AgentProfile, error) {
	if c.cache != nil {
		if agents, ok := c.cache.GetAgents(ctx, code); ok {
			return agents, nil
		}
	}

	var agents []identity.AgentProfile
	if _, err := c.List(ctx, "agent", map[string]string{"ussdCode": code}, &agents); err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.PutAgents(ctx, code, agents)
	}
	return agents, nil
}

// UploadCashNote uploads one captured note image. The isCashNote flag makes
// the backend run its canonical serial/denomination derivation.
func (c *Client) UploadCashNote(ctx context.Context, frame capture.Frame) (*UploadResult, error) {
	return c.UploadFile(ctx, "fileupload", frame, "cashnote.jpg", map[string]string{"isCashNote": "true"})
}

// UploadLocationPhoto uploads a home-base proof photo.
func (c *Client) UploadLocationPhoto(ctx context.Context, frame capture.Frame, filename string) (*UploadResult, error) {
	if filename == "" {
		filename = "selfie.jpg"
	}
	return c.UploadFile(ctx, "fileupload", frame, filename, nil)
}

// CreateCashNoteVerification logs one verified cash note to the ledger.
func (c *Client) CreateCashNoteVerification(ctx context.Context, rec CashNoteRecord) error {
	return c.Create(ctx, "cashnoteverification", rec, nil)
}

// VerifyAgentLocation writes the home-base proof onto the agent record.
func (c *Client) VerifyAgentLocation(ctx context.Context, agentGUID string, up LocationUpdate) error {
	return c.UpdateFields(ctx, "agent", agentGUID, up)
}

func (c *Client) do(ctx context.Context, method, url string, body any, operation string) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, verrs.Wrap(err, verrs.CodeInternal, "Failed to encode the request.")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, verrs.Wrap(err, verrs.CodeInternal, "Failed to build the request.")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	return c.send(req, operation)
}

func (c *Client) send(req *http.Request, operation string) (*envelope, error) {
	if c.breaker != nil && c.breaker.IsOpen() {
		return nil, verrs.New(verrs.CodeTransport, "The server is temporarily unavailable. Please try again shortly.")
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if c.metrics != nil {
		c.metrics.GatewayCallMs.WithLabelValues(operation).
			Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}
	if err != nil {
		c.recordOutcome(req.Context(), false)
		if c.logger != nil {
			c.logger.WarnContext(req.Context(), "gateway call failed",
				"operation", operation,
				"error", err.Error(),
			)
		}
		return nil, verrs.Wrap(err, verrs.CodeTransport, "Could not reach the server. Please try again.")
	}
	defer resp.Body.Close()
	c.recordOutcome(req.Context(), resp.StatusCode < 500)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, verrs.Wrap(err, verrs.CodeTransport, "Could not read the server response.")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env envelope
		message := "The server rejected the request. Please try again."
		if json.Unmarshal(raw, &env) == nil && env.Message != "" {
			message = env.Message
		}
		return nil, verrs.Wrap(
			fmt.Errorf("gateway %s: status %d", operation, resp.StatusCode),
			verrs.CodeTransport, message,
		)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, verrs.Wrap(err, verrs.CodeTransport, "Unexpected response from the server.")
	}
	return &env, nil
}

func (c *Client) recordOutcome(ctx context.Context, ok bool) {
	if c.breaker == nil {
		return
	}
	if ok {
		if _, change := c.breaker.RecordSuccess(); change.Closed && c.logger != nil {
			c.logger.InfoContext(ctx, "gateway circuit closed", "breaker", c.breaker.Name())
		}
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened && c.logger != nil {
		c.logger.WarnContext(ctx, "gateway circuit opened", "breaker", c.breaker.Name())
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
