package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"transcriber/internal/logging"
)

const (
	headerRequestID = "X-Request-ID"
	headerClientID  = "X-Client-ID"
	defaultTimeout  = 30 * time.Second
	maxErrorBody    = 4 << 10
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource supplies the bearer credentials for authenticated calls.
type TokenSource interface {
	Credentials() (Credentials, bool)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() (Credentials, bool)

// Credentials implements TokenSource.
func (f TokenFunc) Credentials() (Credentials, bool) { return f() }

// Client talks to the transcription backend.
type Client struct {
	base     *url.URL
	http     HTTPDoer
	upload   HTTPDoer
	tokens   TokenSource
	clientID string
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP implementation for every call, uploads
// included.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
			c.upload = doer
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client. Uploads are not
// affected; see WithUploadTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http = &http.Client{Timeout: timeout}
		}
	}
}

// WithUploadTimeout bounds POST /transcribe, which only answers once the
// backend has finished transcribing. Zero leaves the upload bounded by the
// request context alone.
func WithUploadTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout < 0 {
			return
		}
		c.upload = &http.Client{Timeout: timeout}
	}
}

// WithTokenSource attaches the credentials used for authenticated endpoints.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithClientID sets the install identifier sent as X-Client-ID.
func WithClientID(id string) Option {
	return func(c *Client) {
		c.clientID = strings.TrimSpace(id)
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a client for the backend origin.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("backend url is required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("backend url %q has no host", baseURL)
	}
	base.Path = strings.TrimRight(base.Path, "/")
	base.RawQuery = ""
	base.Fragment = ""

	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: defaultTimeout},
		upload: &http.Client{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = logging.NewComponentLogger(c.logger, "api")
	return c, nil
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Login exchanges a username and password for credentials.
func (c *Client) Login(ctx context.Context, username, password string) (Credentials, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	req, err := c.newRequest(ctx, http.MethodPost, "/token", strings.NewReader(form.Encode()), false)
	if err != nil {
		return Credentials{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var creds Credentials
	if err := c.doJSON(req, &creds); err != nil {
		return Credentials{}, err
	}
	if strings.TrimSpace(creds.AccessToken) == "" {
		return Credentials{}, fmt.Errorf("login: %w: empty access_token", ErrMalformedResponse)
	}
	return creds, nil
}

// Status reports whether a transcription is running.
func (c *Client) Status(ctx context.Context) (InProgress, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/status", nil, true)
	if err != nil {
		return InProgress{}, err
	}
	var payload StatusResponse
	if err := c.doJSON(req, &payload); err != nil {
		return InProgress{}, err
	}
	if payload.TranscriptionInProgress == nil {
		return InProgress{}, fmt.Errorf("status: %w: missing transcription_in_progress", ErrMalformedResponse)
	}
	return *payload.TranscriptionInProgress, nil
}

// Transcriptions lists every transcription recorded by the backend.
func (c *Client) Transcriptions(ctx context.Context) ([]Transcription, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/transcriptions", nil, true)
	if err != nil {
		return nil, err
	}
	var records []Transcription
	if err := c.doJSON(req, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []Transcription{}
	}
	return records, nil
}

// Transcription fetches one record. A missing id matches ErrNotFound.
func (c *Client) Transcription(ctx context.Context, id string) (Transcription, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/transcriptions/"+url.PathEscape(id), nil, true)
	if err != nil {
		return Transcription{}, err
	}
	var record Transcription
	if err := c.doJSON(req, &record); err != nil {
		return Transcription{}, err
	}
	return record, nil
}

// DeleteTranscription removes a record and its audio on the backend.
func (c *Client) DeleteTranscription(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/transcriptions/"+url.PathEscape(id), nil, true)
	if err != nil {
		return err
	}
	return c.doJSON(req, nil)
}

// DownloadAudio streams the stored audio for id into w.
func (c *Client) DownloadAudio(ctx context.Context, id string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/audio/"+url.PathEscape(id), nil, true)
	if err != nil {
		return 0, err
	}
	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download audio %s: %w", id, err)
	}
	return n, nil
}

// UploadRequest describes a media file to transcribe.
type UploadRequest struct {
	FileName string
	Body     io.Reader
	// Size is the body length in bytes, used only for progress reporting.
	Size int64
	// Progress, when set, is called as body bytes are sent.
	Progress func(sent, total int64)
}

// Upload sends the file to POST /transcribe and returns the created record.
// The request blocks until the backend finishes transcribing, so it runs on
// the upload HTTP client rather than the request-timeout one.
func (c *Client) Upload(ctx context.Context, upload UploadRequest) (Transcription, error) {
	if upload.Body == nil {
		return Transcription{}, fmt.Errorf("upload: body is required")
	}
	name := strings.TrimSpace(upload.FileName)
	if name == "" {
		name = "upload"
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("file", name)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		src := upload.Body
		if upload.Progress != nil {
			src = &progressReader{r: src, total: upload.Size, report: upload.Progress}
		}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/transcribe", pr, true)
	if err != nil {
		pr.Close()
		return Transcription{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var record Transcription
	err = c.decode(c.upload, req, &record)
	pr.Close()
	if err != nil {
		return Transcription{}, err
	}
	return record, nil
}

// ServerStatus reports whether the model server is reachable by the backend.
func (c *Client) ServerStatus(ctx context.Context) (ServerState, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/server_status", nil, true)
	if err != nil {
		return "", err
	}
	var payload serverStatusResponse
	if err := c.doJSON(req, &payload); err != nil {
		return "", err
	}
	return ServerState(strings.ToLower(strings.TrimSpace(payload.Status))), nil
}

// WakeServer asks the backend to start the model server.
func (c *Client) WakeServer(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/live_server_status", nil, true)
	if err != nil {
		return err
	}
	var payload serverStatusResponse
	if err := c.doJSON(req, &payload); err != nil {
		return err
	}
	if !strings.EqualFold(payload.Status, "ok") {
		return fmt.Errorf("wake server: backend reported %q", payload.Status)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, auth bool) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	requestID, ok := logging.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
		ctx = logging.WithRequestID(ctx, requestID)
	}
	endpoint := *c.base
	endpoint.Path = c.base.Path + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, requestID)
	if c.clientID != "" {
		req.Header.Set(headerClientID, c.clientID)
	}
	if auth && c.tokens != nil {
		if creds, ok := c.tokens.Credentials(); ok && creds.AccessToken != "" {
			req.Header.Set("Authorization", creds.AuthorizationHeader())
		}
	}
	return req, nil
}

// do sends req and converts non-2xx responses into *Error. The caller closes
// the body of a successful response.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	return c.send(c.http, req)
}

func (c *Client) send(doer HTTPDoer, req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	started := time.Now()
	resp, err := doer.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "request failed",
			logging.String("method", req.Method),
			logging.String("path", req.URL.Path),
			logging.Error(err),
		)
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	c.logger.DebugContext(ctx, "request complete",
		logging.String("method", req.Method),
		logging.String("path", req.URL.Path),
		logging.Int("status_code", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
	)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, newError(req.Method, req.URL.Path, resp.StatusCode, body)
	}
	return resp, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	return c.decode(c.http, req, out)
}

func (c *Client) decode(doer HTTPDoer, req *http.Request, out any) error {
	resp, err := c.send(doer, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: %w: %v", req.Method, req.URL.Path, ErrMalformedResponse, err)
	}
	return nil
}

type progressReader struct {
	r      io.Reader
	sent   int64
	total  int64
	report func(sent, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.report(p.sent, p.total)
	}
	return n, err
}
