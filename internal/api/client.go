// Package api implements the resource clients for the Raharpa Shopp backend.
// Every call goes through the shared {success, data, message} envelope
// contract and resolves failures into the typed Failure value instead of
// letting raw transport errors escape to the view layer. Mutating calls
// additionally broadcast a same-named event over the real-time channel so
// other connected views refresh without a second round trip; that broadcast
// is best-effort and never blocks the response path.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"raharpa/internal/pkg/logger"
)

// Emitter is the slice of the transport client the resource clients use for
// best-effort mutation broadcasts.
type Emitter interface {
	Emit(event string, payload any)
}

// envelope is the wire-format contract shared by every backend endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// FileUpload carries an in-memory file for multipart requests.
type FileUpload struct {
	Field       string
	Name        string
	ContentType string
	Content     []byte
}

// Client is the shared base for all resource clients. It owns the HTTP
// client, the base URL, and the optional emitter for mutation broadcasts.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
	emitter Emitter
}

// NewClient creates the shared API client. The emitter may be nil, in which
// case mutation broadcasts are skipped.
func NewClient(baseURL string, l *logger.Logger, emitter Emitter) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		log:     l,
		emitter: emitter,
	}
}

// do performs one JSON request against the backend, enforces the envelope
// contract, and unmarshals the envelope's data into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Failure{Kind: KindValidation, Message: err.Error()}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return &Failure{Kind: KindNetwork, Message: err.Error()}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out)
}

// doMultipart performs a multipart/form-data request with the given fields
// and optional file attachment.
func (c *Client) doMultipart(ctx context.Context, method, path string, fields map[string]string, file *FileUpload, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return &Failure{Kind: KindValidation, Message: err.Error()}
		}
	}
	if file != nil {
		part, err := writer.CreateFormFile(file.Field, file.Name)
		if err != nil {
			return &Failure{Kind: KindValidation, Message: err.Error()}
		}
		if _, err := part.Write(file.Content); err != nil {
			return &Failure{Kind: KindValidation, Message: err.Error()}
		}
	}
	if err := writer.Close(); err != nil {
		return &Failure{Kind: KindValidation, Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return &Failure{Kind: KindNetwork, Message: err.Error()}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return c.classifyTransport(req.Context(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.classifyTransport(req.Context(), err)
	}

	var env envelope
	envErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := http.StatusText(resp.StatusCode)
		if envErr == nil && env.Message != "" {
			message = env.Message
		}
		return &Failure{Kind: KindHTTP, Status: resp.StatusCode, Message: message}
	}

	if envErr != nil {
		return &Failure{Kind: KindHTTP, Status: resp.StatusCode, Message: "malformed response envelope"}
	}

	if !env.Success {
		return &Failure{Kind: KindValidation, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &Failure{Kind: KindHTTP, Status: resp.StatusCode, Message: "malformed response data"}
		}
	}
	return nil
}

// classifyTransport turns a raw transport error into the typed failure the
// callers branch on. Deadline overruns become Timeout; everything else is a
// network failure.
func (c *Client) classifyTransport(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Failure{Kind: KindTimeout, Message: "request exceeded its time bound"}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &Failure{Kind: KindTimeout, Message: "request exceeded its time bound"}
	}
	return &Failure{Kind: KindNetwork, Message: err.Error()}
}

// broadcast emits a same-named mutation event over the real-time channel so
// other views refresh without polling. Failures here are invisible to the
// HTTP caller; the transport logs dropped emits itself.
func (c *Client) broadcast(event string, payload any) {
	if c.emitter == nil {
		return
	}
	c.emitter.Emit(event, payload)
}
