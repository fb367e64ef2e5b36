package submitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/okian/resumerank/internal/domain/model"
	"github.com/okian/resumerank/internal/domain/ranking"
)

const maxErrorBody = 4 << 10

// APIError is a non-2xx answer of the service.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error %d", e.Status)
	}
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// Accepted is the answer to a batch submission.
type Accepted struct {
	BatchID string            `json:"batch_id"`
	Status  model.BatchStatus `json:"status"`
}

// Client talks to the batch API with a bearer token.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// NewClient creates a client with a per-request timeout.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Healthy reports whether /readyz answers 200, meaning the analysis service is online.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/readyz", http.NoBody)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK, nil
}

// Submit uploads files as one batch.
func (c *Client) Submit(ctx context.Context, title, description string, files []model.File, idempotencyKey string) (Accepted, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.Name))
		h.Set("Content-Type", f.ContentType)
		w, err := mw.CreatePart(h)
		if err != nil {
			return Accepted{}, err
		}
		if _, err := w.Write(f.Data); err != nil {
			return Accepted{}, err
		}
	}
	if err := mw.WriteField("job_title", title); err != nil {
		return Accepted{}, err
	}
	if err := mw.WriteField("job_description", description); err != nil {
		return Accepted{}, err
	}
	if err := mw.Close(); err != nil {
		return Accepted{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/batches", body)
	if err != nil {
		return Accepted{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	var out Accepted
	return out, c.do(req, &out)
}

// Batch polls one batch.
func (c *Client) Batch(ctx context.Context, id string) (model.BatchView, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/batches/"+url.PathEscape(id), nil)
	if err != nil {
		return model.BatchView{}, err
	}
	var out model.BatchView
	return out, c.do(req, &out)
}

// Resumes lists the caller's ranked resumes, optionally restricted to a band.
func (c *Client) Resumes(ctx context.Context, band string) ([]ranking.Candidate, error) {
	path := "/api/resumes"
	if band != "" {
		path += "?band=" + url.QueryEscape(band)
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Candidates []ranking.Candidate `json:"candidates"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Candidates, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}
