// Package analysis is the HTTP client of the remote resume analysis service.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/okian/resumerank/internal/domain/model"
	"github.com/okian/resumerank/pkg/logger"
	"github.com/okian/resumerank/pkg/metrics"
)

// Default client configuration constants.
const (
	DefaultBaseURL        = "http://localhost:8000"
	DefaultAnalyzeTimeout = 120 * time.Second
	MaxProbeTimeout       = 3 * time.Second
	maxDetailBytes        = 512
	maxResponseBytes      = 8 << 20
)

// Client talks to the analysis service.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	analyzeTimeout time.Duration
	probeTimeout   time.Duration
	logger         logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithAnalyzeTimeout bounds a single analyze call.
func WithAnalyzeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.analyzeTimeout = d
		}
	}
}

// WithProbeTimeout bounds a health probe. Values above MaxProbeTimeout are clamped.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			return
		}
		c.probeTimeout = min(d, MaxProbeTimeout)
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{},
		analyzeTimeout: DefaultAnalyzeTimeout,
		probeTimeout:   MaxProbeTimeout,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Probe calls GET /health. Any failure, including a timeout, is Unreachable.
func (c *Client) Probe(ctx context.Context) model.Liveness {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return model.Unreachable
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug(ctx, "health probe failed", logger.Error(err))
		return model.Unreachable
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDetailBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.Unreachable
	}
	return model.Alive
}

// Analyze sends the file bytes unchanged together with the job context.
func (c *Client) Analyze(ctx context.Context, f model.File, jobTitle, jobDescription string) (*model.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.analyzeTimeout)
	defer cancel()

	body, contentType, err := encodeForm(f, jobTitle, jobDescription)
	if err != nil {
		return nil, fmt.Errorf("%w: encode form: %w", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze-file", body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordErrorByComponent("analysis", "transport")
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.RecordErrorByComponent("analysis", "transport")
		return nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordErrorByComponent("analysis", "status")
		serr := &StatusError{Code: resp.StatusCode, Detail: diagnostic(resp, raw)}
		c.logger.Warn(ctx, "analysis rejected", logger.String("file", f.Name),
			logger.Int("status", resp.StatusCode), logger.String("detail", serr.Detail))
		return nil, serr
	}

	res, err := decodeResult(raw)
	if err != nil {
		metrics.RecordErrorByComponent("analysis", "malformed")
		return nil, err
	}
	c.logger.Debug(ctx, "analysis finished", logger.String("file", f.Name),
		logger.Float64("match_score", res.MatchScore), logger.Duration("took", time.Since(start)))
	return res, nil
}

func encodeForm(f model.File, jobTitle, jobDescription string) (io.Reader, string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(f.Name)))
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, "", err
	}

	if err := w.WriteField("job_description", jobDescription); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("job_title", jobTitle); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &b, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

// wireResult mirrors the service's JSON. Pointers and nil slices tell absent fields apart.
type wireResult struct {
	CandidateName   *string  `json:"candidate_name"`
	CandidateEmail  *string  `json:"candidate_email"`
	SkillsExtracted []string `json:"skills_extracted"`
	SkillsMatched   []string `json:"skills_matched"`
	SkillsMissing   []string `json:"skills_missing"`
	MatchScore      *float64 `json:"match_score"`
	ExperienceYears *float64 `json:"experience_years"`
	EducationLevel  *string  `json:"education_level"`
	Summary         *string  `json:"summary"`
	RawText         *string  `json:"raw_text"`
}

func decodeResult(raw []byte) (*model.AnalysisResult, error) {
	var w wireResult
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResult, err)
	}

	var missing []string
	if w.MatchScore == nil {
		missing = append(missing, "match_score")
	}
	if w.ExperienceYears == nil {
		missing = append(missing, "experience_years")
	}
	if w.SkillsExtracted == nil {
		missing = append(missing, "skills_extracted")
	}
	if w.SkillsMatched == nil {
		missing = append(missing, "skills_matched")
	}
	if w.SkillsMissing == nil {
		missing = append(missing, "skills_missing")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedResult, strings.Join(missing, ", "))
	}

	return &model.AnalysisResult{
		CandidateName:   w.CandidateName,
		CandidateEmail:  w.CandidateEmail,
		SkillsExtracted: w.SkillsExtracted,
		SkillsMatched:   w.SkillsMatched,
		SkillsMissing:   w.SkillsMissing,
		MatchScore:      *w.MatchScore,
		ExperienceYears: *w.ExperienceYears,
		EducationLevel:  w.EducationLevel,
		Summary:         w.Summary,
		RawText:         w.RawText,
	}, nil
}

// diagnostic picks the service's "detail" field, then the trimmed body, then the status text.
func diagnostic(resp *http.Response, raw []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(raw, &payload) == nil && len(payload.Detail) > 0 {
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil && s != "" {
			return truncate(s)
		}
		if string(payload.Detail) != "null" {
			return truncate(string(payload.Detail))
		}
	}
	if body := strings.TrimSpace(string(raw)); body != "" {
		return truncate(body)
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}

func truncate(s string) string {
	if len(s) <= maxDetailBytes {
		return s
	}
	return s[:maxDetailBytes] + "..."
}
