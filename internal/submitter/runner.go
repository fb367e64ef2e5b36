package submitter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/okian/resumerank/internal/domain/model"
	"github.com/okian/resumerank/internal/domain/ranking"
	"github.com/okian/resumerank/pkg/logger"
)

// ErrServiceOffline means the service is up but cannot analyze right now.
var ErrServiceOffline = errors.New("analysis service is offline")

// Result is what a finished run produced.
type Result struct {
	Batch      model.BatchView
	Candidates []ranking.Candidate
	Duration   time.Duration
}

// Run submits the configured files, waits for the batch and prints a report to out.
func Run(ctx context.Context, cfg *Config, out io.Writer, l logger.Logger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	client := NewClient(cfg.BaseURL, cfg.Token, cfg.Timeout)

	l.Info(ctx, "starting batch submission",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("files", len(cfg.Files)),
		logger.String("jobTitle", cfg.JobTitle))

	// Step 1: Check the analysis service is reachable through the API.
	ok, err := client.Healthy(ctx)
	if err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}
	if !ok {
		return nil, ErrServiceOffline
	}

	// Step 2: Read the files.
	files, err := readFiles(cfg.Files)
	if err != nil {
		return nil, err
	}

	// Step 3: Submit.
	acc, err := client.Submit(ctx, cfg.JobTitle, cfg.JobDescription, files, cfg.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("batch submission failed: %w", err)
	}
	l.Info(ctx, "batch accepted", logger.String("batchID", acc.BatchID))

	// Step 4: Wait for the batch.
	view, err := waitBatch(ctx, client, acc.BatchID, cfg, l)
	if err != nil {
		return nil, err
	}

	// Step 5: Fetch the ranking.
	candidates, err := client.Resumes(ctx, cfg.Band)
	if err != nil {
		return nil, fmt.Errorf("ranking retrieval failed: %w", err)
	}

	res := &Result{Batch: view, Candidates: candidates, Duration: time.Since(start)}
	if err := writeReport(out, res); err != nil {
		l.Warn(ctx, "failed to write report", logger.Error(err))
	}
	return res, nil
}

func waitBatch(ctx context.Context, client *Client, id string, cfg *Config, l logger.Logger) (model.BatchView, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Wait)
	defer cancel()

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	var narrative string
	for {
		view, err := client.Batch(ctx, id)
		if err != nil {
			return model.BatchView{}, fmt.Errorf("poll batch %s: %w", id, err)
		}
		if view.Narrative != narrative {
			narrative = view.Narrative
			l.Info(ctx, narrative, logger.String("status", string(view.Status)))
		}
		if view.Status.Done() {
			return view, nil
		}
		select {
		case <-ctx.Done():
			return model.BatchView{}, fmt.Errorf("batch %s still %s: %w", id, view.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

func readFiles(paths []string) ([]model.File, error) {
	files := make([]model.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, model.File{
			Name:        filepath.Base(p),
			ContentType: contentType(p),
			Data:        data,
		})
	}
	return files, nil
}

func contentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func writeReport(out io.Writer, res *Result) error {
	fmt.Fprintf(out, "Batch %s %s in %s\n", res.Batch.ID, res.Batch.Status, res.Duration.Round(time.Millisecond))
	if res.Batch.Narrative != "" {
		fmt.Fprintln(out, res.Batch.Narrative)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSTATE\tDETAIL")
	for _, f := range res.Batch.Files {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.FileName, f.State, f.Reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tCANDIDATE\tFILE\tSTATUS")
	for _, c := range res.Candidates {
		rank := "-"
		if c.Rank > 0 {
			rank = fmt.Sprint(c.Rank)
		}
		name := "-"
		if c.CandidateName != nil {
			name = *c.CandidateName
		}
		fmt.Fprintf(tw, "%s\t%.0f\t%s\t%s\t%s\n", rank, c.MatchScore, name, c.FileName, c.Status)
	}
	return tw.Flush()
}
