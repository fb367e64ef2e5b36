package analysis_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/resumerank/internal/adapters/analysis"
	"github.com/okian/resumerank/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const okBody = `{
  "candidate_name": "Ada Lovelace",
  "candidate_email": null,
  "skills_extracted": ["Go", "Kubernetes", "SQL"],
  "skills_matched": ["Go", "Kubernetes"],
  "skills_missing": ["3+ years"],
  "match_score": 82,
  "experience_years": 2.5,
  "education_level": "Bachelor",
  "summary": "Strong backend profile.",
  "raw_text": "..."
}`

type captured struct {
	contentType string
	fileName    string
	fileType    string
	fileData    []byte
	title       string
	description string
}

func analyzeServer(status int, body string, got *captured) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze-file" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if got != nil {
			got.contentType = r.Header.Get("Content-Type")
			if err := r.ParseMultipartForm(1 << 20); err == nil {
				f, hdr, err := r.FormFile("file")
				if err == nil {
					got.fileName = hdr.Filename
					got.fileType = hdr.Header.Get("Content-Type")
					got.fileData, _ = io.ReadAll(f)
					_ = f.Close()
				}
				got.title = r.FormValue("job_title")
				got.description = r.FormValue("job_description")
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()
	file := model.File{Name: "resume.pdf", ContentType: "application/pdf", Data: []byte{0x25, 0x50, 0x44, 0x46, 0x00, 0xff, 0x0a}}

	Convey("Given a healthy analysis service", t, func() {
		got := &captured{}
		srv := analyzeServer(http.StatusOK, okBody, got)
		defer srv.Close()
		c := analysis.New(srv.URL + "/")

		Convey("When a file is analyzed", func() {
			res, err := c.Analyze(ctx, file, "Backend Engineer", "Go, Kubernetes, 3+ years")

			Convey("Then the result is decoded without changes", func() {
				So(err, ShouldBeNil)
				So(res.MatchScore, ShouldEqual, 82)
				So(res.ExperienceYears, ShouldEqual, 2.5)
				So(*res.CandidateName, ShouldEqual, "Ada Lovelace")
				So(res.CandidateEmail, ShouldBeNil)
				So(res.SkillsMatched, ShouldResemble, []string{"Go", "Kubernetes"})
				So(res.SkillsMissing, ShouldResemble, []string{"3+ years"})
			})

			Convey("Then the request is one multipart form with raw bytes", func() {
				So(got.contentType, ShouldStartWith, "multipart/form-data")
				So(got.fileName, ShouldEqual, "resume.pdf")
				So(got.fileType, ShouldEqual, "application/pdf")
				So(got.fileData, ShouldResemble, file.Data)
				So(got.title, ShouldEqual, "Backend Engineer")
				So(got.description, ShouldEqual, "Go, Kubernetes, 3+ years")
			})
		})
	})

	Convey("Given a service that rejects the file", t, func() {
		Convey("When it answers 422 with a detail", func() {
			srv := analyzeServer(http.StatusUnprocessableEntity, `{"detail":"Could not extract text from file"}`, nil)
			defer srv.Close()
			_, err := analysis.New(srv.URL).Analyze(ctx, file, "t", "d")

			Convey("Then the detail becomes the diagnostic", func() {
				So(errors.Is(err, analysis.ErrStatus), ShouldBeTrue)
				var se *analysis.StatusError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(se.Detail, ShouldEqual, "Could not extract text from file")
			})
		})

		Convey("When it answers 500 with a plain body", func() {
			srv := analyzeServer(http.StatusInternalServerError, "  model crashed \n", nil)
			defer srv.Close()
			_, err := analysis.New(srv.URL).Analyze(ctx, file, "t", "d")

			Convey("Then the trimmed body is used", func() {
				var se *analysis.StatusError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Detail, ShouldEqual, "model crashed")
			})
		})

		Convey("When it answers 503 with no body", func() {
			srv := analyzeServer(http.StatusServiceUnavailable, "", nil)
			defer srv.Close()
			_, err := analysis.New(srv.URL).Analyze(ctx, file, "t", "d")

			Convey("Then the status text is used", func() {
				var se *analysis.StatusError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Detail, ShouldEqual, "Service Unavailable")
			})
		})
	})

	Convey("Given a service that answers 200 with an incomplete result", t, func() {
		srv := analyzeServer(http.StatusOK, `{"candidate_name":"x","skills_extracted":[]}`, nil)
		defer srv.Close()
		_, err := analysis.New(srv.URL).Analyze(ctx, file, "t", "d")

		Convey("Then it is an error, not a defaulted success", func() {
			So(errors.Is(err, analysis.ErrMalformedResult), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "match_score")
		})
	})

	Convey("Given a service that answers 200 with invalid JSON", t, func() {
		srv := analyzeServer(http.StatusOK, `<html>`, nil)
		defer srv.Close()
		_, err := analysis.New(srv.URL).Analyze(ctx, file, "t", "d")

		So(errors.Is(err, analysis.ErrMalformedResult), ShouldBeTrue)
	})

	Convey("Given a service that is too slow", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()
		_, err := analysis.New(srv.URL, analysis.WithAnalyzeTimeout(50*time.Millisecond)).Analyze(ctx, file, "t", "d")

		Convey("Then the call fails as a transport error", func() {
			So(errors.Is(err, analysis.ErrTransport), ShouldBeTrue)
		})
	})
}

func TestProbe(t *testing.T) {
	ctx := context.Background()

	Convey("Given a healthy service", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				_, _ = io.WriteString(w, `{"status":"ok"}`)
				return
			}
			http.NotFound(w, r)
		}))
		defer srv.Close()

		So(analysis.New(srv.URL).Probe(ctx), ShouldEqual, model.Alive)
	})

	Convey("Given a service returning 500 on health", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		So(analysis.New(srv.URL).Probe(ctx), ShouldEqual, model.Unreachable)
	})

	Convey("Given an endpoint nobody listens on", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		c := analysis.New(url)

		Convey("Then every probe is Unreachable", func() {
			for i := 0; i < 3; i++ {
				So(c.Probe(ctx), ShouldEqual, model.Unreachable)
			}
		})
	})

	Convey("Given a hanging health endpoint", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()
		c := analysis.New(srv.URL, analysis.WithProbeTimeout(30*time.Millisecond))

		Convey("Then the probe gives up within its timeout", func() {
			start := time.Now()
			So(c.Probe(ctx), ShouldEqual, model.Unreachable)
			So(time.Since(start), ShouldBeLessThan, time.Second)
		})
	})

	Convey("Given a probe timeout above the cap", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()
		c := analysis.New(srv.URL, analysis.WithProbeTimeout(time.Minute))

		Convey("Then it is clamped to three seconds", func() {
			start := time.Now()
			So(c.Probe(ctx), ShouldEqual, model.Unreachable)
			So(time.Since(start), ShouldBeLessThan, analysis.MaxProbeTimeout+time.Second)
		})
	})
}
