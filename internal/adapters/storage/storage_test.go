package storage_test

import (
	"context"
	"errors"
	"mime"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/okian/resumerank/internal/adapters/storage"
	"github.com/okian/resumerank/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var _ storage.Gateway = (*storage.Memory)(nil)
var _ storage.Gateway = (*storage.Minio)(nil)

func TestMemory(t *testing.T) {
	ctx := context.Background()

	Convey("Given an in-memory gateway", t, func() {
		m := storage.NewMemory()
		f := model.File{Name: "cv.pdf", ContentType: "application/pdf", Data: []byte{1, 2, 3}}

		Convey("When a file is stored", func() {
			ref, err := m.Put(ctx, "owner/job/1_cv.pdf", f)

			Convey("Then it reads back byte for byte", func() {
				So(err, ShouldBeNil)
				So(ref, ShouldEqual, "owner/job/1_cv.pdf")
				got, err := m.Open(ctx, ref)
				So(err, ShouldBeNil)
				So(got.Data, ShouldResemble, []byte{1, 2, 3})
				So(got.ContentType, ShouldEqual, "application/pdf")
			})

			Convey("Then the stored copy is independent of the caller's slice", func() {
				f.Data[0] = 9
				got, _ := m.Open(ctx, ref)
				So(got.Data[0], ShouldEqual, 1)
			})

			Convey("Then the same key cannot be reused", func() {
				_, err := m.Put(ctx, ref, f)
				So(errors.Is(err, storage.ErrExists), ShouldBeTrue)
			})

			Convey("Then a download URL is available", func() {
				u, err := m.URL(ctx, ref, "cv.pdf")
				So(err, ShouldBeNil)
				So(strings.HasPrefix(u, "memory:///"), ShouldBeTrue)
			})

			Convey("Then removing it twice is fine", func() {
				So(m.Remove(ctx, ref), ShouldBeNil)
				So(m.Remove(ctx, ref), ShouldBeNil)
				_, err := m.Open(ctx, ref)
				So(errors.Is(err, storage.ErrNotFound), ShouldBeTrue)
				So(m.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the key is empty", func() {
			_, err := m.Put(ctx, "", f)
			So(err, ShouldEqual, storage.ErrEmptyKey)
		})

		Convey("When the context is already cancelled", func() {
			c, cancel := context.WithCancel(ctx)
			cancel()
			_, err := m.Put(c, "k", f)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(m.Len(), ShouldEqual, 0)
		})
	})
}

func TestNewMinio(t *testing.T) {
	Convey("Given MinIO settings", t, func() {
		Convey("When endpoint or bucket is missing", func() {
			_, err := storage.NewMinio(storage.MinioConfig{Endpoint: "localhost:9000"})
			So(err, ShouldNotBeNil)
		})

		Convey("When settings are complete", func() {
			s, err := storage.NewMinio(storage.MinioConfig{
				Endpoint:  "localhost:9000",
				AccessKey: "minioadmin",
				SecretKey: "minioadmin",
				Bucket:    "resumes",
			})

			Convey("Then the client is built without contacting the server", func() {
				So(err, ShouldBeNil)
				So(s, ShouldNotBeNil)
			})

			Convey("Then presigning works offline", func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				u, err := s.URL(ctx, "owner/job/1_cv.pdf", "cv.pdf")
				So(err, ShouldBeNil)
				So(u, ShouldContainSubstring, "resumes/owner/job/1_cv.pdf")
				So(u, ShouldContainSubstring, "X-Amz-Signature")
			})

			Convey("Then quotes in the download name stay inside the header value", func() {
				u, err := s.URL(context.Background(), "owner/job/2_cv.pdf", `jane "jj" doe.pdf`)
				So(err, ShouldBeNil)
				parsed, err := url.Parse(u)
				So(err, ShouldBeNil)
				disposition, params, err := mime.ParseMediaType(parsed.Query().Get("response-content-disposition"))
				So(err, ShouldBeNil)
				So(disposition, ShouldEqual, "attachment")
				So(params["filename"], ShouldEqual, `jane "jj" doe.pdf`)
			})
		})
	})
}
