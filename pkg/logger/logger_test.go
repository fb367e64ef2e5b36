package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with defaults", func() {
			So(Init(WithOutput(io.Discard)), ShouldBeNil)
			defer func() { So(Sync(), ShouldBeNil) }()

			Convey("Then Get and Named return loggers", func() {
				So(Get(), ShouldNotBeNil)
				So(Named("test"), ShouldNotBeNil)
			})
		})

		Convey("When initialized with an unknown format", func() {
			err := Init(WithFormat("xml"), WithOutput(io.Discard))

			Convey("Then it fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level names", t, func() {
		So(Init(WithOutput(io.Discard)), ShouldBeNil)
		for _, lvl := range []string{"debug", "INFO", "warn", "warning", "error", ""} {
			So(SetLevelString(lvl), ShouldBeNil)
		}
		So(SetLevelString("loud"), ShouldNotBeNil)
		So(SetLevelString("info"), ShouldBeNil)
	})
}

func TestContextFields(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		l := New(WithFormat("json"), WithOutput(&buf)).Named("pipeline")

		Convey("When logging with request, owner and batch ids in the context", func() {
			ctx := WithRequestID(context.Background(), "req-1")
			ctx = WithOwnerID(ctx, "owner-1")
			ctx = WithBatchID(ctx, "batch-1")
			l.Error(ctx, "upload failed", String("file", "resume.pdf"), Error(errors.New("boom")))

			Convey("Then every id and field is on the line", func() {
				var line map[string]any
				So(json.Unmarshal(buf.Bytes(), &line), ShouldBeNil)
				So(line["msg"], ShouldEqual, "upload failed")
				So(line["component"], ShouldEqual, "pipeline")
				So(line["request_id"], ShouldEqual, "req-1")
				So(line["owner_id"], ShouldEqual, "owner-1")
				So(line["batch_id"], ShouldEqual, "batch-1")
				So(line["file"], ShouldEqual, "resume.pdf")
				So(line["error"], ShouldEqual, "boom")
				So(line["source"], ShouldContainSubstring, "logger_test.go")
				So(RequestID(ctx), ShouldEqual, "req-1")
			})
		})

		Convey("When logging without context values", func() {
			l.Info(context.Background(), "hello")

			Convey("Then no id keys are added", func() {
				So(strings.Contains(buf.String(), "request_id"), ShouldBeFalse)
			})
		})
	})

	Convey("Given a Nop logger", t, func() {
		Convey("Then Fatal does not exit", func() {
			Nop().Fatal(context.Background(), "not fatal here")
			So(true, ShouldBeTrue)
		})
	})
}
