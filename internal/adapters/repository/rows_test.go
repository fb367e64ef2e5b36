package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/okian/resumerank/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRowMapping(t *testing.T) {
	Convey("Given a fully populated record", t, func() {
		name, email, edu, summary, raw := "Jane", "jane@example.com", "BSc", "Strong fit", "text"
		at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
		rec := model.ResumeRecord{
			ID:              "r1",
			OwnerID:         "alice",
			JobPostingID:    "job-1",
			FileName:        "cv.pdf",
			StorageRef:      "alice/job-1/1_cv.pdf",
			FileSizeBytes:   2048,
			Status:          model.ResumeAnalyzed,
			MatchScore:      82,
			CandidateName:   &name,
			CandidateEmail:  &email,
			SkillsExtracted: []string{"Go", "SQL"},
			SkillsMatched:   []string{"Go"},
			SkillsMissing:   []string{"Kubernetes"},
			ExperienceYears: 4.5,
			EducationLevel:  &edu,
			Summary:         &summary,
			RawText:         &raw,
			CreatedAt:       at,
			UpdatedAt:       at.Add(time.Minute),
		}

		Convey("It survives the row conversion unchanged", func() {
			So(resumeToRow(rec).toModel(), ShouldResemble, rec)
		})

		Convey("The row carries the storage column names", func() {
			row := resumeToRow(rec)
			So(row.TableName(), ShouldEqual, "resumes")
			So(row.StorageRef, ShouldEqual, "alice/job-1/1_cv.pdf")
			So(row.Status, ShouldEqual, "analyzed")

			fields := terminalFields(row)
			So(len(fields), ShouldEqual, len(terminalColumns))
			for _, col := range terminalColumns {
				_, ok := fields[col]
				So(ok, ShouldBeTrue)
			}
		})

		Convey("Nil skill lists come back empty", func() {
			rec.SkillsMissing = nil
			So(resumeToRow(rec).toModel().SkillsMissing, ShouldResemble, []string{})
		})
	})

	Convey("Given a job posting", t, func() {
		p := model.JobPosting{ID: "job-1", OwnerID: "alice", Title: "Backend Engineer", Description: "Go", CreatedAt: time.Unix(10, 0).UTC()}
		So(postingToRow(p).toModel(), ShouldResemble, p)
		So(jobPostingRow{}.TableName(), ShouldEqual, "job_postings")
	})
}

func TestSortRows(t *testing.T) {
	Convey("Rows sort by creation time then id", t, func() {
		at := time.Unix(100, 0)
		rows := []resumeRow{
			{ID: "b", CreatedAt: at},
			{ID: "c", CreatedAt: at.Add(-time.Second)},
			{ID: "a", CreatedAt: at},
		}
		sortRows(rows)
		So([]string{rows[0].ID, rows[1].ID, rows[2].ID}, ShouldResemble, []string{"c", "a", "b"})
	})
}

func TestMapGormErr(t *testing.T) {
	Convey("gorm errors map onto store sentinels", t, func() {
		So(errors.Is(mapGormErr("get", gorm.ErrRecordNotFound), ErrNotFound), ShouldBeTrue)
		So(errors.Is(mapGormErr("create", gorm.ErrDuplicatedKey), ErrDuplicate), ShouldBeTrue)

		other := fmt.Errorf("connection reset")
		err := mapGormErr("list", other)
		So(errors.Is(err, other), ShouldBeTrue)
		So(err.Error(), ShouldEqual, "list: connection reset")
	})
}
