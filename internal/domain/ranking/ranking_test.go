package ranking_test

import (
	"testing"
	"time"

	"github.com/okian/resumerank/internal/domain/model"
	"github.com/okian/resumerank/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func rec(id string, status model.ResumeStatus, score float64, offset int, name string) model.ResumeRecord {
	r := model.ResumeRecord{
		ID:              id,
		FileName:        id + ".pdf",
		Status:          status,
		MatchScore:      score,
		SkillsExtracted: []string{},
		CreatedAt:       base.Add(time.Duration(offset) * time.Second),
	}
	if name != "" {
		r.CandidateName = &name
	}
	return r
}

func ids(cs []ranking.Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func TestParseBand(t *testing.T) {
	Convey("Given band query values", t, func() {
		for in, want := range map[string]ranking.Band{
			"":      ranking.BandAll,
			"all":   ranking.BandAll,
			"HIGH":  ranking.BandHigh,
			" mid ": ranking.BandMid,
			"low":   ranking.BandLow,
		} {
			got, err := ranking.ParseBand(in)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}

		_, err := ranking.ParseBand("top")
		So(err, ShouldEqual, ranking.ErrUnknownBand)
	})
}

func TestBandContains(t *testing.T) {
	Convey("Given band boundaries", t, func() {
		So(ranking.BandHigh.Contains(70), ShouldBeTrue)
		So(ranking.BandHigh.Contains(69.9), ShouldBeFalse)
		So(ranking.BandMid.Contains(45), ShouldBeTrue)
		So(ranking.BandMid.Contains(69), ShouldBeTrue)
		So(ranking.BandMid.Contains(70), ShouldBeFalse)
		So(ranking.BandLow.Contains(44.5), ShouldBeTrue)
		So(ranking.BandLow.Contains(45), ShouldBeFalse)
		So(ranking.BandAll.Contains(0), ShouldBeTrue)
	})
}

func TestRank(t *testing.T) {
	Convey("Given records in creation order", t, func() {
		records := []model.ResumeRecord{
			rec("a", model.ResumeAnalyzed, 55, 0, "Ada Lovelace"),
			rec("b", model.ResumeError, 0, 1, ""),
			rec("c", model.ResumeAnalyzed, 82, 2, "Grace Hopper"),
			rec("d", model.ResumeAnalyzed, 55, 3, "Alan Turing"),
			rec("e", model.ResumeAnalyzed, 30, 4, ""),
		}

		Convey("When ranked without a filter", func() {
			got := ranking.Rank(records, ranking.Filter{})

			Convey("Then they are ordered by score and ties share a rank", func() {
				So(ids(got), ShouldResemble, []string{"c", "a", "d", "e", "b"})
				So(got[0].Rank, ShouldEqual, 1)
				So(got[1].Rank, ShouldEqual, 2)
				So(got[2].Rank, ShouldEqual, 2)
				So(got[3].Rank, ShouldEqual, 3)
				So(got[4].Rank, ShouldEqual, 0)
			})
		})

		Convey("When filtered by band", func() {
			So(ids(ranking.Rank(records, ranking.Filter{Band: ranking.BandHigh})), ShouldResemble, []string{"c"})
			So(ids(ranking.Rank(records, ranking.Filter{Band: ranking.BandMid})), ShouldResemble, []string{"a", "d"})
		})

		Convey("When filtered by status", func() {
			So(ids(ranking.Rank(records, ranking.Filter{Status: model.ResumeError})), ShouldResemble, []string{"b"})
		})

		Convey("When searched by name or file name", func() {
			So(ids(ranking.Rank(records, ranking.Filter{Query: "grace"})), ShouldResemble, []string{"c"})
			So(ids(ranking.Rank(records, ranking.Filter{Query: "E.PDF"})), ShouldResemble, []string{"e"})
		})

		Convey("Then filtering keeps the unfiltered rank", func() {
			got := ranking.Rank(records, ranking.Filter{Query: "alan"})
			So(got, ShouldHaveLength, 1)
			So(got[0].Rank, ShouldEqual, 2)
		})

		Convey("Then the input slice is not reordered", func() {
			ranking.Rank(records, ranking.Filter{})
			So(records[0].ID, ShouldEqual, "a")
		})
	})
}

func TestSummarize(t *testing.T) {
	Convey("Given no records", t, func() {
		s := ranking.Summarize(nil)

		Convey("Then averages are empty and buckets are zero", func() {
			So(s.Total, ShouldEqual, 0)
			So(s.AverageScore, ShouldBeNil)
			So(s.Distribution, ShouldHaveLength, 5)
			So(s.TopSkills, ShouldBeEmpty)
		})
	})

	Convey("Given mixed records", t, func() {
		a := rec("a", model.ResumeAnalyzed, 82, 0, "")
		a.SkillsExtracted = []string{"Go", "Kubernetes"}
		a.ExperienceYears = 4
		b := rec("b", model.ResumeAnalyzed, 19, 1, "")
		b.SkillsExtracted = []string{"Python", "Go"}
		b.ExperienceYears = 1
		c := rec("c", model.ResumeAnalyzed, 100, 2, "")
		c.SkillsExtracted = []string{"Kubernetes", "Go"}
		c.ExperienceYears = 2.5
		records := []model.ResumeRecord{
			a, b, c,
			rec("d", model.ResumeError, 0, 3, ""),
			rec("e", model.ResumeProcessing, 0, 4, ""),
		}

		s := ranking.Summarize(records)

		Convey("Then status counts cover every record", func() {
			So(s.Total, ShouldEqual, 5)
			So(s.Analyzed, ShouldEqual, 3)
			So(s.Errored, ShouldEqual, 1)
			So(s.Pending, ShouldEqual, 1)
		})

		Convey("Then score figures use analyzed records only", func() {
			So(*s.AverageScore, ShouldEqual, 67)
			So(s.HighMatches, ShouldEqual, 2)
			So(s.AverageExperience, ShouldEqual, 2.5)
			So(s.Distribution[0].Count, ShouldEqual, 1)
			So(s.Distribution[4].Count, ShouldEqual, 2)
		})

		Convey("Then skills are counted and ordered by frequency", func() {
			So(s.TopSkills, ShouldResemble, []ranking.SkillCount{
				{Skill: "Go", Count: 3},
				{Skill: "Kubernetes", Count: 2},
				{Skill: "Python", Count: 1},
			})
		})
	})
}
