// Package ranking orders resume records into a candidate list and summarizes them.
package ranking

import (
	"sort"
	"strings"

	"github.com/okian/resumerank/internal/domain/model"
)

// Band boundaries on the 0-100 match score.
const (
	HighMatchMin = 70
	MidMatchMin  = 45
)

// Band groups candidates by match score.
type Band string

// Supported bands. BandAll disables band filtering.
const (
	BandAll  Band = ""
	BandHigh Band = "high"
	BandMid  Band = "mid"
	BandLow  Band = "low"
)

// ParseBand accepts the query string form of a band; "all" and "" both mean no filter.
func ParseBand(s string) (Band, error) {
	switch Band(strings.ToLower(strings.TrimSpace(s))) {
	case BandAll, "all":
		return BandAll, nil
	case BandHigh:
		return BandHigh, nil
	case BandMid:
		return BandMid, nil
	case BandLow:
		return BandLow, nil
	}
	return BandAll, ErrUnknownBand
}

// Contains reports whether score falls inside the band.
func (b Band) Contains(score float64) bool {
	switch b {
	case BandHigh:
		return score >= HighMatchMin
	case BandMid:
		return score >= MidMatchMin && score < HighMatchMin
	case BandLow:
		return score < MidMatchMin
	}
	return true
}

// Candidate is a record with its position in the ranked list.
// Rank is zero for records that are not analyzed.
type Candidate struct {
	Rank int `json:"rank,omitempty"`
	model.ResumeRecord
}

// Filter narrows a candidate list. Zero value matches everything.
type Filter struct {
	Band   Band
	Query  string
	Status model.ResumeStatus
}

// Match reports whether r passes every set criterion.
func (f Filter) Match(r model.ResumeRecord) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if !f.Band.Contains(r.MatchScore) {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(r.FileName), q) {
		return true
	}
	if r.CandidateName != nil && strings.Contains(strings.ToLower(*r.CandidateName), q) {
		return true
	}
	return r.CandidateEmail != nil && strings.Contains(strings.ToLower(*r.CandidateEmail), q)
}

// Rank sorts records by match score (descending), then creation time, then id,
// assigns shared ranks to analyzed records with equal scores, and applies f.
// Ranks are computed before filtering so a candidate keeps its position in any view.
func Rank(records []model.ResumeRecord, f Filter) []Candidate {
	all := make([]Candidate, 0, len(records))
	for _, r := range records {
		all = append(all, Candidate{ResumeRecord: r})
	}
	sortCandidates(all)
	assignRanksWithTies(all)

	out := make([]Candidate, 0, len(all))
	for _, c := range all {
		if f.Match(c.ResumeRecord) {
			out = append(out, c)
		}
	}
	return out
}

func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// assignRanksWithTies gives analyzed candidates with the same score the same rank;
// the next distinct score gets the next consecutive rank.
func assignRanksWithTies(cs []Candidate) {
	rank := 0
	prev := -1.0
	for i := range cs {
		if cs[i].Status != model.ResumeAnalyzed {
			continue
		}
		if cs[i].MatchScore != prev {
			rank++
			prev = cs[i].MatchScore
		}
		cs[i].Rank = rank
	}
}
