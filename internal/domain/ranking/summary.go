package ranking

import (
	"math"
	"sort"

	"github.com/okian/resumerank/internal/domain/model"
)

const topSkillsLimit = 10

// Bucket counts analyzed records whose score falls in [Min, Max).
// The last bucket also includes 100.
type Bucket struct {
	Label string `json:"label"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Count int    `json:"count"`
}

// SkillCount is how many analyzed resumes mention a skill.
type SkillCount struct {
	Skill string `json:"skill"`
	Count int    `json:"count"`
}

// Summary is the analytics view over one owner's records.
type Summary struct {
	Total             int          `json:"total"`
	Analyzed          int          `json:"analyzed"`
	Errored           int          `json:"errored"`
	Pending           int          `json:"pending"`
	AverageScore      *int         `json:"average_score"`
	HighMatches       int          `json:"high_matches"`
	AverageExperience float64      `json:"average_experience"`
	Distribution      []Bucket     `json:"distribution"`
	TopSkills         []SkillCount `json:"top_skills"`
}

// Summarize computes analytics over records. Score and skill figures only use
// analyzed records; AverageScore is nil when none are analyzed.
func Summarize(records []model.ResumeRecord) Summary {
	s := Summary{
		Total:        len(records),
		Distribution: newBuckets(),
		TopSkills:    []SkillCount{},
	}

	var scoreSum, expSum float64
	skillIdx := map[string]int{}
	for _, r := range records {
		switch r.Status {
		case model.ResumeAnalyzed:
		case model.ResumeError:
			s.Errored++
			continue
		default:
			s.Pending++
			continue
		}

		s.Analyzed++
		scoreSum += r.MatchScore
		expSum += r.ExperienceYears
		if r.MatchScore >= HighMatchMin {
			s.HighMatches++
		}
		s.Distribution[bucketIndex(r.MatchScore)].Count++

		for _, skill := range r.SkillsExtracted {
			if i, ok := skillIdx[skill]; ok {
				s.TopSkills[i].Count++
				continue
			}
			skillIdx[skill] = len(s.TopSkills)
			s.TopSkills = append(s.TopSkills, SkillCount{Skill: skill, Count: 1})
		}
	}

	if s.Analyzed > 0 {
		avg := int(math.Round(scoreSum / float64(s.Analyzed)))
		s.AverageScore = &avg
		s.AverageExperience = math.Round(expSum/float64(s.Analyzed)*10) / 10
	}

	// first-seen order breaks ties
	sort.SliceStable(s.TopSkills, func(i, j int) bool {
		return s.TopSkills[i].Count > s.TopSkills[j].Count
	})
	if len(s.TopSkills) > topSkillsLimit {
		s.TopSkills = s.TopSkills[:topSkillsLimit]
	}
	return s
}

func newBuckets() []Bucket {
	return []Bucket{
		{Label: "0-20%", Min: 0, Max: 20},
		{Label: "20-40%", Min: 20, Max: 40},
		{Label: "40-60%", Min: 40, Max: 60},
		{Label: "60-80%", Min: 60, Max: 80},
		{Label: "80-100%", Min: 80, Max: 100},
	}
}

func bucketIndex(score float64) int {
	switch {
	case score < 20:
		return 0
	case score < 40:
		return 1
	case score < 60:
		return 2
	case score < 80:
		return 3
	}
	return 4
}
