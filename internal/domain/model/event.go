package model

import "time"

// ResumeEvent announces that a record reached a terminal status.
type ResumeEvent struct {
	ResumeID     string       `json:"resume_id"`
	OwnerID      string       `json:"owner_id"`
	JobPostingID string       `json:"job_posting_id"`
	FileName     string       `json:"file_name"`
	Status       ResumeStatus `json:"status"`
	MatchScore   float64      `json:"match_score"`
	OccurredAt   time.Time    `json:"occurred_at"`
}
