package model

import "time"

// File is one uploaded resume. Data holds the raw bytes exactly as received.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the file length in bytes.
func (f File) Size() int64 { return int64(len(f.Data)) }

// FileState is the per-file pipeline state.
type FileState string

// File states in the order a file moves through them.
const (
	FileQueued     FileState = "queued"
	FileUploading  FileState = "uploading"
	FileProcessing FileState = "processing"
	FileAnalyzed   FileState = "analyzed"
	FileError      FileState = "error"
)

// FileOutcome reports what happened to one input file. RecordID is empty when the file
// never reached the record store.
type FileOutcome struct {
	Index    int       `json:"index"`
	FileName string    `json:"file_name"`
	State    FileState `json:"state"`
	RecordID string    `json:"record_id,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

// BatchStatus is the lifecycle of a submitted batch as seen by API clients.
type BatchStatus string

// Batch statuses.
const (
	BatchQueued    BatchStatus = "queued"
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
	BatchRejected  BatchStatus = "rejected"
	BatchFailed    BatchStatus = "failed"
	BatchCancelled BatchStatus = "cancelled"
)

// Done reports whether the batch will not change any more.
func (s BatchStatus) Done() bool {
	switch s {
	case BatchCompleted, BatchRejected, BatchFailed, BatchCancelled:
		return true
	}
	return false
}

// BatchView is the polled state of a batch.
type BatchView struct {
	ID           string         `json:"id"`
	OwnerID      string         `json:"owner_id"`
	JobPostingID string         `json:"job_posting_id,omitempty"`
	JobTitle     string         `json:"job_title"`
	Status       BatchStatus    `json:"status"`
	Narrative    string         `json:"narrative"`
	Files        []FileOutcome  `json:"files"`
	Records      []ResumeRecord `json:"records,omitempty"`
	SubmittedAt  time.Time      `json:"submitted_at"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
}
