package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrQueueFull      = errors.New("too many batches waiting, try again later")
	ErrBatchNotFound  = errors.New("batch not found")
	ErrBatchFinished  = errors.New("batch already finished")
	ErrResumeNotFound = errors.New("resume not found")
)
