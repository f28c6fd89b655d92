package domain

import "time"

// ProgressEvent is a job-level progress snapshot pushed to observers.
type ProgressEvent struct {
	JobID         string     `json:"jobId"`
	Completed     int        `json:"completed"`
	Total         int        `json:"total"`
	Status        TaskStatus `json:"status"`
	CurrentTaskID string     `json:"currentTaskId,omitempty"`
	Message       string     `json:"message,omitempty"`
}

// RateLimitEvent announces a remote-imposed cooldown and when the job
// will resume picking work.
type RateLimitEvent struct {
	JobID       string    `json:"jobId"`
	WaitSeconds int       `json:"waitSeconds"`
	ResumeAt    time.Time `json:"resumeAtIso"`
}

// DoneEvent marks a job reaching a terminal status.
type DoneEvent struct {
	JobID       string     `json:"jobId"`
	FinalStatus TaskStatus `json:"finalStatus"`
}

// ErrorEvent reports a job-level failure outside of normal task
// result handling.
type ErrorEvent struct {
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

// AuthStage enumerates the remote session authentication states.
type AuthStage string

const (
	AuthStageUnknown   AuthStage = "unknown"
	AuthStageChecking  AuthStage = "checking"
	AuthStageLoggedIn  AuthStage = "logged_in"
	AuthStageLoggedOut AuthStage = "logged_out"
	AuthStageBusy      AuthStage = "busy"
	AuthStageError     AuthStage = "error"
)

// AuthState is the last observed authentication status of the manual
// remote session.
type AuthState struct {
	Stage     AuthStage `json:"stage"`
	CheckedAt time.Time `json:"checkedAtIso"`
	Message   string    `json:"message,omitempty"`
}
