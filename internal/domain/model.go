package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus enumerates the lifecycle states of a generation task.
type TaskStatus string

const (
	TaskStatusQueued           TaskStatus = "queued"
	TaskStatusRunning          TaskStatus = "running"
	TaskStatusWaitingRateLimit TaskStatus = "waiting_rate_limit"
	TaskStatusPaused           TaskStatus = "paused"
	TaskStatusDone             TaskStatus = "done"
	TaskStatusError            TaskStatus = "error"
	TaskStatusCancelled        TaskStatus = "cancelled"
)

// Terminal reports whether a task in this status may never transition again.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusDone, TaskStatusError, TaskStatusCancelled:
		return true
	}
	return false
}

// ReferenceImage identifies one input image. Immutable once created.
type ReferenceImage struct {
	ID       string `json:"id"`
	FilePath string `json:"filePath"`
	FileName string `json:"fileName"`
}

// PromptItem is one text prompt. Immutable once created; Text is
// non-empty after trimming.
type PromptItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// GenerationTask is one (reference, prompt) unit of work. Created once
// per pair, mutated only by the scheduler, never deleted.
type GenerationTask struct {
	ID           string     `json:"id"`
	RefImageID   string     `json:"refImageId"`
	PromptID     string     `json:"promptId"`
	Status       TaskStatus `json:"status"`
	RetryCount   int        `json:"retryCount"`
	OutputPaths  []string   `json:"outputPaths"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

// JobBundle is one submitted batch: the cross-product of refs and
// prompts plus a shared output directory. Identity and task set are
// immutable after creation; only task entries mutate in place.
type JobBundle struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"createdAt"`
	OutputDir string           `json:"outputDir"`
	Refs      []ReferenceImage `json:"refs"`
	Prompts   []PromptItem     `json:"prompts"`
	Tasks     []GenerationTask `json:"tasks"`
}

// CreateJobImageInput describes one reference image to be imported.
type CreateJobImageInput struct {
	FilePath string `json:"filePath"`
	FileName string `json:"fileName,omitempty"`
}

// CreateJobPayload is the input for job creation.
type CreateJobPayload struct {
	Refs      []CreateJobImageInput `json:"refs"`
	Prompts   []string              `json:"prompts"`
	OutputDir string                `json:"outputDir,omitempty"`
}

// NewID returns a prefixed identifier like "task_4f1c...".
func NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// NewReferenceImage builds a ReferenceImage, deriving the file name
// from the path when none is given.
func NewReferenceImage(filePath, fileName string) ReferenceImage {
	if fileName == "" {
		fileName = baseName(filePath)
	}
	return ReferenceImage{
		ID:       NewID("ref"),
		FilePath: filePath,
		FileName: fileName,
	}
}

// NewPromptItem builds a PromptItem from already-trimmed text.
func NewPromptItem(text string) PromptItem {
	return PromptItem{ID: NewID("prompt"), Text: text}
}

func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		p = p[i+1:]
	}
	if p == "" {
		return "image"
	}
	return p
}
