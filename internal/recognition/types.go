package recognition

import "strings"

// Status is the lifecycle state of a recognition job. It only moves forward.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// parseStatus maps API states onto Status. CANCELED and UNKNOWN are
// terminal failures.
func parseStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING":
		return StatusPending
	case "RUNNING":
		return StatusRunning
	case "SUCCEEDED":
		return StatusSucceeded
	default:
		return StatusFailed
	}
}

func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

func (s Status) rank() int {
	switch s {
	case "":
		return -1
	case StatusPending:
		return 0
	case StatusRunning:
		return 1
	default:
		return 2
	}
}

// Job is a submitted recognition task.
type Job struct {
	ID     string
	Status Status
}

// advance moves the job to next unless that would go backwards.
func (j *Job) advance(next Status) bool {
	if j.Status.Terminal() || next.rank() < j.Status.rank() || next == j.Status {
		return false
	}
	j.Status = next
	return true
}

// Output references the transcription payload of one input file.
type Output struct {
	FileURL          string
	TranscriptionURL string
	Status           Status
	Code             string
	Message          string
}

// Result is a finished job with its outputs.
type Result struct {
	Job
	Outputs []Output
}

type submitRequest struct {
	Model      string           `json:"model"`
	Input      submitInput      `json:"input"`
	Parameters submitParameters `json:"parameters"`
}

type submitInput struct {
	FileURLs []string `json:"file_urls"`
}

type submitParameters struct {
	LanguageHints []string `json:"language_hints,omitempty"`
}

type taskResponse struct {
	RequestID string     `json:"request_id"`
	Code      string     `json:"code"`
	Message   string     `json:"message"`
	Output    taskOutput `json:"output"`
}

type taskOutput struct {
	TaskID     string       `json:"task_id"`
	TaskStatus string       `json:"task_status"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Results    []taskResult `json:"results"`
}

type taskResult struct {
	FileURL          string `json:"file_url"`
	TranscriptionURL string `json:"transcription_url"`
	SubtaskStatus    string `json:"subtask_status"`
	Code             string `json:"code"`
	Message          string `json:"message"`
}

// transcription is the payload behind a transcription_url.
type transcription struct {
	FileURL     string       `json:"file_url"`
	Transcripts []transcript `json:"transcripts"`
}

type transcript struct {
	ChannelID int        `json:"channel_id"`
	Text      string     `json:"text"`
	Sentences []sentence `json:"sentences"`
}

type sentence struct {
	BeginTime int64  `json:"begin_time"`
	EndTime   *int64 `json:"end_time"`
	Text      string `json:"text"`
}
