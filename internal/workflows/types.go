package workflows

import "time"

// DocumentPipelineInput carries the retry settings of the starting process
// so the workflow retries the way the in-process runner does. Zero values
// fall back to the config defaults.
type DocumentPipelineInput struct {
	DocumentID     string        `json:"document_id"`
	Timeout        time.Duration `json:"timeout"`
	MaxAttempts    int           `json:"max_attempts"`
	InitialBackoff time.Duration `json:"initial_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff"`
}

type DocumentProgress struct {
	DocumentID  string            `json:"document_id"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	Steps       map[string]string `json:"steps"`
	FailReason  string            `json:"fail_reason,omitempty"`
}
