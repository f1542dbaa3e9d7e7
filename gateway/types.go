package gateway

import (
	"fmt"

	"github.com/alphachat/client/bot"
)

// APIError is an application-level failure: a non-2xx status or an {error}
// payload from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error (status %d)", e.StatusCode)
}

// AlphaChatRequest is the AlphaBot chat contract: a bound session is
// mandatory, the conversation id only scopes server-side history.
type AlphaChatRequest struct {
	SessionID      string `json:"session_id"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         int    `json:"user_id,omitempty"`
}

type AlphaChatResponse struct {
	Answer      string         `json:"answer"`
	SessionID   string         `json:"session_id"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Chart       *bot.ChartSpec `json:"chart,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// DriveChatRequest is the DriveBot chat contract: the conversation id is
// optional and the backend assigns one on the first response.
type DriveChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         int    `json:"user_id,omitempty"`
}

type DriveChatResponse struct {
	Response       string         `json:"response"`
	ConversationID string         `json:"conversation_id"`
	Suggestions    []string       `json:"suggestions,omitempty"`
	Chart          *bot.ChartSpec `json:"chart,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// FileFailure describes a single file the backend rejected during upload.
type FileFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

type UploadResponse struct {
	SessionID  string        `json:"session_id"`
	FilesCount int           `json:"files_count"`
	TotalRows  int           `json:"total_rows"`
	MemoryMB   float64       `json:"memory_mb"`
	Columns    []string      `json:"columns,omitempty"`
	Message    string        `json:"message,omitempty"`
	Failures   []FileFailure `json:"failures,omitempty"`
}

// Progress reports upload progress. Advisory only; the terminal response
// decides success or failure.
type Progress struct {
	Loaded     int64
	Total      int64
	Percentage int
}

type CacheStats struct {
	Entries int     `json:"entries"`
	Hits    int     `json:"hits"`
	Misses  int     `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}
