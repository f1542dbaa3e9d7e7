package bot

import "time"

// Kind identifies one of the backend conversational agents. Each kind speaks
// its own chat contract: AlphaBot requires an upload-bound session_id before
// any message can be sent, DriveBot tracks history by conversation_id and
// assigns one lazily on the first response.
type Kind string

const (
	KindAlpha Kind = "alphabot"
	KindDrive Kind = "drivebot"
)

// Kinds returns all known bot kinds in display order.
func Kinds() []Kind {
	return []Kind{KindAlpha, KindDrive}
}

// IsValid returns true if the kind is a known bot.
func (k Kind) IsValid() bool {
	switch k {
	case KindAlpha, KindDrive:
		return true
	default:
		return false
	}
}

func (k Kind) String() string { return string(k) }

// Author identifies who produced a message.
type Author string

const (
	AuthorUser Author = "user"
	AuthorBot  Author = "bot"
)

// ChartSpec carries structured chart data attached to a bot response.
// Rendering is a front-end concern; the client only stores and forwards it.
type ChartSpec struct {
	Type  string           `json:"type"` // line, bar, pie
	Rows  []map[string]any `json:"data"`
	XAxis string           `json:"x_axis"`
	YAxis string           `json:"y_axis"`
	Title string           `json:"title,omitempty"`
}

// Message is a single entry in a per-bot conversation log. Messages are
// immutable after creation; the only exception is the transient typing
// placeholder, which is never persisted.
type Message struct {
	ID          string     `json:"id"`
	Author      Author     `json:"author"`
	Bot         Kind       `json:"bot_id,omitempty"`
	Text        string     `json:"text"`
	CreatedAt   time.Time  `json:"created_at"`
	Suggestions []string   `json:"suggestions,omitempty"`
	SessionRef  string     `json:"session_ref,omitempty"` // backend session for export
	Chart       *ChartSpec `json:"chart,omitempty"`
	IsTyping    bool       `json:"-"` // transient indicator, stripped before persistence
}
