// Package upload stages spreadsheet files for AlphaBot: validates
// extensions, runs a progress-tracked multipart upload and binds the
// resulting backend session to the active conversation.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alphachat/client/gateway"
)

// Status is the coordinator's state machine:
// Idle → Validating → Uploading → Success|Failed → Idle.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusValidating Status = "validating"
	StatusUploading  Status = "uploading"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

var ErrNoFiles = errors.New("no files selected")

// allowedExtensions is the spreadsheet allow-list. Anything else is
// rejected locally before any network call.
var allowedExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
	".xls":  true,
}

// Uploader is the gateway slice the coordinator needs.
type Uploader interface {
	UploadFiles(ctx context.Context, paths []string, progress func(gateway.Progress)) (*gateway.UploadResponse, error)
}

// BindingStore persists the session id returned by a successful upload.
type BindingStore interface {
	BindSession(conversationID, sessionID string) error
	SaveFallbackSession(sessionID string) error
}

type Coordinator struct {
	up    Uploader
	store BindingStore

	mu       sync.RWMutex
	status   Status
	progress gateway.Progress
}

func NewCoordinator(up Uploader, store BindingStore) *Coordinator {
	return &Coordinator{up: up, store: store, status: StatusIdle}
}

// Status returns the current state.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Progress returns the last reported upload progress. Advisory only.
func (c *Coordinator) Progress() gateway.Progress {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.progress
}

// Reset returns a terminal state to Idle.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.status = StatusIdle
	c.progress = gateway.Progress{}
	c.mu.Unlock()
}

// Upload validates and uploads files, then binds the returned backend
// session to conversationID (and records it as the global fallback). If any
// file has a disallowed extension the whole batch is rejected with a single
// aggregate error and no request is made. onProgress, when non-nil, receives
// advisory percentage updates; the terminal response alone decides the
// outcome.
func (c *Coordinator) Upload(ctx context.Context, conversationID string, paths []string, onProgress func(pct int)) (*gateway.UploadResponse, error) {
	c.setStatus(StatusValidating)

	if len(paths) == 0 {
		c.setStatus(StatusFailed)
		return nil, ErrNoFiles
	}

	if err := validate(paths); err != nil {
		c.setStatus(StatusFailed)
		return nil, err
	}

	c.setStatus(StatusUploading)

	resp, err := c.up.UploadFiles(ctx, paths, func(p gateway.Progress) {
		c.mu.Lock()
		c.progress = p
		c.mu.Unlock()
		if onProgress != nil {
			onProgress(p.Percentage)
		}
	})
	if err != nil {
		c.setStatus(StatusFailed)
		return nil, fmt.Errorf("upload: %w", err)
	}

	if conversationID != "" {
		if err := c.store.BindSession(conversationID, resp.SessionID); err != nil {
			slog.Error("failed to bind upload session", "conversationId", conversationID, "error", err)
		}
	}
	if err := c.store.SaveFallbackSession(resp.SessionID); err != nil {
		slog.Error("failed to save fallback session", "error", err)
	}

	c.setStatus(StatusSuccess)
	return resp, nil
}

func (c *Coordinator) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// validate rejects the batch if any file's extension is outside the
// allow-list, naming every invalid file in one aggregate error.
func validate(paths []string) error {
	var invalid []string
	for _, p := range paths {
		ext := strings.ToLower(filepath.Ext(p))
		if !allowedExtensions[ext] {
			invalid = append(invalid, filepath.Base(p))
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("arquivos inválidos: %s. Apenas CSV e XLSX são permitidos", strings.Join(invalid, ", "))
	}
	return nil
}
