// Package store persists sessions, transcripts and the todo list for a
// workspace. All mutation goes through a single worker goroutine so
// file writes never interleave.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	stdatomic "sync/atomic"
	"time"

	"github.com/natefinch/atomic"

	"github.com/harunnryd/kuroko/internal/config"
)

type Operation int

const (
	OpWriteTranscript Operation = iota
	OpReadTranscript
	OpResetSession
	OpGetSession
	OpSaveSession
)

type workerRequest struct {
	Op       Operation
	Payload  interface{}
	Result   chan error
	Response chan interface{}
}

type transcriptPayload struct {
	SessionID string
	Data      []byte // JSON line
}

type readTranscriptPayload struct {
	SessionID string
	Limit     int // 0 = all
}

type sessionIDPayload struct {
	SessionID string
}

type saveSessionPayload struct {
	Session *SessionMeta
}

// Worker owns the on-disk workspace. One instance per process; the
// workspace file lock rejects a second.
type Worker struct {
	workspaceID              string
	basePath                 string
	inbox                    chan workerRequest
	fileLock                 *FileLock
	quit                     chan struct{}
	wg                       sync.WaitGroup
	sessionIndex             *SessionIndex
	running                  stdatomic.Bool
	transcriptRotateMaxBytes int64
}

type RuntimeConfig struct {
	LockTimeout              time.Duration
	LockRetry                time.Duration
	LockMaxRetry             int
	InboxSize                int
	TranscriptRotateMaxBytes int64
}

func NewWorker(workspaceID string, workspaceRootPath string, runtimeCfg RuntimeConfig) (*Worker, error) {
	basePath, err := GetWorkspacePath(workspaceID, workspaceRootPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Join(basePath, "sessions"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions dir: %w", err)
	}

	if runtimeCfg.LockTimeout <= 0 {
		lockTimeout, err := config.DurationOrDefault("", config.DefaultStoreLockTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse default store lock timeout: %w", err)
		}
		runtimeCfg.LockTimeout = lockTimeout
	}
	if runtimeCfg.LockRetry <= 0 {
		lockRetry, err := config.DurationOrDefault("", config.DefaultStoreLockRetry)
		if err != nil {
			return nil, fmt.Errorf("parse default store lock retry: %w", err)
		}
		runtimeCfg.LockRetry = lockRetry
	}
	if runtimeCfg.LockMaxRetry <= 0 {
		runtimeCfg.LockMaxRetry = config.DefaultStoreLockMaxRetry
	}
	if runtimeCfg.InboxSize <= 0 {
		runtimeCfg.InboxSize = 64
	}
	if runtimeCfg.TranscriptRotateMaxBytes <= 0 {
		runtimeCfg.TranscriptRotateMaxBytes = int64(config.DefaultStoreTranscriptMaxBytes)
	}

	fileLock, err := NewFileLock(workspaceID, basePath, &FileLockConfig{
		LockTimeout:  runtimeCfg.LockTimeout,
		LockRetry:    runtimeCfg.LockRetry,
		LockMaxRetry: runtimeCfg.LockMaxRetry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	sessionIndex := &SessionIndex{Sessions: make(map[string]SessionMeta)}
	indexPath := filepath.Join(basePath, "sessions", "index.json")
	if data, err := os.ReadFile(indexPath); err == nil {
		if err := json.Unmarshal(data, sessionIndex); err != nil {
			slog.Warn("Failed to parse session index, starting fresh", "error", err)
			sessionIndex = &SessionIndex{Sessions: make(map[string]SessionMeta)}
		}
	}

	return &Worker{
		workspaceID:              workspaceID,
		basePath:                 basePath,
		inbox:                    make(chan workerRequest, runtimeCfg.InboxSize),
		fileLock:                 fileLock,
		quit:                     make(chan struct{}),
		sessionIndex:             sessionIndex,
		transcriptRotateMaxBytes: runtimeCfg.TranscriptRotateMaxBytes,
	}, nil
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

func (w *Worker) BasePath() string {
	return w.basePath
}

// TodoPath is where the workspace todo list lives.
func (w *Worker) TodoPath() string {
	return filepath.Join(w.basePath, "todos.json")
}

func (w *Worker) loop() {
	slog.Info("Store worker started", "workspace", w.workspaceID)
	w.running.Store(true)
	defer func() {
		w.running.Store(false)
		w.wg.Done()
	}()

	for {
		select {
		case req := <-w.inbox:
			err := w.handle(req)
			if req.Result != nil {
				req.Result <- err
			}
		case <-w.quit:
			slog.Info("Store worker stopping")
			return
		}
	}
}

func (w *Worker) handle(req workerRequest) error {
	switch req.Op {
	case OpWriteTranscript:
		p, ok := req.Payload.(transcriptPayload)
		if !ok {
			return fmt.Errorf("invalid payload for WriteTranscript")
		}
		return w.appendTranscript(p.SessionID, p.Data)
	case OpReadTranscript:
		p, ok := req.Payload.(readTranscriptPayload)
		if !ok {
			return fmt.Errorf("invalid payload for ReadTranscript")
		}
		lines, err := w.readTranscript(p.SessionID, p.Limit)
		if req.Response != nil {
			req.Response <- lines
		}
		return err
	case OpResetSession:
		p, ok := req.Payload.(sessionIDPayload)
		if !ok {
			return fmt.Errorf("invalid payload for ResetSession")
		}
		return w.resetSession(p.SessionID)
	case OpGetSession:
		p, ok := req.Payload.(sessionIDPayload)
		if !ok {
			return fmt.Errorf("invalid payload for GetSession")
		}
		if sess, ok := w.sessionIndex.Sessions[p.SessionID]; ok {
			if req.Response != nil {
				req.Response <- &sess
			}
		} else if req.Response != nil {
			req.Response <- nil
		}
		return nil
	case OpSaveSession:
		p, ok := req.Payload.(saveSessionPayload)
		if !ok {
			return fmt.Errorf("invalid payload for SaveSession")
		}
		w.sessionIndex.Sessions[p.Session.ID] = *p.Session
		return w.saveSessionIndex()
	default:
		return fmt.Errorf("unknown operation: %d", req.Op)
	}
}

func (w *Worker) transcriptPath(sessionID string) string {
	return filepath.Join(w.basePath, "sessions", sessionID+".jsonl")
}

func (w *Worker) readTranscript(sessionID string, limit int) ([]string, error) {
	data, err := os.ReadFile(w.transcriptPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return []string{}, nil
	}

	if limit > 0 && len(lines) > limit {
		return lines[len(lines)-limit:], nil
	}
	return lines, nil
}

func (w *Worker) saveSessionIndex() error {
	path := filepath.Join(w.basePath, "sessions", "index.json")
	data, err := json.MarshalIndent(w.sessionIndex, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

func (w *Worker) appendTranscript(sessionID string, data []byte) error {
	path := w.transcriptPath(sessionID)

	if err := w.checkAndRotate(sessionID, path); err != nil {
		slog.Warn("Failed to rotate transcript", "session", sessionID, "error", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return err
	}
	if _, err := f.WriteString("\n"); err != nil {
		return err
	}
	return f.Sync()
}

func (w *Worker) resetSession(sessionID string) error {
	if err := os.Remove(w.transcriptPath(sessionID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	delete(w.sessionIndex.Sessions, sessionID)
	return w.saveSessionIndex()
}

func (w *Worker) checkAndRotate(sessionID, path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if info.Size() < w.transcriptRotateMaxBytes {
		return nil
	}

	slog.Info("Rotating transcript", "session", sessionID, "size", info.Size())

	timestamp := time.Now().Format("20060102150405")
	backupPath := fmt.Sprintf("%s.%s.bak", path, timestamp)

	if err := os.Rename(path, backupPath); err != nil {
		return fmt.Errorf("failed to rename: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create new transcript: %w", err)
	}
	f.Close()

	return nil
}

// Public API. Each call blocks until the worker has handled it.

func (w *Worker) WriteTranscript(sessionID string, data []byte) error {
	res := make(chan error, 1)
	w.inbox <- workerRequest{
		Op:      OpWriteTranscript,
		Payload: transcriptPayload{SessionID: sessionID, Data: data},
		Result:  res,
	}
	return <-res
}

func (w *Worker) ReadTranscript(sessionID string, limit int) ([]string, error) {
	res := make(chan error, 1)
	resp := make(chan interface{}, 1)
	w.inbox <- workerRequest{
		Op:       OpReadTranscript,
		Payload:  readTranscriptPayload{SessionID: sessionID, Limit: limit},
		Result:   res,
		Response: resp,
	}
	if err := <-res; err != nil {
		return nil, err
	}
	val := <-resp
	return val.([]string), nil
}

func (w *Worker) ResetSession(sessionID string) error {
	res := make(chan error, 1)
	w.inbox <- workerRequest{
		Op:      OpResetSession,
		Payload: sessionIDPayload{SessionID: sessionID},
		Result:  res,
	}
	return <-res
}

func (w *Worker) GetSession(id string) (*SessionMeta, error) {
	res := make(chan error, 1)
	resp := make(chan interface{}, 1)
	w.inbox <- workerRequest{
		Op:       OpGetSession,
		Payload:  sessionIDPayload{SessionID: id},
		Result:   res,
		Response: resp,
	}
	if err := <-res; err != nil {
		return nil, err
	}
	val := <-resp
	if val == nil {
		return nil, nil // Not found
	}
	return val.(*SessionMeta), nil
}

func (w *Worker) SaveSession(session *SessionMeta) error {
	res := make(chan error, 1)
	w.inbox <- workerRequest{
		Op:      OpSaveSession,
		Payload: saveSessionPayload{Session: session},
		Result:  res,
	}
	return <-res
}

// ListSessions scans the sessions directory. A filesystem scan stays
// correct even when the index file was deleted by hand.
func (w *Worker) ListSessions() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(w.basePath, "sessions"))
	if err != nil {
		return nil, err
	}

	var sessions []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".jsonl") {
			sessions = append(sessions, strings.TrimSuffix(entry.Name(), ".jsonl"))
		}
	}
	return sessions, nil
}

func (w *Worker) Stop() {
	close(w.quit)
	w.wg.Wait()

	if w.fileLock.IsLocked() {
		w.fileLock.Unlock()
	}
}

func (w *Worker) IsRunning() bool {
	return w.fileLock.IsLocked() && w.running.Load()
}
