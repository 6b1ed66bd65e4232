package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	kurokoErrors "github.com/harunnryd/kuroko/internal/errors"
	"github.com/harunnryd/kuroko/internal/model/contract"
)

const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultIdleTimeout    = 60 * time.Second

	// Oversized tool results can come back as single very long lines.
	maxLineBytes = 10 * 1024 * 1024
)

// Client speaks the streaming JSON-lines chat protocol of a local model
// server. Each Stream call opens a fresh connection; streams are finite
// and not restartable.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	idleTimeout time.Duration
}

func New(host string, connectTimeout, idleTimeout time.Duration) *Client {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}

	baseURL := strings.TrimSuffix(strings.TrimSpace(host), "/")
	if baseURL != "" && !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	// Connect establishment is bounded; the read side is not. Generation
	// pauses are legitimate, so stalls are handled by the idle watchdog
	// per stream instead of a response deadline.
	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: connectTimeout,
	}

	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Transport: transport},
		idleTimeout: idleTimeout,
	}
}

// Stream issues the chat request and returns the lazy fragment sequence.
// A 400-class response while tool definitions were attached means the
// model cannot use tools; callers retry the turn with tools disabled.
func (c *Client) Stream(ctx context.Context, req contract.ChatRequest) (*Stream, error) {
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, kurokoErrors.MapTransport(err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 && len(req.Tools) > 0 {
			slog.Debug("Model rejected tool request", "status", resp.StatusCode, "body", string(respBody))
			return nil, fmt.Errorf("status %d: %w", resp.StatusCode, kurokoErrors.ErrToolsUnsupported)
		}
		return nil, fmt.Errorf("status %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(respBody)), kurokoErrors.ErrConnectivity)
	}

	s := &Stream{
		body:    resp.Body,
		scanner: bufio.NewScanner(resp.Body),
	}
	s.scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	// The watchdog aborts the blocking read by closing the body; Next
	// translates the resulting read error into ErrStreamIdle.
	s.watchdog = time.AfterFunc(c.idleTimeout, func() {
		s.idleFired.Store(true)
		s.body.Close()
	})
	s.idleTimeout = c.idleTimeout

	return s, nil
}

// Complete drains a stream into a single accumulated response. Used for
// non-interactive requests such as compaction summaries.
func (c *Client) Complete(ctx context.Context, req contract.ChatRequest) (string, []contract.ToolCall, error) {
	stream, err := c.Stream(ctx, req)
	if err != nil {
		return "", nil, err
	}
	defer stream.Close()

	var content strings.Builder
	var calls []contract.ToolCall
	for {
		frag, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, err
		}
		content.WriteString(frag.Message.Content)
		calls = append(calls, frag.Message.ToolCalls...)
	}

	return content.String(), calls, nil
}

// Stream is one live response. Fragments arrive until done=true, the
// idle watchdog fires, or the server closes the connection.
type Stream struct {
	body        io.ReadCloser
	scanner     *bufio.Scanner
	watchdog    *time.Timer
	idleTimeout time.Duration
	idleFired   atomic.Bool
	finished    bool
}

// Next returns the next decoded fragment. Malformed lines are skipped;
// they never abort the stream. io.EOF marks normal exhaustion.
func (s *Stream) Next() (contract.Fragment, error) {
	if s.finished {
		return contract.Fragment{}, io.EOF
	}

	for s.scanner.Scan() {
		s.watchdog.Reset(s.idleTimeout)

		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var frag contract.Fragment
		if err := json.Unmarshal(line, &frag); err != nil {
			slog.Debug("Skipping malformed stream line", "error", kurokoErrors.Wrap(kurokoErrors.ErrProtocol, err.Error()))
			continue
		}

		if frag.Done {
			s.finish()
		}
		return frag, nil
	}

	err := s.scanner.Err()
	s.finish()

	if s.idleFired.Load() {
		return contract.Fragment{}, kurokoErrors.ErrStreamIdle
	}
	if err != nil {
		return contract.Fragment{}, kurokoErrors.MapTransport(err)
	}
	return contract.Fragment{}, io.EOF
}

func (s *Stream) finish() {
	if s.finished {
		return
	}
	s.finished = true
	s.watchdog.Stop()
	s.body.Close()
}

// Close releases the underlying connection. Safe to call more than once.
func (s *Stream) Close() {
	s.finish()
}
