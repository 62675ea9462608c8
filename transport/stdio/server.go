package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/jonwraymond/toolexec/observe"
	"github.com/jonwraymond/toolexec/pipeline"
	"github.com/jonwraymond/toolexec/tool"
	"github.com/jonwraymond/toolexec/validate"
)

// maxLineBytes bounds one request line. Requests are small (target plus at
// most 2 KiB of extra_args); anything larger is malformed.
const maxLineBytes = 64 * 1024

// request is one framed request line.
type request struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Tool   string          `json:"tool,omitempty"`
	Input  callInput       `json:"input,omitempty"`
}

// callInput is the per-call input schema shared by every callable.
type callInput struct {
	Target        string  `json:"target"`
	ExtraArgs     string  `json:"extra_args,omitempty"`
	TimeoutSec    float64 `json:"timeout_sec,omitempty"`
	CorrelationID string  `json:"correlation_id,omitempty"`
}

// response is one framed response line. Exactly one of Result and Error is
// set.
type response struct {
	ID     json.RawMessage `json:"id"`
	Result any             `json:"result,omitempty"`
	Error  *responseError  `json:"error,omitempty"`
}

type responseError struct {
	Message string `json:"message"`
}

// callable describes one entry in the tools/list response.
type callable struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema"`
}

// inputSchema is the JSON Schema every callable shares.
var inputSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"target":      map[string]any{"type": "string"},
		"extra_args":  map[string]any{"type": "string"},
		"timeout_sec": map[string]any{"type": "number"},
	},
	"required": []string{"target"},
}

// Server is the stdio adapter over a pipeline.
type Server struct {
	pipe     *pipeline.Pipeline
	registry *tool.Registry
	logger   observe.Logger

	mu        sync.RWMutex
	callables map[string]tool.Definition

	writeMu sync.Mutex
	out     io.Writer
}

// NewServer wires the stdio adapter and subscribes it to registry changes.
func NewServer(pipe *pipeline.Pipeline, registry *tool.Registry, logger observe.Logger) *Server {
	s := &Server{
		pipe:      pipe,
		registry:  registry,
		logger:    logger,
		callables: make(map[string]tool.Definition),
	}
	registry.AddListener(tool.ListenerFunc(s.syncCallables))
	s.syncCallables(registry.EnabledNames())
	return s
}

// syncCallables rebuilds the callable table from the full enabled set. The
// table is replaced, never patched, so the surface always matches the
// registry exactly.
func (s *Server) syncCallables(enabled []string) {
	next := make(map[string]tool.Definition, len(enabled))
	for _, name := range enabled {
		if def, ok := s.registry.Get(name); ok {
			next[name] = def
		}
	}
	s.mu.Lock()
	s.callables = next
	s.mu.Unlock()
}

// Run serves framed requests from in until EOF or ctx cancellation,
// dispatching each on its own goroutine so a slow execution never blocks
// the read loop. It starts the pipeline's monitoring task and waits for
// in-flight requests before returning.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	s.pipe.Start(ctx)
	s.out = out

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

	var wg sync.WaitGroup
	defer wg.Wait()

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.dispatch(ctx, line)
		}()
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, line []byte) {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		s.writeResponse(response{Error: &responseError{Message: "malformed request line"}})
		return
	}

	switch req.Method {
	case "tools/list":
		s.writeResponse(response{ID: req.ID, Result: map[string]any{"tools": s.listCallables()}})

	case "tools/call":
		s.handleCall(ctx, req)

	default:
		s.writeResponse(response{ID: req.ID, Error: &responseError{Message: "unknown method: " + req.Method}})
	}
}

func (s *Server) listCallables() []callable {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]callable, 0, len(s.callables))
	for _, def := range s.callables {
		out = append(out, callable{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: inputSchema,
		})
	}
	return out
}

func (s *Server) handleCall(ctx context.Context, req request) {
	s.mu.RLock()
	_, ok := s.callables[req.Tool]
	s.mu.RUnlock()
	if !ok {
		s.writeResponse(response{ID: req.ID, Error: &responseError{Message: "unknown tool: " + req.Tool}})
		return
	}

	res := s.pipe.Execute(ctx, req.Tool, validate.Request{
		Target:        req.Input.Target,
		ExtraArgs:     req.Input.ExtraArgs,
		TimeoutSec:    req.Input.TimeoutSec,
		CorrelationID: req.Input.CorrelationID,
	})

	s.logger.Info(ctx, "tool executed",
		observe.Field{Key: "tool", Value: req.Tool},
		observe.Field{Key: "error_type", Value: res.ErrorType},
		observe.Field{Key: "correlation_id", Value: res.CorrelationID},
	)

	s.writeResponse(response{ID: req.ID, Result: res})
}

// writeResponse serializes one response line. Writes are serialized under a
// mutex so concurrent dispatches never interleave bytes.
func (s *Server) writeResponse(resp response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, _ = s.out.Write(payload)
	_, _ = s.out.Write([]byte("\n"))
}
