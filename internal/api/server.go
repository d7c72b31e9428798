// Package api serves function calls over HTTP.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"lazyview/internal/config"
	"lazyview/internal/execution"
	"lazyview/internal/model"
	"lazyview/internal/storage"
)

const (
	maxBodyBytes = 1 << 20
	// upper bound of log text returned for a call without return values
	maxLogDetails = 64 << 10
)

// CallFunctionBody is the request of POST /call_function. Lists are comma
// separated.
type CallFunctionBody struct {
	Func          string  `json:"func"`
	TypeArgs      string  `json:"type_args"`
	Args          string  `json:"args"`
	LedgerVersion *int64  `json:"ledger_version"`
	Network       *string `json:"network"`
}

// CallFunctionResponse carries either the pretty printed return values or
// an error description.
type CallFunctionResponse struct {
	Details string `json:"details"`
	Error   bool   `json:"error"`
}

// Options configures a Server.
type Options struct {
	DefaultNetwork string
	AllowedOrigins []string
	// Sink receives a record of every call. Optional.
	Sink   storage.Storage
	Logger *zap.Logger
}

// Server routes HTTP requests to one runner per network.
type Server struct {
	runners map[string]*execution.Runner
	opts    Options
	logger  *zap.Logger
	handler http.Handler
	calls   atomic.Uint64
}

func NewServer(runners map[string]*execution.Runner, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{runners: runners, opts: opts, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/pin", s.handlePin).Methods(http.MethodGet)
	r.HandleFunc("/call_function", s.handleCallFunction).Methods(http.MethodPost)

	s.handler = r
	if len(opts.AllowedOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodPost, http.MethodGet},
			AllowedHeaders: []string{"Origin", "X-Requested-With", "Content-Type", "Accept"},
			MaxAge:         600,
		})
		s.handler = c.Handler(r)
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handlePin(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Hello, world!"))
}

func (s *Server) handleCallFunction(w http.ResponseWriter, r *http.Request) {
	var body CallFunctionBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeResponse(w, http.StatusBadRequest, CallFunctionResponse{Details: fmt.Sprintf("invalid body: %v", err), Error: true})
		return
	}

	network, req, err := s.buildRequest(body)
	if err != nil {
		writeResponse(w, http.StatusBadRequest, CallFunctionResponse{Details: err.Error(), Error: true})
		return
	}
	callID := strconv.FormatUint(s.calls.Add(1), 10)
	runner := s.runners[network]
	// each request gets its own module cache copy and a tagged logger
	runner = runner.
		WithModules(runner.Modules().Clone()).
		WithLogger(runner.Logger().With(zap.String(callIDKey, callID)))

	started := time.Now()
	res, callErr := runner.Call(r.Context(), req)
	s.record(r.Context(), network, req, res, callErr, started)
	if callErr != nil {
		s.logger.Warn("call failed", zap.String("function", req.Function), zap.String("network", network), zap.Error(callErr))
		writeResponse(w, http.StatusOK, CallFunctionResponse{Details: callErr.Error(), Error: true})
		return
	}
	if len(res.ReturnValues) == 0 {
		writeResponse(w, http.StatusOK, CallFunctionResponse{Details: callLog(res.LogPath, callID), Error: true})
		return
	}
	pretty, err := json.MarshalIndent(res.ReturnValues, "", "  ")
	if err != nil {
		writeResponse(w, http.StatusInternalServerError, CallFunctionResponse{Details: err.Error(), Error: true})
		return
	}
	writeResponse(w, http.StatusOK, CallFunctionResponse{Details: string(pretty)})
}

func (s *Server) buildRequest(body CallFunctionBody) (string, execution.Request, error) {
	if _, err := model.ParseFunctionID(body.Func); err != nil {
		return "", execution.Request{}, err
	}
	network := s.opts.DefaultNetwork
	if body.Network != nil && *body.Network != "" {
		network = strings.ToLower(*body.Network)
	}
	if _, ok := s.runners[network]; !ok {
		return "", execution.Request{}, fmt.Errorf("%s should be one of %s", network, strings.Join(s.networkNames(), ","))
	}
	var version uint64
	if body.LedgerVersion != nil {
		if *body.LedgerVersion < 0 {
			return "", execution.Request{}, fmt.Errorf("ledger version should be >= 0")
		}
		version = uint64(*body.LedgerVersion)
	}
	typeArgs := config.SplitList(body.TypeArgs)
	for _, ta := range typeArgs {
		if _, err := model.ParseTypeTag(ta); err != nil {
			return "", execution.Request{}, err
		}
	}
	var args []string
	if body.Args != "" {
		args = strings.Split(body.Args, ",")
		for i := range args {
			args[i] = strings.TrimSpace(args[i])
		}
	}
	return network, execution.Request{
		Function:      strings.TrimSpace(body.Func),
		TypeArgs:      typeArgs,
		Args:          args,
		LedgerVersion: version,
	}, nil
}

func (s *Server) record(ctx context.Context, network string, req execution.Request, res execution.Result, callErr error, at time.Time) {
	if s.opts.Sink == nil {
		return
	}
	rec := execution.NewCallRecord(network, req, res, callErr, at)
	if err := s.opts.Sink.PutCallBatch(ctx, []model.CallRecord{rec}); err != nil {
		s.logger.Warn("store call record failed", zap.Error(err))
	}
}

func (s *Server) networkNames() []string {
	names := make([]string, 0, len(s.runners))
	for name := range s.runners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const callIDKey = "call_id"

// callLog returns the lines of the log file written for one call, keeping
// the most recent maxLogDetails bytes.
func callLog(path, callID string) string {
	const noValues = "function returned no values"
	if path == "" {
		return noValues
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Sprintf("%s (log unavailable: %v)", noValues, err)
	}
	defer file.Close()

	marker := fmt.Sprintf("%q:%q", callIDKey, callID)
	var lines []string
	size := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, marker) {
			continue
		}
		lines = append(lines, line)
		size += len(line) + 1
		for size > maxLogDetails && len(lines) > 1 {
			size -= len(lines[0]) + 1
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Sprintf("%s (log unreadable: %v)", noValues, err)
	}
	if len(lines) == 0 {
		return noValues
	}
	out := strings.Join(lines, "\n")
	if len(out) > maxLogDetails {
		out = out[len(out)-maxLogDetails:]
	}
	return out
}

func writeResponse(w http.ResponseWriter, status int, resp CallFunctionResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
