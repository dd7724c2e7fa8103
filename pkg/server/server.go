package server

import (
	sterrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/oarkflow/json"
	"github.com/oarkflow/log"
	"github.com/oarkflow/xid"

	"github.com/oarkflow/tinylang"
	"github.com/oarkflow/tinylang/pkg/runlog"
)

const maxRunHistory = 100

type Config struct {
	Version        string
	RequestTimeout time.Duration
	// CacheSize is the number of compiled programs kept. Zero disables the
	// cache.
	CacheSize      int64
	MaxSourceBytes int
	// MaxOutputBytes caps the print output of one run. Zero disables it.
	MaxOutputBytes int
	// RunLog, when set, is a JSON-lines file that keeps run summaries across
	// restarts.
	RunLog string
	Logger *log.Logger
}

// Server is the playground HTTP API. Every run gets a fresh Interpreter, so
// requests never observe each other's variables or functions.
type Server struct {
	app    *fiber.App
	cache  *ristretto.Cache
	runLog *runlog.Appender[RunSummary]
	config Config
	logger *log.Logger

	mu   sync.RWMutex
	runs []RunSummary
}

type SourceRequest struct {
	Source  string         `json:"source"`
	Globals map[string]any `json:"globals,omitempty"`
}

type RunResponse struct {
	ID            string  `json:"id"`
	Output        string  `json:"output"`
	Value         any     `json:"value"`
	Type          string  `json:"type,omitempty"`
	Error         string  `json:"error,omitempty"`
	Code          string  `json:"code,omitempty"`
	Line          int     `json:"line,omitempty"`
	Column        int     `json:"column,omitempty"`
	Cached        bool    `json:"cached"`
	ExecutionTime float64 `json:"executionTime"`
}

type RunSummary struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Code      string    `json:"code,omitempty"`
	StartTime time.Time `json:"startTime"`
	Duration  float64   `json:"duration"`
	Bytes     int       `json:"bytes"`
}

type ValidationError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

type ValidationResponse struct {
	Valid      bool              `json:"valid"`
	Errors     []ValidationError `json:"errors"`
	Statements int               `json:"statements"`
}

type TokensResponse struct {
	Tokens []tinylang.Token `json:"tokens"`
}

type ASTResponse struct {
	AST        string   `json:"ast"`
	Statements []string `json:"statements"`
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = &log.DefaultLogger
	}
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder: func(v any) ([]byte, error) {
			return json.Marshal(v)
		},
		JSONDecoder: func(data []byte, v any) error {
			return json.Unmarshal(data, v)
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if sterrors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	server := &Server{
		app:    app,
		config: cfg,
		logger: cfg.Logger,
		runs:   []RunSummary{},
	}
	if cfg.CacheSize > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters:        cfg.CacheSize * 10,
			MaxCost:            cfg.CacheSize,
			BufferItems:        64,
			IgnoreInternalCost: true,
		})
		if err != nil {
			return nil, err
		}
		server.cache = cache
	}
	if cfg.RunLog != "" {
		previous, err := runlog.ReadAll[RunSummary](cfg.RunLog)
		if err != nil {
			return nil, err
		}
		if len(previous) > maxRunHistory {
			previous = previous[len(previous)-maxRunHistory:]
		}
		server.runs = append(server.runs, previous...)
		appender, err := runlog.Open[RunSummary](cfg.RunLog)
		if err != nil {
			return nil, err
		}
		server.runLog = appender
	}
	server.setupRoutes()
	return server, nil
}

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	s.app.Use(cors.New())

	s.app.Get("/api/health", s.healthHandler)
	s.app.Post("/api/run", s.runHandler)
	s.app.Post("/api/validate", s.validateHandler)
	s.app.Post("/api/tokens", s.tokensHandler)
	s.app.Post("/api/ast", s.astHandler)
	s.app.Get("/api/runs", s.getRunsHandler)
	s.app.Get("/api/runs/:id", s.getRunHandler)
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   s.config.Version,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) parseSource(c *fiber.Ctx) (SourceRequest, error) {
	var req SourceRequest
	if err := c.BodyParser(&req); err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Source) == "" {
		return req, fiber.NewError(fiber.StatusBadRequest, "Source cannot be empty")
	}
	if s.config.MaxSourceBytes > 0 && len(req.Source) > s.config.MaxSourceBytes {
		return req, fiber.NewError(fiber.StatusRequestEntityTooLarge, "Source is too large")
	}
	return req, nil
}

// compile returns the program for source, sharing compiled programs between
// requests. Programs are never mutated by evaluation.
func (s *Server) compile(source string) (*tinylang.Program, bool, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(source); ok {
			return v.(*tinylang.Program), true, nil
		}
	}
	program, err := tinylang.Compile(source)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		s.cache.Set(source, program, 1)
	}
	return program, false, nil
}

func (s *Server) runHandler(c *fiber.Ctx) error {
	req, err := s.parseSource(c)
	if err != nil {
		return err
	}
	id := xid.New().String()
	start := time.Now()
	resp := RunResponse{ID: id}

	program, cached, err := s.compile(req.Source)
	resp.Cached = cached
	var res *tinylang.Result
	if err == nil {
		opts := []tinylang.Option{
			tinylang.WithTimeout(s.config.RequestTimeout),
			tinylang.WithMaxOutputBytes(s.config.MaxOutputBytes),
		}
		if len(req.Globals) > 0 {
			opts = append(opts, tinylang.WithGlobals(req.Globals))
		}
		res, err = tinylang.Run(c.UserContext(), program, opts...)
	}
	elapsed := time.Since(start)
	resp.ExecutionTime = elapsed.Seconds()
	if res != nil {
		resp.Output = res.Output
		resp.Value = res.Native()
		if res.Value != nil {
			resp.Type = string(res.Value.Type())
		}
	}

	summary := RunSummary{ID: id, Status: "succeeded", StartTime: start, Duration: elapsed.Seconds(), Bytes: len(req.Source)}
	status := fiber.StatusOK
	if err != nil {
		resp.Error = err.Error()
		resp.Code = string(tinylang.CodeOf(err))
		resp.Line, resp.Column = errorPosition(err)
		summary.Status, summary.Code = "failed", resp.Code
		status = fiber.StatusBadRequest
		if tinylang.CodeOf(err) == tinylang.ErrCodeTimeout {
			status = fiber.StatusRequestTimeout
		}
		s.logger.Warn().Str("id", id).Str("code", resp.Code).Err(err).Msg("run failed")
	} else {
		s.logger.Info().Str("id", id).Dur("elapsed", elapsed).Msg("run finished")
	}
	s.recordRun(summary)
	return c.Status(status).JSON(resp)
}

func errorPosition(err error) (int, int) {
	var positioned interface{ Pos() tinylang.Position }
	if sterrors.As(err, &positioned) {
		pos := positioned.Pos()
		return pos.Line, pos.Column
	}
	return 0, 0
}

func (s *Server) validateHandler(c *fiber.Ctx) error {
	req, err := s.parseSource(c)
	if err != nil {
		return err
	}
	resp := ValidationResponse{Valid: true, Errors: []ValidationError{}}
	program, _, err := s.compile(req.Source)
	if err != nil {
		line, column := errorPosition(err)
		resp.Valid = false
		resp.Errors = append(resp.Errors, ValidationError{
			Message: err.Error(),
			Code:    string(tinylang.CodeOf(err)),
			Line:    line,
			Column:  column,
		})
		return c.JSON(resp)
	}
	resp.Statements = len(program.Statements)
	return c.JSON(resp)
}

func (s *Server) tokensHandler(c *fiber.Ctx) error {
	req, err := s.parseSource(c)
	if err != nil {
		return err
	}
	tokens, err := tinylang.Tokenize(req.Source)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(TokensResponse{Tokens: tokens})
}

func (s *Server) astHandler(c *fiber.Ctx) error {
	req, err := s.parseSource(c)
	if err != nil {
		return err
	}
	program, _, err := s.compile(req.Source)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	resp := ASTResponse{AST: program.String(), Statements: make([]string, len(program.Statements))}
	for i, stmt := range program.Statements {
		resp.Statements[i] = stmt.String()
	}
	return c.JSON(resp)
}

func (s *Server) recordRun(summary RunSummary) {
	s.mu.Lock()
	s.runs = append(s.runs, summary)
	if len(s.runs) > maxRunHistory {
		s.runs = s.runs[len(s.runs)-maxRunHistory:]
	}
	s.mu.Unlock()
	if s.runLog != nil {
		if err := s.runLog.Append(summary); err != nil {
			s.logger.Warn().Str("id", summary.ID).Err(err).Msg("could not persist run summary")
		}
	}
}

func (s *Server) getRunsHandler(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := make([]RunSummary, len(s.runs))
	copy(runs, s.runs)
	return c.JSON(runs)
}

func (s *Server) getRunHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, run := range s.runs {
		if run.ID == id {
			return c.JSON(run)
		}
	}
	return fiber.NewError(fiber.StatusNotFound, "Run not found")
}

func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Str("version", s.config.Version).Msg("playground server listening")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	if s.cache != nil {
		s.cache.Close()
	}
	err := s.app.Shutdown()
	if s.runLog != nil {
		if closeErr := s.runLog.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}
