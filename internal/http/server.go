package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"laba/internal/core"
	applog "laba/internal/log"
	"laba/internal/middleware/security"
	"laba/internal/middleware/trace"
	"laba/internal/services"
	appweb "laba/web"
)

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	http.Server
	templates *template.Template
	ledger    *services.LedgerService
	logger    *applog.Logger
	tracer    *trace.Middleware
	checks    []ReadinessCheck
	started   time.Time
}

// Option customises a Server.
type Option func(*Server)

// WithReadinessCheck adds a dependency probe to /readyz.
func WithReadinessCheck(name string, check func(ctx context.Context) error) Option {
	return func(s *Server) {
		s.checks = append(s.checks, ReadinessCheck{Name: name, Check: check})
	}
}

var templateFuncs = template.FuncMap{
	"money": core.FormatMoney,
	"group": core.GroupAmount,
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.LedgerService, logger *applog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		Server:    http.Server{Addr: addr},
		templates: template.Must(template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")),
		ledger:    svc,
		logger:    logger,
		tracer:    trace.NewMiddleware(logger, security.ClientIP),
		started:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	} else {
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
			http.StripPrefix("/static/", http.FileServer(http.FS(static)))))
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /transactions", s.handleCreate)
	mux.HandleFunc("GET /transactions/{index}/edit", s.handleEdit)
	mux.HandleFunc("POST /transactions/{index}", s.handleUpdate)
	mux.HandleFunc("POST /transactions/{index}/delete", s.handleDelete)
	mux.HandleFunc("POST /page/prev", s.handlePrevPage)
	mux.HandleFunc("POST /page/next", s.handleNextPage)
	mux.HandleFunc("GET /api/ledger", s.handleAPILedger)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	s.Handler = security.Headers(security.DefaultHeadersConfig())(s.tracer.Handler(mux))
	return s
}
