package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"devexpense/internal/config"
	"devexpense/internal/core"
	applog "devexpense/internal/log"
	"devexpense/internal/middleware/ratelimit"
	"devexpense/internal/middleware/security"
	"devexpense/internal/middleware/trace"
	appweb "devexpense/web"
)

// Calculator is what the handlers need from the calculator service.
type Calculator interface {
	Session(ctx context.Context, id string) (core.Session, error)
	CalculateExpenses(ctx context.Context, id string, in core.RawInputs) (core.Session, error)
	CalculateSavings(ctx context.Context, id string, percentage string) (core.Session, error)
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Options tunes the server. Zero values fall back to defaults.
type Options struct {
	CurrencySymbol     string
	RateLimitPerMinute int
	Logger             *applog.Logger
	// Checks run by /readyz, keyed by dependency name.
	Checks map[string]ReadinessCheck
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

type appMetrics struct {
	calculations       atomic.Int64
	rejected           atomic.Int64
	savingsApplied     atomic.Int64
	storeErrors        atomic.Int64
	sessionsIssued     atomic.Int64
	templateRenderings atomic.Int64
	uptime             time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	calc      Calculator
	logger    *applog.Logger
	currency  string
	checks    map[string]ReadinessCheck
	secure    bool

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, calc Calculator, opts Options) *Server {
	if opts.CurrencySymbol == "" {
		opts.CurrencySymbol = config.DefaultCurrencySymbol
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}

	detector := security.NewDetector()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		calc:             calc,
		logger:           logger.WithComponent(applog.ComponentHTTP),
		currency:         opts.CurrencySymbol,
		checks:           opts.Checks,
		secure:           opts.SecureCookies,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	// Parse embedded templates at startup.
	t, err := appweb.ParseTemplates(s.templateFuncs())
	if err != nil {
		s.logger.Warn("Failed parsing templates", applog.FieldError, err, applog.FieldComponent, applog.ComponentTemplate)
	} else {
		s.templates = t
	}

	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	page := func(h http.HandlerFunc) http.Handler { return security.NoStore(h) }

	mux.Handle("GET /{$}", page(s.handleIndex))
	mux.Handle("POST /calculate", page(s.handleCalculate))
	mux.Handle("POST /savings", page(s.handleSavings))
	mux.Handle("GET /ui/calculator", page(s.handleCalculatorPartial))
	mux.Handle("GET /ui/results", page(s.handleResultsPartial))
	mux.Handle("GET /ui/history", page(s.handleHistoryPartial))

	mux.Handle("GET /api/session", page(s.handleAPISession))
	mux.Handle("POST /api/calculate", page(s.handleAPICalculate))
	mux.Handle("POST /api/savings", page(s.handleAPISavings))

	// outermost first
	var h http.Handler = mux
	h = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, nil)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.securityDetector.Middleware(h)
	h = s.traceMiddleware.Middleware(h)
	return h
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(d decimal.Decimal) string {
			return core.FormatMoney(s.currency, d)
		},
		"currency": func() string { return s.currency },
	}
}

// Shutdown gracefully shuts down the server and its rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
