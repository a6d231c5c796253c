package api

import (
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prudhvinik1/seatkeeper/internal/metrics"
	"github.com/prudhvinik1/seatkeeper/internal/ratelimit"
	"github.com/prudhvinik1/seatkeeper/internal/services"
)

const maxBodyBytes = 1 << 20

// Dependencies are the collaborators the HTTP layer needs. Auth and Limiter are
// optional: a nil Auth leaves the admin API open, a nil Limiter disables rate limiting.
type Dependencies struct {
	Licenses       *services.LicenseService
	Admin          *services.AdminService
	Auth           *services.AuthService
	Limiter        ratelimit.Limiter
	Metrics        *metrics.Manager
	RequestTimeout time.Duration

	// TrustProxyHeaders takes the client address from X-Forwarded-For and friends.
	// Only safe behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

type Server struct {
	licenses       *services.LicenseService
	admin          *services.AdminService
	auth           *services.AuthService
	limiter        ratelimit.Limiter
	metrics        *metrics.Manager
	validate       *validator.Validate
	requestTimeout time.Duration
	trustProxy     bool
}

func NewServer(deps Dependencies) *Server {
	return &Server{
		licenses:       deps.Licenses,
		admin:          deps.Admin,
		auth:           deps.Auth,
		limiter:        deps.Limiter,
		metrics:        deps.Metrics,
		validate:       newValidator(),
		requestTimeout: deps.RequestTimeout,
		trustProxy:     deps.TrustProxyHeaders,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if s.requestTimeout > 0 {
		r.Use(middleware.Timeout(s.requestTimeout))
	}

	r.Get("/", s.handleIndex)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.auth != nil {
			r.With(s.rateLimit("token")).Post("/auth/token", s.handleIssueToken)
		}

		r.Route("/license", func(r chi.Router) {
			r.With(s.rateLimit("check")).Post("/check", s.handleCheck)

			r.Group(func(r chi.Router) {
				if s.auth != nil {
					r.Use(s.requireAdmin)
				}
				r.Get("/", s.adminOp("list_licenses", s.handleListLicenses))
				r.Post("/", s.adminOp("create_license", s.handleCreateLicense))
				r.Get("/{id}", s.adminOp("get_license", s.handleGetLicense))
				r.Patch("/{id}", s.adminOp("update_license", s.handleUpdateLicense))
				r.Delete("/{id}", s.adminOp("delete_license", s.handleDeleteLicense))
				r.Get("/by-key/{key}/devices", s.adminOp("list_devices", s.handleListDevices))
				r.Delete("/by-key/{key}/devices/{hwid}", s.adminOp("remove_device", s.handleRemoveDevice))
			})
		})
	})

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"message": "seatkeeper license server is running"})
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
