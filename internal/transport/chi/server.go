package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridq/internal/domain"
	"github.com/kailas-cloud/hybridq/internal/domain/search/filter"
	"github.com/kailas-cloud/hybridq/internal/logger"
	compileuc "github.com/kailas-cloud/hybridq/internal/usecase/compile"
	healthuc "github.com/kailas-cloud/hybridq/internal/usecase/health"
)

// DefaultMaxBodyBytes limits request bodies when no explicit limit is set.
const DefaultMaxBodyBytes = 1 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the compiler over HTTP.
type Server struct {
	compiler      *compileuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	maxBodyBytes  int64
	indexName     string
	tags          []compileuc.Tag
	errorHandlers []errorHandler
}

// Option configures a Server.
type Option func(*Server)

// WithMaxBodyBytes limits the size of request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithMappingDefaults sets the index name and tags POST /v1/mapping uses when the body omits them.
func WithMappingDefaults(indexName string, tags []compileuc.Tag) Option {
	return func(s *Server) {
		s.indexName = indexName
		s.tags = tags
	}
}

// NewServer creates an HTTP API server. health can be nil.
func NewServer(
	compiler *compileuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		compiler:     compiler,
		health:       health,
		logger:       logger,
		maxBodyBytes: DefaultMaxBodyBytes,
		indexName:    "hybridq",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.errorHandlers = []errorHandler{
		filterValueHandler,
		sentinelHandler(domain.ErrUnresolvableEncoder, http.StatusBadRequest, ErrorCodeUnresolvableEncoder),
		sentinelHandler(domain.ErrMalformedDocument, http.StatusBadRequest, ErrorCodeMalformedDocument),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, ErrorCodeVectorDimMismatch),
		sentinelHandler(domain.ErrEmptyScoreCalculation, http.StatusBadRequest, ErrorCodeEmptyScoreCalculation),
		sentinelHandler(domain.ErrInvalidSchema, http.StatusBadRequest, ErrorCodeInvalidSchema),
		sentinelHandler(domain.ErrEncoderNotConfigured, http.StatusBadRequest, ErrorCodeEncoderNotConfigured),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeValidationFailed),
		providerErrorHandler,
	}
	return s
}

// Compile handles POST /v1/compile.
func (s *Server) Compile(w http.ResponseWriter, r *http.Request) {
	breakdownParam, err := scoreBreakdownParam(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter score_breakdown: "+err.Error())
		return
	}

	var req CompileRequest
	if !s.decode(w, r, &req, false) {
		return
	}

	compileReq, err := req.ToDomain(breakdownParam)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	compiled, err := s.compiler.Compile(ctx, &compileReq)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEncoderHeaders(w, usage)
	writeJSON(w, http.StatusOK, NewCompileResponse(compiled))
}

// Mapping handles POST /v1/mapping.
func (s *Server) Mapping(w http.ResponseWriter, r *http.Request) {
	var req MappingRequest
	if !s.decode(w, r, &req, true) {
		return
	}

	name := s.indexName
	if req.IndexName != "" {
		name = req.IndexName
	}
	tags := s.tags
	if req.Tags != nil {
		tags = tagsFromDTO(*req.Tags)
	}

	def, err := s.compiler.IndexMapping(name, tags)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MappingResponse{Index: def.Name, Body: def.Body()})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: string(healthuc.Healthy), Checks: map[string]string{}})
		return
	}

	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decode reads a JSON body. An optional body may be empty.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorCodeRequestTooLarge,
				"request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return false
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func setEncoderHeaders(w http.ResponseWriter, usage *domain.EncodingUsage) {
	if usage != nil && usage.Used() {
		w.Header().Set("X-Encoder-Tokens", strconv.Itoa(usage.TotalTokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// sentinelHandler returns an errorHandler that matches a single client-side sentinel.
// Client errors describe the request only, so the full message is returned.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

// filterValueHandler reports the offending filter key next to the message.
func filterValueHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrInvalidFilterValue) {
		return false
	}
	resp := ErrorResponse{Code: ErrorCodeInvalidFilterValue, Message: err.Error()}
	var ve *filter.ValueError
	if errors.As(err, &ve) {
		resp.Key = ve.Key
	}
	writeJSON(w, http.StatusBadRequest, resp)
	return true
}

// providerErrorHandler hides provider internals behind the sentinel message.
func providerErrorHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrEncoderProviderError) {
		return false
	}
	writeError(w, http.StatusBadGateway, ErrorCodeEncoderProviderError, domain.ErrEncoderProviderError.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

// scoreBreakdownParam reports whether a URL carries score_breakdown=true.
func scoreBreakdownParam(q url.Values) (bool, error) {
	var flag *bool
	if err := runtime.BindQueryParameter("form", true, false, "score_breakdown", q, &flag); err != nil {
		return false, err
	}
	return flag != nil && *flag, nil
}
