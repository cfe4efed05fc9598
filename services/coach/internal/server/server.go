package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"swinglab/internal/ratelimit"
	"swinglab/internal/usertoken"
	"swinglab/internal/util"
	"swinglab/pkg/domain"
	"swinglab/pkg/quota"
	"swinglab/services/coach/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App               *app.App
	TokenVerifier     *usertoken.Verifier
	RedisAddr         string
	RedisPassword     string
	AnalyzePerMinute  int
	MaxUploadBytes    int64
	AllowedExtensions []string
}

// Server exposes HTTP endpoints for the coach service.
type Server struct {
	app            *app.App
	tokenVerifier  *usertoken.Verifier
	analyzeLimiter *ratelimit.FixedWindowLimiter
	mux            *http.ServeMux
	maxUploadBytes int64
	allowedExts    map[string]struct{}
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 100 * 1024 * 1024
	}
	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = []string{".mp4", ".mov", ".m4v", ".webm"}
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	s := &Server{
		app:            cfg.App,
		tokenVerifier:  cfg.TokenVerifier,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
		allowedExts:    allowed,
	}
	if cfg.AnalyzePerMinute > 0 {
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "swinglab:analyze", cfg.AnalyzePerMinute, time.Minute)
		if err != nil {
			return nil, err
		}
		s.analyzeLimiter = limiter
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("coach", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/plans", s.handlePlans)

	// swing videos
	s.mux.Handle("/me", s.withUser(s.handleMe))
	s.mux.Handle("/videos", s.withUser(s.handleVideos))
	s.mux.Handle("/videos/", s.withUser(s.handleVideoByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePlans lists the subscription tiers and their weekly allowances.
// Public: the marketing page renders pricing from it.
func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	plans := []domain.Plan{domain.PlanPerClip, domain.PlanMinor, domain.PlanMajor}
	items := make([]planInfo, 0, len(plans))
	for _, plan := range plans {
		items = append(items, planInfo{
			Plan:      plan,
			Label:     quota.Label(plan),
			Allowance: quota.Allowance(plan),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

type planInfo struct {
	Plan      domain.Plan `json:"plan"`
	Label     string      `json:"label"`
	Allowance int         `json:"allowance"`
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokenVerifier == nil {
			writeError(w, http.StatusInternalServerError, "SYSTEM_INTERNAL_ERROR", "token verifier not configured")
			return
		}
		token, ok := bearerToken(r)
		if !ok {
			unauthorized(w)
			return
		}
		subject, err := s.tokenVerifier.VerifySubject(token)
		if err != nil {
			unauthorized(w)
			return
		}
		user, err := s.app.EnsureUser(subject)
		if err != nil {
			writeAppError(w, err)
			return
		}
		next(w, r, user)
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	overview, err := s.app.GetOverview(user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodPost:
		s.handleUploadVideo(w, r, user)
	case http.MethodGet:
		s.handleListVideos(w, r, user)
	default:
		methodNotAllowed(w)
	}
}

// /videos/{id} or /videos/{id}/analysis
func (s *Server) handleVideoByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/videos/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w)
		return
	}

	if len(parts) == 2 && parts[1] == "analysis" {
		s.handleAnalysis(w, r, user, id)
		return
	}
	if len(parts) == 2 {
		notFound(w)
		return
	}

	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	video, err := s.app.GetSwing(r.Context(), user, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, video)
}

func (s *Server) handleUploadVideo(w http.ResponseWriter, r *http.Request, user domain.User) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "SWING_INVALID_UPLOAD_FORM", "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "SWING_FILE_REQUIRED", "file is required (field: file)")
		return
	}
	defer file.Close()
	if !s.extensionAllowed(header.Filename) {
		writeError(w, http.StatusBadRequest, "SWING_UNSUPPORTED_FILE_TYPE", "unsupported file type")
		return
	}
	video, err := s.app.UploadSwing(r.Context(), user, header.Filename, file, header.Size)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, video)
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request, user domain.User) {
	videos, err := s.app.ListSwings(r.Context(), user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": videos,
		"count": len(videos),
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request, user domain.User, videoID string) {
	switch r.Method {
	case http.MethodGet:
		record, ok, err := s.app.GetAnalysis(user, videoID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "ANALYSIS_NOT_FOUND", "analysis not found")
			return
		}
		writeJSON(w, http.StatusOK, record)
	case http.MethodPost:
		if s.analyzeLimiter != nil && !s.analyzeLimiter.Allow(util.ClientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many analysis requests")
			return
		}
		record, err := s.app.AnalyzeSwing(r.Context(), user, videoID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) extensionAllowed(filename string) bool {
	if len(s.allowedExts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	_, ok := s.allowedExts[ext]
	return ok
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "SYSTEM_METHOD_NOT_ALLOWED", "method not allowed")
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "SYSTEM_NOT_FOUND", "not found")
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "AUTH_INVALID_TOKEN", "unauthorized")
}

// writeAppError maps the orchestrator's error taxonomy onto HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	var quotaErr app.QuotaExceededError
	switch {
	case errors.As(err, &quotaErr):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:     quotaErr.Error(),
			Code:      "QUOTA_EXCEEDED",
			RequestID: requestIDHeader(w),
			Quota: &quotaDetail{
				Plan:      quotaErr.Plan,
				Allowance: quotaErr.Allowance,
				Used:      quotaErr.Used,
			},
		})
	case errors.Is(err, app.ErrVideoNotFound):
		writeError(w, http.StatusNotFound, "VIDEO_NOT_FOUND", "video not found")
	case errors.Is(err, app.ErrUploadFailed):
		writeError(w, http.StatusBadGateway, "SWING_UPLOAD_FAILED", "upload failed")
	case errors.Is(err, app.ErrGenerationFailed):
		writeError(w, http.StatusBadGateway, "REPORT_GENERATION_FAILED", "report generation failed")
	case errors.Is(err, app.ErrPersistence):
		writeError(w, http.StatusInternalServerError, "SYSTEM_PERSISTENCE_ERROR", "internal error")
	default:
		writeError(w, http.StatusBadRequest, "REQUEST_ERROR", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string       `json:"error"`
	Code      string       `json:"code"`
	RequestID string       `json:"requestId,omitempty"`
	Quota     *quotaDetail `json:"quota,omitempty"`
}

type quotaDetail struct {
	Plan      domain.Plan `json:"plan"`
	Allowance int         `json:"allowance"`
	Used      int         `json:"used"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: requestIDHeader(w),
	})
}

func requestIDHeader(w http.ResponseWriter) string {
	return strings.TrimSpace(w.Header().Get("X-Request-Id"))
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
