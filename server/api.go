package server

import (
	"encoding/base64"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sonaguard/sonaguard/detect"
	sgerr "github.com/sonaguard/sonaguard/errors"
	"github.com/sonaguard/sonaguard/logging"
)

type detectRequest struct {
	AudioBase64 string `json:"audio_base64" binding:"required"`
}

type detectResponse struct {
	RequestID string `json:"request_id"`
	*detect.DetectionResult
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserEmail   string `json:"user_email"`
	APIKey      string `json:"api_key"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// anonymousUser identifies requests authorized by the shared service key
const anonymousUser = "anonymous"

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)

	v1 := s.engine.Group("/api/v1")
	{
		v1.POST("/detect", s.handleDetect)
		v1.POST("/auth/register", s.handleRegister)
		v1.POST("/auth/login", s.handleLogin)
		v1.GET("/auth/me", s.handleMe)
		v1.GET("/dashboard/stats", s.handleStats)
		v1.GET("/dashboard/history", s.handleHistory)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "sonaguard",
	})
}

// handleDetect runs the detection pipeline on a base64 clip. Extraction is
// CPU-bound, so concurrent requests are bounded by a semaphore; requests
// canceled while queued never start extracting.
func (s *Server) handleDetect(c *gin.Context) {
	email, ok := s.authenticate(c)
	if !ok {
		return
	}

	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "MISSING_AUDIO", Message: err.Error()})
		return
	}

	payload := req.AudioBase64
	if idx := strings.Index(payload, ";base64,"); idx >= 0 {
		payload = payload[idx+len(";base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Code:    string(sgerr.CodeUnsupportedFormat),
			Message: "audio_base64 is not valid base64",
		})
		return
	}
	if int64(len(data)) > s.config.Limits.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{
			Code:    string(sgerr.CodeAudioTooLong),
			Message: "audio payload exceeds upload limit",
		})
		return
	}

	ctx := c.Request.Context()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{
			Code:    string(sgerr.CodeInternal),
			Message: "request canceled while queued",
		})
		return
	}
	result, err := s.detector.Detect(ctx, data)
	s.sem.Release(1)

	if err != nil {
		s.writeDetectionError(c, err)
		return
	}

	requestID := uuid.NewString()
	if s.store != nil {
		s.store.LogDetection(requestID, email, result)
		if email != anonymousUser {
			if err := s.store.IncrementRequests(email); err != nil {
				logging.Warn("Failed to bump request counter", logging.Fields{"email": email, "error": err.Error()})
			}
		}
	}

	logging.Info("Detection served", logging.Fields{
		"request_id": requestID,
		"user":       email,
		"prediction": result.Prediction,
		"confidence": result.Confidence,
	})

	c.JSON(http.StatusOK, detectResponse{RequestID: requestID, DetectionResult: result})
}

func (s *Server) writeDetectionError(c *gin.Context, err error) {
	code := sgerr.CodeOf(err)

	status := http.StatusInternalServerError
	switch {
	case code == sgerr.CodeAudioTooLong:
		status = http.StatusRequestEntityTooLarge
	case sgerr.IsClientInput(code):
		status = http.StatusBadRequest
	case code == sgerr.CodeModelUnavailable:
		status = http.StatusServiceUnavailable
	}

	if status >= 500 {
		logging.Error(err, "Detection failed")
	}

	message := err.Error()
	var typed *sgerr.Error
	if stderrors.As(err, &typed) {
		message = typed.Message
	}

	c.JSON(status, errorResponse{Code: string(code), Message: message})
}

// authenticate resolves the caller from a JWT bearer token, a per-user API
// key or the shared service key. Writes the 401 itself on failure.
func (s *Server) authenticate(c *gin.Context) (string, bool) {
	authz := c.GetHeader("Authorization")
	apiKey := c.GetHeader("X-API-Key")

	switch {
	case strings.HasPrefix(authz, "Bearer "):
		token := strings.TrimPrefix(authz, "Bearer ")

		// A bearer value matching a known API key is treated as one
		if s.config.Auth.APIKey != "" && token == s.config.Auth.APIKey {
			return anonymousUser, true
		}

		email, err := s.auth.VerifyToken(token)
		if err == nil {
			if s.store != nil {
				user, lookupErr := s.store.GetUserByEmail(email)
				if lookupErr == nil && user != nil {
					return email, true
				}
			}
			c.JSON(http.StatusUnauthorized, errorResponse{Code: "USER_NOT_FOUND", Message: "account no longer exists"})
			return "", false
		}

		if user := s.userByAPIKey(token); user != nil {
			return user.Email, true
		}

		c.JSON(http.StatusUnauthorized, errorResponse{Code: "INVALID_TOKEN", Message: "token is invalid or expired"})
		return "", false

	case apiKey != "":
		if s.config.Auth.APIKey != "" && apiKey == s.config.Auth.APIKey {
			return anonymousUser, true
		}
		if user := s.userByAPIKey(apiKey); user != nil {
			return user.Email, true
		}
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "INVALID_API_KEY", Message: "API key not recognized"})
		return "", false

	default:
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "AUTHENTICATION_REQUIRED", Message: "provide a bearer token or API key"})
		return "", false
	}
}

func (s *Server) userByAPIKey(key string) *User {
	if s.store == nil {
		return nil
	}
	user, err := s.store.GetUserByAPIKey(key)
	if err != nil || user == nil {
		return nil
	}
	return user
}

// requireUser resolves a JWT-authenticated account for the dashboard
// endpoints. Shared-key access is not enough here.
func (s *Server) requireUser(c *gin.Context) (*User, bool) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Code: "PERSISTENCE_DISABLED", Message: "user accounts are unavailable"})
		return nil, false
	}

	authz := c.GetHeader("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "AUTHENTICATION_REQUIRED", Message: "bearer token required"})
		return nil, false
	}

	email, err := s.auth.VerifyToken(strings.TrimPrefix(authz, "Bearer "))
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "INVALID_TOKEN", Message: "token is invalid or expired"})
		return nil, false
	}

	user, err := s.store.GetUserByEmail(email)
	if err != nil || user == nil {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "USER_NOT_FOUND", Message: "account no longer exists"})
		return nil, false
	}
	return user, true
}

func (s *Server) handleRegister(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Code: "PERSISTENCE_DISABLED", Message: "user accounts are unavailable"})
		return
	}

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	existing, err := s.store.GetUserByEmail(req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Message: "registration failed"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "USER_EXISTS", Message: "account already registered"})
		return
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Message: "registration failed"})
		return
	}

	user, err := s.store.CreateUser(req.Email, hash, s.auth.GenerateAPIKey())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Message: "registration failed"})
		return
	}

	token, err := s.auth.CreateToken(user.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Message: "registration failed"})
		return
	}

	logging.Info("User registered", logging.Fields{"email": user.Email})

	c.JSON(http.StatusCreated, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		UserEmail:   user.Email,
		APIKey:      user.APIKey,
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Code: "PERSISTENCE_DISABLED", Message: "user accounts are unavailable"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	user, err := s.store.GetUserByEmail(req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Message: "login failed"})
		return
	}
	if user == nil || !s.auth.VerifyPassword(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "INVALID_CREDENTIALS", Message: "email or password is wrong"})
		return
	}

	token, err := s.auth.CreateToken(user.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Message: "login failed"})
		return
	}

	logging.Info("User logged in", logging.Fields{"email": user.Email})

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		UserEmail:   user.Email,
		APIKey:      user.APIKey,
	})
}

func (s *Server) handleMe(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"email":          user.Email,
		"api_key":        user.APIKey,
		"created_at":     user.CreatedAt,
		"total_requests": user.TotalRequests,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}

	stats, err := s.store.GetUserStats(user.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Message: "failed to load statistics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"email":   user.Email,
		"api_key": user.APIKey,
		"stats":   stats,
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	history, err := s.store.GetUserHistory(user.Email, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Message: "failed to load history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":       len(history),
		"predictions": history,
	})
}
