package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"identity-gateway/internal/identity/service"
)

// ValidationContext is the contexto of request-shape errors.
const ValidationContext = "request validation"

// AuthService is the orchestrator used by the HTTP handlers. Implemented by *service.AuthService.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	LoginWithOAuth(ctx context.Context, redirectTo string) (*service.OAuthResult, error)
	Enable2FA(ctx context.Context, email string) (*service.ChallengeResult, error)
	Verify2FA(ctx context.Context, email, code string) (string, error)
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=32"`
	Phone    string `json:"phone" binding:"omitempty,max=20"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=32"`
}

type enable2FARequest struct {
	Email string `json:"email" binding:"required,email"`
}

type verify2FARequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,min=6,max=10"`
}

type authData struct {
	User    map[string]any  `json:"user"`
	Session json.RawMessage `json:"session"`
}

type urlData struct {
	URL string `json:"url"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type enable2FAResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ErrorResponse is the error envelope shared by every route.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	Details    any    `json:"details"`
	Contexto   string `json:"contexto"`
}

// AuthHandler serves the /auth routes.
type AuthHandler struct {
	svc AuthService
}

// NewAuthHandler returns handlers backed by svc.
func NewAuthHandler(svc AuthService) *AuthHandler {
	useJSONFieldNames()
	return &AuthHandler{svc: svc}
}

// RegisterRoutes mounts the /auth routes on r.
func (h *AuthHandler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/auth")
	g.POST("/register", h.register)
	g.POST("/login", h.login)
	g.GET("/github", h.github)
	g.POST("/2fa/enable", h.enable2FA)
	g.POST("/2fa/verify", h.verify2FA)
}

func (h *AuthHandler) register(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.svc.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse{
		Success: true,
		Message: res.Message,
		Data:    authData{User: res.User, Session: res.Session},
	})
}

func (h *AuthHandler) login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse{
		Success: true,
		Message: res.Message,
		Data:    authData{User: res.User, Session: res.Session},
	})
}

func (h *AuthHandler) github(c *gin.Context) {
	res, err := h.svc.LoginWithOAuth(c.Request.Context(), c.Query("redirectTo"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse{
		Success: true,
		Message: res.Message,
		Data:    urlData{URL: res.URL},
	})
}

func (h *AuthHandler) enable2FA(c *gin.Context) {
	var req enable2FARequest
	if !bind(c, &req) {
		return
	}
	res, err := h.svc.Enable2FA(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, enable2FAResponse{
		Success:   true,
		Message:   res.Message,
		Code:      res.Code,
		ExpiresAt: res.ExpiresAt,
	})
}

func (h *AuthHandler) verify2FA(c *gin.Context) {
	var req verify2FARequest
	if !bind(c, &req) {
		return
	}
	msg, err := h.svc.Verify2FA(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true, Message: msg})
}

// bind decodes and validates the JSON body. On failure it writes the 400 envelope and returns false.
func bind(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(c, &service.Error{
			Status:   http.StatusBadRequest,
			Category: http.StatusText(http.StatusBadRequest),
			Message:  "invalid request body",
			Details:  err.Error(),
			Context:  ValidationContext,
		})
		return false
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldMessage(fe))
	}
	writeError(c, &service.Error{
		Status:   http.StatusBadRequest,
		Category: http.StatusText(http.StatusBadRequest),
		Message:  details[0],
		Details:  details,
		Context:  ValidationContext,
	})
	return false
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	default:
		return field + " is invalid"
	}
}

// writeError renders err as the error envelope. Errors that are not *service.Error become 500.
func writeError(c *gin.Context, err error) {
	e := service.Translate(err, "")
	c.JSON(e.Status, ErrorResponse{
		StatusCode: e.Status,
		Error:      e.Category,
		Message:    e.Message,
		Details:    e.Details,
		Contexto:   e.Context,
	})
}

var tagNameOnce sync.Once

// useJSONFieldNames makes validation errors name fields by their JSON key.
func useJSONFieldNames() {
	tagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
}
