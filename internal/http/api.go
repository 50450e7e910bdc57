package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"apod-explorer/internal/calendar"
	"apod-explorer/internal/domain"
	"apod-explorer/internal/nasa"
	"apod-explorer/internal/service"
)

// PictureSource fetches pictures from the upstream provider.
type PictureSource interface {
	FetchDailyImage(ctx context.Context, date string) (*nasa.Result, error)
}

type Config struct {
	AllowOrigins []string
	Production   bool
	Logger       logrus.FieldLogger
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users      service.UserService
	sessions   service.SessionService
	pictures   PictureSource
	origins    []string
	production bool
	logger     logrus.FieldLogger
}

func NewHandler(users service.UserService, sessions service.SessionService, pictures PictureSource, cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Handler{
		users:      users,
		sessions:   sessions,
		pictures:   pictures,
		origins:    cfg.AllowOrigins,
		production: cfg.Production,
		logger:     cfg.Logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(h.requestLogger(), h.recovery(), h.errorEnvelope(), corsMiddleware(h.origins))

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "API running")
	})

	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		auth := api.Group("/auth")
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.DELETE("/user", h.requireAuth(), h.deleteUser)

		users := api.Group("/users", h.requireAuth())
		users.GET("/profile", h.getProfile)
		users.PUT("/profile", h.updateProfile)

		api.GET("/nasa/apod", h.getApod)
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

type ProfileResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

type UpdateProfileResponse struct {
	ProfileResponse
	Msg string `json:"msg"`
}

func errorList(msgs ...string) gin.H {
	list := make([]gin.H, len(msgs))
	for i, m := range msgs {
		list[i] = gin.H{"msg": m}
	}
	return gin.H{"errors": list}
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorList("invalid request body"))
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, errorList(verr.Messages...))
		case errors.Is(err, service.ErrDuplicateEmail):
			c.JSON(http.StatusBadRequest, errorList(service.ErrDuplicateEmail.Error()))
		default:
			_ = c.Error(pkgerrors.WithStack(err))
		}
		return
	}

	h.logger.WithField("user_id", user.ID).Info("user registered")
	c.JSON(http.StatusCreated, gin.H{"msg": "user registered successfully"})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorList("invalid request body"))
		return
	}
	var msgs []string
	if strings.TrimSpace(req.Email) == "" {
		msgs = append(msgs, "enter a valid email address")
	}
	if req.Password == "" {
		msgs = append(msgs, "password is required")
	}
	if len(msgs) > 0 {
		c.JSON(http.StatusBadRequest, errorList(msgs...))
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.logger.Warn("failed login attempt")
			c.JSON(http.StatusUnauthorized, errorList(service.ErrInvalidCredentials.Error()))
			return
		}
		_ = c.Error(pkgerrors.WithStack(err))
		return
	}

	token, err := h.sessions.Issue(user.ID)
	if err != nil {
		_ = c.Error(pkgerrors.WithStack(err))
		return
	}

	h.logger.WithField("user_id", user.ID).Info("user logged in")
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handler) deleteUser(c *gin.Context) {
	userID := c.GetString(ctxUserID)

	if err := h.users.Delete(c.Request.Context(), userID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			h.logger.WithField("user_id", userID).Warn("delete requested for missing user")
			c.JSON(http.StatusNotFound, errorList(service.ErrUserNotFound.Error()))
			return
		}
		_ = c.Error(pkgerrors.WithStack(err))
		return
	}

	h.logger.WithField("user_id", userID).Info("user deleted")
	c.JSON(http.StatusOK, gin.H{"msg": "your account has been deleted"})
}

func (h *Handler) getProfile(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"msg": service.ErrUserNotFound.Error()})
			return
		}
		_ = c.Error(pkgerrors.WithStack(err))
		return
	}
	c.JSON(http.StatusOK, profileToResponse(*user))
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorList("invalid request body"))
		return
	}
	// an empty password means "keep the current one"
	if req.Password != nil && *req.Password == "" {
		req.Password = nil
	}
	if req.Name == nil && req.Password == nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "no data supplied for update"})
		return
	}

	userID := c.GetString(ctxUserID)
	user, err := h.users.UpdateProfile(c.Request.Context(), userID, service.ProfileUpdate{
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, errorList(verr.Messages...))
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"msg": service.ErrUserNotFound.Error()})
		default:
			_ = c.Error(pkgerrors.WithStack(err))
		}
		return
	}

	h.logger.WithField("user_id", userID).Info("profile updated")
	c.JSON(http.StatusOK, UpdateProfileResponse{
		ProfileResponse: profileToResponse(*user),
		Msg:             "profile updated successfully",
	})
}

func (h *Handler) getApod(c *gin.Context) {
	date := c.Query("date")
	if date != "" {
		if _, err := calendar.Parse(date); err != nil {
			h.logger.WithField("date", date).Warn("malformed date, requesting today's picture")
			date = ""
		}
	}

	res, err := h.pictures.FetchDailyImage(c.Request.Context(), date)
	if err != nil {
		var upErr *nasa.UpstreamError
		switch {
		case errors.Is(err, nasa.ErrNoEntry):
			c.JSON(http.StatusNotFound, gin.H{"msg": err.Error()})
		case errors.Is(err, nasa.ErrNotConfigured):
			h.logger.Error("nasa api key missing")
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "server configuration error [nasa]"})
		case errors.As(err, &upErr) && upErr.Status == 0:
			h.logger.WithError(err).Error("nasa api unreachable")
			c.JSON(http.StatusBadGateway, gin.H{"msg": "could not reach the nasa service"})
		case errors.As(err, &upErr):
			c.JSON(upErr.Status, gin.H{"msg": "nasa api error: " + upErr.Message, "nasa_status": upErr.Status})
		default:
			_ = c.Error(pkgerrors.WithStack(err))
		}
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", res.Raw)
}

func profileToResponse(user domain.User) ProfileResponse {
	return ProfileResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}
