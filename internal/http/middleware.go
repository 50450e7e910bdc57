package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"apod-explorer/internal/service"
)

const (
	ctxUserID    = "userID"
	ctxRequestID = "requestID"

	headerRequestID = "X-Request-ID"
)

func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := false
	whitelist := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		if o != "" {
			whitelist[o] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			// same-origin requests and non-browser clients
			c.Next()
			return
		}
		if _, ok := whitelist[origin]; !ok && !allowAll {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"msg": "origin not allowed"})
			return
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Add("Vary", "Origin")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ctxRequestID, requestID)
		c.Writer.Header().Set(headerRequestID, requestID)

		c.Next()

		entry := h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request served")
		}
	}
}

// errorEnvelope renders errors handlers attached with c.Error as {msg, stack?}.
func (h *Handler) errorEnvelope() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		h.writeServerError(c, c.Errors.Last().Err)
	}
}

func (h *Handler) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		h.writeServerError(c, pkgerrors.Errorf("panic: %v", recovered))
	})
}

func (h *Handler) writeServerError(c *gin.Context, err error) {
	h.logger.WithFields(logrus.Fields{
		"request_id": c.GetString(ctxRequestID),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
	}).Errorf("unhandled error: %+v", err)

	body := gin.H{"msg": "internal server error"}
	if !h.production {
		body["msg"] = err.Error()
		body["stack"] = fmt.Sprintf("%+v", err)
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, body)
}

// requireAuth resolves the bearer token to a user id or rejects the request.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			h.logger.WithField("path", c.Request.URL.Path).Warn("request without bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "no token, authorization denied"})
			return
		}

		userID, err := h.sessions.Validate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, service.ErrTokenInvalid) {
				_ = c.Error(pkgerrors.WithStack(err))
				c.Abort()
				return
			}
			h.logger.WithError(err).WithField("path", c.Request.URL.Path).Warn("token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": tokenRejection(err)})
			return
		}

		c.Set(ctxUserID, userID)
		c.Next()
	}
}

func tokenRejection(err error) string {
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		return "token expired, authorization denied"
	case errors.Is(err, service.ErrTokenUserGone):
		return "user not found, authorization denied"
	default:
		return "token is not valid, authorization denied"
	}
}
