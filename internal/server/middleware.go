package server

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/aguas/internal/accessscope"
	"github.com/smallbiznis/aguas/internal/lock"
	obscontext "github.com/smallbiznis/aguas/internal/observability/context"
	obslogger "github.com/smallbiznis/aguas/internal/observability/logger"
	"go.uber.org/zap"
)

const contextCallerKey = "caller"

// ResolveCaller turns the gateway-provided email into a Caller with its scope.
func (s *Server) ResolveCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := strings.TrimSpace(c.GetHeader(obslogger.CallerHeader))
		if email == "" {
			AbortWithError(c, accessscope.ErrUnknownCaller)
			return
		}

		caller, err := s.resolver.ResolveCaller(c.Request.Context(), email)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextCallerKey, caller)
		c.Request = c.Request.WithContext(obscontext.WithCallerRole(c.Request.Context(), string(caller.Role)))
		c.Next()
	}
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFromContext(c)
		if !ok {
			AbortWithError(c, accessscope.ErrUnknownCaller)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), caller.Role, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// limitSubmissions throttles reading submissions per caller. Redis failures
// let the request through.
func (s *Server) limitSubmissions() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFromContext(c)
		if !ok || !s.limiter.Enabled() {
			c.Next()
			return
		}

		wait, err := s.limiter.Allow(c.Request.Context(), caller.User.ID)
		if errors.Is(err, lock.ErrSubmissionRateExceeded) {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			AbortWithError(c, err)
			return
		}
		if err != nil {
			obslogger.WithContext(c.Request.Context(), s.log).Warn("submission limiter unavailable", zap.Error(err))
		}
		c.Next()
	}
}

func callerFromContext(c *gin.Context) (*accessscope.Caller, bool) {
	value, ok := c.Get(contextCallerKey)
	if !ok {
		return nil, false
	}
	caller, ok := value.(*accessscope.Caller)
	return caller, ok && caller != nil
}
