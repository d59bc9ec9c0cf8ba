package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/pkg/logger"
	"github.com/bamanh2802/bookingcar/pkg/middleware"
	"github.com/bamanh2802/bookingcar/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PermissionSource expands a role into its flattened permission list
type PermissionSource interface {
	Resolve(ctx context.Context, roleID string) ([]string, error)
}

// principalFrom builds the caller from the JWT claims. Role permissions are
// merged in when perms is set.
func principalFrom(c *gin.Context, perms PermissionSource) (*domain.Principal, error) {
	userID, ok := middleware.GetUserID(c)
	if !ok || userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	roleID, _ := middleware.GetRoleID(c)
	roleName, _ := middleware.GetRole(c)

	p := &domain.Principal{
		UserID:      userID,
		RoleID:      roleID,
		RoleName:    roleName,
		Permissions: append([]string(nil), middleware.GetPermissions(c)...),
	}
	if perms != nil && roleID != "" {
		resolved, err := perms.Resolve(c.Request.Context(), roleID)
		if err != nil {
			return nil, err
		}
		for _, perm := range resolved {
			if !p.HasPermission(perm) {
				p.Permissions = append(p.Permissions, perm)
			}
		}
	}
	return p, nil
}

// handleError converts domain errors to HTTP responses
func handleError(c *gin.Context, err error) {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		if errors.Is(err, domain.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, response.Unauthorized(domainErr.Message))
			return
		}
		c.JSON(response.GetHTTPStatus(domainErr.Code), response.Error(domainErr.Code, domainErr.Message))
		return
	}

	logger.WithContext(c.Request.Context()).Error("request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, response.InternalError("internal server error"))
}
