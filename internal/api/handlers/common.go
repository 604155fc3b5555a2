package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/services"
	"github.com/yoockh/casecoach/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

// writeError renders err as {code, message}. Server-side failures are also
// attached to the context so the access log carries the cause.
func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, APIError{
		Code:    utils.CodeOf(err),
		Message: utils.PublicMessage(err),
	})
}

func requireUserID(c *gin.Context) (string, bool) {
	if v, ok := c.Get("user_id"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}

// ownedSession loads the session and checks it belongs to userID.
func ownedSession(ctx context.Context, svc services.SessionService, op, sessionID, userID string) (*models.Session, error) {
	sess, err := svc.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "forbidden", nil)
	}
	return sess, nil
}

func intParam(c *gin.Context, op, name string) (int, error) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v < 0 {
		return 0, utils.E(utils.CodeInvalidArgument, op, name+" must be a non-negative integer", err)
	}
	return v, nil
}
