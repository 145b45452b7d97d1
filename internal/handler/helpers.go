package handler

import (
	"partsreserve/internal/middleware"
	"partsreserve/internal/model"
	"partsreserve/pkg/apperror"
	"partsreserve/pkg/response"

	"github.com/gin-gonic/gin"
)

func writeError(c *gin.Context, err error) {
	status, body := response.FromError(err)
	if status >= 500 {
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

// actorOrAbort returns the authenticated caller or writes 401.
func actorOrAbort(c *gin.Context) (model.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		writeError(c, apperror.Unauthorized("authorization is missing"))
		c.Abort()
	}
	return actor, ok
}

func bindError(err error) error {
	return apperror.Validation("invalid request payload: " + err.Error())
}
