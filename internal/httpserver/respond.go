package httpserver

import (
	"github.com/gin-gonic/gin"

	"redbead/internal/pkg/errs"
)

func respondError(c *gin.Context, e *errs.CustomError) {
	if e == nil {
		e = errs.NewError(errs.ErrUnknown)
	}
	c.AbortWithStatusJSON(e.Status, e)
}
