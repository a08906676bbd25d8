package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/novelhub/services"
)

// CronController exposes the scheduled publication sweep to an external scheduler.
type CronController struct {
	sweeper *services.Sweeper
	now     func() time.Time
}

func NewCronController(sweeper *services.Sweeper) *CronController {
	return &CronController{sweeper: sweeper, now: time.Now}
}

// PublishScheduled runs one sweep. The caller authenticates with "Authorization: Bearer <secret>".
func (c *CronController) PublishScheduled(ctx *gin.Context) {
	if err := c.sweeper.Authorize(ctx.GetHeader("Authorization")); err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	res, err := c.sweeper.Sweep(ctx.Request.Context(), c.now())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to publish scheduled chapters"})
		return
	}
	ctx.JSON(http.StatusOK, res)
}
