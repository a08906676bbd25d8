package controllers

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/novelhub/config"
	"github.com/cppla/novelhub/services"
)

// ViewController records novel and chapter views.
type ViewController struct {
	views *services.ViewService
	cfg   config.AppConfig
}

func NewViewController(views *services.ViewService, cfg config.AppConfig) *ViewController {
	return &ViewController{views: views, cfg: cfg}
}

type viewRequest struct {
	NovelID   uint `json:"novelId"`
	ChapterID uint `json:"chapterId"`
}

// RecordView credits the novel and/or chapter once per visitor per day.
// Counting problems never fail the request; they just report counted=false.
func (v *ViewController) RecordView(ctx *gin.Context) {
	var req viewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request payload"})
		return
	}
	refs, err := services.ViewTargets(req.NovelID, req.ChapterID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "novelId or chapterId is required"})
		return
	}

	token, _ := ctx.Cookie(v.cfg.ViewCookieName)
	visit := services.Visit{Token: token, Fingerprint: ctx.ClientIP() + "|" + ctx.Request.UserAgent()}

	counted := false
	var last services.ViewResult
	for _, ref := range refs {
		res := v.views.RecordView(ctx.Request.Context(), ref, visit)
		counted = counted || res.Counted()
		if res.Issued {
			last = res
		}
		visit.Token = res.Token
	}

	if last.Issued {
		if maxAge := int(math.Ceil(last.TTL.Seconds())); maxAge > 0 {
			ctx.SetSameSite(http.SameSiteLaxMode)
			ctx.SetCookie(v.cfg.ViewCookieName, visit.Token, maxAge, "/", "", v.cfg.IsProduction(), true)
		}
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "counted": counted})
}
