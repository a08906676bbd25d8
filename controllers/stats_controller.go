package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/novelhub/config"
	"github.com/cppla/novelhub/models"
	"github.com/cppla/novelhub/utils"
)

// StatsController provides platform statistics for the admin dashboard.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// GetStats returns aggregate statistics for the platform.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var userCount, novelCount, totalViews, viewsToday int64

	// Fall back to 0 instead of failing the whole dashboard
	if err := s.db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		userCount = 0
	}
	if err := s.db.Model(&models.Novel{}).Count(&novelCount).Error; err != nil {
		novelCount = 0
	}

	chapters := gin.H{}
	for _, status := range []models.ChapterStatus{models.ChapterDraft, models.ChapterScheduled, models.ChapterPublished} {
		var n int64
		if err := s.db.Model(&models.Chapter{}).Where("status = ?", status).Count(&n).Error; err != nil {
			n = 0
		}
		chapters[string(status)] = n
	}

	if err := s.db.Model(&models.Novel{}).Select("COALESCE(SUM(view_count),0)").Scan(&totalViews).Error; err != nil {
		totalViews = 0
	}

	// The ledger day is text in the view timezone
	today := time.Now().In(config.Get().ViewLocation()).Format(models.DayLayout)
	if err := s.db.Model(&models.ViewDaily{}).
		Where("day = ? AND kind = ?", today, models.KindNovel).
		Select("COALESCE(SUM(credits),0)").
		Scan(&viewsToday).Error; err != nil {
		viewsToday = 0
	}

	utils.Success(ctx, gin.H{
		"user_count":        userCount,
		"novel_count":       novelCount,
		"chapters":          chapters,
		"total_novel_views": totalViews,
		"novel_views_today": viewsToday,
	})
}
