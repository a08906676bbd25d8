package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/novelhub/middleware"
	"github.com/cppla/novelhub/models"
	"github.com/cppla/novelhub/utils"
)

// LibraryController manages the novels a reader follows.
type LibraryController struct {
	db *gorm.DB
}

func NewLibraryController(db *gorm.DB) *LibraryController {
	return &LibraryController{db: db}
}

// ListLibrary returns the current user's saved novels, newest first.
func (l *LibraryController) ListLibrary(ctx *gin.Context) {
	userID, _ := middleware.CurrentUserID(ctx)
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	q := l.db.Model(&models.LibraryEntry{}).Where("user_id = ?", userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to count library")
		return
	}
	var entries []models.LibraryEntry
	if err := q.Preload("Novel.Author").Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&entries).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to list library")
		return
	}

	items := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		item := novelResponse(e.Novel)
		item["added_at"] = e.CreatedAt
		items = append(items, item)
	}
	utils.Success(ctx, paginated(items, page, pageSize, total))
}

// AddToLibrary saves a novel. Adding the same novel twice is not an error.
func (l *LibraryController) AddToLibrary(ctx *gin.Context) {
	userID, _ := middleware.CurrentUserID(ctx)
	novelID, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid novel id")
		return
	}

	var novel models.Novel
	if err := l.db.Select("id").First(&novel, novelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "novel not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load novel")
		return
	}

	entry := models.LibraryEntry{UserID: userID, NovelID: novelID}
	if err := l.db.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50062, "failed to add to library")
		return
	}
	utils.Success(ctx, gin.H{"novel_id": novelID, "in_library": true})
}

// RemoveFromLibrary drops a novel from the library; removing a missing entry succeeds too.
func (l *LibraryController) RemoveFromLibrary(ctx *gin.Context) {
	userID, _ := middleware.CurrentUserID(ctx)
	novelID, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid novel id")
		return
	}
	if err := l.db.Where("user_id = ? AND novel_id = ?", userID, novelID).Delete(&models.LibraryEntry{}).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50063, "failed to remove from library")
		return
	}
	utils.Success(ctx, gin.H{"novel_id": novelID, "in_library": false})
}
