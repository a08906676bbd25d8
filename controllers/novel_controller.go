package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/novelhub/config"
	"github.com/cppla/novelhub/middleware"
	"github.com/cppla/novelhub/models"
	"github.com/cppla/novelhub/utils"
)

const novelListCachePrefix = "cache:novels:list:"

// NovelController manages novels.
type NovelController struct {
	db *gorm.DB
}

// NewNovelController creates a new NovelController instance.
func NewNovelController(db *gorm.DB) *NovelController {
	return &NovelController{db: db}
}

type novelRequest struct {
	Title    *string `json:"title"`
	Synopsis *string `json:"synopsis"`
	Genre    *string `json:"genre"`
	CoverURL *string `json:"cover_url"`
	Status   *string `json:"status"`
}

// apply copies the provided fields onto n, sanitizing user content.
func (r novelRequest) apply(n *models.Novel) error {
	if r.Title != nil {
		title := utils.Truncate(utils.SanitizePlain(strings.TrimSpace(*r.Title)), 255)
		if title == "" {
			return errors.New("title cannot be empty")
		}
		n.Title = title
	}
	if r.Synopsis != nil {
		n.Synopsis = utils.Sanitize(*r.Synopsis)
	}
	if r.Genre != nil {
		n.Genre = utils.Truncate(strings.ToLower(utils.SanitizePlain(strings.TrimSpace(*r.Genre))), 32)
	}
	if r.CoverURL != nil {
		n.CoverURL = utils.Truncate(strings.TrimSpace(*r.CoverURL), 512)
	}
	if r.Status != nil {
		status := models.NovelStatus(strings.ToUpper(strings.TrimSpace(*r.Status)))
		if !status.Valid() {
			return errors.New("status must be ONGOING, COMPLETED or HIATUS")
		}
		n.Status = status
	}
	return nil
}

func novelResponse(n models.Novel) gin.H {
	return gin.H{
		"id":         n.ID,
		"title":      n.Title,
		"synopsis":   n.Synopsis,
		"genre":      n.Genre,
		"cover_url":  n.CoverURL,
		"status":     n.Status,
		"view_count": n.ViewCount,
		"author":     publicUser(n.Author),
		"created_at": n.CreatedAt,
		"updated_at": n.UpdatedAt,
	}
}

func novelResponses(novels []models.Novel) []gin.H {
	out := make([]gin.H, 0, len(novels))
	for _, n := range novels {
		out = append(out, novelResponse(n))
	}
	return out
}

// ListNovels returns paginated novels, optionally filtered by genre or a title/author search.
func (c *NovelController) ListNovels(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	search := strings.TrimSpace(ctx.Query("search"))
	genre := strings.ToLower(strings.TrimSpace(ctx.Query("genre")))

	// only unsearched lists are cached to keep the key space small
	cacheKey := fmt.Sprintf("%sgenre=%s:page=%d:size=%d", novelListCachePrefix, genre, page, pageSize)
	if search == "" {
		if b, ok := utils.CacheGetBytes(ctx.Request.Context(), cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	query := c.db.Model(&models.Novel{})
	if search != "" {
		like := "%" + search + "%"
		authors := c.db.Model(&models.User{}).Select("id").Where("username LIKE ?", like)
		query = query.Where("novels.title LIKE ? OR novels.author_id IN (?)", like, authors)
	}
	if genre != "" {
		query = query.Where("novels.genre = ?", genre)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to count novels")
		return
	}

	var novels []models.Novel
	if err := query.Preload("Author").Order("novels.updated_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&novels).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list novels")
		return
	}

	payload := paginated(novelResponses(novels), page, pageSize, total)
	if search == "" {
		utils.CacheSetEnvelope(ctx.Request.Context(), cacheKey, payload, 5*time.Minute)
	}
	utils.Success(ctx, payload)
}

// GetNovel returns a single novel with its author.
func (c *NovelController) GetNovel(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid novel id")
		return
	}

	var novel models.Novel
	if err := c.db.Preload("Author").First(&novel, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "novel not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load novel")
		return
	}

	var chapters int64
	_ = c.db.Model(&models.Chapter{}).
		Where("novel_id = ? AND status = ?", novel.ID, models.ChapterPublished).
		Count(&chapters).Error

	resp := novelResponse(novel)
	resp["published_chapters"] = chapters
	utils.Success(ctx, gin.H{"novel": resp})
}

// CreateNovel lets authors, translators and admins start a novel.
func (c *NovelController) CreateNovel(ctx *gin.Context) {
	var req novelRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Title == nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid request payload")
		return
	}

	userID, _ := middleware.CurrentUserID(ctx)
	novel := models.Novel{AuthorID: userID, Status: models.NovelOngoing}
	if err := req.apply(&novel); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, err.Error())
		return
	}

	if err := c.db.Omit(clause.Associations).Create(&novel).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to create novel")
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), novelListCachePrefix)

	if err := c.db.Preload("Author").First(&novel, novel.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load novel")
		return
	}
	utils.Created(ctx, gin.H{"novel": novelResponse(novel)})
}

// UpdateNovel changes metadata. Only the owner or an admin may do this.
func (c *NovelController) UpdateNovel(ctx *gin.Context) {
	novel, ok := c.loadManaged(ctx)
	if !ok {
		return
	}

	var req novelRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid request payload")
		return
	}
	if err := req.apply(&novel); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, err.Error())
		return
	}

	if err := c.db.Omit(clause.Associations).Save(&novel).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to update novel")
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), novelListCachePrefix)
	utils.Success(ctx, gin.H{"novel": novelResponse(novel)})
}

// DeleteNovel removes a novel with its chapters and library entries.
func (c *NovelController) DeleteNovel(ctx *gin.Context) {
	novel, ok := c.loadManaged(ctx)
	if !ok {
		return
	}

	err := c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("novel_id = ?", novel.ID).Delete(&models.Chapter{}).Error; err != nil {
			return err
		}
		if err := tx.Where("novel_id = ?", novel.ID).Delete(&models.LibraryEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Novel{}, novel.ID).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to delete novel")
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), novelListCachePrefix)
	utils.Success(ctx, gin.H{"message": "novel deleted"})
}

// Trending ranks novels by views credited today.
func (c *NovelController) Trending(ctx *gin.Context) {
	limit := 10
	if n, err := strconv.Atoi(ctx.Query("limit")); err == nil && n > 0 && n <= 50 {
		limit = n
	}
	today := time.Now().In(config.Get().ViewLocation()).Format(models.DayLayout)

	var ranked []models.ViewDaily
	if err := c.db.Where("day = ? AND kind = ?", today, models.KindNovel).
		Order("credits DESC, entity_id ASC").Limit(limit).Find(&ranked).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to load trending novels")
		return
	}

	ids := make([]uint, 0, len(ranked))
	for _, r := range ranked {
		ids = append(ids, r.EntityID)
	}
	var novels []models.Novel
	if len(ids) > 0 {
		if err := c.db.Preload("Author").Where("id IN ?", ids).Find(&novels).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to load trending novels")
			return
		}
	}
	byID := make(map[uint]models.Novel, len(novels))
	for _, n := range novels {
		byID[n.ID] = n
	}

	items := make([]gin.H, 0, len(ranked))
	for _, r := range ranked {
		n, ok := byID[r.EntityID]
		if !ok {
			continue
		}
		item := novelResponse(n)
		item["views_today"] = r.Credits
		items = append(items, item)
	}
	utils.Success(ctx, gin.H{"day": today, "items": items})
}

// ListMyNovels returns the novels owned by the current user.
func (c *NovelController) ListMyNovels(ctx *gin.Context) {
	userID, _ := middleware.CurrentUserID(ctx)
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	q := c.db.Model(&models.Novel{}).Where("author_id = ?", userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to count novels")
		return
	}
	var novels []models.Novel
	if err := q.Preload("Author").Order("updated_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&novels).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to list novels")
		return
	}
	utils.Success(ctx, paginated(novelResponses(novels), page, pageSize, total))
}

// loadManaged loads the novel in the :id param and checks ownership, answering the request on failure.
func (c *NovelController) loadManaged(ctx *gin.Context) (models.Novel, bool) {
	var novel models.Novel
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid novel id")
		return novel, false
	}
	if err := c.db.Preload("Author").First(&novel, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "novel not found")
			return novel, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load novel")
		return novel, false
	}
	if !canManage(ctx, novel.AuthorID) {
		utils.Error(ctx, http.StatusForbidden, 40302, "you can only manage your own novels")
		return novel, false
	}
	return novel, true
}
