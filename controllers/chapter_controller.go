package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/novelhub/models"
	"github.com/cppla/novelhub/services"
	"github.com/cppla/novelhub/store"
	"github.com/cppla/novelhub/utils"
)

// ChapterController manages chapters and their publication state.
type ChapterController struct {
	db      *gorm.DB
	content *store.ContentStore
	now     func() time.Time
}

// NewChapterController creates a new ChapterController instance.
func NewChapterController(content *store.ContentStore) *ChapterController {
	return &ChapterController{db: content.DB(), content: content, now: time.Now}
}

type chapterRequest struct {
	Number      *int       `json:"number"`
	Title       *string    `json:"title"`
	Content     *string    `json:"content"`
	Status      *string    `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// apply validates the request against the chapter's current state and copies it over.
func (r chapterRequest) apply(c *models.Chapter, now time.Time) error {
	if r.Number != nil {
		if *r.Number <= 0 {
			return errors.New("number must be positive")
		}
		c.Number = *r.Number
	}
	if r.Title != nil {
		title := utils.Truncate(utils.SanitizePlain(*r.Title), 255)
		if title == "" {
			return errors.New("title cannot be empty")
		}
		c.Title = title
	}
	if r.Content != nil {
		c.Content = utils.Sanitize(*r.Content)
	}

	status := c.Status
	if r.Status != nil {
		status = models.ChapterStatus(strings.ToUpper(strings.TrimSpace(*r.Status)))
		if !status.Valid() {
			return errors.New("status must be DRAFT, SCHEDULED or PUBLISHED")
		}
	}
	if c.Status == models.ChapterPublished && status != models.ChapterPublished {
		return errors.New("a published chapter cannot be unpublished")
	}

	switch status {
	case models.ChapterDraft:
		c.ScheduledAt = nil
	case models.ChapterScheduled:
		at := c.ScheduledAt
		if r.ScheduledAt != nil {
			at = r.ScheduledAt
		}
		if at == nil || !at.After(now) {
			return errors.New("scheduled_at must be in the future")
		}
		utc := at.UTC()
		c.ScheduledAt = &utc
	case models.ChapterPublished:
		if c.PublishedAt == nil {
			utc := now.UTC()
			c.PublishedAt = &utc
		}
		c.ScheduledAt = nil
	}
	c.Status = status
	return nil
}

func chapterResponse(c models.Chapter, withContent bool) gin.H {
	resp := gin.H{
		"id":           c.ID,
		"novel_id":     c.NovelID,
		"number":       c.Number,
		"title":        c.Title,
		"status":       c.Status,
		"scheduled_at": c.ScheduledAt,
		"published_at": c.PublishedAt,
		"view_count":   c.ViewCount,
		"created_at":   c.CreatedAt,
		"updated_at":   c.UpdatedAt,
	}
	if withContent {
		resp["content"] = c.Content
	}
	return resp
}

// ListChapters lists a novel's published chapters. Owners and admins also see drafts and scheduled ones.
func (cc *ChapterController) ListChapters(ctx *gin.Context) {
	novel, ok := cc.loadNovel(ctx)
	if !ok {
		return
	}

	q := cc.db.Omit("content").Where("novel_id = ?", novel.ID)
	if !canManage(ctx, novel.AuthorID) {
		q = q.Where("status = ?", models.ChapterPublished)
	}
	var chapters []models.Chapter
	if err := q.Order("number ASC").Find(&chapters).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to list chapters")
		return
	}

	items := make([]gin.H, 0, len(chapters))
	for _, c := range chapters {
		items = append(items, chapterResponse(c, false))
	}
	utils.Success(ctx, gin.H{"items": items})
}

// GetChapter returns a chapter with its content. Unpublished chapters look missing to other readers.
func (cc *ChapterController) GetChapter(ctx *gin.Context) {
	chapter, novel, ok := cc.loadChapter(ctx)
	if !ok {
		return
	}
	if !chapter.IsPublic() && !canManage(ctx, novel.AuthorID) {
		utils.Error(ctx, http.StatusNotFound, 40441, "chapter not found")
		return
	}

	var prev, next models.Chapter
	resp := chapterResponse(chapter, true)
	if err := cc.db.Select("id").Where("novel_id = ? AND status = ? AND number < ?", novel.ID, models.ChapterPublished, chapter.Number).
		Order("number DESC").Limit(1).Find(&prev).Error; err == nil && prev.ID != 0 {
		resp["prev_id"] = prev.ID
	}
	if err := cc.db.Select("id").Where("novel_id = ? AND status = ? AND number > ?", novel.ID, models.ChapterPublished, chapter.Number).
		Order("number ASC").Limit(1).Find(&next).Error; err == nil && next.ID != 0 {
		resp["next_id"] = next.ID
	}
	utils.Success(ctx, gin.H{"chapter": resp, "novel": gin.H{"id": novel.ID, "title": novel.Title}})
}

// CreateChapter adds a chapter as DRAFT, SCHEDULED or PUBLISHED.
func (cc *ChapterController) CreateChapter(ctx *gin.Context) {
	novel, ok := cc.loadNovel(ctx)
	if !ok {
		return
	}
	if !canManage(ctx, novel.AuthorID) {
		utils.Error(ctx, http.StatusForbidden, 40342, "you can only add chapters to your own novels")
		return
	}

	var req chapterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Title == nil {
		utils.Error(ctx, http.StatusBadRequest, 40041, "invalid request payload")
		return
	}

	chapter := models.Chapter{NovelID: novel.ID, Status: models.ChapterDraft}
	if req.Number == nil {
		var last int
		if err := cc.db.Model(&models.Chapter{}).Where("novel_id = ?", novel.ID).
			Select("COALESCE(MAX(number), 0)").Scan(&last).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to number chapter")
			return
		}
		chapter.Number = last + 1
	}
	if err := req.apply(&chapter, cc.now()); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40042, err.Error())
		return
	}

	var dup int64
	if err := cc.db.Model(&models.Chapter{}).Where("novel_id = ? AND number = ?", novel.ID, chapter.Number).Count(&dup).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to create chapter")
		return
	}
	if dup > 0 {
		utils.Error(ctx, http.StatusConflict, 40941, "chapter number already used")
		return
	}

	if err := cc.db.Create(&chapter).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to create chapter")
		return
	}
	utils.Created(ctx, gin.H{"chapter": chapterResponse(chapter, true)})
}

// UpdateChapter edits a chapter. The write only applies if the status is unchanged since it was read,
// so an edit never reverts a concurrent publish.
func (cc *ChapterController) UpdateChapter(ctx *gin.Context) {
	chapter, novel, ok := cc.loadChapter(ctx)
	if !ok {
		return
	}
	if !canManage(ctx, novel.AuthorID) {
		utils.Error(ctx, http.StatusForbidden, 40343, "you can only edit your own chapters")
		return
	}

	var req chapterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40043, "invalid request payload")
		return
	}
	readStatus := chapter.Status
	if err := req.apply(&chapter, cc.now()); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40042, err.Error())
		return
	}

	res := cc.db.Model(&models.Chapter{}).
		Where("id = ? AND status = ?", chapter.ID, readStatus).
		Updates(map[string]interface{}{
			"number":       chapter.Number,
			"title":        chapter.Title,
			"content":      chapter.Content,
			"status":       chapter.Status,
			"scheduled_at": chapter.ScheduledAt,
			"published_at": chapter.PublishedAt,
			"updated_at":   cc.now().UTC(),
		})
	if res.Error != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to update chapter")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusConflict, 40942, "chapter status changed, reload and retry")
		return
	}
	utils.Success(ctx, gin.H{"chapter": chapterResponse(chapter, true)})
}

// DeleteChapter removes a chapter.
func (cc *ChapterController) DeleteChapter(ctx *gin.Context) {
	chapter, novel, ok := cc.loadChapter(ctx)
	if !ok {
		return
	}
	if !canManage(ctx, novel.AuthorID) {
		utils.Error(ctx, http.StatusForbidden, 40344, "you can only delete your own chapters")
		return
	}
	if err := cc.db.Delete(&models.Chapter{}, chapter.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50044, "failed to delete chapter")
		return
	}
	utils.Success(ctx, gin.H{"message": "chapter deleted"})
}

// PublishChapter publishes a draft or scheduled chapter right away.
func (cc *ChapterController) PublishChapter(ctx *gin.Context) {
	chapter, novel, ok := cc.loadChapter(ctx)
	if !ok {
		return
	}
	if !canManage(ctx, novel.AuthorID) {
		utils.Error(ctx, http.StatusForbidden, 40345, "you can only publish your own chapters")
		return
	}

	err := cc.content.PublishChapter(ctx.Request.Context(), chapter.ID, cc.now())
	switch {
	case err == nil:
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40441, "chapter not found")
		return
	case errors.Is(err, services.ErrConflict):
		utils.Error(ctx, http.StatusConflict, 40943, "chapter already published")
		return
	default:
		utils.L().Sugar().Errorf("publish chapter %d failed: %v", chapter.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50045, "failed to publish chapter")
		return
	}

	if err := cc.db.First(&chapter, chapter.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50046, "failed to load chapter")
		return
	}
	utils.Success(ctx, gin.H{"chapter": chapterResponse(chapter, false)})
}

func (cc *ChapterController) loadNovel(ctx *gin.Context) (models.Novel, bool) {
	var novel models.Novel
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid novel id")
		return novel, false
	}
	if err := cc.db.First(&novel, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "novel not found")
			return novel, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load novel")
		return novel, false
	}
	return novel, true
}

func (cc *ChapterController) loadChapter(ctx *gin.Context) (models.Chapter, models.Novel, bool) {
	var chapter models.Chapter
	var novel models.Novel
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid chapter id")
		return chapter, novel, false
	}
	if err := cc.db.First(&chapter, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40441, "chapter not found")
			return chapter, novel, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50047, "failed to load chapter")
		return chapter, novel, false
	}
	if err := cc.db.First(&novel, chapter.NovelID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "novel not found")
		return chapter, novel, false
	}
	return chapter, novel, true
}
