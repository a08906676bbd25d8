package models

import "time"

// ChapterStatus is the publication state of a chapter.
//
// DRAFT -> SCHEDULED -> PUBLISHED, or DRAFT -> PUBLISHED directly.
// Nothing moves a chapter out of PUBLISHED automatically.
type ChapterStatus string

const (
	ChapterDraft     ChapterStatus = "DRAFT"
	ChapterScheduled ChapterStatus = "SCHEDULED"
	ChapterPublished ChapterStatus = "PUBLISHED"
)

func (s ChapterStatus) Valid() bool {
	return s == ChapterDraft || s == ChapterScheduled || s == ChapterPublished
}

// Chapter is a single installment of a novel.
type Chapter struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	NovelID     uint          `gorm:"index:idx_chapter_novel_number,unique;not null" json:"novel_id"`
	Number      int           `gorm:"index:idx_chapter_novel_number,unique;not null" json:"number"`
	Title       string        `gorm:"size:255;not null" json:"title"`
	Content     string        `json:"content,omitempty"`
	Status      ChapterStatus `gorm:"size:16;not null;default:'DRAFT';index:idx_chapter_status_schedule" json:"status"`
	ScheduledAt *time.Time    `gorm:"index:idx_chapter_status_schedule" json:"scheduled_at,omitempty"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
	ViewCount   int64         `gorm:"not null;default:0" json:"view_count"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// IsPublic reports whether readers other than the owner may see the chapter.
func (c *Chapter) IsPublic() bool {
	return c.Status == ChapterPublished
}
