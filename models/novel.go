package models

import "time"

// NovelStatus describes the writing progress of a novel.
type NovelStatus string

const (
	NovelOngoing   NovelStatus = "ONGOING"
	NovelCompleted NovelStatus = "COMPLETED"
	NovelHiatus    NovelStatus = "HIATUS"
)

func (s NovelStatus) Valid() bool {
	return s == NovelOngoing || s == NovelCompleted || s == NovelHiatus
}

// Novel is a work published by an author or translator.
type Novel struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	AuthorID  uint        `gorm:"index;not null" json:"author_id"`
	Title     string      `gorm:"size:255;not null;index" json:"title"`
	Synopsis  string      `gorm:"type:text" json:"synopsis"`
	Genre     string      `gorm:"size:32;index" json:"genre"`
	CoverURL  string      `gorm:"size:512" json:"cover_url"`
	Status    NovelStatus `gorm:"size:16;not null;default:'ONGOING'" json:"status"`
	ViewCount int64       `gorm:"not null;default:0" json:"view_count"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Author    User        `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Chapters  []Chapter   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"chapters,omitempty"`
}
