package models

import "time"

// LibraryEntry records a novel saved to a reader's library.
type LibraryEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index:idx_library_user_novel,unique;not null" json:"user_id"`
	NovelID   uint      `gorm:"index:idx_library_user_novel,unique;not null" json:"novel_id"`
	CreatedAt time.Time `json:"created_at"`
	Novel     Novel     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"novel"`
}
