package models

import (
	"fmt"
	"time"
)

// EntityKind distinguishes the two kinds of viewable content.
type EntityKind string

const (
	KindNovel   EntityKind = "novel"
	KindChapter EntityKind = "chapter"
)

// EntityRef identifies a viewable novel or chapter.
type EntityRef struct {
	Kind EntityKind
	ID   uint
}

func NovelRef(id uint) EntityRef   { return EntityRef{Kind: KindNovel, ID: id} }
func ChapterRef(id uint) EntityRef { return EntityRef{Kind: KindChapter, ID: id} }

// Key is the compact form stored in view tokens and cache keys, e.g. "n42" or "c7".
func (r EntityRef) Key() string {
	if r.Kind == KindChapter {
		return fmt.Sprintf("c%d", r.ID)
	}
	return fmt.Sprintf("n%d", r.ID)
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// DayLayout formats ViewDaily.Day.
const DayLayout = "2006-01-02"

// ViewDaily stores credited view counts per day and entity.
// Day is the calendar date in the view timezone, kept as text so equality works on every driver.
type ViewDaily struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Day       string     `gorm:"index:idx_view_daily_entity,unique;size:10;not null" json:"day"`
	Kind      EntityKind `gorm:"index:idx_view_daily_entity,unique;size:16;not null" json:"kind"`
	EntityID  uint       `gorm:"index:idx_view_daily_entity,unique;not null" json:"entity_id"`
	Credits   int64      `gorm:"not null;default:0" json:"credits"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// All lists every model for auto-migration.
func All() []interface{} {
	return []interface{}{&User{}, &Novel{}, &Chapter{}, &LibraryEntry{}, &ViewDaily{}}
}
