// Package storetest builds throwaway databases for tests.
package storetest

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/novelhub/models"
)

// NewSQLite opens a migrated in-memory SQLite database.
// One connection only, so every goroutine sees the same memory database.
func NewSQLite(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// NewMock returns a MySQL-dialect gorm handle backed by sqlmock.
func NewMock(t testing.TB) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

// SeedUser inserts a user with the given role.
func SeedUser(t testing.TB, db *gorm.DB, username, role string) models.User {
	t.Helper()
	u := models.User{Username: username, Email: username + "@example.com", Role: role}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// SeedNovel inserts a novel owned by authorID.
func SeedNovel(t testing.TB, db *gorm.DB, authorID uint, title string, views int64) models.Novel {
	t.Helper()
	n := models.Novel{AuthorID: authorID, Title: title, Genre: "fantasy", Status: models.NovelOngoing, ViewCount: views}
	require.NoError(t, db.Omit("Author", "Chapters").Create(&n).Error)
	return n
}

// SeedChapter inserts a chapter. scheduledAt may be nil.
func SeedChapter(t testing.TB, db *gorm.DB, novelID uint, number int, status models.ChapterStatus, scheduledAt *time.Time) models.Chapter {
	t.Helper()
	c := models.Chapter{NovelID: novelID, Number: number, Title: "Chapter", Content: "text", Status: status}
	if scheduledAt != nil {
		at := scheduledAt.UTC()
		c.ScheduledAt = &at
	}
	if status == models.ChapterPublished {
		now := time.Now().UTC()
		c.PublishedAt = &now
	}
	require.NoError(t, db.Create(&c).Error)
	return c
}

// Reload reads a chapter back by id.
func Reload(t testing.TB, db *gorm.DB, id uint) models.Chapter {
	t.Helper()
	var c models.Chapter
	require.NoError(t, db.First(&c, id).Error)
	return c
}

// Ptr returns a pointer to t.
func Ptr(t time.Time) *time.Time {
	return &t
}
