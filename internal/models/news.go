package models

import "time"

// News represents a published announcement or article.
type News struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Title    string `gorm:"type:varchar(255);not null"`     // Article title.
	Slug     string `gorm:"type:text;not null;uniqueIndex"` // URL slug.
	Body     string `gorm:"type:text;not null"`             // Article body, markdown.
	CoverURL string `gorm:"type:text"`                      // Cover image URL.

	AuthorID *uint64 `` // Admin who wrote the article.

	IsPublished bool       `gorm:"not null;default:false"` // Whether the article is visible.
	PublishedAt *time.Time ``                              // First publication time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
