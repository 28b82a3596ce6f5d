package model

import "time"

// FAQ is one entry of the static help content surfaced as suggestions
// alongside bot replies and in the widget's popular-questions panel.
type FAQ struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Question  string    `gorm:"type:text;uniqueIndex" json:"question_en"`
	Answer    string    `gorm:"type:text" json:"answer_en"`
	Category  string    `gorm:"size:100;index" json:"category"`
	Priority  int       `gorm:"default:0" json:"priority"`
	HitCount  int       `gorm:"default:0" json:"hit_count"`
	IsActive  bool      `gorm:"index;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FAQ) TableName() string {
	return "faqs"
}
