package model

import "time"

// StaffUser is a staff console account. Passwords are stored as bcrypt
// hashes; the console authenticates with a JWT issued at login.
type StaffUser struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:50" json:"username"`
	PasswordHash string    `gorm:"size:100" json:"-"`
	DisplayName  string    `gorm:"size:100" json:"display_name"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (StaffUser) TableName() string {
	return "staff_users"
}
