package repository

import "gorm.io/gorm"

// Repositories bundles all data access for wiring.
type Repositories struct {
	DB      *gorm.DB
	Session *SessionRepository
	File    *FileRepository
	FAQ     *FAQRepository
	Staff   *StaffRepository
}

// NewRepositories creates all repositories.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:      db,
		Session: NewSessionRepository(db),
		File:    NewFileRepository(db),
		FAQ:     NewFAQRepository(db),
		Staff:   NewStaffRepository(db),
	}
}
