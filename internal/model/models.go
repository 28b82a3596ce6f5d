package model

// AllModels is the single registration point for AutoMigrate.
var AllModels = []interface{}{
	&ChatSession{},
	&ChatMessage{},
	&StoredFile{},
	&FAQ{},
	&StaffUser{},
}
