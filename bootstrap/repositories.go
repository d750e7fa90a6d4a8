package bootstrap

import (
	"go_audit_backend/platform/database"
	"go_audit_backend/repository"
)

type Repositories struct {
	SessionRepository repository.SessionRepository
}

func NewRepositories(db *database.DB) *Repositories {
	sqlDB := db.GetDatabase()
	return &Repositories{
		SessionRepository: repository.NewSessionRepository(sqlDB),
	}
}
