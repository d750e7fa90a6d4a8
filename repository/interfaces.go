package repository

import (
	"context"

	"go_audit_backend/models"
)

type SessionRepository interface {
	Create(ctx context.Context, session *models.AuditSession) error
	GetByID(ctx context.Context, sessionID string) (*models.AuditSession, error)
	UpdateStatus(ctx context.Context, sessionID string, status string) error
	UpdateTotal(ctx context.Context, sessionID string, total int) error

	AddResult(ctx context.Context, result *models.AuditResult) error
	GetResults(ctx context.Context, sessionID string) ([]*models.AuditResult, error)
}
