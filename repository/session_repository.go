package repository

import (
	"context"

	"gorm.io/gorm"

	"go_audit_backend/models"
	"go_audit_backend/pkg/logging"
)

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.AuditSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) GetByID(ctx context.Context, sessionID string) (*models.AuditSession, error) {
	var res models.AuditSession
	err := r.db.WithContext(ctx).Where("id = ?", sessionID).First(&res).Error
	if err != nil {
		logging.Logger.Error("fail GetByID", "error", err)
		return nil, err
	}
	return &res, nil
}

func (r *sessionRepository) UpdateStatus(ctx context.Context, sessionID string, status string) error {
	return r.db.WithContext(ctx).Model(&models.AuditSession{}).
		Where("id = ?", sessionID).
		Update("status", status).Error
}

func (r *sessionRepository) UpdateTotal(ctx context.Context, sessionID string, total int) error {
	return r.db.WithContext(ctx).Model(&models.AuditSession{}).
		Where("id = ?", sessionID).
		Update("total", total).Error
}

func (r *sessionRepository) AddResult(ctx context.Context, result *models.AuditResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

func (r *sessionRepository) GetResults(ctx context.Context, sessionID string) ([]*models.AuditResult, error) {
	var res []*models.AuditResult
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("item_index asc").
		Find(&res).Error
	if err != nil {
		logging.Logger.Error("fail GetResults", "error", err)
		return nil, err
	}
	return res, nil
}
