package repository

import (
	"context"
	"errors"
	"time"

	"grassroot-chatbot/backend/conversation/models"

	"gorm.io/gorm"
)

// TurnRepository is the conversation log contract. Appends only; records
// are never mutated after write.
type TurnRepository interface {
	// MostRecent returns the freshest turn for a sender within the
	// freshness window, or nil when the conversation has gone stale.
	MostRecent(ctx context.Context, senderID string) (*models.TurnRecord, error)
	// MostRecentWithMenu returns the freshest menu-bearing turn within the
	// window, for when the immediately prior turn carries no menu but an
	// earlier one does.
	MostRecentWithMenu(ctx context.Context, senderID string) (*models.TurnRecord, error)
	// Append writes one completed turn.
	Append(ctx context.Context, turn *models.TurnRecord) error
	// RecentBySender lists recent turns for support diagnosis.
	RecentBySender(ctx context.Context, senderID string, limit int) ([]models.TurnRecord, error)
	// DeleteExpired removes records past their TTL.
	DeleteExpired(ctx context.Context) (int64, error)
}

// GormTurnRepository implements TurnRepository on the relational turn log.
type GormTurnRepository struct {
	db     *gorm.DB
	window time.Duration
}

func NewGormTurnRepository(db *gorm.DB, freshnessWindow time.Duration) *GormTurnRepository {
	return &GormTurnRepository{db: db, window: freshnessWindow}
}

func (r *GormTurnRepository) MostRecent(ctx context.Context, senderID string) (*models.TurnRecord, error) {
	return r.firstInWindow(ctx, senderID, false)
}

func (r *GormTurnRepository) MostRecentWithMenu(ctx context.Context, senderID string) (*models.TurnRecord, error) {
	return r.firstInWindow(ctx, senderID, true)
}

func (r *GormTurnRepository) firstInWindow(ctx context.Context, senderID string, menuOnly bool) (*models.TurnRecord, error) {
	now := time.Now()
	cutoff := now.Add(-r.window)

	query := r.db.WithContext(ctx).
		Where("sender_id = ? AND timestamp > ? AND expires_at > ?", senderID, cutoff, now)
	if menuOnly {
		query = query.Where("has_menu = ?", true)
	}

	var turn models.TurnRecord
	err := query.Order("timestamp DESC").First(&turn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &turn, nil
}

func (r *GormTurnRepository) Append(ctx context.Context, turn *models.TurnRecord) error {
	return r.db.WithContext(ctx).Create(turn).Error
}

func (r *GormTurnRepository) RecentBySender(ctx context.Context, senderID string, limit int) ([]models.TurnRecord, error) {
	var turns []models.TurnRecord
	err := r.db.WithContext(ctx).
		Where("sender_id = ?", senderID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&turns).Error
	return turns, err
}

func (r *GormTurnRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", time.Now()).
		Delete(&models.TurnRecord{})
	return result.RowsAffected, result.Error
}
