package pfcontacts

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store persiste les contacts, en base ou dans un fichier json
type Store interface {
	Create(ctx context.Context, c *Contact) error
	List(ctx context.Context) ([]Contact, error)
	Stats(ctx context.Context) (Stats, error)
}

type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// WithClock remplace l'horloge, utilisé par les tests
func (s *GormStore) WithClock(now func() time.Time) *GormStore {
	s.now = now
	return s
}

func (s *GormStore) Create(ctx context.Context, c *Contact) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("error creating contact: %w", err)
	}
	return nil
}

func (s *GormStore) List(ctx context.Context) ([]Contact, error) {
	contacts := make([]Contact, 0)
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&contacts).Error
	if err != nil {
		return nil, fmt.Errorf("error listing contacts: %w", err)
	}
	return contacts, nil
}

func (s *GormStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	week, day := windows(s.now().UTC())
	db := s.db.WithContext(ctx)

	if err := db.Model(&Contact{}).Count(&stats.TotalSubmissions).Error; err != nil {
		return stats, fmt.Errorf("error counting contacts: %w", err)
	}
	if err := db.Model(&Contact{}).Where("created_at >= ?", week).Count(&stats.ThisWeek).Error; err != nil {
		return stats, fmt.Errorf("error counting contacts of the week: %w", err)
	}
	if err := db.Model(&Contact{}).Where("created_at >= ?", day).Count(&stats.Today).Error; err != nil {
		return stats, fmt.Errorf("error counting contacts of the day: %w", err)
	}

	return stats, nil
}
