package ledger

import (
	"fmt"
	"time"
)

// CreateStrategy persists a new draft strategy.
func (l *Ledger) CreateStrategy(s *Strategy) error {
	s.Status = "draft"
	if err := l.db.Create(s).Error; err != nil {
		return fmt.Errorf("failed to create strategy: %w", err)
	}
	return nil
}

// GetStrategy loads a strategy by id.
func (l *Ledger) GetStrategy(id string) (*Strategy, error) {
	var s Strategy
	if err := l.db.Where("id = ?", id).First(&s).Error; err != nil {
		return nil, fmt.Errorf("failed to load strategy %s: %w", id, err)
	}
	return &s, nil
}

// ListStrategies returns every persisted strategy, newest first.
func (l *Ledger) ListStrategies() ([]Strategy, error) {
	var strategies []Strategy
	if err := l.db.Order("created_at DESC").Find(&strategies).Error; err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	return strategies, nil
}

// ListActiveStrategies returns every strategy whose status is active, used
// at process boot to resume runs.
func (l *Ledger) ListActiveStrategies() ([]Strategy, error) {
	var strategies []Strategy
	if err := l.db.Where("status = ?", "active").Find(&strategies).Error; err != nil {
		return nil, fmt.Errorf("failed to list active strategies: %w", err)
	}
	return strategies, nil
}

// SetStrategyStatus transitions a strategy's status.
func (l *Ledger) SetStrategyStatus(id, status string) error {
	if err := l.db.Model(&Strategy{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error; err != nil {
		return fmt.Errorf("failed to update strategy status: %w", err)
	}
	return nil
}
