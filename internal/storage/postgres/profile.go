package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/scrypster/reverie/internal/storage"
	"github.com/scrypster/reverie/pkg/types"
)

// LoadProfile returns the saved profile or storage.ErrNotFound.
func (s *Store) LoadProfile(ctx context.Context) (*types.UserProfile, error) {
	var (
		p        types.UserProfile
		mappings []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT background_info, goals, current_projects, other, name_mappings
		FROM user_profile WHERE id = 1`).
		Scan(&p.Background, &p.Goals, &p.CurrentProjects, &p.Other, &mappings)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load profile: %w", err)
	}
	if err := json.Unmarshal(mappings, &p.NameMappings); err != nil {
		return nil, fmt.Errorf("postgres: failed to decode name mappings: %w", err)
	}
	return &p, nil
}

// SaveProfile replaces the stored profile.
func (s *Store) SaveProfile(ctx context.Context, profile *types.UserProfile) error {
	if profile == nil {
		return storage.ErrInvalidInput
	}
	mappings := profile.NameMappings
	if mappings == nil {
		mappings = []types.NameMapping{}
	}
	mappingsJSON, err := json.Marshal(mappings)
	if err != nil {
		return fmt.Errorf("failed to marshal name mappings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_profile (id, background_info, goals, current_projects, other, name_mappings, updated_at)
		VALUES (1, $1, $2, $3, $4, $5::jsonb, NOW())
		ON CONFLICT (id) DO UPDATE SET
			background_info = EXCLUDED.background_info,
			goals = EXCLUDED.goals,
			current_projects = EXCLUDED.current_projects,
			other = EXCLUDED.other,
			name_mappings = EXCLUDED.name_mappings,
			updated_at = NOW()`,
		profile.Background, profile.Goals, profile.CurrentProjects, profile.Other, string(mappingsJSON))
	if err != nil {
		return fmt.Errorf("postgres: failed to save profile: %w", err)
	}
	return nil
}
