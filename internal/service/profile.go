// ABOUTME: Profile reads and the server-first profile update.
// ABOUTME: Profile edits need the server; the local row is replaced with what it returns.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/gymtracker/internal/models"
	"github.com/harperreed/gymtracker/internal/remote"
	"github.com/harperreed/gymtracker/internal/storage"
)

// ProfileUpdate changes the display name and/or preferred unit. Nil fields are left alone.
type ProfileUpdate struct {
	DisplayName *string
	Unit        *models.Unit
}

// Profile returns the stored user row.
func (s *Service) Profile(ctx context.Context) (*models.User, error) {
	return storage.Get(ctx, s.store, storage.Users, s.userID)
}

// UpdateProfile sends the change to the server and stores the returned user.
// It fails with ErrRemoteUnavailable while offline.
func (s *Service) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*models.User, error) {
	var body remote.UserUpdate
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		if name == "" {
			return nil, &models.ValidationError{Field: "display_name", Message: "must not be empty"}
		}
		body.DisplayName = &name
	}
	if upd.Unit != nil {
		unit, err := models.ParseUnit(string(*upd.Unit))
		if err != nil {
			return nil, err
		}
		u := string(unit)
		body.PreferredUnit = &u
	}
	if body.DisplayName == nil && body.PreferredUnit == nil {
		return s.Profile(ctx)
	}
	if !s.canPush() {
		return nil, ErrRemoteUnavailable
	}

	dto, err := s.remote.UpdateMe(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	user := dto.Model()
	if err := storage.Put(ctx, s.store, storage.Users, user); err != nil {
		return nil, fmt.Errorf("store profile: %w", err)
	}
	return user, nil
}
