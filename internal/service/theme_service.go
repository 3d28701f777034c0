package service

import (
	"fmt"
	"log"

	"github.com/tazhate/kalendarbot/internal/domain"
)

// PreferenceStore keeps per-chat settings.
type PreferenceStore interface {
	GetPreferences(chatID int64) (*domain.Preferences, error)
	SetTheme(chatID int64, theme domain.Theme) error
	SetDigest(chatID int64, on bool) error
}

type ThemeService struct {
	store PreferenceStore
}

func NewThemeService(store PreferenceStore) *ThemeService {
	return &ThemeService{store: store}
}

// Theme returns the chat's theme, light when it cannot be read.
func (t *ThemeService) Theme(chatID int64) domain.Theme {
	p, err := t.store.GetPreferences(chatID)
	if err != nil {
		log.Printf("Error loading preferences of %d: %v", chatID, err)
		return domain.ThemeLight
	}
	return p.Theme
}

// Toggle flips and stores the theme.
func (t *ThemeService) Toggle(chatID int64) (domain.Theme, error) {
	next := t.Theme(chatID).Toggled()
	if err := t.store.SetTheme(chatID, next); err != nil {
		return "", fmt.Errorf("set theme: %w", err)
	}
	return next, nil
}

func (t *ThemeService) DigestEnabled(chatID int64) bool {
	p, err := t.store.GetPreferences(chatID)
	if err != nil {
		log.Printf("Error loading preferences of %d: %v", chatID, err)
		return false
	}
	return p.Digest
}

// ToggleDigest flips the morning digest and returns the new state.
func (t *ThemeService) ToggleDigest(chatID int64) (bool, error) {
	on := !t.DigestEnabled(chatID)
	if err := t.store.SetDigest(chatID, on); err != nil {
		return false, fmt.Errorf("set digest: %w", err)
	}
	return on, nil
}
