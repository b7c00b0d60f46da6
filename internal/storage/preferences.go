package storage

import "strings"

// Preferences exposes user settings shared between views.
type Preferences struct {
	store Store
}

// NewPreferences wraps store.
func NewPreferences(store Store) Preferences {
	return Preferences{store: store}
}

// Language returns the persisted language or fallback when none was saved.
func (p Preferences) Language(fallback string) string {
	if p.store == nil {
		return fallback
	}
	v, ok, err := p.store.Get(KeyLanguage)
	if err != nil || !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.ToLower(strings.TrimSpace(v))
}

// SetLanguage persists the selected language.
func (p Preferences) SetLanguage(lang string) error {
	if p.store == nil {
		return nil
	}
	return p.store.Set(KeyLanguage, strings.ToLower(strings.TrimSpace(lang)))
}
