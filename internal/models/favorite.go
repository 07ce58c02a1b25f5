package models

import "fmt"

// FavoriteStation is a user-named reference to a Station, keyed by the station ID
type FavoriteStation struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	CreatedAt int64  `json:"createdAt"` // epoch millis
}

// FavoriteCandidate is what a caller supplies when saving a station
type FavoriteCandidate struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Validate checks the fields every persisted favorite must carry
func (f *FavoriteStation) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("favorite ID is required")
	}
	if f.Name == "" {
		return fmt.Errorf("favorite name is required")
	}
	if f.CreatedAt < 0 {
		return fmt.Errorf("invalid createdAt: %d", f.CreatedAt)
	}
	return nil
}
