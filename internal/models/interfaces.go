package models

import "context"

// FavoriteIndex exposes the IDs of saved stations for cross-referencing
type FavoriteIndex interface {
	IDs(ctx context.Context) map[string]struct{}
}
