// Package statestore loads and persists the workshop history between runs.
package statestore

import (
	"context"
	"errors"

	"workshop-monitor/internal/history"
)

// ErrStateCorrupt means the persisted history exists but could not be read back.
// A run that hits it must abort rather than overwrite the history with an empty state.
var ErrStateCorrupt = errors.New("persisted workshop state is corrupt")

// Store defines the interface for persisting state.
type Store interface {
	// LoadOrCreate reads the persisted state, an absent state yields an empty one.
	LoadOrCreate(ctx context.Context) (*history.WorkshopState, error)
	// Save overwrites the persisted state with `state`.
	Save(ctx context.Context, state *history.WorkshopState) error
}

func normalize(state *history.WorkshopState) *history.WorkshopState {
	if state.Stores == nil {
		state.Stores = map[string]*history.StoreHistory{}
	}
	for name := range state.Stores {
		state.Bucket(name)
	}
	return state
}
