package statestore

import (
	"context"
	"fmt"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

type Config struct {
	// Backend is either "json" (default) or "sqlite".
	Backend string `json:"backend"`
	// File is the state file for the json backend and the database file for the sqlite backend.
	File string `json:"file"`
	// Url and AuthToken point the sqlite backend at a remote libsql database instead of a file.
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

// Open returns the store selected by `config` together with a function releasing it.
func Open(ctx context.Context, config Config) (Store, func() error, error) {
	switch config.Backend {
	case "", BackendJSON:
		if config.File == "" {
			return nil, nil, fmt.Errorf("no state file configured")
		}
		return NewJSONFile(config.File), func() error { return nil }, nil
	case BackendSQLite:
		db, err := SQLConfig{File: config.File, Url: config.Url, AuthToken: config.AuthToken}.OpenDB()
		if err != nil {
			return nil, nil, err
		}
		store, err := NewSQL(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown state backend '%s'", config.Backend)
	}
}
