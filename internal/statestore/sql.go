package statestore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"workshop-monitor/internal/history"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

const schema = `
create table if not exists stores (
	name text primary key,
	last_checked text
);

create table if not exists workshops (
	store text not null,
	title text not null,
	first_seen text not null,
	primary key (store, title)
);

create table if not exists state_meta (
	key text primary key,
	value text not null
);
`

const lastUpdatedKey = "last_updated"

// SQLConfig points at either a local sqlite file or a remote libsql database.
type SQLConfig struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (config SQLConfig) OpenDB() (*sql.DB, error) {
	if config.Url != "" {
		values := url.Values{}
		if config.AuthToken != "" {
			values.Add("authToken", config.AuthToken)
		}
		return sql.Open("libsql", config.Url+"?"+values.Encode())
	}
	if config.File == "" {
		return nil, fmt.Errorf("neither a file nor a url was specified for the state database")
	}

	db, err := sql.Open("sqlite", config.File)
	if err != nil {
		return nil, err
	}
	// a single connection serializes writers, runs never overlap anyway
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// SQL keeps the state in three tables. Workshops are only ever inserted, never updated or deleted.
type SQL struct {
	db *sql.DB
}

// NewSQL creates the schema if needed.
func NewSQL(ctx context.Context, db *sql.DB) (SQL, error) {
	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return SQL{}, fmt.Errorf("failed to create state schema: %w", err)
	}
	return SQL{db: db}, nil
}

func (s SQL) Close() error {
	return s.db.Close()
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (s SQL) LoadOrCreate(ctx context.Context) (*history.WorkshopState, error) {
	state := history.NewWorkshopState()

	err := s.loadStores(ctx, state)
	if err != nil {
		return nil, err
	}
	err = s.loadWorkshops(ctx, state)
	if err != nil {
		return nil, err
	}

	var lastUpdated string
	err = s.db.QueryRowContext(ctx, "select value from state_meta where key = ?", lastUpdatedKey).Scan(&lastUpdated)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, fmt.Errorf("%w: read last updated: %w", ErrStateCorrupt, err)
	default:
		t, err := parseTime(lastUpdated)
		if err != nil {
			return nil, fmt.Errorf("%w: last updated: %w", ErrStateCorrupt, err)
		}
		state.LastUpdated = &t
	}

	return state, nil
}

func (s SQL) loadStores(ctx context.Context, state *history.WorkshopState) error {
	rows, err := s.db.QueryContext(ctx, "select name, last_checked from stores")
	if err != nil {
		return fmt.Errorf("%w: read stores: %w", ErrStateCorrupt, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var lastChecked sql.NullString
		err := rows.Scan(&name, &lastChecked)
		if err != nil {
			return fmt.Errorf("%w: scan store: %w", ErrStateCorrupt, err)
		}
		bucket := state.Bucket(name)
		if lastChecked.Valid {
			t, err := parseTime(lastChecked.String)
			if err != nil {
				return fmt.Errorf("%w: store %s last checked: %w", ErrStateCorrupt, name, err)
			}
			bucket.LastChecked = &t
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: read stores: %w", ErrStateCorrupt, err)
	}
	return nil
}

func (s SQL) loadWorkshops(ctx context.Context, state *history.WorkshopState) error {
	rows, err := s.db.QueryContext(ctx, "select store, title, first_seen from workshops")
	if err != nil {
		return fmt.Errorf("%w: read workshops: %w", ErrStateCorrupt, err)
	}
	defer rows.Close()

	for rows.Next() {
		var store, title, firstSeen string
		err := rows.Scan(&store, &title, &firstSeen)
		if err != nil {
			return fmt.Errorf("%w: scan workshop: %w", ErrStateCorrupt, err)
		}
		t, err := parseTime(firstSeen)
		if err != nil {
			return fmt.Errorf("%w: workshop %q first seen: %w", ErrStateCorrupt, title, err)
		}
		state.Bucket(store).Workshops[title] = history.WorkshopEntry{Title: title, FirstSeen: t}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: read workshops: %w", ErrStateCorrupt, err)
	}
	return nil
}

func (s SQL) Save(ctx context.Context, state *history.WorkshopState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for name, bucket := range state.Stores {
		if bucket == nil {
			continue
		}
		var lastChecked sql.NullString
		if bucket.LastChecked != nil {
			lastChecked = sql.NullString{String: formatTime(*bucket.LastChecked), Valid: true}
		}
		_, err := tx.ExecContext(
			ctx,
			`insert into stores (name, last_checked) values (?, ?)
			on conflict (name) do update set last_checked = excluded.last_checked`,
			name, lastChecked,
		)
		if err != nil {
			return fmt.Errorf("failed to save store %s: %w", name, err)
		}

		for title, entry := range bucket.Workshops {
			_, err := tx.ExecContext(
				ctx,
				"insert or ignore into workshops (store, title, first_seen) values (?, ?, ?)",
				name, title, formatTime(entry.FirstSeen),
			)
			if err != nil {
				return fmt.Errorf("failed to save workshop %q of store %s: %w", title, name, err)
			}
		}
	}

	if state.LastUpdated != nil {
		_, err := tx.ExecContext(
			ctx,
			`insert into state_meta (key, value) values (?, ?)
			on conflict (key) do update set value = excluded.value`,
			lastUpdatedKey, formatTime(*state.LastUpdated),
		)
		if err != nil {
			return fmt.Errorf("failed to save last updated: %w", err)
		}
	}

	return tx.Commit()
}
