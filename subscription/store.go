// Package subscription reads which sources a user follows.
package subscription

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/huandu/go-sqlbuilder"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

type Subscription struct {
	UserID    string
	ChannelID string
	Title     string
	Active    bool
	CreatedAt time.Time
}

// Store lists subscriptions kept in SQLite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory with %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at '%s' with %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute DDL with %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// ListActiveSourceIDs returns the channel ids userID actively follows, sorted
func (s *Store) ListActiveSourceIDs(ctx context.Context, userID string) ([]string, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("channel_id").From("subscriptions")
	sb.Where(sb.Equal("user_id", userID), sb.Equal("active", 1))
	sb.OrderBy("channel_id")
	query, args := sb.Build()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// List returns every subscription of userID, inactive ones included
func (s *Store) List(ctx context.Context, userID string) ([]Subscription, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("user_id", "channel_id", "title", "active", "created_at").From("subscriptions")
	sb.Where(sb.Equal("user_id", userID))
	sb.OrderBy("channel_id")
	query, args := sb.Build()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var (
			sub       Subscription
			createdAt int64
		)
		if err := rows.Scan(&sub.UserID, &sub.ChannelID, &sub.Title, &sub.Active, &createdAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		sub.CreatedAt = time.UnixMilli(createdAt)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Add subscribes userID to channelID, reactivating an earlier subscription
func (s *Store) Add(ctx context.Context, userID, channelID, title string) error {
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.ReplaceInto("subscriptions").
		Cols("user_id", "channel_id", "title", "active", "created_at").
		Values(userID, channelID, title, 1, s.now().UnixMilli())
	query, args := ib.Build()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to add subscription %s/%s with %w", userID, channelID, err)
	}
	return nil
}

// Deactivate keeps the subscription row but hides it from the timeline
func (s *Store) Deactivate(ctx context.Context, userID, channelID string) error {
	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("subscriptions").
		Set(ub.Assign("active", 0)).
		Where(ub.Equal("user_id", userID), ub.Equal("channel_id", channelID))
	query, args := ub.Build()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to deactivate subscription %s/%s with %w", userID, channelID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("subscription %s/%s not found", userID, channelID)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
