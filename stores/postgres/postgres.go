package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/gnanirahulnutakki/authcore/stores/postgres/migrations"
)

// Stores bundles the three PostgreSQL-backed stores over one connection
// pool.
type Stores struct {
	DB        *sql.DB
	Users     *UserStore
	Sessions  *SessionStore
	TwoFactor *TwoFactorStore
}

// Open connects to PostgreSQL, runs the embedded migrations, and returns
// the store bundle. The caller owns closing the pool.
func Open(ctx context.Context, dsn string) (*Stores, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Stores{
		DB:        db,
		Users:     NewUserStore(db),
		Sessions:  NewSessionStore(db),
		TwoFactor: NewTwoFactorStore(db),
	}, nil
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

func (s *Stores) Close() error {
	return s.DB.Close()
}
