package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/mpesaflow/internal/application"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectApplicationColumns = `
	id, owner_id, name, environment,
	consumer_key, consumer_secret, pass_key, business_short_code, created_at
`

type scanner interface {
	Scan(dest ...any) error
}

func scanApplication(s scanner) (*application.Application, error) {
	var app application.Application

	var env string

	var consumerKey, consumerSecret, passKey, shortCode sql.NullString

	if err := s.Scan(
		&app.ID, &app.OwnerID, &app.Name, &env,
		&consumerKey, &consumerSecret, &passKey, &shortCode, &app.CreatedAt,
	); err != nil {
		return nil, err
	}

	app.Environment = application.Environment(env)
	app.ConsumerKey = consumerKey.String
	app.ConsumerSecret = consumerSecret.String
	app.PassKey = passKey.String
	app.BusinessShortCode = shortCode.String

	return &app, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) CreateApplication(ctx context.Context, app *application.Application) error {
	query := `
		INSERT INTO applications (
			id, owner_id, name, environment,
			consumer_key, consumer_secret, pass_key, business_short_code, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		app.ID,
		app.OwnerID,
		app.Name,
		app.Environment,
		nullable(app.ConsumerKey),
		nullable(app.ConsumerSecret),
		nullable(app.PassKey),
		nullable(app.BusinessShortCode),
	).Scan(&app.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating application: %w", err)
	}

	return nil
}

func (s *Store) GetApplication(ctx context.Context, ownerID string, id uuid.UUID) (*application.Application, error) {
	query := `SELECT ` + selectApplicationColumns + ` FROM applications WHERE id = $1 AND owner_id = $2`

	app, err := scanApplication(s.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, application.ErrNotFound
		}

		return nil, fmt.Errorf("getting application: %w", err)
	}

	return app, nil
}

func (s *Store) ListApplications(ctx context.Context, ownerID string) ([]*application.Application, error) {
	query := `SELECT ` + selectApplicationColumns + ` FROM applications WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	defer rows.Close()

	var apps []*application.Application

	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning application: %w", err)
		}

		apps = append(apps, app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating applications: %w", err)
	}

	return apps, nil
}

func (s *Store) DeleteApplication(ctx context.Context, ownerID string, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting application: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}

	if n == 0 {
		return application.ErrNotFound
	}

	return nil
}
