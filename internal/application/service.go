package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=application
type Repository interface {
	CreateApplication(ctx context.Context, app *Application) error
	GetApplication(ctx context.Context, ownerID string, id uuid.UUID) (*Application, error)
	ListApplications(ctx context.Context, ownerID string) ([]*Application, error)
	DeleteApplication(ctx context.Context, ownerID string, id uuid.UUID) error
}

type Service struct {
	repo   Repository
	sealer *Sealer
}

func NewService(repo Repository, sealer *Sealer) *Service {
	return &Service{repo: repo, sealer: sealer}
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Application, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	app := &Application{
		ID:                uuid.New(),
		OwnerID:           params.OwnerID,
		Name:              params.Name,
		Environment:       params.Environment,
		ConsumerKey:       params.ConsumerKey,
		ConsumerSecret:    params.ConsumerSecret,
		PassKey:           params.PassKey,
		BusinessShortCode: params.BusinessShortCode,
	}

	stored := *app

	var err error
	if stored.ConsumerSecret, err = s.sealer.Seal(app.ConsumerSecret); err != nil {
		return nil, fmt.Errorf("sealing consumer secret: %w", err)
	}

	if stored.PassKey, err = s.sealer.Seal(app.PassKey); err != nil {
		return nil, fmt.Errorf("sealing pass key: %w", err)
	}

	if err := s.repo.CreateApplication(ctx, &stored); err != nil {
		return nil, err
	}

	app.CreatedAt = stored.CreatedAt

	return app, nil
}

// Get returns the application with its secrets unsealed.
func (s *Service) Get(ctx context.Context, ownerID string, id uuid.UUID) (*Application, error) {
	app, err := s.repo.GetApplication(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if app.ConsumerSecret, err = s.sealer.Open(app.ConsumerSecret); err != nil {
		return nil, fmt.Errorf("unsealing consumer secret: %w", err)
	}

	if app.PassKey, err = s.sealer.Open(app.PassKey); err != nil {
		return nil, fmt.Errorf("unsealing pass key: %w", err)
	}

	return app, nil
}

// List returns the owner's applications. Secrets stay sealed.
func (s *Service) List(ctx context.Context, ownerID string) ([]*Application, error) {
	return s.repo.ListApplications(ctx, ownerID)
}

func (s *Service) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	return s.repo.DeleteApplication(ctx, ownerID, id)
}
