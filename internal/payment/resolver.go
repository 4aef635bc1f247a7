package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/mpesaflow/internal/application"
	"github.com/MrJamesThe3rd/mpesaflow/internal/auth"
)

// Credentials are the secrets needed to take a payment on one shortcode.
type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	PassKey           string
	BusinessShortCode string
}

func (c Credentials) Complete() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != "" && c.PassKey != "" && c.BusinessShortCode != ""
}

// Profile pairs credentials with the provider environment they belong to.
type Profile struct {
	Credentials Credentials
	Provider    Provider
}

// Resolver picks the credentials a caller pays with.
type Resolver interface {
	Resolve(ctx context.Context, caller auth.Identity) (Profile, error)
}

// StaticResolver hands every caller the same process-wide profile.
type StaticResolver struct {
	Profile Profile
}

func (r StaticResolver) Resolve(context.Context, auth.Identity) (Profile, error) {
	return r.Profile, nil
}

// AppLookup loads a tenant application with its secrets readable.
type AppLookup interface {
	Get(ctx context.Context, ownerID string, id uuid.UUID) (*application.Application, error)
}

// TenantResolver reads credentials from the application the caller's key
// was issued for.
type TenantResolver struct {
	apps     AppLookup
	provider Provider
}

func NewTenantResolver(apps AppLookup, provider Provider) *TenantResolver {
	return &TenantResolver{apps: apps, provider: provider}
}

func (r *TenantResolver) Resolve(ctx context.Context, caller auth.Identity) (Profile, error) {
	appID, err := uuid.Parse(caller.AppID)
	if err != nil {
		return Profile{}, ErrCredentialsMissing
	}

	app, err := r.apps.Get(ctx, caller.OwnerID, appID)
	if err != nil {
		if errors.Is(err, application.ErrNotFound) {
			return Profile{}, ErrCredentialsMissing
		}

		return Profile{}, fmt.Errorf("loading application: %w", err)
	}

	creds := Credentials{
		ConsumerKey:       app.ConsumerKey,
		ConsumerSecret:    app.ConsumerSecret,
		PassKey:           app.PassKey,
		BusinessShortCode: app.BusinessShortCode,
	}
	if !creds.Complete() {
		slog.Info("application has incomplete credentials", "app_id", app.ID, "environment", app.Environment)
		return Profile{}, ErrCredentialsMissing
	}

	return Profile{Credentials: creds, Provider: r.provider}, nil
}

// EnvironmentResolver dispatches on the environment of the caller's key.
type EnvironmentResolver map[auth.Environment]Resolver

func (r EnvironmentResolver) Resolve(ctx context.Context, caller auth.Identity) (Profile, error) {
	next, ok := r[caller.Environment]
	if !ok {
		return Profile{}, fmt.Errorf("%w: no credentials for environment %q", ErrCredentialsMissing, caller.Environment)
	}

	return next.Resolve(ctx, caller)
}
