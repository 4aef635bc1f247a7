package application

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Environment is the Daraja environment an application's credentials belong to.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

func (e Environment) Valid() bool {
	return e == EnvironmentSandbox || e == EnvironmentProduction
}

var ErrNotFound = errors.New("application not found")

// ValidationError reports bad input. Message is safe to return to callers.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Application holds a tenant's M-Pesa credentials. Only production
// applications carry credentials.
type Application struct {
	ID                uuid.UUID
	OwnerID           string
	Name              string
	Environment       Environment
	ConsumerKey       string
	ConsumerSecret    string
	PassKey           string
	BusinessShortCode string
	CreatedAt         time.Time
}

// HasCredentials reports whether every field needed to reach the API is set.
func (a *Application) HasCredentials() bool {
	return a.ConsumerKey != "" && a.ConsumerSecret != "" && a.PassKey != "" && a.BusinessShortCode != ""
}

type CreateParams struct {
	OwnerID           string
	Name              string
	Environment       Environment
	ConsumerKey       string
	ConsumerSecret    string
	PassKey           string
	BusinessShortCode string
}

func (p *CreateParams) validate() error {
	p.Name = strings.TrimSpace(p.Name)

	if p.Name == "" {
		return &ValidationError{Message: "Name is required"}
	}

	if !p.Environment.Valid() {
		return &ValidationError{Message: fmt.Sprintf("environment must be %q or %q", EnvironmentSandbox, EnvironmentProduction)}
	}

	if p.Environment != EnvironmentProduction {
		p.ConsumerKey, p.ConsumerSecret, p.PassKey, p.BusinessShortCode = "", "", "", ""
		return nil
	}

	if p.ConsumerKey == "" || p.ConsumerSecret == "" || p.PassKey == "" || p.BusinessShortCode == "" {
		return &ValidationError{
			Message: "ConsumerKey, ConsumerSecret, PassKey and BusinessShortCode are required for production environment",
		}
	}

	return nil
}
