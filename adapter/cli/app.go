package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	analyticsApp "github.com/felixgeelhaar/mosaic/internal/analytics/application"
	billingApp "github.com/felixgeelhaar/mosaic/internal/billing/application"
	directoryApp "github.com/felixgeelhaar/mosaic/internal/directory/application"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/mosaic/pkg/observability"
)

// ErrNoDatabase is returned by commands that need services when the CLI
// could not connect to a database.
var ErrNoDatabase = errors.New("this command requires database connection")

// App holds the CLI application dependencies.
type App struct {
	Billing   *billingApp.Service
	Directory *directoryApp.Service
	Recorder  *analyticsApp.Recorder
	Reports   *analyticsApp.Reports

	DB     database.Connection
	Health *observability.HealthRegistry

	// CurrentUserID acts for every command; MOSAIC_USER_ID sets it.
	CurrentUserID uuid.UUID
	// SessionID tags recorded activity; MOSAIC_SESSION_ID sets it.
	SessionID string
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}

// RequireBilling returns the app when billing is wired.
func RequireBilling() (*App, error) {
	if app == nil || app.Billing == nil {
		return nil, ErrNoDatabase
	}
	return app, nil
}

// RequireDirectory returns the app when the directory is wired.
func RequireDirectory() (*App, error) {
	if app == nil || app.Directory == nil {
		return nil, ErrNoDatabase
	}
	return app, nil
}

// RequireAnalytics returns the app when analytics is wired.
func RequireAnalytics() (*App, error) {
	if app == nil || app.Recorder == nil || app.Reports == nil {
		return nil, ErrNoDatabase
	}
	return app, nil
}

// ParseID parses a uuid argument, naming it in the error.
func ParseID(name, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q", name, value)
	}
	return id, nil
}

// OptionalID parses value when it is set.
func OptionalID(name, value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := ParseID(name, value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
