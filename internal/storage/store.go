// Package storage persists preferences, recipients and generated newsletters.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/deusflow/newsletter/internal/config"
	"github.com/deusflow/newsletter/internal/newsletter"
)

var ErrNotFound = errors.New("not found")

// Store is implemented by FileStore and PostgresStore.
type Store interface {
	GetPreferences(ctx context.Context) (*newsletter.Preferences, error)
	SavePreferences(ctx context.Context, p newsletter.Preferences) error

	// UpsertRecipient matches on email, reactivating an existing recipient.
	// created reports whether a new row was inserted.
	UpsertRecipient(ctx context.Context, in newsletter.SubscribeInput) (r *newsletter.Recipient, created bool, err error)
	GetRecipient(ctx context.Context, id string) (*newsletter.Recipient, error)
	ListActiveRecipients(ctx context.Context) ([]newsletter.Recipient, error)
	DeactivateRecipient(ctx context.Context, id string) error

	// CreateNewsletter assigns ID and CreatedAt.
	CreateNewsletter(ctx context.Context, n *newsletter.Newsletter) error
	GetNewsletter(ctx context.Context, id string) (*newsletter.Newsletter, error)
	ListNewsletters(ctx context.Context, limit int) ([]newsletter.Newsletter, error)

	Close() error
}

// Open selects the driver named by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		s, err := NewPostgresStore(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreFile, "":
		s, err := NewFileStore(cfg.StoreFilePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
