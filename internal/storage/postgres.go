package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/deusflow/newsletter/internal/newsletter"
	"github.com/deusflow/newsletter/internal/retry"
)

const (
	preferencesTable = "newsletter_preferences"
	recipientsTable  = "newsletter_recipients"
	newslettersTable = "newsletters"

	// preferences live in a single row
	preferencesRowID = 1
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var recipientColumns = []string{
	"id", "name", "email", "whatsapp_number", "topics",
	"primary_color", "secondary_color", "font_style",
	"is_active", "created_at", "updated_at",
}

var newsletterColumns = []string{
	"id", "title", "topics", "overall_summary", "pdf_path", "audio_path", "created_at",
}

// PostgresStore persists records in PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	log logrus.FieldLogger
	now func() time.Time
}

// NewPostgresStore connects, retrying the ping, and creates the schema.
func NewPostgresStore(ctx context.Context, connectionString string, log logrus.FieldLogger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = retry.Do(ctx, retry.Policy{
		MaxAttempts: 5,
		Delay:       time.Second,
		Backoff:     true,
		OnRetry: func(attempt int, err error) {
			log.Warnf("Database ping attempt %d failed: %v", attempt, err)
		},
	}, db.PingContext)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{db: db, log: log, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info("PostgreSQL store connected")
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS newsletter_preferences (
		id INTEGER PRIMARY KEY,
		topics TEXT NOT NULL,
		prompt TEXT NOT NULL DEFAULT '',
		primary_color VARCHAR(16) NOT NULL,
		secondary_color VARCHAR(16) NOT NULL,
		font_style VARCHAR(32) NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS newsletter_recipients (
		id VARCHAR(36) PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		whatsapp_number VARCHAR(20) NOT NULL,
		topics TEXT NOT NULL,
		primary_color VARCHAR(16) NOT NULL,
		secondary_color VARCHAR(16) NOT NULL,
		font_style VARCHAR(32) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_recipients_active ON newsletter_recipients(is_active);

	CREATE TABLE IF NOT EXISTS newsletters (
		id VARCHAR(36) PRIMARY KEY,
		title TEXT NOT NULL,
		topics TEXT NOT NULL,
		overall_summary TEXT NOT NULL,
		pdf_path TEXT NOT NULL,
		audio_path TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_newsletters_created_at ON newsletters(created_at);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func selectPreferences() sq.SelectBuilder {
	return psql.Select("topics", "prompt", "primary_color", "secondary_color", "font_style", "updated_at").
		From(preferencesTable).
		Where(sq.Eq{"id": preferencesRowID})
}

func upsertPreferences(p newsletter.Preferences) sq.InsertBuilder {
	return psql.Insert(preferencesTable).
		Columns("id", "topics", "prompt", "primary_color", "secondary_color", "font_style", "updated_at").
		Values(preferencesRowID, p.Topics, p.Prompt, p.Style.PrimaryColor, p.Style.SecondaryColor, p.Style.FontStyle, p.UpdatedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			topics = EXCLUDED.topics,
			prompt = EXCLUDED.prompt,
			primary_color = EXCLUDED.primary_color,
			secondary_color = EXCLUDED.secondary_color,
			font_style = EXCLUDED.font_style,
			updated_at = EXCLUDED.updated_at`)
}

// upsertRecipient reactivates an existing email and reports via xmax whether the row is new.
func upsertRecipient(r newsletter.Recipient) sq.InsertBuilder {
	return psql.Insert(recipientsTable).
		Columns(recipientColumns...).
		Values(r.ID, r.Name, r.Email, r.WhatsAppNumber, r.Topics,
			r.Style.PrimaryColor, r.Style.SecondaryColor, r.Style.FontStyle,
			true, r.CreatedAt, r.UpdatedAt).
		Suffix(`ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			whatsapp_number = EXCLUDED.whatsapp_number,
			topics = EXCLUDED.topics,
			primary_color = EXCLUDED.primary_color,
			secondary_color = EXCLUDED.secondary_color,
			font_style = EXCLUDED.font_style,
			is_active = TRUE,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, (xmax = 0) AS inserted`)
}

func selectRecipients() sq.SelectBuilder {
	return psql.Select(recipientColumns...).From(recipientsTable)
}

func selectNewsletters() sq.SelectBuilder {
	return psql.Select(newsletterColumns...).From(newslettersTable)
}

func (s *PostgresStore) GetPreferences(ctx context.Context) (*newsletter.Preferences, error) {
	query, args, err := selectPreferences().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build preferences query: %w", err)
	}

	var p newsletter.Preferences
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&p.Topics, &p.Prompt, &p.Style.PrimaryColor, &p.Style.SecondaryColor, &p.Style.FontStyle, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) SavePreferences(ctx context.Context, p newsletter.Preferences) error {
	p.Style = p.Style.WithDefaults()
	p.UpdatedAt = s.now().UTC()

	query, args, err := upsertPreferences(p).ToSql()
	if err != nil {
		return fmt.Errorf("build preferences upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertRecipient(ctx context.Context, in newsletter.SubscribeInput) (*newsletter.Recipient, bool, error) {
	now := s.now().UTC()
	r := newsletter.Recipient{
		ID:             uuid.NewString(),
		Name:           in.Name,
		Email:          in.Email,
		WhatsAppNumber: in.WhatsApp,
		Topics:         in.Topics,
		Style:          in.Style.WithDefaults(),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	query, args, err := upsertRecipient(r).ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build recipient upsert: %w", err)
	}

	var inserted bool
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&r.ID, &r.CreatedAt, &inserted); err != nil {
		return nil, false, fmt.Errorf("failed to upsert recipient: %w", err)
	}
	return &r, inserted, nil
}

func (s *PostgresStore) GetRecipient(ctx context.Context, id string) (*newsletter.Recipient, error) {
	query, args, err := selectRecipients().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recipient query: %w", err)
	}

	r, err := scanRecipient(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListActiveRecipients(ctx context.Context) ([]newsletter.Recipient, error) {
	query, args, err := selectRecipients().
		Where(sq.Eq{"is_active": true}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recipients query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	var out []newsletter.Recipient
	for rows.Next() {
		r, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recipients: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeactivateRecipient(ctx context.Context, id string) error {
	query, args, err := psql.Update(recipientsTable).
		Set("is_active", false).
		Set("updated_at", s.now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build deactivate: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to deactivate recipient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateNewsletter(ctx context.Context, n *newsletter.Newsletter) error {
	id := uuid.NewString()
	created := s.now().UTC()

	query, args, err := psql.Insert(newslettersTable).
		Columns(newsletterColumns...).
		Values(id, n.Title, n.Topics, n.OverallSummary, n.PDFPath, n.AudioPath, created).
		ToSql()
	if err != nil {
		return fmt.Errorf("build newsletter insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save newsletter: %w", err)
	}

	n.ID = id
	n.CreatedAt = created
	return nil
}

func (s *PostgresStore) GetNewsletter(ctx context.Context, id string) (*newsletter.Newsletter, error) {
	query, args, err := selectNewsletters().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build newsletter query: %w", err)
	}

	n, err := scanNewsletter(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get newsletter: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListNewsletters(ctx context.Context, limit int) ([]newsletter.Newsletter, error) {
	b := selectNewsletters().OrderBy("created_at DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build newsletters query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list newsletters: %w", err)
	}
	defer rows.Close()

	var out []newsletter.Newsletter
	for rows.Next() {
		n, err := scanNewsletter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan newsletter: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate newsletters: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecipient(row scanner) (*newsletter.Recipient, error) {
	var r newsletter.Recipient
	err := row.Scan(
		&r.ID, &r.Name, &r.Email, &r.WhatsAppNumber, &r.Topics,
		&r.Style.PrimaryColor, &r.Style.SecondaryColor, &r.Style.FontStyle,
		&r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanNewsletter(row scanner) (*newsletter.Newsletter, error) {
	var n newsletter.Newsletter
	err := row.Scan(&n.ID, &n.Title, &n.Topics, &n.OverallSummary, &n.PDFPath, &n.AudioPath, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
