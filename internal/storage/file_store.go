package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/newsletter/internal/newsletter"
)

type fileDocument struct {
	Preferences *newsletter.Preferences `json:"preferences,omitempty"`
	Recipients  []newsletter.Recipient  `json:"recipients"`
	Newsletters []newsletter.Newsletter `json:"newsletters"`
}

// FileStore keeps everything in one JSON document, rewritten on every change.
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	doc      fileDocument
	now      func() time.Time
}

// NewFileStore loads filePath if it exists.
func NewFileStore(filePath string) (*FileStore, error) {
	fs := &FileStore{filePath: filePath, now: time.Now}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &fs.doc); err != nil {
		return fmt.Errorf("failed to unmarshal store: %w", err)
	}
	return nil
}

func (d fileDocument) clone() fileDocument {
	out := fileDocument{
		Recipients:  append([]newsletter.Recipient(nil), d.Recipients...),
		Newsletters: append([]newsletter.Newsletter(nil), d.Newsletters...),
	}
	if d.Preferences != nil {
		p := *d.Preferences
		out.Preferences = &p
	}
	return out
}

// commit persists next and only then makes it the in-memory state.
// Caller holds mu.
func (fs *FileStore) commit(next fileDocument) error {
	if err := fs.write(next); err != nil {
		return err
	}
	fs.doc = next
	return nil
}

// write puts doc in a temp file and renames it over the old one.
func (fs *FileStore) write(doc fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	dir := filepath.Dir(fs.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(fs.filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.filePath); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

func (fs *FileStore) GetPreferences(_ context.Context) (*newsletter.Preferences, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if fs.doc.Preferences == nil {
		return nil, ErrNotFound
	}
	p := *fs.doc.Preferences
	return &p, nil
}

func (fs *FileStore) SavePreferences(_ context.Context, p newsletter.Preferences) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p.Style = p.Style.WithDefaults()
	p.UpdatedAt = fs.now().UTC()
	next := fs.doc.clone()
	next.Preferences = &p
	return fs.commit(next)
}

func (fs *FileStore) UpsertRecipient(_ context.Context, in newsletter.SubscribeInput) (*newsletter.Recipient, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	now := fs.now().UTC()
	next := fs.doc.clone()
	for i := range next.Recipients {
		r := &next.Recipients[i]
		if r.Email != in.Email {
			continue
		}
		r.Name = in.Name
		r.WhatsAppNumber = in.WhatsApp
		r.Topics = in.Topics
		r.Style = in.Style.WithDefaults()
		r.IsActive = true
		r.UpdatedAt = now
		out := *r
		if err := fs.commit(next); err != nil {
			return nil, false, err
		}
		return &out, false, nil
	}

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
	next.Recipients = append(next.Recipients, r)
	if err := fs.commit(next); err != nil {
		return nil, false, err
	}
	return &r, true, nil
}

func (fs *FileStore) GetRecipient(_ context.Context, id string) (*newsletter.Recipient, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	for _, r := range fs.doc.Recipients {
		if r.ID == id {
			out := r
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (fs *FileStore) ListActiveRecipients(_ context.Context) ([]newsletter.Recipient, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var out []newsletter.Recipient
	for _, r := range fs.doc.Recipients {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (fs *FileStore) DeactivateRecipient(_ context.Context, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	next := fs.doc.clone()
	for i := range next.Recipients {
		if next.Recipients[i].ID == id {
			next.Recipients[i].IsActive = false
			next.Recipients[i].UpdatedAt = fs.now().UTC()
			return fs.commit(next)
		}
	}
	return ErrNotFound
}

func (fs *FileStore) CreateNewsletter(_ context.Context, n *newsletter.Newsletter) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	stored := *n
	stored.ID = uuid.NewString()
	stored.CreatedAt = fs.now().UTC()

	next := fs.doc.clone()
	next.Newsletters = append(next.Newsletters, stored)
	if err := fs.commit(next); err != nil {
		return err
	}
	*n = stored
	return nil
}

func (fs *FileStore) GetNewsletter(_ context.Context, id string) (*newsletter.Newsletter, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	for _, n := range fs.doc.Newsletters {
		if n.ID == id {
			out := n
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// ListNewsletters returns the newest newsletters first.
func (fs *FileStore) ListNewsletters(_ context.Context, limit int) ([]newsletter.Newsletter, error) {
	fs.mu.RLock()
	out := make([]newsletter.Newsletter, len(fs.doc.Newsletters))
	copy(out, fs.doc.Newsletters)
	fs.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (fs *FileStore) Close() error {
	return nil
}
