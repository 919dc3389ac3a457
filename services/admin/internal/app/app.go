package app

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"stillmind/internal/credential"
	"stillmind/internal/util"
	"stillmind/pkg/auth"
	"stillmind/pkg/domain"
	"stillmind/pkg/storage"
	"stillmind/pkg/store"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Config holds runtime configuration for the admin application.
type Config struct {
	DatabaseURL string
	Store       store.Store
	TokenSecret string
	TokenIssuer string
	TokenTTL    time.Duration
	Media       storage.MediaStore
}

// App is the admin application service wiring storage, the token issuer,
// and the media store.
type App struct {
	store  store.Store
	issuer *credential.TokenIssuer
	media  storage.MediaStore
}

// New constructs the admin application.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	issuer, err := credential.NewTokenIssuer(cfg.TokenSecret, cfg.TokenIssuer, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	return &App{
		store:  dataStore,
		issuer: issuer,
		media:  cfg.Media,
	}, nil
}

// EnsureAdmin registers an operator account when the username is free.
// Used to bootstrap the first account from config.
func (a *App) EnsureAdmin(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username required")
	}
	if _, exists, err := a.store.GetAdminByUsername(username); err != nil {
		return fmt.Errorf("load admin: %w", err)
	} else if exists {
		return nil
	}
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := a.store.SaveAdmin(domain.AdminUser{
		ID:           util.NewID(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("save admin: %w", err)
	}
	return nil
}

// Login checks operator credentials and issues an expiring signed token.
func (a *App) Login(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", ErrBadCredentials
	}
	admin, ok, err := a.store.GetAdminByUsername(username)
	if err != nil {
		return "", fmt.Errorf("load admin: %w", err)
	}
	if !ok || !auth.CheckPassword(password, admin.PasswordHash) {
		return "", ErrBadCredentials
	}
	token, err := a.issuer.Issue(admin.Username)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// ListUsers returns every user's counter row, most sessions first.
func (a *App) ListUsers() ([]domain.UserStats, error) {
	users, err := a.store.ListUserStats()
	if err != nil {
		return nil, fmt.Errorf("list user stats: %w", err)
	}
	return users, nil
}

// ListContent returns one page of the catalog, premium included.
func (a *App) ListContent(limit, offset int) ([]domain.Content, int64, error) {
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	items, total, err := a.store.SearchContent(store.ContentFilter{
		IncludePremium: true,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list content: %w", err)
	}
	return items, total, nil
}

// UpsertContent creates or updates a catalog item.
func (a *App) UpsertContent(content domain.Content) (domain.Content, error) {
	if strings.TrimSpace(content.Title) == "" {
		return domain.Content{}, fmt.Errorf("title required")
	}
	switch content.ContentType {
	case domain.ContentMeditation, domain.ContentBreathing, domain.ContentSleep, domain.ContentSoundscape:
	default:
		return domain.Content{}, fmt.Errorf("unknown content type: %s", content.ContentType)
	}
	if content.DurationSeconds < 0 {
		return domain.Content{}, fmt.Errorf("duration must not be negative")
	}
	if content.ID == "" {
		content.ID = util.NewID()
		content.CreatedAt = time.Now().UTC()
	} else {
		existing, ok, err := a.store.GetContent(content.ID)
		if err != nil {
			return domain.Content{}, fmt.Errorf("load content: %w", err)
		}
		if !ok {
			return domain.Content{}, ErrContentNotFound
		}
		content.CreatedAt = existing.CreatedAt
		if content.MediaKey == "" {
			content.MediaKey = existing.MediaKey
		}
	}
	if err := a.store.SaveContent(content); err != nil {
		return domain.Content{}, fmt.Errorf("save content: %w", err)
	}
	return content, nil
}

// UploadMedia stores a media object for the catalog item and records
// its key on the content row.
func (a *App) UploadMedia(ctx context.Context, contentID, filename string, r io.Reader, size int64, contentType string) (domain.Content, error) {
	if a.media == nil {
		return domain.Content{}, fmt.Errorf("media store not configured")
	}
	content, ok, err := a.store.GetContent(contentID)
	if err != nil {
		return domain.Content{}, fmt.Errorf("load content: %w", err)
	}
	if !ok {
		return domain.Content{}, ErrContentNotFound
	}
	key := "audio/" + contentID + path.Ext(filename)
	if err := a.media.Put(ctx, key, r, size, contentType); err != nil {
		return domain.Content{}, fmt.Errorf("store media: %w", err)
	}
	content.MediaKey = key
	if err := a.store.SaveContent(content); err != nil {
		return domain.Content{}, fmt.Errorf("save content: %w", err)
	}
	return content, nil
}

// Stats aggregates the platform dashboard totals.
func (a *App) Stats() (domain.PlatformStats, error) {
	stats, err := a.store.PlatformStats()
	if err != nil {
		return domain.PlatformStats{}, fmt.Errorf("platform stats: %w", err)
	}
	return stats, nil
}
