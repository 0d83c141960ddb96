// Package service implements the alias issuance and resolution flow:
// allocating short aliases, resolving them while recording visit statistics,
// listing them per user or paged for admins, and rendering QR codes.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/shrturl/shrturl/internal/alias"
	"github.com/shrturl/shrturl/internal/models"
)

// AdminPageSize is the fixed number of records per admin listing page.
const AdminPageSize = 10

const (
	// aliasAlphabet is the base-36 space random aliases are drawn from.
	aliasAlphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
	randomAliasLength = 6

	customAliasMinLength = 5
	customAliasMaxLength = 20

	qrCodeSizePx = 256
)

// ErrInvalidOriginalURL reports a malformed original URL.
var ErrInvalidOriginalURL = errors.New("originalUrl should be a valid URL")

// ErrInvalidCustomAlias reports a custom alias outside the allowed length.
var ErrInvalidCustomAlias = errors.New("customAlias must be between 5 and 20 characters")

// ErrReservedAlias reports a custom alias colliding with a fixed route segment.
var ErrReservedAlias = errors.New("customAlias cannot be user or admin")

// ErrAliasTaken reports a custom alias that is already in use.
var ErrAliasTaken = errors.New("customAlias already exists")

// ErrAliasNotFound reports an unknown short token.
var ErrAliasNotFound = errors.New("URL not found")

// ErrPublicLinkNotFound reports a public link with no stored alias behind it.
var ErrPublicLinkNotFound = errors.New("publicLink does not exist")

// reservedAliases collide with the /api/shorten/user and /api/shorten/admin routes.
var reservedAliases = map[string]bool{
	"user":  true,
	"admin": true,
}

type aliasKeeper interface {
	InsertAlias(ctx context.Context, a *alias.Alias) error
	FindAliasByName(ctx context.Context, name string) (*alias.Alias, bool, error)
	FindAliasByPublicLink(ctx context.Context, publicLink string) (*alias.Alias, bool, error)
	RegisterVisit(ctx context.Context, name, visitorAddr string) (bool, error)
	GetUserAliases(ctx context.Context, ownerID string) ([]alias.Alias, error)
	GetAliasesPage(ctx context.Context, skip, limit int) ([]alias.Alias, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	aliasKeeper
	pinger
}

// Service implements the alias operations on top of the storage contract.
type Service struct {
	db      storage
	baseURL string
}

// New creates a Service serving public links under the given base URL.
func New(db storage, baseURL string) *Service {
	return &Service{
		db:      db,
		baseURL: baseURL,
	}
}

// CreateAlias allocates an alias for the given original URL and persists it
// with a zero visit counter. A custom alias is validated for length and
// reserved words and pre-checked for uniqueness; a random alias is inserted
// without a pre-check and relies on the storage's unique index.
func (s *Service) CreateAlias(ctx context.Context, ownerID, originalURL, customAlias string) (*alias.Alias, error) {
	if !isValidURL(originalURL) {
		return nil, ErrInvalidOriginalURL
	}

	name := customAlias
	if name != "" {
		if err := validateCustomAlias(name); err != nil {
			return nil, err
		}
		_, exists, err := s.db.FindAliasByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrAliasTaken
		}
	} else {
		var err error
		name, err = generateRandomAlias()
		if err != nil {
			return nil, err
		}
	}

	record := &alias.Alias{
		OriginalURL: originalURL,
		Alias:       name,
		PublicLink:  s.PublicLink(name),
		VisitCount:  0,
		VisitorLog:  []string{},
		OwnerID:     ownerID,
	}

	if err := s.db.InsertAlias(ctx, record); err != nil {
		if errors.Is(err, models.ErrAliasAlreadyExists) {
			return nil, ErrAliasTaken
		}
		return nil, err
	}

	return record, nil
}

// ResolveAlias returns the original URL behind the given short token.
// It increments the visit counter and appends the visitor address first;
// the mutation is durably persisted before the URL is handed back.
func (s *Service) ResolveAlias(ctx context.Context, name, visitorAddr string) (string, error) {
	record, found, err := s.db.FindAliasByName(ctx, name)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrAliasNotFound
	}

	registered, err := s.db.RegisterVisit(ctx, name, visitorAddr)
	if err != nil {
		return "", err
	}
	if !registered {
		return "", ErrAliasNotFound
	}

	return record.OriginalURL, nil
}

// ListForUser returns every alias owned by the given user.
func (s *Service) ListForUser(ctx context.Context, ownerID string) ([]alias.Alias, error) {
	return s.db.GetUserAliases(ctx, ownerID)
}

// ListForAdmin returns one zero-based page of up to AdminPageSize aliases
// across all owners. The caller must already be confirmed as an admin.
func (s *Service) ListForAdmin(ctx context.Context, page int) ([]alias.Alias, error) {
	if page < 0 {
		page = 0
	}

	return s.db.GetAliasesPage(ctx, page*AdminPageSize, AdminPageSize)
}

// GenerateQRCode renders the public link of a stored alias as a PNG QR code
// and returns it as a base64 data URI.
func (s *Service) GenerateQRCode(ctx context.Context, publicLink string) (string, error) {
	_, found, err := s.db.FindAliasByPublicLink(ctx, publicLink)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrPublicLinkNotFound
	}

	png, err := qrcode.Encode(publicLink, qrcode.Medium, qrCodeSizePx)
	if err != nil {
		return "", err
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// PublicLink builds the fully-qualified URL of an alias.
func (s *Service) PublicLink(name string) string {
	return s.baseURL + "/api/shorten/" + name
}

func validateCustomAlias(name string) error {
	if len(name) < customAliasMinLength || len(name) > customAliasMaxLength {
		return ErrInvalidCustomAlias
	}
	if reservedAliases[name] {
		return ErrReservedAlias
	}

	return nil
}

func generateRandomAlias() (string, error) {
	result := make([]byte, randomAliasLength)
	for i := range result {
		randomIndex, err := rand.Int(rand.Reader, big.NewInt(int64(len(aliasAlphabet))))
		if err != nil {
			return "", err
		}
		result[i] = aliasAlphabet[randomIndex.Int64()]
	}

	return string(result), nil
}

func isValidURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil &&
		(u.Scheme == "http" || u.Scheme == "https") &&
		u.Host != ""
}
