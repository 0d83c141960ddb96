// Package models contains the JSON request/response shapes of the HTTP API
// and the sentinel errors shared between the storage implementations.
package models

import (
	"errors"

	"github.com/shrturl/shrturl/internal/alias"
	"github.com/shrturl/shrturl/internal/user"
)

// SignupRequest is the body of POST /api/signup.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=20"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// SigninRequest is the body of POST /api/signin.
type SigninRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=20"`
}

// AuthResponse is returned by both signup and signin.
type AuthResponse struct {
	User  *user.User `json:"user"`
	Token string     `json:"token"`
}

// ShortenRequest is the body of POST /api/shorten.
type ShortenRequest struct {
	OriginalURL string `json:"originalUrl" validate:"required,url"`
	CustomAlias string `json:"customAlias" validate:"omitempty,min=5,max=20"`
}

// ShortenResponse is returned on a successful shorten request.
type ShortenResponse struct {
	Message string       `json:"message"`
	Data    *alias.Alias `json:"data"`
}

// ResolveResponse carries the original URL of a resolved alias.
type ResolveResponse struct {
	URL string `json:"url"`
}

// AliasListResponse wraps alias listings for both the user and the admin views.
type AliasListResponse struct {
	Urls []alias.Alias `json:"urls"`
}

// QRCodeRequest is the body of POST /api/shorten/qrcode.
type QRCodeRequest struct {
	PublicLink string `json:"publicLink" validate:"required,url"`
}

// ErrorResponse is the uniform error body of the API.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Storage backend identifiers selected from the configuration.
const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

// ErrEmailAlreadyExists is returned by the storage when a user insert loses
// the uniqueness race on the email column.
var ErrEmailAlreadyExists = errors.New("email already exists")

// ErrAliasAlreadyExists is returned by the storage when an alias insert loses
// the uniqueness race on the alias column.
var ErrAliasAlreadyExists = errors.New("alias already exists")
