// Package auth implements registration, credential verification and JWT-based
// authentication for HTTP requests. Tokens are stateless, signed with a
// server-held secret; expiry is the only invalidation mechanism.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/shrturl/shrturl/internal/logger"
	"github.com/shrturl/shrturl/internal/models"
	"github.com/shrturl/shrturl/internal/user"
)

// bcryptCost matches the work factor of the stored password hashes.
const bcryptCost = 8

// ErrInvalidCredentials is returned for both an unknown email and a wrong
// password, so a caller cannot probe which emails are registered.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrEmailAlreadyTaken is returned when a signup loses the email uniqueness race.
var ErrEmailAlreadyTaken = errors.New("email already exists")

// ErrInvalidToken is returned when a token is missing, malformed, expired
// or carries a bad signature.
var ErrInvalidToken = errors.New("invalid token")

// ErrUserNotFound is returned when a token's subject no longer resolves
// to a stored user.
var ErrUserNotFound = errors.New("user not found, register again or sign in properly")

// ErrNotAllowed is returned when the freshly loaded user does not hold
// the required role.
var ErrNotAllowed = errors.New("user not found or authorized to view this page")

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User) (*user.User, error)
	FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error)
	GetUserByID(ctx context.Context, userID string) (*user.User, bool, error)
}

// Claims is the decoded payload of a signed token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// ClaimsKey is the context key under which the verified token claims are stored.
const ClaimsKey ContextKey = "claims"

// Auth registers users, verifies credentials and issues and verifies tokens.
type Auth struct {
	db               userKeeper
	signingSecretKey []byte
	tokenTTL         time.Duration
}

// New creates an Auth service backed by the given user storage.
func New(db userKeeper, signingSecretKey []byte, tokenTTL time.Duration) *Auth {
	return &Auth{
		db:               db,
		signingSecretKey: signingSecretKey,
		tokenTTL:         tokenTTL,
	}
}

// Register creates a user with a bcrypt-hashed password and issues a token.
// The role defaults to user.RoleUser when empty or unknown.
func (a *Auth) Register(ctx context.Context, email, password, role string) (*user.User, string, error) {
	if !user.IsValidRole(role) {
		role = user.RoleUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, "", err
	}

	created, err := a.db.CreateUser(ctx, &user.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, models.ErrEmailAlreadyExists) {
			return nil, "", ErrEmailAlreadyTaken
		}
		return nil, "", err
	}

	token, err := a.buildJWTString(created)
	if err != nil {
		return nil, "", err
	}

	return created, token, nil
}

// Authenticate verifies the email/password pair and issues a token.
// The unknown-email and wrong-password cases are indistinguishable.
func (a *Auth) Authenticate(ctx context.Context, email, password string) (*user.User, string, error) {
	usr, found, err := a.db.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if !found {
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := a.buildJWTString(usr)
	if err != nil {
		return nil, "", err
	}

	return usr, token, nil
}

// VerifyToken parses and validates a signed token string and returns its claims.
func (a *Auth) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.signingSecretKey, nil
		},
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// RequireUser re-fetches the token's subject from the storage.
// Role checks must run against this live record, never against the token's
// embedded role, so role changes take effect before the token expires.
func (a *Auth) RequireUser(ctx context.Context, claims *Claims) (*user.User, error) {
	usr, found, err := a.db.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUserNotFound
	}

	return usr, nil
}

// Authorize checks the freshly loaded user against the required role.
func (a *Auth) Authorize(usr *user.User, requiredRole string) error {
	if usr == nil || usr.Role != requiredRole {
		return ErrNotAllowed
	}

	return nil
}

// AuthenticateUser is an HTTP middleware that requires a valid
// `Authorization: Bearer <token>` header and stores the verified claims
// in the request context.
func (a *Auth) AuthenticateUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		authHeader := request.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			writeUnauthorized(response, "No token provided")

			return
		}

		claims, err := a.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			logger.Log.Debugln("Error calling the `a.VerifyToken()`: ", zap.Error(err))
			writeUnauthorized(response, "Invalid token")

			return
		}

		ctx := context.WithValue(request.Context(), ClaimsKey, claims)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// ClaimsFromContext extracts the verified claims stored by AuthenticateUser.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)

	return claims, ok
}

func (a *Auth) buildJWTString(usr *user.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
		UserID: usr.ID,
		Email:  usr.Email,
		Role:   usr.Role,
	})

	tokenString, err := token.SignedString(a.signingSecretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func writeUnauthorized(response http.ResponseWriter, message string) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(response).Encode(models.ErrorResponse{
		Status:  http.StatusUnauthorized,
		Message: message,
	})
}
