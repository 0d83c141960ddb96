// Package router wires the HTTP routes of the service: signup/signin,
// alias issuance and resolution, per-user and admin listings, and QR codes.
// It translates JSON bodies into typed service calls and service errors into
// the uniform {status, message} error shape.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/shrturl/shrturl/internal/alias"
	"github.com/shrturl/shrturl/internal/auth"
	"github.com/shrturl/shrturl/internal/authenticator"
	"github.com/shrturl/shrturl/internal/clientip"
	"github.com/shrturl/shrturl/internal/gzippedhttp"
	"github.com/shrturl/shrturl/internal/logger"
	"github.com/shrturl/shrturl/internal/models"
	"github.com/shrturl/shrturl/internal/service"
	"github.com/shrturl/shrturl/internal/user"
)

type aliasService interface {
	CreateAlias(ctx context.Context, ownerID, originalURL, customAlias string) (*alias.Alias, error)
	ResolveAlias(ctx context.Context, name, visitorAddr string) (string, error)
	ListForUser(ctx context.Context, ownerID string) ([]alias.Alias, error)
	ListForAdmin(ctx context.Context, page int) ([]alias.Alias, error)
	GenerateQRCode(ctx context.Context, publicLink string) (string, error)
	Ping(ctx context.Context) error
}

type authService interface {
	Register(ctx context.Context, email, password, role string) (*user.User, string, error)
	Authenticate(ctx context.Context, email, password string) (*user.User, string, error)
	RequireUser(ctx context.Context, claims *auth.Claims) (*user.User, error)
	Authorize(usr *user.User, requiredRole string) error
}

// Router holds the handler dependencies.
type Router struct {
	svc      aliasService
	auth     authService
	validate *validator.Validate
}

// New assembles the chi router with logging, gzip and bearer-auth middleware.
func New(svc aliasService, authSvc authService, authn authenticator.Authenticator) http.Handler {
	rt := &Router{
		svc:      svc,
		auth:     authSvc,
		validate: validator.New(),
	}

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		gzippedhttp.UngzipRequest,
		gzippedhttp.GzipResponse,
	)

	router.Post(`/api/signup`, rt.PostSignup)
	router.Post(`/api/signin`, rt.PostSignin)
	router.Get(`/ping`, rt.GetPing)

	router.Route(`/api/shorten`, func(router chi.Router) {
		// Static segments are matched before the {alias} wildcard, which is
		// why "user" and "admin" are reserved alias values.
		router.Get(`/{alias}`, rt.GetResolveAlias)

		router.Group(func(router chi.Router) {
			router.Use(authn.AuthenticateUser)
			router.Post(`/`, rt.PostShorten)
			router.Get(`/user`, rt.GetUserAliases)
			router.Get(`/admin`, rt.GetAdminAliases)
			router.Post(`/qrcode`, rt.PostQRCode)
		})
	})

	return router
}

// PostSignup handles POST /api/signup.
func (rt *Router) PostSignup(response http.ResponseWriter, request *http.Request) {
	var body models.SignupRequest
	if !rt.decodeAndValidate(response, request, &body) {
		return
	}

	usr, token, err := rt.auth.Register(request.Context(), body.Email, body.Password, body.Role)
	if err != nil {
		rt.writeTaxonomyError(response, request, err)
		return
	}

	writeJSON(response, http.StatusCreated, models.AuthResponse{User: usr, Token: token})
}

// PostSignin handles POST /api/signin.
func (rt *Router) PostSignin(response http.ResponseWriter, request *http.Request) {
	var body models.SigninRequest
	if !rt.decodeAndValidate(response, request, &body) {
		return
	}

	usr, token, err := rt.auth.Authenticate(request.Context(), body.Email, body.Password)
	if err != nil {
		rt.writeTaxonomyError(response, request, err)
		return
	}

	writeJSON(response, http.StatusOK, models.AuthResponse{User: usr, Token: token})
}

// PostShorten handles POST /api/shorten.
func (rt *Router) PostShorten(response http.ResponseWriter, request *http.Request) {
	var body models.ShortenRequest
	if !rt.decodeAndValidate(response, request, &body) {
		return
	}

	usr, err := rt.requireUser(request)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(response, http.StatusNotFound, err.Error())
			return
		}
		rt.writeTaxonomyError(response, request, err)
		return
	}

	record, err := rt.svc.CreateAlias(request.Context(), usr.ID, body.OriginalURL, body.CustomAlias)
	if err != nil {
		rt.writeTaxonomyError(response, request, err)
		return
	}

	writeJSON(response, http.StatusCreated, models.ShortenResponse{
		Message: "URL shortened successfully",
		Data:    record,
	})
}

// GetResolveAlias handles GET /api/shorten/{alias}. The visit is durably
// recorded before the original URL is returned.
func (rt *Router) GetResolveAlias(response http.ResponseWriter, request *http.Request) {
	name := chi.URLParam(request, "alias")
	visitorAddr := clientip.FromRequest(request)

	originalURL, err := rt.svc.ResolveAlias(request.Context(), name, visitorAddr)
	if err != nil {
		rt.writeTaxonomyError(response, request, err)
		return
	}

	writeJSON(response, http.StatusOK, models.ResolveResponse{URL: originalURL})
}

// GetUserAliases handles GET /api/shorten/user.
func (rt *Router) GetUserAliases(response http.ResponseWriter, request *http.Request) {
	usr, err := rt.requireUser(request)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(response, http.StatusNotFound, err.Error())
			return
		}
		rt.writeTaxonomyError(response, request, err)
		return
	}

	urls, err := rt.svc.ListForUser(request.Context(), usr.ID)
	if err != nil {
		rt.writeTaxonomyError(response, request, err)
		return
	}

	writeJSON(response, http.StatusOK, models.AliasListResponse{Urls: urls})
}

// GetAdminAliases handles GET /api/shorten/admin. A missing user and a
// non-admin user get the same 400 response, matching the long-standing
// behavior of the endpoint.
func (rt *Router) GetAdminAliases(response http.ResponseWriter, request *http.Request) {
	usr, err := rt.requireUser(request)
	if err != nil {
		writeError(response, http.StatusBadRequest, auth.ErrNotAllowed.Error())
		return
	}
	if err := rt.auth.Authorize(usr, user.RoleAdmin); err != nil {
		writeError(response, http.StatusBadRequest, err.Error())
		return
	}

	page, _ := strconv.Atoi(request.URL.Query().Get("page"))
	urls, err := rt.svc.ListForAdmin(request.Context(), page)
	if err != nil {
		rt.writeTaxonomyError(response, request, err)
		return
	}

	writeJSON(response, http.StatusOK, models.AliasListResponse{Urls: urls})
}

// PostQRCode handles POST /api/shorten/qrcode.
func (rt *Router) PostQRCode(response http.ResponseWriter, request *http.Request) {
	var body models.QRCodeRequest
	if !rt.decodeAndValidate(response, request, &body) {
		return
	}

	if _, err := rt.requireUser(request); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(response, http.StatusUnauthorized, err.Error())
			return
		}
		rt.writeTaxonomyError(response, request, err)
		return
	}

	dataURI, err := rt.svc.GenerateQRCode(request.Context(), body.PublicLink)
	if err != nil {
		rt.writeTaxonomyError(response, request, err)
		return
	}

	writeJSON(response, http.StatusOK, dataURI)
}

// GetPing handles GET /ping, the storage health probe.
func (rt *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := rt.svc.Ping(request.Context()); err != nil {
		rt.writeTaxonomyError(response, request, err)
		return
	}

	response.WriteHeader(http.StatusOK)
}

func (rt *Router) requireUser(request *http.Request) (*user.User, error) {
	claims, ok := auth.ClaimsFromContext(request.Context())
	if !ok {
		return nil, auth.ErrInvalidToken
	}

	return rt.auth.RequireUser(request.Context(), claims)
}

func (rt *Router) decodeAndValidate(response http.ResponseWriter, request *http.Request, body interface{}) bool {
	if err := json.NewDecoder(request.Body).Decode(body); err != nil {
		writeError(response, http.StatusBadRequest, "invalid JSON body")
		return false
	}

	if err := rt.validate.Struct(body); err != nil {
		writeError(response, http.StatusBadRequest, validationMessage(err))
		return false
	}

	return true
}

// writeTaxonomyError maps a service or auth error onto an HTTP status.
// Unexpected errors are logged with the request context and surfaced
// as a generic 500, never exposing internals.
func (rt *Router) writeTaxonomyError(response http.ResponseWriter, request *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrEmailAlreadyTaken),
		errors.Is(err, auth.ErrNotAllowed),
		errors.Is(err, service.ErrInvalidOriginalURL),
		errors.Is(err, service.ErrInvalidCustomAlias),
		errors.Is(err, service.ErrReservedAlias),
		errors.Is(err, service.ErrAliasTaken):
		writeError(response, http.StatusBadRequest, err.Error())

	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		writeError(response, http.StatusUnauthorized, err.Error())

	case errors.Is(err, service.ErrAliasNotFound),
		errors.Is(err, service.ErrPublicLinkNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		writeError(response, http.StatusNotFound, err.Error())

	default:
		logger.Log.Errorln(
			"unexpected error",
			"method", request.Method,
			"uri", request.RequestURI,
			zap.Error(err),
		)
		writeError(response, http.StatusInternalServerError, "Something went wrong")
	}
}

func validationMessage(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return "invalid request"
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		switch fieldError.Field() {
		case "Email":
			messages = append(messages, "Email must be valid")
		case "Password":
			messages = append(messages, "Password must be between 8 and 20 characters")
		case "Role":
			messages = append(messages, "role must be either user or admin")
		case "OriginalURL":
			messages = append(messages, "originalUrl should be a valid URL")
		case "CustomAlias":
			messages = append(messages, "customAlias must be between 5 and 20 characters")
		case "PublicLink":
			messages = append(messages, "publicLink should be a valid URL")
		default:
			messages = append(messages, "invalid request")
		}
	}

	return strings.Join(messages, ", ")
}

func writeJSON(response http.ResponseWriter, status int, payload interface{}) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if err := json.NewEncoder(response).Encode(payload); err != nil {
		logger.Log.Debugln("Error encoding the response body: ", zap.Error(err))
	}
}

func writeError(response http.ResponseWriter, status int, message string) {
	writeJSON(response, status, models.ErrorResponse{
		Status:  status,
		Message: message,
	})
}
