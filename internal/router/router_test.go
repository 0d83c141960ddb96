package router

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shrturl/shrturl/internal/alias"
	"github.com/shrturl/shrturl/internal/auth"
	"github.com/shrturl/shrturl/internal/db/memorystorage"
	"github.com/shrturl/shrturl/internal/logger"
	"github.com/shrturl/shrturl/internal/mockstorage"
	"github.com/shrturl/shrturl/internal/models"
	"github.com/shrturl/shrturl/internal/service"
)

const testBaseURL = "http://localhost:8080"

var testSigningKey = []byte("router-test-signing-key")

func newTestServer(t *testing.T) (*httptest.Server, *resty.Client) {
	t.Helper()

	require.NoError(t, logger.Init("debug"))

	db, err := memorystorage.New()
	require.NoError(t, err)

	authSvc := auth.New(db, testSigningKey, 24*time.Hour)
	svc := service.New(db, testBaseURL)

	server := httptest.NewServer(New(svc, authSvc, authSvc))
	t.Cleanup(server.Close)

	client := resty.New().SetBaseURL(server.URL)

	return server, client
}

func signupUser(t *testing.T, client *resty.Client, email, password, role string) models.AuthResponse {
	t.Helper()

	var authResponse models.AuthResponse
	response, err := client.R().
		SetBody(map[string]string{"email": email, "password": password, "role": role}).
		SetResult(&authResponse).
		Post("/api/signup")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, response.StatusCode())
	require.NotEmpty(t, authResponse.Token)

	return authResponse
}

func shortenURL(t *testing.T, client *resty.Client, token, originalURL, customAlias string) *alias.Alias {
	t.Helper()

	var shortenResponse models.ShortenResponse
	response, err := client.R().
		SetAuthToken(token).
		SetBody(models.ShortenRequest{OriginalURL: originalURL, CustomAlias: customAlias}).
		SetResult(&shortenResponse).
		Post("/api/shorten")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, response.StatusCode())
	require.NotNil(t, shortenResponse.Data)

	return shortenResponse.Data
}

func TestPostSignup(t *testing.T) {
	_, client := newTestServer(t)

	authResponse := signupUser(t, client, "user@example.com", "password123", "")
	assert.Equal(t, "user@example.com", authResponse.User.Email)
	assert.Equal(t, "user", authResponse.User.Role)
	assert.NotEmpty(t, authResponse.User.ID)

	var errorResponse models.ErrorResponse
	response, err := client.R().
		SetBody(map[string]string{"email": "user@example.com", "password": "password123"}).
		SetError(&errorResponse).
		Post("/api/signup")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode())
	assert.Equal(t, "email already exists", errorResponse.Message)
}

func TestPostSignupValidation(t *testing.T) {
	_, client := newTestServer(t)

	testCases := []struct {
		name            string
		body            interface{}
		expectedMessage string
	}{
		{
			name:            "malformed_email",
			body:            map[string]string{"email": "not-an-email", "password": "password123"},
			expectedMessage: "Email must be valid",
		},
		{
			name:            "short_password",
			body:            map[string]string{"email": "user@example.com", "password": "short"},
			expectedMessage: "Password must be between 8 and 20 characters",
		},
		{
			name:            "unknown_role",
			body:            map[string]string{"email": "user@example.com", "password": "password123", "role": "root"},
			expectedMessage: "role must be either user or admin",
		},
		{
			name:            "invalid_json",
			body:            "{not json",
			expectedMessage: "invalid JSON body",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var errorResponse models.ErrorResponse
			response, err := client.R().
				SetHeader("Content-Type", "application/json").
				SetBody(testCase.body).
				SetError(&errorResponse).
				Post("/api/signup")
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, response.StatusCode())
			assert.Equal(t, testCase.expectedMessage, errorResponse.Message)
		})
	}
}

func TestPostSignin(t *testing.T) {
	_, client := newTestServer(t)

	signupUser(t, client, "user@example.com", "password123", "")

	var authResponse models.AuthResponse
	response, err := client.R().
		SetBody(map[string]string{"email": "user@example.com", "password": "password123"}).
		SetResult(&authResponse).
		Post("/api/signin")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())
	assert.NotEmpty(t, authResponse.Token)
	assert.Equal(t, "user@example.com", authResponse.User.Email)
}

func TestPostSigninRejectsBadCredentials(t *testing.T) {
	_, client := newTestServer(t)

	signupUser(t, client, "user@example.com", "password123", "")

	testCases := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong_password", email: "user@example.com", password: "wrongpassword"},
		{name: "unknown_email", email: "nobody@example.com", password: "password123"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var errorResponse models.ErrorResponse
			response, err := client.R().
				SetBody(map[string]string{"email": testCase.email, "password": testCase.password}).
				SetError(&errorResponse).
				Post("/api/signin")
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, response.StatusCode())
			assert.Equal(t, "invalid email or password", errorResponse.Message)
		})
	}
}

func TestPostShorten(t *testing.T) {
	_, client := newTestServer(t)

	authResponse := signupUser(t, client, "user@example.com", "password123", "")

	record := shortenURL(t, client, authResponse.Token, "https://example.com/page", "")
	assert.Len(t, record.Alias, 6)
	assert.Equal(t, testBaseURL+"/api/shorten/"+record.Alias, record.PublicLink)
	assert.Equal(t, 0, record.VisitCount)
	assert.Equal(t, authResponse.User.ID, record.OwnerID)

	custom := shortenURL(t, client, authResponse.Token, "https://example.com/other", "my-alias")
	assert.Equal(t, "my-alias", custom.Alias)
}

func TestPostShortenRejections(t *testing.T) {
	_, client := newTestServer(t)

	authResponse := signupUser(t, client, "user@example.com", "password123", "")
	shortenURL(t, client, authResponse.Token, "https://example.com", "my-alias")

	testCases := []struct {
		name            string
		body            models.ShortenRequest
		expectedStatus  int
		expectedMessage string
	}{
		{
			name:            "alias_conflict",
			body:            models.ShortenRequest{OriginalURL: "https://example.org", CustomAlias: "my-alias"},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "customAlias already exists",
		},
		{
			name:            "reserved_alias",
			body:            models.ShortenRequest{OriginalURL: "https://example.org", CustomAlias: "admin"},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "customAlias cannot be user or admin",
		},
		{
			name:            "malformed_url",
			body:            models.ShortenRequest{OriginalURL: "not a url"},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "originalUrl should be a valid URL",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var errorResponse models.ErrorResponse
			response, err := client.R().
				SetAuthToken(authResponse.Token).
				SetBody(testCase.body).
				SetError(&errorResponse).
				Post("/api/shorten")
			require.NoError(t, err)
			assert.Equal(t, testCase.expectedStatus, response.StatusCode())
			assert.Equal(t, testCase.expectedMessage, errorResponse.Message)
		})
	}
}

func TestAuthenticationRequired(t *testing.T) {
	_, client := newTestServer(t)

	testCases := []struct {
		name            string
		authHeader      string
		expectedMessage string
	}{
		{name: "no_header", authHeader: "", expectedMessage: "No token provided"},
		{name: "not_bearer", authHeader: "Token abc", expectedMessage: "No token provided"},
		{name: "garbage_token", authHeader: "Bearer not.a.token", expectedMessage: "Invalid token"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var errorResponse models.ErrorResponse
			request := client.R().
				SetBody(models.ShortenRequest{OriginalURL: "https://example.com"}).
				SetError(&errorResponse)
			if testCase.authHeader != "" {
				request.SetHeader("Authorization", testCase.authHeader)
			}

			response, err := request.Post("/api/shorten")
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, response.StatusCode())
			assert.Equal(t, testCase.expectedMessage, errorResponse.Message)
		})
	}
}

func TestGetResolveAlias(t *testing.T) {
	_, client := newTestServer(t)

	authResponse := signupUser(t, client, "user@example.com", "password123", "")
	record := shortenURL(t, client, authResponse.Token, "https://example.com/page", "")

	var resolveResponse models.ResolveResponse
	response, err := client.R().
		SetResult(&resolveResponse).
		Get("/api/shorten/" + record.Alias)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())
	assert.Equal(t, "https://example.com/page", resolveResponse.URL)

	// The visit must be visible in the owner's listing.
	var listResponse models.AliasListResponse
	response, err = client.R().
		SetAuthToken(authResponse.Token).
		SetResult(&listResponse).
		Get("/api/shorten/user")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, response.StatusCode())
	require.Len(t, listResponse.Urls, 1)
	assert.Equal(t, 1, listResponse.Urls[0].VisitCount)
	require.Len(t, listResponse.Urls[0].VisitorLog, 1)
	assert.NotEmpty(t, listResponse.Urls[0].VisitorLog[0])
}

func TestGetResolveAliasNotFound(t *testing.T) {
	_, client := newTestServer(t)

	var errorResponse models.ErrorResponse
	response, err := client.R().
		SetError(&errorResponse).
		Get("/api/shorten/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, response.StatusCode())
	assert.Equal(t, "URL not found", errorResponse.Message)
}

func TestGetResolveAliasStorageFailure(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	storageMock := &mockstorage.StorageMock{}
	record := &alias.Alias{
		Alias:       "broken",
		OriginalURL: "https://example.com",
		PublicLink:  testBaseURL + "/api/shorten/broken",
	}
	storageMock.On("FindAliasByName", mock.Anything, "broken").Return(record, true, nil)
	storageMock.On("RegisterVisit", mock.Anything, "broken", mock.Anything).
		Return(false, errors.New("write failed"))

	db, err := memorystorage.New()
	require.NoError(t, err)
	authSvc := auth.New(db, testSigningKey, 24*time.Hour)

	server := httptest.NewServer(New(service.New(storageMock, testBaseURL), authSvc, authSvc))
	t.Cleanup(server.Close)

	var errorResponse models.ErrorResponse
	response, err := resty.New().SetBaseURL(server.URL).R().
		SetError(&errorResponse).
		Get("/api/shorten/broken")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, response.StatusCode())
	assert.Equal(t, "Something went wrong", errorResponse.Message)
	assert.NotContains(t, response.String(), "https://example.com")
	storageMock.AssertExpectations(t)
}

func TestGetUserAliases(t *testing.T) {
	_, client := newTestServer(t)

	first := signupUser(t, client, "first@example.com", "password123", "")
	second := signupUser(t, client, "second@example.com", "password123", "")

	shortenURL(t, client, first.Token, "https://example.com/1", "")
	shortenURL(t, client, first.Token, "https://example.com/2", "")
	shortenURL(t, client, second.Token, "https://example.com/3", "")

	var listResponse models.AliasListResponse
	response, err := client.R().
		SetAuthToken(first.Token).
		SetResult(&listResponse).
		Get("/api/shorten/user")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())
	require.Len(t, listResponse.Urls, 2)
	assert.Equal(t, "https://example.com/1", listResponse.Urls[0].OriginalURL)
	assert.Equal(t, "https://example.com/2", listResponse.Urls[1].OriginalURL)
}

func TestGetAdminAliases(t *testing.T) {
	_, client := newTestServer(t)

	admin := signupUser(t, client, "admin@example.com", "password123", "admin")
	regular := signupUser(t, client, "user@example.com", "password123", "")

	const total = 12
	for i := 0; i < total; i++ {
		shortenURL(t, client, regular.Token, fmt.Sprintf("https://example.com/%d", i), "")
	}

	var firstPage models.AliasListResponse
	response, err := client.R().
		SetAuthToken(admin.Token).
		SetResult(&firstPage).
		Get("/api/shorten/admin")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())
	assert.Len(t, firstPage.Urls, service.AdminPageSize)

	var secondPage models.AliasListResponse
	response, err = client.R().
		SetAuthToken(admin.Token).
		SetQueryParam("page", "1").
		SetResult(&secondPage).
		Get("/api/shorten/admin")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())
	assert.Len(t, secondPage.Urls, total-service.AdminPageSize)
}

func TestGetAdminAliasesRejectsNonAdmin(t *testing.T) {
	_, client := newTestServer(t)

	regular := signupUser(t, client, "user@example.com", "password123", "")

	var errorResponse models.ErrorResponse
	response, err := client.R().
		SetAuthToken(regular.Token).
		SetError(&errorResponse).
		Get("/api/shorten/admin")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode())
	assert.Equal(t, "user not found or authorized to view this page", errorResponse.Message)
}

func TestPostQRCode(t *testing.T) {
	_, client := newTestServer(t)

	authResponse := signupUser(t, client, "user@example.com", "password123", "")
	record := shortenURL(t, client, authResponse.Token, "https://example.com", "qr-alias")

	var dataURI string
	response, err := client.R().
		SetAuthToken(authResponse.Token).
		SetBody(models.QRCodeRequest{PublicLink: record.PublicLink}).
		SetResult(&dataURI).
		Post("/api/shorten/qrcode")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())
	assert.True(t, strings.HasPrefix(dataURI, "data:image/png;base64,"))
}

func TestPostQRCodeUnknownLink(t *testing.T) {
	_, client := newTestServer(t)

	authResponse := signupUser(t, client, "user@example.com", "password123", "")

	var errorResponse models.ErrorResponse
	response, err := client.R().
		SetAuthToken(authResponse.Token).
		SetBody(models.QRCodeRequest{PublicLink: testBaseURL + "/api/shorten/missing"}).
		SetError(&errorResponse).
		Post("/api/shorten/qrcode")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, response.StatusCode())
	assert.Equal(t, "publicLink does not exist", errorResponse.Message)
}

func TestGetPing(t *testing.T) {
	_, client := newTestServer(t)

	response, err := client.R().Get("/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())
}
