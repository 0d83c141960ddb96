package examples

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shrturl/shrturl/internal/auth"
	"github.com/shrturl/shrturl/internal/config"
	"github.com/shrturl/shrturl/internal/db/memorystorage"
	"github.com/shrturl/shrturl/internal/logger"
	"github.com/shrturl/shrturl/internal/models"
	"github.com/shrturl/shrturl/internal/router"
	"github.com/shrturl/shrturl/internal/service"
)

func setupTestRouter(t *testing.T) *httptest.Server {
	cfg, err := config.New(config.WithDisableFlagsParsing(true))
	if t != nil {
		require.NoError(t, err)
	}

	db, err := memorystorage.New()
	if t != nil {
		require.NoError(t, err)
	}

	signingKey, err := base64.URLEncoding.DecodeString(cfg.TokenSigningSecretKey)
	if t != nil {
		require.NoError(t, err)
	}

	authSvc := auth.New(db, signingKey, cfg.TokenTTL)
	svc := service.New(db, cfg.BaseURL)

	err = logger.Init("debug")
	if t != nil {
		require.NoError(t, err)
	}

	return httptest.NewServer(router.New(svc, authSvc, authSvc))
}

func postJSON(serverURL, path, token string, payload interface{}) (*http.Response, []byte) {
	body, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}

	req, err := http.NewRequest(http.MethodPost, serverURL+path, bytes.NewReader(body))
	if err != nil {
		panic(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(err)
	}

	return resp, b
}

func signupForExample(serverURL string) string {
	_, body := postJSON(serverURL, "/api/signup", "", models.SignupRequest{
		Email:    "example@example.com",
		Password: "password123",
	})

	var authResponse models.AuthResponse
	if err := json.Unmarshal(body, &authResponse); err != nil {
		panic(err)
	}

	return authResponse.Token
}

func ExampleRouter_GetPing() {
	server := setupTestRouter(nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/ping")
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	fmt.Println("Status Code:", resp.StatusCode)

	// Output:
	// Status Code: 200
}

func ExampleRouter_PostSignup() {
	server := setupTestRouter(nil)
	defer server.Close()

	resp, body := postJSON(server.URL, "/api/signup", "", models.SignupRequest{
		Email:    "example@example.com",
		Password: "password123",
	})

	re := regexp.MustCompile(`"token"\s*:\s*"[\w-]+\.[\w-]+\.[\w-]+"`)

	fmt.Println("Status Code:", resp.StatusCode)
	fmt.Println("re.Match(body):", re.Match(body))

	// Output:
	// Status Code: 201
	// re.Match(body): true
}

func ExampleRouter_PostShorten() {
	server := setupTestRouter(nil)
	defer server.Close()

	token := signupForExample(server.URL)

	resp, body := postJSON(server.URL, "/api/shorten", token, models.ShortenRequest{
		OriginalURL: "https://example.com/page",
		CustomAlias: "example-alias",
	})

	var shortenResponse models.ShortenResponse
	if err := json.Unmarshal(body, &shortenResponse); err != nil {
		panic(err)
	}

	fmt.Println("Status Code:", resp.StatusCode)
	fmt.Println("Message:", shortenResponse.Message)
	fmt.Println("PublicLink:", shortenResponse.Data.PublicLink)

	// Output:
	// Status Code: 201
	// Message: URL shortened successfully
	// PublicLink: http://localhost:8080/api/shorten/example-alias
}

func ExampleRouter_GetResolveAlias() {
	server := setupTestRouter(nil)
	defer server.Close()

	token := signupForExample(server.URL)
	postJSON(server.URL, "/api/shorten", token, models.ShortenRequest{
		OriginalURL: "https://example.com/page",
		CustomAlias: "example-alias",
	})

	resp, err := http.Get(server.URL + "/api/shorten/example-alias")
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	var resolveResponse models.ResolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&resolveResponse); err != nil {
		panic(err)
	}

	fmt.Println("Status Code:", resp.StatusCode)
	fmt.Println("URL:", resolveResponse.URL)

	// Output:
	// Status Code: 200
	// URL: https://example.com/page
}
