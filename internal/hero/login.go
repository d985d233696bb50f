package hero

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// LoginConfig contains the identity-host settings for the one-time login
// exchange. The flow mirrors the mobile app: authorization code with PKCE,
// a scraped HTML login form, and a redirect-code capture.
type LoginConfig struct {
	LoginURL    string
	TokenURL    string
	ClientID    string
	RedirectURI string
}

// LoginResult is the token pair obtained from a successful login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
}

var (
	csrfTokenPattern  = regexp.MustCompile(`name=["']csrfmiddlewaretoken["']\s+value=["']([^"']+)`)
	formActionPattern = regexp.MustCompile(`(?i)<form[^>]*action=["']([^"']*)`)
)

// Login performs the full OAuth2 authorization-code exchange with email and
// password. Invoked once at setup; steady-state auth runs on the refresh
// token this returns.
func Login(ctx context.Context, config LoginConfig, email, password string) (*LoginResult, error) {
	verifier := randomURLToken(32)
	challenge := base64.RawURLEncoding.EncodeToString(func() []byte {
		sum := sha256.Sum256([]byte(verifier))
		return sum[:]
	}())

	oauthParams := url.Values{
		"redirect_uri":          {config.RedirectURI},
		"client_id":             {config.ClientID},
		"response_type":         {"code"},
		"state":                 {randomURLToken(16)},
		"nonce":                 {randomURLToken(16)},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}
	loginPageURL := config.LoginURL + "?" + oauthParams.Encode()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	// The login POST answers with a redirect to a custom app scheme; the
	// authorization code lives in that Location header, so never follow it.
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Jar:     jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	// Step 1: GET the login page for the CSRF token and session cookie
	html, err := fetchLoginPage(ctx, httpClient, loginPageURL)
	if err != nil {
		return nil, err
	}

	csrfMatch := csrfTokenPattern.FindStringSubmatch(html)
	if csrfMatch == nil {
		return nil, fmt.Errorf("%w: no CSRF token found in login page", ErrAuth)
	}
	csrfToken := csrfMatch[1]

	formAction := "/login/"
	if m := formActionPattern.FindStringSubmatch(html); m != nil && m[1] != "" {
		formAction = m[1]
	}

	base, err := url.Parse(config.LoginURL)
	if err != nil {
		return nil, fmt.Errorf("invalid login URL: %w", err)
	}
	origin := base.Scheme + "://" + base.Host
	postURL := formAction
	if strings.HasPrefix(formAction, "/") {
		postURL = origin + formAction
	}

	var csrfCookie string
	for _, cookie := range jar.Cookies(base) {
		if cookie.Name == "csrftoken" {
			csrfCookie = cookie.Value
		}
	}

	// Step 2: POST the credentials, expecting a redirect carrying the code
	location, err := submitLoginForm(ctx, httpClient, postURL, loginPageURL, origin, csrfToken, csrfCookie, email, password)
	if err != nil {
		return nil, err
	}

	redirect, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed redirect location", ErrAuth)
	}
	code := redirect.Query().Get("code")
	if code == "" {
		return nil, fmt.Errorf("%w: no authorization code in redirect", ErrAuth)
	}

	// Step 3: exchange the code for tokens
	return exchangeCode(ctx, httpClient, config, code, verifier)
}

func fetchLoginPage(ctx context.Context, httpClient *http.Client, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create login page request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: login page returned %d", ErrAuth, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: reading login page: %v", ErrConnection, err)
	}
	return string(body), nil
}

func submitLoginForm(ctx context.Context, httpClient *http.Client, postURL, referer, origin, csrfToken, csrfCookie, email, password string) (string, error) {
	form := url.Values{
		"csrfmiddlewaretoken": {csrfToken},
		"email":               {email},
		"password":            {password},
		"visitor_id":          {""},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", referer)
	req.Header.Set("Origin", origin)
	if csrfCookie != "" {
		req.Header.Set("X-CSRFToken", csrfCookie)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	location := resp.Header.Get("Location")
	if resp.StatusCode == http.StatusUnauthorized {
		return "", fmt.Errorf("%w: invalid email or password", ErrAuth)
	}
	if resp.StatusCode != http.StatusFound || !strings.Contains(location, "code=") {
		return "", fmt.Errorf("%w: login failed (status %d)", ErrAuth, resp.StatusCode)
	}
	return location, nil
}

func exchangeCode(ctx context.Context, httpClient *http.Client, config LoginConfig, code, verifier string) (*LoginResult, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {config.ClientID},
		"code":          {code},
		"redirect_uri":  {config.RedirectURI},
		"code_verifier": {verifier},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading token response: %v", ErrConnection, err)
	}

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &failure)
		if failure.Error == "" {
			failure.Error = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: token exchange failed: %s", ErrAuth, failure.Error)
	}

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return nil, fmt.Errorf("%w: incomplete token response", ErrAuth)
	}

	return &LoginResult{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, nil
}

func randomURLToken(bytes int) string {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
