// Package providers holds the OAuth2 base client the per-platform
// subpackages build on: consent URL construction, the token endpoint
// round-trip, and shared helpers for profile and publish HTTP calls.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cyobiorah/go-social-connect/core"
)

const (
	defaultTokenRequestTimeout = 30 * time.Second
	maxResponseBodyBytes       = 1 << 20 // 1 MiB
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// OAuth2Config describes one platform's app registration and endpoint
// quirks. ClientIDParam covers platforms that rename client_id (TikTok
// uses client_key); ScopeSeparator covers comma-joined scope lists.
type OAuth2Config struct {
	Platform            core.Platform
	AuthURL             string
	TokenURL            string
	ClientID            string
	ClientSecret        string
	ClientSecretInBody  bool
	ClientIDParam       string
	RedirectURI         string
	Scopes              []string
	ScopeSeparator      string
	ExtraAuthParams     map[string]string
	Traits              core.PlatformTraits
	TokenTTL            time.Duration
	TokenRequestTimeout time.Duration
	Now                 func() time.Time
	HTTPClient          HTTPDoer
}

// OAuth2Platform is embedded by the platform subpackages; they add
// FetchProfile and Publish on top.
type OAuth2Platform struct {
	cfg        OAuth2Config
	httpClient HTTPDoer
}

func NewOAuth2Platform(cfg OAuth2Config) (*OAuth2Platform, error) {
	platform, err := core.ParsePlatform(string(cfg.Platform))
	if err != nil {
		return nil, err
	}
	cfg.Platform = platform
	if strings.TrimSpace(cfg.AuthURL) == "" {
		return nil, fmt.Errorf("providers: auth url is required for platform %q", platform)
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, fmt.Errorf("providers: token url is required for platform %q", platform)
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("providers: client id is required for platform %q", platform)
	}
	if strings.TrimSpace(cfg.RedirectURI) == "" {
		return nil, fmt.Errorf("providers: redirect uri is required for platform %q", platform)
	}

	cfg.AuthURL = strings.TrimSpace(cfg.AuthURL)
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.RedirectURI = strings.TrimSpace(cfg.RedirectURI)
	if strings.TrimSpace(cfg.ClientIDParam) == "" {
		cfg.ClientIDParam = "client_id"
	}
	if cfg.ScopeSeparator == "" {
		cfg.ScopeSeparator = " "
	}
	if cfg.TokenRequestTimeout <= 0 {
		cfg.TokenRequestTimeout = defaultTokenRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time {
			return time.Now().UTC()
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.TokenRequestTimeout}
	}

	return &OAuth2Platform{
		cfg:        cfg,
		httpClient: httpClient,
	}, nil
}

func (p *OAuth2Platform) Platform() core.Platform {
	if p == nil {
		return ""
	}
	return p.cfg.Platform
}

func (p *OAuth2Platform) Traits() core.PlatformTraits {
	if p == nil {
		return core.PlatformTraits{}
	}
	return p.cfg.Traits
}

func (p *OAuth2Platform) RedirectURI() string {
	if p == nil {
		return ""
	}
	return p.cfg.RedirectURI
}

// BuildAuthorizationURL appends the standard consent parameters. The
// challenge pair goes on only when the caller supplies one; scopes are
// the fixed least-privilege set from configuration.
func (p *OAuth2Platform) BuildAuthorizationURL(req core.AuthorizationRequest) (string, error) {
	if p == nil {
		return "", fmt.Errorf("providers: oauth2 platform is nil")
	}
	if strings.TrimSpace(req.State) == "" {
		return "", fmt.Errorf("providers: state is required")
	}

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set(p.cfg.ClientIDParam, p.cfg.ClientID)
	redirectURI := strings.TrimSpace(req.RedirectURI)
	if redirectURI == "" {
		redirectURI = p.cfg.RedirectURI
	}
	values.Set("redirect_uri", redirectURI)
	if len(p.cfg.Scopes) > 0 {
		values.Set("scope", strings.Join(p.cfg.Scopes, p.cfg.ScopeSeparator))
	}
	values.Set("state", req.State)
	if challenge := strings.TrimSpace(req.CodeChallenge); challenge != "" {
		values.Set("code_challenge", challenge)
		values.Set("code_challenge_method", "S256")
	}
	for key, value := range p.cfg.ExtraAuthParams {
		if strings.TrimSpace(key) != "" {
			values.Set(key, value)
		}
	}

	authURL := p.cfg.AuthURL
	if strings.Contains(authURL, "?") {
		authURL += "&" + values.Encode()
	} else {
		authURL += "?" + values.Encode()
	}
	return authURL, nil
}

func (p *OAuth2Platform) ExchangeCode(ctx context.Context, req core.CodeExchangeRequest) (core.TokenSet, error) {
	if p == nil {
		return core.TokenSet{}, fmt.Errorf("providers: oauth2 platform is nil")
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return core.TokenSet{}, fmt.Errorf("providers: authorization code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	redirectURI := strings.TrimSpace(req.RedirectURI)
	if redirectURI == "" {
		redirectURI = p.cfg.RedirectURI
	}
	form.Set("redirect_uri", redirectURI)
	if verifier := strings.TrimSpace(req.CodeVerifier); verifier != "" {
		form.Set("code_verifier", verifier)
	}
	return p.fetchToken(ctx, form)
}

func (p *OAuth2Platform) Refresh(ctx context.Context, cred core.Credentials) (core.TokenSet, error) {
	if p == nil {
		return core.TokenSet{}, fmt.Errorf("providers: oauth2 platform is nil")
	}
	refreshToken := strings.TrimSpace(cred.RefreshToken)
	if refreshToken == "" {
		return core.TokenSet{}, fmt.Errorf("providers: refresh token is required")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return p.fetchToken(ctx, form)
}

type tokenEndpointPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	IDToken          string
	Scope            string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

func (p *OAuth2Platform) fetchToken(ctx context.Context, form url.Values) (core.TokenSet, error) {
	if p.httpClient == nil {
		return core.TokenSet{}, fmt.Errorf("providers: http client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	values := url.Values{}
	for key, items := range form {
		for _, item := range items {
			values.Add(key, strings.TrimSpace(item))
		}
	}
	values.Set(p.cfg.ClientIDParam, p.cfg.ClientID)
	if p.cfg.ClientSecretInBody && p.cfg.ClientSecret != "" {
		values.Set("client_secret", p.cfg.ClientSecret)
	}

	requestCtx, cancel := context.WithTimeout(ctx, p.cfg.TokenRequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		p.cfg.TokenURL,
		strings.NewReader(values.Encode()),
	)
	if err != nil {
		return core.TokenSet{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if !p.cfg.ClientSecretInBody && p.cfg.ClientSecret != "" {
		httpReq.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)
	}

	response, err := p.httpClient.Do(httpReq)
	if err != nil {
		return core.TokenSet{}, core.NewTransientError(fmt.Sprintf("token request failed: %v", err))
	}
	defer response.Body.Close()

	body, readErr := readBoundedBody(response.Body)
	if readErr != nil {
		return core.TokenSet{}, core.NewTransientError(fmt.Sprintf("read token response: %v", readErr))
	}

	payload, parseErr := parseTokenPayload(body, response.Header.Get("Content-Type"))
	if parseErr != nil {
		return core.TokenSet{}, fmt.Errorf("providers: decode token response: %w", parseErr)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return core.TokenSet{}, fmt.Errorf(
			"providers: token endpoint error (%d): %s",
			response.StatusCode,
			describeTokenError(payload, response.StatusCode),
		)
	}
	if payload.ErrorCode != "" {
		return core.TokenSet{}, fmt.Errorf("providers: token endpoint error: %s", describeTokenError(payload, response.StatusCode))
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return core.TokenSet{}, fmt.Errorf("providers: token endpoint response missing access token")
	}

	tokens := core.TokenSet{
		AccessToken:  strings.TrimSpace(payload.AccessToken),
		RefreshToken: strings.TrimSpace(payload.RefreshToken),
		IDToken:      strings.TrimSpace(payload.IDToken),
		TokenType:    normalizeTokenType(payload.TokenType),
		Scope:        strings.TrimSpace(payload.Scope),
	}
	tokens.ExpiresAt = p.resolveExpiresAt(p.cfg.Now().UTC(), payload.ExpiresIn)
	return tokens, nil
}

// describeTokenError keeps invalid_grant visible in the message so the
// lifecycle layer can tell a dead grant from a transient failure.
func describeTokenError(payload tokenEndpointPayload, statusCode int) string {
	code := strings.TrimSpace(payload.ErrorCode)
	if code == "" && statusCode == http.StatusUnauthorized {
		code = "invalid_grant"
	}
	description := strings.TrimSpace(payload.ErrorDescription)
	switch {
	case code != "" && description != "":
		return code + ": " + description
	case code != "":
		return code
	case description != "":
		return description
	default:
		return "unknown error"
	}
}

func parseTokenPayload(body []byte, contentType string) (tokenEndpointPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	// TikTok nests the grant under "data"; flatten it first.
	if nested, ok := decoded["data"].(map[string]any); ok {
		if _, hasToken := nested["access_token"]; hasToken {
			decoded = nested
		}
	}
	return tokenEndpointPayload{
		AccessToken:      readAnyString(decoded["access_token"]),
		TokenType:        readAnyString(decoded["token_type"]),
		RefreshToken:     readAnyString(decoded["refresh_token"]),
		IDToken:          readAnyString(decoded["id_token"]),
		Scope:            readAnyString(decoded["scope"]),
		ExpiresIn:        readAnyInt64(decoded["expires_in"]),
		ErrorCode:        readAnyString(decoded["error"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
	}, nil
}

func parseTokenPayloadForm(body []byte) (tokenEndpointPayload, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenEndpointPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		IDToken:          strings.TrimSpace(values.Get("id_token")),
		Scope:            strings.TrimSpace(values.Get("scope")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

func (p *OAuth2Platform) resolveExpiresAt(now time.Time, expiresIn int64) *time.Time {
	ttl := p.cfg.TokenTTL
	if expiresIn > 0 {
		ttl = time.Duration(expiresIn) * time.Second
	}
	if ttl <= 0 {
		return nil
	}
	expiresAt := now.Add(ttl)
	return &expiresAt
}

// GetJSON performs a bearer-authorized GET and decodes the response
// into out. Non-2xx responses come back as a taxonomy error.
func (p *OAuth2Platform) GetJSON(ctx context.Context, rawURL string, accessToken string, headers map[string]string, out any) error {
	return p.doJSON(ctx, http.MethodGet, rawURL, accessToken, headers, nil, out)
}

// PostJSON performs a bearer-authorized JSON POST. When out is non-nil
// the response body is decoded into it.
func (p *OAuth2Platform) PostJSON(ctx context.Context, rawURL string, accessToken string, headers map[string]string, payload any, out any) (http.Header, error) {
	return p.doJSONWithHeaders(ctx, http.MethodPost, rawURL, accessToken, headers, payload, out)
}

func (p *OAuth2Platform) doJSON(ctx context.Context, method, rawURL, accessToken string, headers map[string]string, payload any, out any) error {
	_, err := p.doJSONWithHeaders(ctx, method, rawURL, accessToken, headers, payload, out)
	return err
}

func (p *OAuth2Platform) doJSONWithHeaders(ctx context.Context, method, rawURL, accessToken string, headers map[string]string, payload any, out any) (http.Header, error) {
	if p == nil || p.httpClient == nil {
		return nil, fmt.Errorf("providers: http client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var bodyReader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("providers: encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	requestCtx, cancel := context.WithTimeout(ctx, p.cfg.TokenRequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, method, rawURL, bodyReader)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(accessToken) != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for key, value := range headers {
		if strings.TrimSpace(key) != "" {
			httpReq.Header.Set(key, value)
		}
	}

	response, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewTransientError(fmt.Sprintf("%s %s failed: %v", method, redactURL(rawURL), err))
	}
	defer response.Body.Close()

	body, readErr := readBoundedBody(response.Body)
	if readErr != nil {
		return nil, core.NewTransientError(fmt.Sprintf("read response body: %v", readErr))
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return response.Header, p.ClassifyAPIError(response.StatusCode, body, response.Header)
	}
	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if decodeErr := json.Unmarshal(body, out); decodeErr != nil {
			return response.Header, fmt.Errorf("providers: decode response body: %w", decodeErr)
		}
	}
	return response.Header, nil
}

// ClassifyAPIError maps a platform HTTP failure onto the publish error
// taxonomy. 401 means the token died under us, 403 a permission gap,
// 429 throttling; content rejections hide in 400/422 bodies.
func (p *OAuth2Platform) ClassifyAPIError(statusCode int, body []byte, headers http.Header) error {
	platform := p.Platform()
	switch statusCode {
	case http.StatusUnauthorized:
		return core.NewTokenExpiredError(platform)
	case http.StatusForbidden:
		return core.NewPermissionDeniedError(platform)
	case http.StatusTooManyRequests:
		return core.NewRateLimitedError(platform, parseRetryAfter(headers))
	case http.StatusUnprocessableEntity:
		return core.NewContentRejectedError(platform, snippet(body))
	case http.StatusBadRequest:
		if looksLikeContentRejection(body) {
			return core.NewContentRejectedError(platform, snippet(body))
		}
	}
	if statusCode >= http.StatusInternalServerError {
		return core.NewTransientError(fmt.Sprintf("platform returned %d", statusCode))
	}
	return core.NewAPIError(platform, statusCode, string(body))
}

func looksLikeContentRejection(body []byte) bool {
	normalized := strings.ToLower(string(body))
	for _, marker := range []string{"duplicate", "content policy", "moderation", "spam", "not allowed to create"} {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

func parseRetryAfter(headers http.Header) time.Duration {
	if headers == nil {
		return 0
	}
	raw := strings.TrimSpace(headers.Get("Retry-After"))
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if delta := time.Until(at); delta > 0 {
			return delta
		}
	}
	return 0
}

func readBoundedBody(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxResponseBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxResponseBodyBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxResponseBodyBytes)
	}
	return data, nil
}

func snippet(body []byte) string {
	const maxLen = 200
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > maxLen {
		trimmed = trimmed[:maxLen]
	}
	return trimmed
}

func redactURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable url>"
	}
	parsed.RawQuery = ""
	return parsed.String()
}

func normalizeTokenType(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "bearer"
	}
	return normalized
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
		floatParsed, floatErr := typed.Float64()
		if floatErr == nil {
			return int64(floatParsed)
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}
