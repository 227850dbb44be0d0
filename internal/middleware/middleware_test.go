package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/unibox-backend/internal/logger"
)

const (
	testAuthToken = "12345"
	testBaseURL   = "https://unibox.test"
)

func okHandler(c *fiber.Ctx) error {
	return c.SendString("ok")
}

func twilioApp() *fiber.App {
	app := fiber.New()
	app.Post("/webhooks/twilio", ValidateTwilioSignature(testAuthToken, testBaseURL, logger.Discard()), okHandler)
	return app
}

func twilioRequest(form url.Values, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set("X-Twilio-Signature", signature)
	}
	return req
}

// twilioSign reproduces Twilio's scheme: HMAC-SHA1 over the URL followed by
// every POST parameter sorted by key.
func twilioSign(u string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	data := u
	for _, k := range keys {
		data += k + params[k]
	}
	mac := hmac.New(sha1.New, []byte(testAuthToken))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestTwilioSignatureAccepted(t *testing.T) {
	form := url.Values{"From": {"+15551234567"}, "Body": {"hello"}, "MessageSid": {"SM1"}}
	sig := twilioSign(testBaseURL+"/webhooks/twilio", map[string]string{
		"From": "+15551234567", "Body": "hello", "MessageSid": "SM1",
	})

	resp, err := twilioApp().Test(twilioRequest(form, sig))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestTwilioSignatureAcceptsExplicitPort(t *testing.T) {
	form := url.Values{"From": {"+15551234567"}, "Body": {"hello"}}
	sig := twilioSign("https://unibox.test:443/webhooks/twilio", map[string]string{
		"From": "+15551234567", "Body": "hello",
	})

	resp, err := twilioApp().Test(twilioRequest(form, sig))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestTwilioSignatureRejectsTamperedForm(t *testing.T) {
	sig := twilioSign(testBaseURL+"/webhooks/twilio", map[string]string{
		"From": "+15551234567", "Body": "hello",
	})
	tampered := url.Values{"From": {"+15551234567"}, "Body": {"hello, send refund"}}

	resp, err := twilioApp().Test(twilioRequest(tampered, sig))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestTwilioSignatureRejected(t *testing.T) {
	form := url.Values{"From": {"+15551234567"}, "Body": {"hello"}}

	resp, err := twilioApp().Test(twilioRequest(form, "bm90LXRoZS1zaWduYXR1cmU="))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = twilioApp().Test(twilioRequest(form, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestTwilioSignatureWithoutToken(t *testing.T) {
	app := fiber.New()
	app.Post("/webhooks/twilio", ValidateTwilioSignature("", testBaseURL, logger.Discard()), okHandler)

	resp, err := app.Test(twilioRequest(url.Values{"From": {"+1"}}, "anything"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestEmailSignature(t *testing.T) {
	app := fiber.New()
	app.Post("/webhooks/email", ValidateEmailSignature("shh"), okHandler)

	body := `{"from":"a@b.com","content":"hi"}`
	mac := hmac.New(sha256.New, []byte("shh"))
	mac.Write([]byte(body))
	good := hex.EncodeToString(mac.Sum(nil))

	cases := []struct {
		name      string
		signature string
		want      int
	}{
		{"valid", good, fiber.StatusOK},
		{"valid with prefix", "sha256=" + good, fiber.StatusOK},
		{"tampered", strings.Repeat("0", len(good)), fiber.StatusUnauthorized},
		{"missing", "", fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/email", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if tc.signature != "" {
				req.Header.Set("x-email-signature", tc.signature)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestEmailSignatureDisabledWithoutSecret(t *testing.T) {
	app := fiber.New()
	app.Post("/webhooks/email", ValidateEmailSignature(""), okHandler)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/webhooks/email", strings.NewReader("{}")))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCronSecret(t *testing.T) {
	app := fiber.New()
	app.Post("/process", RequireCronSecret("tick", false), okHandler)

	cases := []struct {
		header string
		want   int
	}{
		{"Bearer tick", fiber.StatusOK},
		{"bearer tick", fiber.StatusOK},
		{"Bearer tock", fiber.StatusUnauthorized},
		{"tick", fiber.StatusUnauthorized},
		{"", fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/process", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tc.want, resp.StatusCode, "header %q", tc.header)
	}
}

func TestCronSecretUnset(t *testing.T) {
	open := fiber.New()
	open.Post("/process", RequireCronSecret("", true), okHandler)
	resp, err := open.Test(httptest.NewRequest(http.MethodPost, "/process", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	closed := fiber.New()
	closed.Post("/process", RequireCronSecret("", false), okHandler)
	resp, err = closed.Test(httptest.NewRequest(http.MethodPost, "/process", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func whoAmIApp(secret string, trustHeaders bool) *fiber.App {
	app := fiber.New()
	app.Get("/me", RequireUser(secret, trustHeaders), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userId": UserID(c), "admin": IsAdmin(c)})
	})
	return app
}

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestRequireUserJWT(t *testing.T) {
	app := whoAmIApp("jwt-secret", false)

	token := signToken(t, "jwt-secret", jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "user-1",
		"role": "ADMIN",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		UserID string `json:"userId"`
		Admin  bool   `json:"admin"`
	}
	require.NoError(t, decodeJSON(resp, &body))
	assert.Equal(t, "user-1", body.UserID)
	assert.True(t, body.Admin)
}

func TestRequireUserRejectsBadTokens(t *testing.T) {
	app := whoAmIApp("jwt-secret", false)

	tokens := map[string]string{
		"wrong secret": signToken(t, "other", jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}),
		"expired": signToken(t, "jwt-secret", jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "u", "exp": time.Now().Add(-time.Hour).Unix(),
		}),
		"no subject":   signToken(t, "jwt-secret", jwt.SigningMethodHS256, jwt.MapClaims{"role": "ADMIN"}),
		"wrong method": signToken(t, "jwt-secret", jwt.SigningMethodHS512, jwt.MapClaims{"sub": "u"}),
	}
	for name, token := range tokens {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestRequireUserTrustedHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-ID", "dev-user")

	resp, err := whoAmIApp("", true).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-ID", "dev-user")
	resp, err = whoAmIApp("", false).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func decodeJSON(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}
