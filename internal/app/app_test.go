package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/gostepup/internal/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const (
	botToken      = "123:abc"
	webhookSecret = "s3cret"
	chatID        = "777"
)

type successEnvelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Message string            `json:"message"`
	Error   map[string]string `json:"error"`
}

// botAPI fakes the Telegram Bot API endpoints the service calls.
type botAPI struct {
	mu   sync.Mutex
	sent []string
}

func (b *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	switch strings.TrimPrefix(r.URL.Path, "/bot"+botToken+"/") {
	case "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"StepUp","username":"gostepup_bot"}}`)
	case "sendMessage":
		b.mu.Lock()
		b.sent = append(b.sent, r.FormValue("text"))
		b.mu.Unlock()
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":%s,"type":"private"}}}`, r.FormValue("chat_id"))
	default:
		http.NotFound(w, r)
	}
}

func (b *botAPI) last(prefix string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(b.sent) - 1; i >= 0; i-- {
		if strings.HasPrefix(b.sent[i], prefix) {
			return b.sent[i]
		}
	}
	return ""
}

const configTemplate = `
app:
  name: gostepup-test
  tz: UTC
  node_id: 1
  startup_timeout_seconds: 30
  ratelimit:
    driver: redis
    limit: 1000
    window_seconds: 60
  server:
    max_goroutine: 50
    cors: "*"
    http:
      address: "127.0.0.1:0"
      read_timeout_seconds: 5
      read_header_timeout_seconds: 5
      write_timeout_seconds: 5
      idle_timeout_seconds: 5
instrument:
  enabled: false
  service_name: gostepup-test
  log_mask_fields: "password,code,access_token"
hash:
  hmac:
    secret: test-hmac-secret
  bcrypt:
    cost: 4
    pepper: test-pepper
jwt:
  secret: test-jwt-hs512-secret-that-is-long-enough-for-the-signer-0123456789abcdef
  issuer: gostepup
  audiences: "gostepup-web"
  ttl_days: 1
database:
  driver: postgres
  migrate: true
  url: %s
  pool:
    max_conns: 5
    min_conns: 1
    max_conn_lifetime_seconds: 60
    max_conn_idle_seconds: 30
    health_check_period_seconds: 30
redis:
  url: %s
messaging:
  driver: memory
  memory:
    buffer: 16
    max_attempts: 3
telegram:
  mode: webhook
  bot_token: "%s"
  endpoint: "%s"
  http_timeout_seconds: 5
  webhook_secret: "%s"
modules:
  identity:
    enabled: true
    otp_ttl_minutes: 5
    cas_max_retries: 3
  notification:
    enabled: true
    timezone: UTC
    concurrency: 2
`

func startApp(t *testing.T, api *botAPI) string {
	t.Helper()

	ctx := context.Background()

	pg, err := postgres.Run(ctx, "postgres:17-alpine",
		postgres.WithDatabase("gostepup"),
		postgres.WithUsername("gostepup"),
		postgres.WithPassword("gostepup"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, pg)
	require.NoError(t, err)

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rc, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, rc)
	require.NoError(t, err)

	redisURL, err := rc.ConnectionString(ctx)
	require.NoError(t, err)

	bot := httptest.NewServer(api)
	t.Cleanup(bot.Close)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf(configTemplate, dsn, redisURL, botToken, bot.URL+"/bot%s/%s", webhookSecret)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_PATH", path)

	application := app.New()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	application.Serve(l)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		application.Stop(ctx)
	})

	return "http://" + l.Addr().String()
}

func doJSON(t *testing.T, method, url string, payload any, header http.Header) (int, []byte) {
	t.Helper()

	var body io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, raw
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func decodeData(t *testing.T, raw []byte, out any) {
	t.Helper()

	var env successEnvelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	require.NoError(t, json.Unmarshal(env.Data, out), string(raw))
}

func TestApp_StepUpFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	api := &botAPI{}
	base := startApp(t, api) + "/api/v1/identity"

	email := fmt.Sprintf("flow-%d@example.com", time.Now().UnixNano())
	password := "correct horse battery"

	// Signup
	status, raw := doJSON(t, http.MethodPost, base+"/signup", map[string]string{"email": email, "password": password}, nil)
	require.Equal(t, http.StatusCreated, status, string(raw))

	var session struct {
		AccessToken string `json:"access_token"`
	}
	decodeData(t, raw, &session)
	require.NotEmpty(t, session.AccessToken)

	// OTP before linking
	status, raw = doJSON(t, http.MethodPost, base+"/otp", nil, bearer(session.AccessToken))
	require.Equal(t, http.StatusForbidden, status, string(raw))

	var rejected errorEnvelope
	require.NoError(t, json.Unmarshal(raw, &rejected))
	assert.Equal(t, "channel_not_bound", rejected.Error["reason"])

	// Link code
	status, raw = doJSON(t, http.MethodPost, base+"/channel/link-code", nil, bearer(session.AccessToken))
	require.Equal(t, http.StatusOK, status, string(raw))

	var link struct {
		Code          string `json:"code"`
		ChannelHandle string `json:"channel_handle"`
	}
	decodeData(t, raw, &link)
	require.NotEmpty(t, link.Code)
	assert.Equal(t, "gostepup_bot", link.ChannelHandle)

	// Redeem through the webhook
	update := fmt.Sprintf(`{"update_id":%d,"message":{"message_id":1,"date":0,"chat":{"id":%s,"type":"private"},`+
		`"text":"/start %s","entities":[{"type":"bot_command","offset":0,"length":6}]}}`,
		time.Now().Unix(), chatID, link.Code)

	req, err := http.NewRequest(http.MethodPost, base+"/telegram/webhook", strings.NewReader(update))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", webhookSecret)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, api.last("Successfully connected"))

	// Status
	status, raw = doJSON(t, http.MethodGet, base+"/channel/status", nil, bearer(session.AccessToken))
	require.Equal(t, http.StatusOK, status, string(raw))

	var linkStatus struct {
		Bound bool `json:"bound"`
	}
	decodeData(t, raw, &linkStatus)
	assert.True(t, linkStatus.Bound)

	// Issue and verify an OTP
	status, raw = doJSON(t, http.MethodPost, base+"/otp", nil, bearer(session.AccessToken))
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.NotContains(t, string(raw), `"code"`)

	code := regexp.MustCompile(`\b\d{6}\b`).FindString(api.last("Your OTP is"))
	require.NotEmpty(t, code)

	status, raw = doJSON(t, http.MethodPost, base+"/otp/verify", map[string]string{"code": code}, bearer(session.AccessToken))
	require.Equal(t, http.StatusOK, status, string(raw))

	status, raw = doJSON(t, http.MethodPost, base+"/otp/verify", map[string]string{"code": code}, bearer(session.AccessToken))
	require.Equal(t, http.StatusUnprocessableEntity, status, string(raw))

	// Failed login alerts the bound chat
	require.Eventually(t, func() bool {
		status, _ := doJSON(t, http.MethodPost, base+"/login", map[string]string{"email": email, "password": "wrong password!"}, nil)
		return status == http.StatusUnauthorized && api.last("SECURITY ALERT") != ""
	}, 10*time.Second, 200*time.Millisecond)

	status, raw = doJSON(t, http.MethodPost, base+"/login", map[string]string{"email": email, "password": password}, nil)
	require.Equal(t, http.StatusOK, status, string(raw))
}
