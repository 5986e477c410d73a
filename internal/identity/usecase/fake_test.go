package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/gostepup/internal/identity/entity"
	"github.com/shandysiswandi/gostepup/internal/pkg/clock"
	"github.com/shandysiswandi/gostepup/internal/pkg/config"
	"github.com/shandysiswandi/gostepup/internal/pkg/goerror"
	"github.com/shandysiswandi/gostepup/internal/pkg/goroutine"
	"github.com/shandysiswandi/gostepup/internal/pkg/hash"
	"github.com/shandysiswandi/gostepup/internal/pkg/instrument"
	"github.com/shandysiswandi/gostepup/internal/pkg/jwt"
	"github.com/shandysiswandi/gostepup/internal/pkg/otp"
	"github.com/shandysiswandi/gostepup/internal/pkg/validator"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// memoryRepo is an in-memory repoDB with the same revision semantics as the
// real repositories.
type memoryRepo struct {
	mu       sync.Mutex
	accounts map[int64]entity.Account

	getErr    error
	updateErr error
	updates   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{accounts: make(map[int64]entity.Account)}
}

func cloneAccount(acc entity.Account) entity.Account {
	b, err := entity.NewBinding(acc.Binding.ChannelID(), acc.Binding.LinkCode(), acc.Binding.OTP())
	if err != nil {
		panic(err)
	}
	acc.Binding = b
	return acc
}

func (r *memoryRepo) CreateAccount(_ context.Context, acc entity.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.Email == acc.Email {
			return goerror.ErrConflict
		}
	}
	r.accounts[acc.ID] = cloneAccount(acc)
	return nil
}

func (r *memoryRepo) find(match func(entity.Account) bool) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, a := range r.accounts {
		if match(a) {
			c := cloneAccount(a)
			return &c, nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (r *memoryRepo) GetAccountByID(_ context.Context, id int64) (*entity.Account, error) {
	return r.find(func(a entity.Account) bool { return a.ID == id })
}

func (r *memoryRepo) GetAccountByEmail(_ context.Context, email string) (*entity.Account, error) {
	return r.find(func(a entity.Account) bool { return a.Email == email })
}

func (r *memoryRepo) GetAccountByLinkCode(_ context.Context, digest string) (*entity.Account, error) {
	return r.find(func(a entity.Account) bool {
		lc := a.Binding.LinkCode()
		return lc != nil && lc.Digest == digest
	})
}

func (r *memoryRepo) UpdateAccountBinding(_ context.Context, acc entity.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.updateErr != nil {
		return r.updateErr
	}

	stored, ok := r.accounts[acc.ID]
	if !ok {
		return goerror.ErrNotFound
	}
	if stored.Revision != acc.Revision {
		return goerror.ErrStale
	}
	if lc := acc.Binding.LinkCode(); lc != nil {
		for id, a := range r.accounts {
			if other := a.Binding.LinkCode(); id != acc.ID && other != nil && other.Digest == lc.Digest {
				return goerror.ErrConflict
			}
		}
	}

	acc.Revision++
	r.accounts[acc.ID] = cloneAccount(acc)
	r.updates++
	return nil
}

func (r *memoryRepo) get(t *testing.T, id int64) entity.Account {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	require.True(t, ok, "account %d not stored", id)
	return cloneAccount(acc)
}

func (r *memoryRepo) put(acc entity.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[acc.ID] = cloneAccount(acc)
}

type sentMessage struct {
	ChannelID string
	Text      string
}

// recordingChannel records every Send. err, when set, fails every Send.
type recordingChannel struct {
	mu     sync.Mutex
	sent   []sentMessage
	err    error
	handle string
}

func (c *recordingChannel) Send(_ context.Context, channelID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sent = append(c.sent, sentMessage{ChannelID: channelID, Text: text})
	return c.err
}

func (c *recordingChannel) Handle() string { return c.handle }

func (c *recordingChannel) messages() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}

type recordingMessaging struct {
	mu     sync.Mutex
	events []SecurityAlertEvent
	err    error
}

func (m *recordingMessaging) PublishSecurityAlert(_ context.Context, msg SecurityAlertEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, msg)
	return nil
}

func (m *recordingMessaging) published() []SecurityAlertEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SecurityAlertEvent(nil), m.events...)
}

// sequenceCodes returns the given codes in order, then fails.
type sequenceCodes struct {
	mu    sync.Mutex
	codes []string
}

func (s *sequenceCodes) Generate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.codes) == 0 {
		return "", errBoom
	}
	c := s.codes[0]
	s.codes = s.codes[1:]
	return c, nil
}

type counterID struct {
	mu   sync.Mutex
	next int64
}

func (c *counterID) Generate() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	return c.next
}

type fakeJWT struct{}

func (fakeJWT) Generate(accountID int64, _ string) (string, error) {
	return fmt.Sprintf("token-%d", accountID), nil
}

func (fakeJWT) Verify(string) (jwt.Claims, error) { return jwt.Claims{}, jwt.ErrInvalidToken }

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	uc        *Usecase
	repo      *memoryRepo
	channel   *recordingChannel
	messaging *recordingMessaging
	clock     *clock.Manual
	goroutine *goroutine.Manager
	hmac      *hash.HMACSHA256
}

const testConfig = `
modules:
  identity:
    otp_ttl_minutes: 5
    cas_max_retries: 8
    link_code_max_attempts: 3
`

// newTestEnv builds a Usecase over in-memory fakes. A nil codes uses the real
// crypto/rand generator.
func newTestEnv(t *testing.T, codes otp.Generator) *testEnv {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(testConfig))
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	if codes == nil {
		codes, err = otp.NewNumeric(6)
		require.NoError(t, err)
	}

	env := &testEnv{
		repo:      newMemoryRepo(),
		channel:   &recordingChannel{handle: "gostepup_bot"},
		messaging: &recordingMessaging{},
		clock:     clock.NewManual(testStart),
		goroutine: goroutine.NewManager(10),
		hmac:      hash.NewHMACSHA256("test-secret"),
	}

	env.uc = New(Dependency{
		RepoDB:        env.repo,
		RepoMessaging: env.messaging,
		Channel:       env.channel,
		Validator:     v,
		Config:        cfg,
		Bcrypt:        hash.NewBcrypt(4, "pepper"),
		HMAC:          env.hmac,
		Codes:         codes,
		UID:           &counterID{},
		Clock:         env.clock,
		JWT:           fakeJWT{},
		Instrument:    instrument.NewNoop(),
		Goroutine:     env.goroutine,
	})

	return env
}

// seed stores an account and returns it. channelID "" leaves it unbound.
func (e *testEnv) seed(t *testing.T, id int64, email, password, channelID string) entity.Account {
	t.Helper()

	passHash, err := hash.NewBcrypt(4, "pepper").Hash(password)
	require.NoError(t, err)

	b, err := entity.NewBinding(channelID, nil, nil)
	require.NoError(t, err)

	acc := entity.Account{
		ID:           id,
		Email:        email,
		PasswordHash: string(passHash),
		Revision:     1,
		CreatedAt:    testStart,
		UpdatedAt:    testStart,
		Binding:      b,
	}
	e.repo.put(acc)
	return acc
}

func requireRejected(t *testing.T, err error, sentinel error, reason string, status int) {
	t.Helper()

	require.Error(t, err)
	require.ErrorIs(t, err, sentinel)

	var ge *goerror.Error
	require.ErrorAs(t, err, &ge)
	require.Equal(t, reason, ge.Fields()["reason"])
	require.Equal(t, status, ge.StatusCode())
}
