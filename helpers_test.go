package selfauth_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/selfauth"
	"github.com/MrEthical07/selfauth/store/memory"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const testPassword = "correct-horse-battery"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu       sync.Mutex
	welcomed []string
	resets   map[string]string
	links    map[string]string
	err      error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{resets: map[string]string{}, links: map[string]string{}}
}

func (n *recordingNotifier) SendWelcome(_ context.Context, email, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomed = append(n.welcomed, email)
	return n.err
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, email, token, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets[email] = token
	return n.err
}

func (n *recordingNotifier) SendMagicLink(_ context.Context, email, token, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.links[email] = token
	return n.err
}

func (n *recordingNotifier) resetToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resets[email]
}

func (n *recordingNotifier) magicToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.links[email]
}

// flakySessions wraps a SessionStore and fails selected calls.
type flakySessions struct {
	selfauth.SessionStore
	failCreate bool
	failDelete bool
}

var errBackend = errors.New("backend down")

func (f *flakySessions) CreateSession(ctx context.Context, s selfauth.Session) error {
	if f.failCreate {
		return errBackend
	}
	return f.SessionStore.CreateSession(ctx, s)
}

func (f *flakySessions) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	if f.failDelete {
		return 0, errBackend
	}
	return f.SessionStore.DeleteUserSessions(ctx, userID)
}

type testEnv struct {
	engine   *selfauth.Engine
	store    *memory.Store
	sessions *flakySessions
	clock    *fakeClock
	notifier *recordingNotifier
}

// testConfig keeps argon2 cheap so the suite stays fast.
func testConfig() selfauth.Config {
	cfg := selfauth.DefaultConfig()
	cfg.JWT.SigningKey = []byte(strings.Repeat("s", 32))
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestEnv(t *testing.T, mutate ...func(*selfauth.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	env := &testEnv{
		store:    memory.New(),
		clock:    newFakeClock(),
		notifier: newRecordingNotifier(),
	}
	env.sessions = &flakySessions{SessionStore: env.store}

	engine, err := selfauth.New().
		WithConfig(cfg).
		WithCredentialStore(env.store).
		WithSessionStore(env.sessions).
		WithNotifier(env.notifier).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func (env *testEnv) register(t *testing.T, email string) selfauth.Identity {
	t.Helper()
	id, err := env.engine.Register(context.Background(), selfauth.RegisterRequest{
		Email:       email,
		Password:    testPassword,
		DisplayName: "Test User",
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return id
}

func (env *testEnv) login(t *testing.T, email, code string) *selfauth.LoginResult {
	t.Helper()
	res, err := env.engine.Login(context.Background(), selfauth.LoginRequest{
		Email:    email,
		Password: testPassword,
		TOTPCode: code,
	})
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", email, err)
	}
	return res
}

// enableTOTP runs setup and verify and returns the secret.
func (env *testEnv) enableTOTP(t *testing.T, id selfauth.Identity) string {
	t.Helper()
	ctx := context.Background()
	setup, err := env.engine.SetupTOTP(ctx, id)
	if err != nil {
		t.Fatalf("SetupTOTP failed: %v", err)
	}
	if err := env.engine.VerifyTOTP(ctx, id, totpCode(t, setup.Secret, env.clock.Now())); err != nil {
		t.Fatalf("VerifyTOTP failed: %v", err)
	}
	return setup.Secret
}

func totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom failed: %v", err)
	}
	return code
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

// race runs fn from n goroutines released at once and counts nil results.
// Every failure must match want.
func race(t *testing.T, n int, want error, fn func() error) int {
	t.Helper()
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, n)
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = fn()
		}()
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, want):
			t.Fatalf("unexpected error %v, want %v", err, want)
		}
	}
	return wins
}
