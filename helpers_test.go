package auth_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	auth "github.com/goliatone/go-blog-auth"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const testSigningKey = "test-signing-key-0123456789"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testOptions() auth.Options {
	return auth.Options{
		SigningKey:          testSigningKey,
		TokenTTL:            time.Hour,
		Issuer:              "blog-test",
		AdminEmail:          "admin@example.com",
		CommentsEnabled:     true,
		RegistrationEnabled: true,
		CommentCooldown:     time.Minute,
	}
}

func newTestAuthority(clock auth.Clock) *auth.TokenAuthority {
	return auth.NewTokenAuthority(testOptions(), auth.WithClock(clock))
}

type stubFeatureGate struct {
	enabled map[string]bool
	calls   []string
	err     error
}

func (s *stubFeatureGate) Enabled(ctx context.Context, key string, opts ...gate.ResolveOption) (bool, error) {
	s.calls = append(s.calls, key)
	if s.err != nil {
		return false, s.err
	}
	if s.enabled == nil {
		return true, nil
	}
	enabled, ok := s.enabled[key]
	if !ok {
		return true, nil
	}
	return enabled, nil
}

type recordingMailer struct {
	mu       sync.Mutex
	messages []auth.MailMessage
	err      error
}

func (m *recordingMailer) Send(ctx context.Context, msg auth.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return m.err
}

func (m *recordingMailer) last() (auth.MailMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return auth.MailMessage{}, false
	}
	return m.messages[len(m.messages)-1], true
}

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(ctx context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// memoryRepo is an in-memory RepositoryManager. RunInTx hands out a zero
// bun.Tx, the stores ignore it.
type memoryRepo struct {
	users *memoryUsers
	roles *memoryRoles
}

var _ auth.RepositoryManager = (*memoryRepo)(nil)

func newMemoryRepo() *memoryRepo {
	repo := &memoryRepo{
		users: &memoryUsers{records: map[uuid.UUID]*auth.User{}},
		roles: &memoryRoles{records: map[string]*auth.Role{}},
	}
	for _, def := range auth.DefaultRoles() {
		role := auth.NewRole(def.Name)
		for _, p := range def.Permissions {
			role.AddPermission(p)
		}
		role.IsDefault = def.Name == auth.DefaultRoleName
		repo.roles.records[role.Name] = role
	}
	return repo
}

func (m *memoryRepo) Validate() error { return nil }

func (m *memoryRepo) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *memoryRepo) Users() auth.UserStore { return m.users }

func (m *memoryRepo) Roles() auth.RoleStore { return m.roles }

func (m *memoryRepo) addUser(username, email, password, roleName string, confirmed bool) *auth.User {
	user := &auth.User{
		ID:        uuid.New(),
		Username:  username,
		Email:     auth.NormalizeEmail(email),
		Confirmed: confirmed,
	}
	if err := user.SetPassword(password); err != nil {
		panic(err)
	}
	user.SetRole(m.roles.records[roleName])
	m.users.records[user.ID] = user
	return user
}

type memoryUsers struct {
	mu      sync.Mutex
	records map[uuid.UUID]*auth.User
}

func (s *memoryUsers) find(match func(*auth.User) bool) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.records {
		if match(u) {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memoryUsers) FindByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	return s.FindByIDTx(ctx, nil, id)
}

func (s *memoryUsers) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*auth.User, error) {
	return s.find(func(u *auth.User) bool { return u.ID == id })
}

func (s *memoryUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.FindByEmailTx(ctx, nil, email)
}

func (s *memoryUsers) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*auth.User, error) {
	email = auth.NormalizeEmail(email)
	return s.find(func(u *auth.User) bool { return u.Email == email })
}

func (s *memoryUsers) FindByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*auth.User, error) {
	return s.find(func(u *auth.User) bool { return u.Username == username })
}

func (s *memoryUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *auth.User) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	s.records[user.ID] = user
	return user, nil
}

func (s *memoryUsers) SaveTx(ctx context.Context, tx bun.IDB, user *auth.User) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[user.ID]; !ok {
		return nil, sql.ErrNoRows
	}
	s.records[user.ID] = user
	return user, nil
}

func (s *memoryUsers) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	return nil
}

func (s *memoryUsers) TouchLastSeen(ctx context.Context, user *auth.User) error {
	user.Touch(time.Now())
	return nil
}

type memoryRoles struct {
	mu      sync.Mutex
	records map[string]*auth.Role
}

func (s *memoryRoles) FindByNameTx(ctx context.Context, tx bun.IDB, name string) (*auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.records[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return role, nil
}

func (s *memoryRoles) FindDefaultTx(ctx context.Context, tx bun.IDB) (*auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range s.records {
		if role.IsDefault {
			return role, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memoryRoles) ListTx(ctx context.Context, tx bun.IDB) ([]*auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*auth.Role, 0, len(s.records))
	for _, role := range s.records {
		out = append(out, role)
	}
	return out, nil
}

func (s *memoryRoles) SaveTx(ctx context.Context, tx bun.IDB, role *auth.Role) (*auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[role.Name] = role
	return role, nil
}
