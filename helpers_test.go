package sias

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/sias/access"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const testAuditKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Pending.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Audit.Key = testAuditKey
	cfg.Audit.Async = false
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Access.Location = time.UTC
	return cfg
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingMailer struct {
	mu           sync.Mutex
	verification map[string]string
	reset        map[string]string
	resetErr     error
}

func (m *recordingMailer) SendVerificationEmail(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verification[to] = token
	return nil
}

func (m *recordingMailer) SendPasswordResetEmail(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resetErr != nil {
		return m.resetErr
	}
	m.reset[to] = token
	return nil
}

// memStore is an in-memory Store for engine tests.
type memStore struct {
	mu          sync.Mutex
	users       map[string]*Identity
	shares      map[string]Share
	audit       []AuditRecord
	history     map[string][]string
	grades      map[string]GradeRecord // keyed by enrollment
	enrollments map[string]EnrollmentRecord
	courses     map[string]string // course id to instructor id
	nextID      int
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[string]*Identity{},
		shares:      map[string]Share{},
		history:     map[string][]string{},
		grades:      map[string]GradeRecord{},
		enrollments: map[string]EnrollmentRecord{},
		courses:     map[string]string{},
	}
}

func (s *memStore) id(prefix string) string {
	s.nextID++
	return prefix + strconv.Itoa(s.nextID)
}

func (s *memStore) put(u *Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *memStore) user(id string) Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

func (s *memStore) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.audit))
	for i, r := range s.audit {
		out[i] = r.Action
	}
	return out
}

func (s *memStore) FindIdentityByEmail(_ context.Context, email string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) FindIdentityByID(_ context.Context, id string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) FindIdentityByVerificationToken(_ context.Context, tokenHash string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.VerificationTokenHash != "" && u.VerificationTokenHash == tokenHash {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) CreateIdentity(_ context.Context, in CreateIdentityInput) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == in.Email {
			return nil, ErrEmailTaken
		}
	}
	u := &Identity{
		ID:                    s.id("user-"),
		Name:                  in.Name,
		Email:                 in.Email,
		PasswordHash:          in.PasswordHash,
		Role:                  in.Role,
		SecurityLevel:         in.SecurityLevel,
		VerificationTokenHash: in.VerificationTokenHash,
		VerificationExpiresAt: in.VerificationExpiresAt,
		CreatedAt:             in.CreatedAt,
		UpdatedAt:             in.CreatedAt,
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *memStore) RecordLoginFailure(_ context.Context, id string, attempts int, lockedUntil, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	u.FailedLoginAttempts = attempts
	u.LockedUntil = lockedUntil
	u.LastLoginAttempt = at
	return nil
}

func (s *memStore) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	u.FailedLoginAttempts = 0
	u.LockedUntil = time.Time{}
	u.LastLoginAttempt = at
	return nil
}

func (s *memStore) UpdatePasswordHash(_ context.Context, id, hash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id].PasswordHash = hash
	s.users[id].UpdatedAt = at
	return nil
}

func (s *memStore) UpdateRole(_ context.Context, id string, role access.Role, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id].Role = role
	s.users[id].UpdatedAt = at
	return nil
}

func (s *memStore) MarkEmailVerified(_ context.Context, id string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	u.EmailVerified = true
	u.VerificationTokenHash = ""
	u.VerificationExpiresAt = time.Time{}
	return nil
}

func (s *memStore) SetPendingMFASecret(_ context.Context, id, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id].MFASecret = secret
	return nil
}

func (s *memStore) EnableMFA(_ context.Context, id string, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id].MFAEnabled = true
	s.users[id].BackupCodes = append([]string(nil), hashes...)
	return nil
}

func (s *memStore) DisableMFA(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	u.MFAEnabled = false
	u.MFASecret = ""
	u.BackupCodes = nil
	u.MFALastCounter = 0
	return nil
}

func (s *memStore) AdvanceMFACounter(_ context.Context, id string, counter int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || counter <= u.MFALastCounter {
		return false, nil
	}
	u.MFALastCounter = counter
	return true, nil
}

func (s *memStore) ConsumeBackupCode(_ context.Context, id, codeHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	for i, h := range u.BackupCodes {
		if h == codeHash {
			u.BackupCodes = append(u.BackupCodes[:i], u.BackupCodes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) FindShareGrants(_ context.Context, ownerID, sharedWith, resourceType, resourceID string) ([]access.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []access.Grant
	for _, sh := range s.shares {
		if sh.OwnerID == ownerID && sh.SharedWithID == sharedWith && sh.ResourceType == resourceType && sh.ResourceID == resourceID {
			out = append(out, access.Grant{Permission: sh.Permission})
		}
	}
	return out, nil
}

func (s *memStore) ResourceOwner(_ context.Context, resourceType, resourceID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch resourceType {
	case ResourceCourse:
		if owner, ok := s.courses[resourceID]; ok {
			return owner, nil
		}
	case ResourceTranscript:
		if _, ok := s.users[resourceID]; ok {
			return resourceID, nil
		}
	}
	return "", ErrNotFound
}

func (s *memStore) InsertShare(_ context.Context, sh Share) (*Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh.ID = s.id("share-")
	s.shares[sh.ID] = sh
	return &sh, nil
}

func (s *memStore) DeleteShare(_ context.Context, ownerID, shareID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shares[shareID]
	if !ok || sh.OwnerID != ownerID {
		return false, nil
	}
	delete(s.shares, shareID)
	return true, nil
}

func (s *memStore) ListSharesByOwner(_ context.Context, ownerID string) ([]Share, error) {
	return s.listShares(func(sh Share) bool { return sh.OwnerID == ownerID }), nil
}

func (s *memStore) ListSharesWithUser(_ context.Context, userID string) ([]Share, error) {
	return s.listShares(func(sh Share) bool { return sh.SharedWithID == userID }), nil
}

func (s *memStore) listShares(match func(Share) bool) []Share {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Share{}
	for _, sh := range s.shares {
		if match(sh) {
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) InsertAuditEntry(_ context.Context, rec AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, rec)
	return nil
}

func (s *memStore) QueryAuditEntries(_ context.Context, f AuditFilter) ([]AuditRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []AuditRecord
	for i := len(s.audit) - 1; i >= 0; i-- {
		r := s.audit[i]
		if f.Action != "" && r.Action != f.Action {
			continue
		}
		if f.Search != "" && !strings.Contains(r.Action+" "+r.Resource+" "+r.IP, f.Search) {
			continue
		}
		matched = append(matched, r)
	}
	total := len(matched)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func (s *memStore) AppendPasswordHistory(_ context.Context, userID, hash string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[userID] = append(s.history[userID], hash)
	return nil
}

func (s *memStore) RecentPasswordHashes(_ context.Context, userID string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.history[userID]
	out := make([]string, 0, limit)
	for i := len(h) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h[i])
	}
	return out, nil
}

func (s *memStore) ListGradeRecords(context.Context) ([]GradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]GradeRecord, 0, len(s.grades))
	for _, g := range s.grades {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) FindEnrollment(_ context.Context, id string) (*EnrollmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[id]
	if !ok {
		return nil, ErrNotFound
	}
	if g, ok := s.grades[id]; ok {
		e.CurrentGrade = g.Grade
		e.CurrentGradeExists = true
	}
	return &e, nil
}

func (s *memStore) UpsertGrade(_ context.Context, enrollmentID, grade, _ string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grades[enrollmentID]
	if !ok {
		g = GradeRecord{ID: s.id("grade-"), EnrollmentID: enrollmentID, SecurityLevel: access.LevelConfidential}
	}
	g.Grade = grade
	s.grades[enrollmentID] = g
	return nil
}

type testEnv struct {
	engine *Engine
	store  *memStore
	mailer *recordingMailer
	clock  *testClock
	mr     *miniredis.Miniredis
	rdb    *redis.Client
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	mr, rdb := newTestRedis(t)
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	// Wednesday 14:00 UTC.
	clock := &testClock{now: time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC)}
	store := newMemStore()
	mailer := &recordingMailer{verification: map[string]string{}, reset: map[string]string{}}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(store).
		WithMailer(mailer).
		WithCaptcha(StaticCaptcha(true)).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, mailer: mailer, clock: clock, mr: mr, rdb: rdb}
}

// addUser stores an identity with a bcrypt hash of pw.
func (env *testEnv) addUser(t *testing.T, u Identity, pw string) *Identity {
	t.Helper()
	hash, err := env.engine.hasher.Hash(pw)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	u.PasswordHash = hash
	if u.Role == "" {
		u.Role = access.RoleStudent
	}
	if u.SecurityLevel == "" {
		u.SecurityLevel = access.LevelPublic
	}
	env.store.put(&u)
	return &u
}
