package impl

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"sync"
	"testing"
	"time"

	"authsvc/config"
	"authsvc/internal/domain/entity"
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/domain/repository"
	"authsvc/internal/domain/service"
	"authsvc/internal/infra/auth"
	"authsvc/internal/infra/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig() *config.Config {
	cfg := &config.Config{
		Auth: &config.AuthConfig{
			BcryptCost:          bcrypt.MinCost,
			Issuer:              "authsvc-test",
			AccessTokenTTL:      15 * time.Minute,
			RefreshTokenTTL:     7 * 24 * time.Hour,
			VerificationCodeTTL: 30 * time.Minute,
			PasswordResetTTL:    30 * time.Minute,
			OAuthStateTTL:       10 * time.Minute,
			MergeByEmail:        config.MergeByEmailVerified,
			RefreshRevocation:   true,
		},
		Mail: &config.MailConfig{ResetPasswordURL: "https://app.example.com/reset-password"},
	}
	cfg.SecretKey.Access = "test_access_secret_key_very_long_for_testing"
	cfg.SecretKey.Refresh = "test_refresh_secret_key_very_long_for_testing"

	return cfg
}

// fakeState is the content of the in-memory database.
type fakeState struct {
	users         map[uuid.UUID]entity.User
	links         map[string]entity.AuthProvider
	verifications map[uuid.UUID]entity.EmailVerification
	resets        map[uuid.UUID]entity.PasswordResetToken
}

func (s *fakeState) clone() *fakeState {
	return &fakeState{
		users:         maps.Clone(s.users),
		links:         maps.Clone(s.links),
		verifications: maps.Clone(s.verifications),
		resets:        maps.Clone(s.resets),
	}
}

// fakeDB serializes transactions and restores a snapshot on rollback, which is
// the behaviour the services rely on from row locks and unique indexes.
type fakeDB struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	state    *fakeState
	snapshot *fakeState

	// Hooks run before the write so tests can commit a competing row first.
	beforeLinkUpsert func(db *fakeDB, link *entity.AuthProvider)
	beforeUserCreate func(db *fakeDB, user *entity.User)
	// concurrentUserWrite is committed once by a competing transaction. An
	// unlocked read sees the row before it; a locking read waits and sees it.
	concurrentUserWrite func(s *fakeState)
	txCount             int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		state: &fakeState{
			users:         make(map[uuid.UUID]entity.User),
			links:         make(map[string]entity.AuthProvider),
			verifications: make(map[uuid.UUID]entity.EmailVerification),
			resets:        make(map[uuid.UUID]entity.PasswordResetToken),
		},
	}
}

func (db *fakeDB) Execute(_ context.Context, fn func(txRepoFactory repository.RepositoryFactory) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	db.snapshot = db.state.clone()
	db.txCount++
	db.mu.Unlock()

	err := fn(db)

	db.mu.Lock()
	if err != nil {
		db.state = db.snapshot
	}
	db.snapshot = nil
	db.mu.Unlock()

	return err
}

// committed applies fn as if another transaction had already committed it.
func (db *fakeDB) committed(fn func(s *fakeState)) {
	db.mu.Lock()
	defer db.mu.Unlock()

	fn(db.state)
	if db.snapshot != nil {
		fn(db.snapshot)
	}
}

func (db *fakeDB) UserRepo() repository.UserRepository { return &fakeUserRepo{db: db} }

func (db *fakeDB) AuthProviderRepo() repository.AuthProviderRepository {
	return &fakeAuthProviderRepo{db: db}
}

func (db *fakeDB) EmailVerificationRepo() repository.EmailVerificationRepository {
	return &fakeEmailVerificationRepo{db: db}
}

func (db *fakeDB) PasswordResetRepo() repository.PasswordResetRepository {
	return &fakePasswordResetRepo{db: db}
}

func (db *fakeDB) takeConcurrentUserWrite() func(s *fakeState) {
	db.mu.Lock()
	defer db.mu.Unlock()

	write := db.concurrentUserWrite
	db.concurrentUserWrite = nil

	return write
}

func (db *fakeDB) seedUser(t *testing.T, user entity.User) *entity.User {
	t.Helper()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = entity.RoleUser
	}
	db.committed(func(s *fakeState) { s.users[user.ID] = user })

	return &user
}

func (db *fakeDB) user(t *testing.T, id uuid.UUID) entity.User {
	t.Helper()
	db.mu.Lock()
	defer db.mu.Unlock()

	user, ok := db.state.users[id]
	require.True(t, ok, "user %s not found", id)

	return user
}

func (db *fakeDB) userCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()

	return len(db.state.users)
}

func (db *fakeDB) verification(id uuid.UUID) (entity.EmailVerification, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	v, ok := db.state.verifications[id]

	return v, ok
}

func (db *fakeDB) reset(id uuid.UUID) (entity.PasswordResetToken, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	r, ok := db.state.resets[id]

	return r, ok
}

func (db *fakeDB) linksOf(userID uuid.UUID) []entity.AuthProvider {
	db.mu.Lock()
	defer db.mu.Unlock()

	var links []entity.AuthProvider
	for _, link := range db.state.links {
		if link.UserID == userID {
			links = append(links, link)
		}
	}

	return links
}

type fakeUserRepo struct{ db *fakeDB }

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	user, err := r.read(id)
	if write := r.db.takeConcurrentUserWrite(); write != nil {
		r.db.committed(write)
	}

	return user, err
}

func (r *fakeUserRepo) FindByIDForUpdate(_ context.Context, id uuid.UUID) (*entity.User, error) {
	if write := r.db.takeConcurrentUserWrite(); write != nil {
		r.db.committed(write)
	}

	return r.read(id)
}

func (r *fakeUserRepo) read(id uuid.UUID) (*entity.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	user, ok := r.db.state.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return &user, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, user := range r.db.state.users {
		if user.Email != nil && *user.Email == email {
			return &user, nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) emailTaken(user *entity.User) bool {
	if user.Email == nil {
		return false
	}
	for id, other := range r.db.state.users {
		if id != user.ID && other.Email != nil && *other.Email == *user.Email {
			return true
		}
	}

	return false
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	if hook := r.db.beforeUserCreate; hook != nil {
		hook(r.db, user)
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = entity.RoleUser
	}
	if r.emailTaken(user) {
		return domainerrors.ErrDuplicate.WithDetails("idx_users_email")
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.db.state.users[user.ID] = *user

	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *entity.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.state.users[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if r.emailTaken(user) {
		return domainerrors.ErrDuplicate.WithDetails("idx_users_email")
	}
	user.UpdatedAt = time.Now()
	user.TokenVersion = stored.TokenVersion
	r.db.state.users[user.ID] = *user

	return nil
}

func (r *fakeUserRepo) MarkEmailVerified(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	user, ok := r.db.state.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.EmailVerified = true
	r.db.state.users[id] = user

	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	user, ok := r.db.state.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = &passwordHash
	user.EmailVerified = true
	user.TokenVersion++
	r.db.state.users[id] = user

	return nil
}

type fakeAuthProviderRepo struct{ db *fakeDB }

func (r *fakeAuthProviderRepo) FindByID(_ context.Context, id string) (*entity.AuthProvider, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	link, ok := r.db.state.links[id]
	if !ok {
		return nil, repository.ErrAuthProviderNotFound
	}

	return &link, nil
}

func (r *fakeAuthProviderRepo) Upsert(_ context.Context, link *entity.AuthProvider) (*entity.AuthProvider, error) {
	if hook := r.db.beforeLinkUpsert; hook != nil {
		hook(r.db, link)
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := time.Now()
	stored, ok := r.db.state.links[link.ID]
	if ok {
		stored.UpdatedAt = now
	} else {
		stored = *link
		stored.CreatedAt = now
		stored.UpdatedAt = now
	}
	r.db.state.links[link.ID] = stored

	return &stored, nil
}

type fakeEmailVerificationRepo struct{ db *fakeDB }

func (r *fakeEmailVerificationRepo) Upsert(_ context.Context, verification *entity.EmailVerification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.state.verifications[verification.UserID] = *verification

	return nil
}

func (r *fakeEmailVerificationRepo) FindByUserID(_ context.Context, userID uuid.UUID) (*entity.EmailVerification, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	v, ok := r.db.state.verifications[userID]
	if !ok {
		return nil, repository.ErrVerificationNotFound
	}

	return &v, nil
}

func (r *fakeEmailVerificationRepo) DeleteByUserID(_ context.Context, userID uuid.UUID) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	_, ok := r.db.state.verifications[userID]
	delete(r.db.state.verifications, userID)

	return ok, nil
}

type fakePasswordResetRepo struct{ db *fakeDB }

func (r *fakePasswordResetRepo) Upsert(_ context.Context, token *entity.PasswordResetToken) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.state.resets[token.UserID] = *token

	return nil
}

func (r *fakePasswordResetRepo) FindByToken(_ context.Context, token string) (*entity.PasswordResetToken, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, reset := range r.db.state.resets {
		if reset.Token == token {
			return &reset, nil
		}
	}

	return nil, repository.ErrResetTokenNotFound
}

func (r *fakePasswordResetRepo) DeleteByToken(_ context.Context, token string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for userID, reset := range r.db.state.resets {
		if reset.Token == token {
			delete(r.db.state.resets, userID)

			return true, nil
		}
	}

	return false, nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []*service.Mail
}

func (m *recordingMailer) Send(_ context.Context, mail *service.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, mail)

	return nil
}

func (m *recordingMailer) last() *service.Mail {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sent) == 0 {
		return nil
	}

	return m.sent[len(m.sent)-1]
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sent)
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) Record(event service.AuthEvent, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	result := "failure"
	if success {
		result = "success"
	}
	r.counts[string(event)+":"+result]++
}

func (r *countingRecorder) count(event service.AuthEvent, success bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := "failure"
	if success {
		result = "success"
	}

	return r.counts[string(event)+":"+result]
}

type fakeOAuthProvider struct {
	providerType entity.ProviderType
	identity     *service.ExternalIdentity
	exchangeErr  error
	codes        []string
}

func (p *fakeOAuthProvider) Provider() entity.ProviderType { return p.providerType }

func (p *fakeOAuthProvider) AuthorizationURL(state string) string {
	return "https://provider.example.com/authorize?state=" + state
}

func (p *fakeOAuthProvider) ExchangeCode(_ context.Context, code string) (*service.ProviderToken, error) {
	p.codes = append(p.codes, code)
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}

	return &service.ProviderToken{AccessToken: "provider-token-" + code}, nil
}

func (p *fakeOAuthProvider) NormalizeIdentity(_ context.Context, _ *service.ProviderToken) (*service.ExternalIdentity, error) {
	copied := *p.identity

	return &copied, nil
}

type fakeRegistry map[entity.ProviderType]service.OAuthProvider

func (r fakeRegistry) Lookup(provider entity.ProviderType) (service.OAuthProvider, error) {
	p, ok := r[provider]
	if !ok {
		return nil, domainerrors.ErrInvalidProvider
	}

	return p, nil
}

// authFixtures wires the services against the fake database and the real
// token codec, hasher and in-memory stores.
type authFixtures struct {
	cfg          *config.Config
	db           *fakeDB
	mailer       *recordingMailer
	recorder     *countingRecorder
	tokens       service.TokenCodec
	hasher       service.PasswordHasher
	states       *store.MemoryOAuthStateStore
	revocations  *store.MemoryRevocationStore
	google       *fakeOAuthProvider
	issuer       *VerificationIssuer
	linker       *IdentityLinker
	auth         *authService
	verification *verificationService
	profile      *profileService
}

func newAuthFixtures(t *testing.T) *authFixtures {
	t.Helper()

	return newAuthFixturesWithConfig(t, newTestConfig())
}

func newAuthFixturesWithConfig(t *testing.T, cfg *config.Config) *authFixtures {
	t.Helper()

	tokens, err := auth.NewJWTService(cfg)
	require.NoError(t, err)

	f := &authFixtures{
		cfg:         cfg,
		db:          newFakeDB(),
		mailer:      &recordingMailer{},
		recorder:    &countingRecorder{},
		tokens:      tokens,
		hasher:      auth.NewBcryptHasher(cfg),
		states:      store.NewMemoryOAuthStateStore(time.Now),
		revocations: store.NewMemoryRevocationStore(time.Now),
		google: &fakeOAuthProvider{
			providerType: entity.ProviderGoogle,
			identity: &service.ExternalIdentity{
				ProviderID:    "google-sub-1",
				Name:          "Grace Hopper",
				Email:         entity.StringPtr("grace@example.com"),
				EmailVerified: true,
				ProfileImage:  entity.StringPtr("https://img.example.com/grace.png"),
			},
		},
	}
	logger := newDiscardLogger()

	f.issuer = NewVerificationIssuer(VerificationIssuerParams{
		TxManager: f.db,
		Hasher:    f.hasher,
		Mailer:    f.mailer,
		Config:    cfg,
		Logger:    logger,
	})
	f.linker = NewIdentityLinker(IdentityLinkerParams{TxManager: f.db, Config: cfg, Logger: logger})
	f.auth = NewAuthService(AuthServiceParams{
		TxManager:   f.db,
		UserRepo:    f.db.UserRepo(),
		Hasher:      f.hasher,
		Tokens:      tokens,
		Providers:   fakeRegistry{entity.ProviderGoogle: f.google},
		States:      f.states,
		Revocations: f.revocations,
		Issuer:      f.issuer,
		Linker:      f.linker,
		Recorder:    f.recorder,
		Config:      cfg,
		Logger:      logger,
	}).(*authService)
	f.verification = NewVerificationService(VerificationServiceParams{
		Issuer:   f.issuer,
		Recorder: f.recorder,
	}).(*verificationService)
	f.profile = NewProfileService(ProfileServiceParams{
		TxManager: f.db,
		UserRepo:  f.db.UserRepo(),
		Hasher:    f.hasher,
		Logger:    logger,
	}).(*profileService)

	return f
}

// setClock moves every time source of the services to now.
func (f *authFixtures) setClock(now func() time.Time) {
	f.issuer.now = now
	f.auth.now = now
}

func (f *authFixtures) seedPasswordUser(t *testing.T, email, password string) *entity.User {
	t.Helper()

	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)

	return f.db.seedUser(t, entity.User{
		Name:          "Ada Lovelace",
		Email:         entity.StringPtr(email),
		EmailVerified: true,
		PasswordHash:  &hash,
	})
}
