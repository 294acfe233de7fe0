package auth

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/go-email-otp/internal/application/otp"
	"github.com/go-email-otp/internal/config"
	"github.com/go-email-otp/internal/domain"
	"github.com/go-email-otp/internal/infrastructure/sns"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockOTP struct{ mock.Mock }

func (m *mockOTP) Issue(ctx context.Context, email string, purpose domain.OTPPurpose) (string, error) {
	args := m.Called(ctx, email, purpose)
	return args.String(0), args.Error(1)
}
func (m *mockOTP) Verify(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error {
	return m.Called(ctx, email, purpose, code).Error(0)
}
func (m *mockOTP) Check(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error {
	return m.Called(ctx, email, purpose, code).Error(0)
}
func (m *mockOTP) Revoke(ctx context.Context, email string, purpose domain.OTPPurpose) error {
	return m.Called(ctx, email, purpose).Error(0)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Put(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) DisableByUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockSessions struct{ mock.Mock }

func (m *mockSessions) Create(ctx context.Context, u *domain.User, meta domain.ClientMeta) (*domain.AuthResult, error) {
	args := m.Called(ctx, u, meta)
	if r, _ := args.Get(0).(*domain.AuthResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type recordingPublisher struct{ events []sns.Event }

func (p *recordingPublisher) Publish(_ context.Context, e sns.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// --- helpers ---

type fixture struct {
	otp      *mockOTP
	users    *mockUserStore
	sessRepo *mockSessionStore
	sessions *mockSessions
	mailer   *mockMailer
	pub      *recordingPublisher
}

func newFixture() *fixture {
	return &fixture{
		otp:      &mockOTP{},
		users:    &mockUserStore{},
		sessRepo: &mockSessionStore{},
		sessions: &mockSessions{},
		mailer:   &mockMailer{},
		pub:      &recordingPublisher{},
	}
}

func (f *fixture) svc(cfg config.OTP) Service {
	logger, _ := test.NewNullLogger()
	return NewService(ServiceDeps{
		OTP:         f.otp,
		UserRepo:    f.users,
		SessionRepo: f.sessRepo,
		Sessions:    f.sessions,
		Mailer:      f.mailer,
		Publisher:   f.pub,
		Logger:      logger,
		Config:      cfg,
		AppName:     "Acme",
	})
}

func defaultCfg() config.OTP {
	return config.OTP{Length: 6, Expiry: 5 * time.Minute, AllowedAttempts: 3, Storage: config.OTPStoragePlain, Store: config.OTPStoreDynamo}
}

func alice() *domain.User {
	return &domain.User{UserID: "user-1", Email: "alice@example.com", Enable: true, EmailVerified: true}
}

// --- SendVerificationOTP ---

func TestSendVerificationOTP_ExistingUser(t *testing.T) {
	f := newFixture()
	f.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(alice(), nil)
	f.otp.On("Issue", mock.Anything, "alice@example.com", domain.PurposeEmailVerification).Return("123456", nil)
	f.mailer.On("SendEmail", "alice@example.com", "Verify your Acme email", mock.MatchedBy(func(body string) bool {
		return regexp.MustCompile(`\b123456\b`).MatchString(body)
	})).Return(nil)

	err := f.svc(defaultCfg()).SendVerificationOTP(context.Background(), " Alice@Example.com ", domain.PurposeEmailVerification)

	require.NoError(t, err)
	f.mailer.AssertExpectations(t)
}

func TestSendVerificationOTP_SignInUnknownUserSends(t *testing.T) {
	f := newFixture()
	f.users.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, domain.ErrNotFound)
	f.otp.On("Issue", mock.Anything, "new@example.com", domain.PurposeSignIn).Return("654321", nil)
	f.mailer.On("SendEmail", "new@example.com", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.svc(defaultCfg()).SendVerificationOTP(context.Background(), "new@example.com", domain.PurposeSignIn))
	f.otp.AssertExpectations(t)
}

func TestSendVerificationOTP_SignInUnknownUserSignUpDisabledIsSilent(t *testing.T) {
	f := newFixture()
	cfg := defaultCfg()
	cfg.DisableSignUp = true
	f.users.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, domain.ErrNotFound)

	require.NoError(t, f.svc(cfg).SendVerificationOTP(context.Background(), "new@example.com", domain.PurposeSignIn))
	f.otp.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
	f.mailer.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendVerificationOTP_UnknownUserOtherPurposesAreSilent(t *testing.T) {
	for _, p := range []domain.OTPPurpose{domain.PurposeEmailVerification, domain.PurposeForgetPassword} {
		f := newFixture()
		f.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)

		require.NoError(t, f.svc(defaultCfg()).SendVerificationOTP(context.Background(), "ghost@example.com", p), p)
		f.otp.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestSendVerificationOTP_LookupError(t *testing.T) {
	f := newFixture()
	f.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, errors.New("throttled"))

	err := f.svc(defaultCfg()).SendVerificationOTP(context.Background(), "alice@example.com", domain.PurposeSignIn)
	require.Error(t, err)
	f.otp.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliverOTP_MailFailureRevokesCode(t *testing.T) {
	f := newFixture()
	f.otp.On("Issue", mock.Anything, "alice@example.com", domain.PurposeSignIn).Return("123456", nil)
	f.otp.On("Revoke", mock.Anything, "alice@example.com", domain.PurposeSignIn).Return(nil)
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	err := f.svc(defaultCfg()).DeliverOTP(context.Background(), "alice@example.com", domain.PurposeSignIn)

	require.Error(t, err)
	f.otp.AssertCalled(t, "Revoke", mock.Anything, "alice@example.com", domain.PurposeSignIn)
}

// --- SignInEmailOTP ---

func TestSignInEmailOTP_ExistingUser(t *testing.T) {
	f := newFixture()
	u := alice()
	f.otp.On("Verify", mock.Anything, "alice@example.com", domain.PurposeSignIn, "123456").Return(nil)
	f.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)
	f.sessions.On("Create", mock.Anything, u, domain.ClientMeta{IPAddress: "1.2.3.4"}).Return(&domain.AuthResult{Bearer: "bearer"}, nil)

	res, err := f.svc(defaultCfg()).SignInEmailOTP(context.Background(),
		SignInEmailOTPRequest{Email: "alice@example.com", OTP: "123456"}, domain.ClientMeta{IPAddress: "1.2.3.4"})

	require.NoError(t, err)
	assert.Equal(t, "bearer", res.Bearer)
	f.users.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.pub.events)
}

func TestSignInEmailOTP_AutoRegistersVerifiedUser(t *testing.T) {
	f := newFixture()
	f.otp.On("Verify", mock.Anything, "new@example.com", domain.PurposeSignIn, "123456").Return(nil)
	f.users.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, domain.ErrNotFound)
	f.users.On("Put", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "new@example.com" && u.EmailVerified && u.Enable && u.Name == "New" && u.PasswordHash == ""
	})).Return(nil)
	f.sessions.On("Create", mock.Anything, mock.AnythingOfType("*domain.User"), mock.Anything).Return(&domain.AuthResult{Bearer: "bearer"}, nil)

	_, err := f.svc(defaultCfg()).SignInEmailOTP(context.Background(),
		SignInEmailOTPRequest{Email: "new@example.com", OTP: "123456", Name: "New"}, domain.ClientMeta{})

	require.NoError(t, err)
	f.users.AssertExpectations(t)
	assert.Equal(t, []string{sns.EventUserCreated}, f.pub.types())
}

func TestSignInEmailOTP_SignUpDisabled(t *testing.T) {
	f := newFixture()
	cfg := defaultCfg()
	cfg.DisableSignUp = true
	f.otp.On("Verify", mock.Anything, "new@example.com", domain.PurposeSignIn, "123456").Return(nil)
	f.users.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, domain.ErrNotFound)

	_, err := f.svc(cfg).SignInEmailOTP(context.Background(), SignInEmailOTPRequest{Email: "new@example.com", OTP: "123456"}, domain.ClientMeta{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	f.users.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	f.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignInEmailOTP_VerifiesUnverifiedUser(t *testing.T) {
	f := newFixture()
	u := alice()
	u.EmailVerified = false
	f.otp.On("Verify", mock.Anything, "alice@example.com", domain.PurposeSignIn, "123456").Return(nil)
	f.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)
	f.users.On("Update", mock.Anything, "user-1", map[string]interface{}{fieldEmailVerified: true}).Return(nil)
	f.sessions.On("Create", mock.Anything, u, mock.Anything).Return(&domain.AuthResult{}, nil)

	_, err := f.svc(defaultCfg()).SignInEmailOTP(context.Background(), SignInEmailOTPRequest{Email: "alice@example.com", OTP: "123456"}, domain.ClientMeta{})

	require.NoError(t, err)
	assert.True(t, u.EmailVerified)
	assert.Equal(t, []string{sns.EventEmailVerified}, f.pub.types())
}

func TestSignInEmailOTP_DisabledUser(t *testing.T) {
	f := newFixture()
	u := alice()
	u.Enable = false
	f.otp.On("Verify", mock.Anything, "alice@example.com", domain.PurposeSignIn, "123456").Return(nil)
	f.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)

	_, err := f.svc(defaultCfg()).SignInEmailOTP(context.Background(), SignInEmailOTPRequest{Email: "alice@example.com", OTP: "123456"}, domain.ClientMeta{})

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	f.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignInEmailOTP_BadCodeStopsEarly(t *testing.T) {
	f := newFixture()
	f.otp.On("Verify", mock.Anything, "alice@example.com", domain.PurposeSignIn, "000000").Return(domain.ErrInvalidOTP)

	_, err := f.svc(defaultCfg()).SignInEmailOTP(context.Background(), SignInEmailOTPRequest{Email: "alice@example.com", OTP: "000000"}, domain.ClientMeta{})

	assert.True(t, errors.Is(err, domain.ErrInvalidOTP))
	f.users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

// --- VerifyEmail ---

func TestVerifyEmail_MarksVerified(t *testing.T) {
	f := newFixture()
	u := alice()
	u.EmailVerified = false
	f.otp.On("Verify", mock.Anything, "alice@example.com", domain.PurposeEmailVerification, "123456").Return(nil)
	f.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)
	f.users.On("Update", mock.Anything, "user-1", map[string]interface{}{fieldEmailVerified: true}).Return(nil)

	got, err := f.svc(defaultCfg()).VerifyEmail(context.Background(), "alice@example.com", "123456")

	require.NoError(t, err)
	assert.True(t, got.EmailVerified)
	assert.Equal(t, []string{sns.EventEmailVerified}, f.pub.types())
}

func TestVerifyEmail_UnknownUser(t *testing.T) {
	f := newFixture()
	f.otp.On("Verify", mock.Anything, "ghost@example.com", domain.PurposeEmailVerification, "123456").Return(nil)
	f.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)

	_, err := f.svc(defaultCfg()).VerifyEmail(context.Background(), "ghost@example.com", "123456")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestVerifyEmail_ExpiredCode(t *testing.T) {
	f := newFixture()
	f.otp.On("Verify", mock.Anything, "alice@example.com", domain.PurposeEmailVerification, "123456").Return(domain.ErrOTPExpired)

	_, err := f.svc(defaultCfg()).VerifyEmail(context.Background(), "alice@example.com", "123456")

	assert.True(t, errors.Is(err, domain.ErrOTPExpired))
}

// --- CheckVerificationOTP ---

func TestCheckVerificationOTP_DelegatesWithoutConsuming(t *testing.T) {
	f := newFixture()
	f.otp.On("Check", mock.Anything, "alice@example.com", domain.PurposeForgetPassword, "123456").Return(nil)

	require.NoError(t, f.svc(defaultCfg()).CheckVerificationOTP(context.Background(), "alice@example.com", domain.PurposeForgetPassword, "123456"))
	f.otp.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- ResetPassword ---

func TestResetPassword_UpdatesHashAndRevokesSessions(t *testing.T) {
	f := newFixture()
	f.otp.On("Verify", mock.Anything, "alice@example.com", domain.PurposeForgetPassword, "123456").Return(nil)
	f.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(alice(), nil)
	f.users.On("Update", mock.Anything, "user-1", mock.MatchedBy(func(m map[string]interface{}) bool {
		h, ok := m[fieldPasswordHash].(string)
		_, touchedVerified := m[fieldEmailVerified]
		return ok && len(h) > 0 && !touchedVerified
	})).Return(nil)
	f.sessRepo.On("DisableByUser", mock.Anything, "user-1").Return(nil)

	err := f.svc(defaultCfg()).ResetPassword(context.Background(), ResetPasswordRequest{Email: "alice@example.com", OTP: "123456", Password: "new-password"})

	require.NoError(t, err)
	f.sessRepo.AssertExpectations(t)
	assert.Equal(t, []string{sns.EventPasswordReset}, f.pub.types())
}

func TestResetPassword_BadCode(t *testing.T) {
	f := newFixture()
	f.otp.On("Verify", mock.Anything, "alice@example.com", domain.PurposeForgetPassword, "999999").Return(domain.ErrTooManyAttempts)

	err := f.svc(defaultCfg()).ResetPassword(context.Background(), ResetPasswordRequest{Email: "alice@example.com", OTP: "999999", Password: "new-password"})

	assert.True(t, errors.Is(err, domain.ErrTooManyAttempts))
	f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

// --- end to end with the real otp service ---

type memStore struct {
	mu   sync.Mutex
	recs map[string]domain.OTPRecord
}

func newMemStore() *memStore { return &memStore{recs: map[string]domain.OTPRecord{}} }

func key(email string, p domain.OTPPurpose) string { return string(p) + "|" + email }

func (m *memStore) Put(_ context.Context, r *domain.OTPRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[key(r.Email, r.Purpose)] = *r
	return nil
}
func (m *memStore) Get(_ context.Context, email string, p domain.OTPPurpose) (*domain.OTPRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[key(email, p)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}
func (m *memStore) DecrementAttempts(_ context.Context, email string, p domain.OTPPurpose) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[key(email, p)]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if r.AttemptsRemaining <= 0 {
		return -1, nil
	}
	r.AttemptsRemaining--
	m.recs[key(email, p)] = r
	return r.AttemptsRemaining, nil
}
func (m *memStore) Delete(_ context.Context, email string, p domain.OTPPurpose) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.recs[key(email, p)]
	delete(m.recs, key(email, p))
	return ok, nil
}

var codeRe = regexp.MustCompile(`\b(\d{6})\b`)

func TestSignInFlow_SendThenSignIn(t *testing.T) {
	f := newFixture()
	logger, _ := test.NewNullLogger()
	otpSvc := otp.NewService(otp.ServiceDeps{Store: newMemStore(), Config: defaultCfg(), Logger: logger})

	var sent string
	f.users.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, domain.ErrNotFound)
	f.users.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.mailer.On("SendEmail", "new@example.com", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = codeRe.FindStringSubmatch(args.String(2))[1]
	}).Return(nil)
	f.sessions.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(&domain.AuthResult{Bearer: "bearer"}, nil)

	svc := NewService(ServiceDeps{
		OTP: otpSvc, UserRepo: f.users, SessionRepo: f.sessRepo, Sessions: f.sessions,
		Mailer: f.mailer, Publisher: f.pub, Logger: logger, Config: defaultCfg(), AppName: "Acme",
	})
	ctx := context.Background()

	require.NoError(t, svc.SendVerificationOTP(ctx, "new@example.com", domain.PurposeSignIn))
	require.Len(t, sent, 6)

	res, err := svc.SignInEmailOTP(ctx, SignInEmailOTPRequest{Email: "new@example.com", OTP: sent}, domain.ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, "bearer", res.Bearer)

	// The code is single use.
	_, err = svc.SignInEmailOTP(ctx, SignInEmailOTPRequest{Email: "new@example.com", OTP: sent}, domain.ClientMeta{})
	assert.True(t, errors.Is(err, domain.ErrInvalidOTP))
}
