package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	iauth "github.com/intervia/intervia/internal/auth"
	"github.com/intervia/intervia/internal/database/testutil"
	"github.com/intervia/intervia/internal/models"
	"github.com/intervia/intervia/pkg/crypto"
	apperrors "github.com/intervia/intervia/pkg/errors"
	"github.com/intervia/intervia/pkg/mail"
)

type fakeMailer struct {
	messages []mail.Message
	fail     error
}

func (f *fakeMailer) Send(ctx context.Context, msg mail.Message) error {
	if f.fail != nil {
		return f.fail
	}
	f.messages = append(f.messages, msg)
	return nil
}

// The code is read from the highlighted span, never from the surrounding
// markup (the style block carries digit runs of its own, e.g. hex colors).
var otpPattern = regexp.MustCompile(`class="code">(\d{6})<`)

func (f *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.messages)
	match := otpPattern.FindStringSubmatch(f.messages[len(f.messages)-1].Body)
	require.Len(t, match, 2)
	return match[1]
}

type authEnv struct {
	svc    *AuthService
	jwt    *iauth.JWTService
	mailer *fakeMailer
	now    time.Time
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret: "test-suite-super-secret-key-32-bytes!!",
		Issuer: "test-suite",
	})
	require.NoError(t, err)

	env := &authEnv{
		jwt:    jwtSvc,
		mailer: &fakeMailer{},
		now:    time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC),
	}

	env.svc, err = NewAuthService(db, jwtSvc, env.mailer, WithClock(func() time.Time { return env.now }))
	require.NoError(t, err)

	return env
}

func TestRequestSignupOTPCreateAndResend(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()
	email := "resend@example.com"

	msg, err := env.svc.RequestSignupOTP(ctx, email)
	require.NoError(t, err)
	require.Equal(t, "OTP sent successfully", msg)
	firstCode := env.mailer.lastCode(t)

	msg, err = env.svc.RequestSignupOTP(ctx, email)
	require.NoError(t, err)
	require.Equal(t, "OTP updated successfully", msg)
	secondCode := env.mailer.lastCode(t)

	var count int64
	require.NoError(t, env.svc.db.Model(&models.Otp{}).Where("email = ?", email).Count(&count).Error)
	require.EqualValues(t, 1, count)

	// Only the most recently issued code verifies.
	if firstCode != secondCode {
		_, err = env.svc.VerifyOTPAndRegister(ctx, VerifyOTPInput{
			Email: email, OTP: firstCode, Password: "P@ssw0rd1", Name: "Resend",
		})
		require.ErrorIs(t, err, ErrOTPInvalid)
	}

	result, err := env.svc.VerifyOTPAndRegister(ctx, VerifyOTPInput{
		Email: email, OTP: secondCode, Password: "P@ssw0rd1", Name: "Resend",
	})
	require.NoError(t, err)
	require.Equal(t, "Signup successful", result.Message)
}

func TestRequestSignupOTPExistingUser(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.db.Create(&models.User{
		Email: "taken@example.com", Password: "x", Name: "Taken",
	}).Error)

	_, err := env.svc.RequestSignupOTP(ctx, "taken@example.com")
	require.ErrorIs(t, err, ErrUserExists)
}

func TestRequestSignupOTPMailFailureKeepsRow(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()
	env.mailer.fail = errors.New("smtp: connection refused")

	_, err := env.svc.RequestSignupOTP(ctx, "unreachable@example.com")
	require.ErrorIs(t, err, ErrEmailSendFailed)

	// The stored code is not rolled back on mail failure.
	var count int64
	require.NoError(t, env.svc.db.Model(&models.Otp{}).Where("email = ?", "unreachable@example.com").Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestVerifyOTPMissingRow(t *testing.T) {
	env := newAuthEnv(t)

	_, err := env.svc.VerifyOTPAndRegister(context.Background(), VerifyOTPInput{
		Email: "nobody@example.com", OTP: "123456", Password: "P@ssw0rd1", Name: "Nobody",
	})
	require.ErrorIs(t, err, ErrOTPNotFound)
}

func TestVerifyOTPWrongAndExpiredAreIndistinguishable(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()
	email := "expiry@example.com"

	_, err := env.svc.RequestSignupOTP(ctx, email)
	require.NoError(t, err)
	code := env.mailer.lastCode(t)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	_, wrongErr := env.svc.VerifyOTPAndRegister(ctx, VerifyOTPInput{
		Email: email, OTP: wrong, Password: "P@ssw0rd1", Name: "E",
	})
	require.ErrorIs(t, wrongErr, ErrOTPInvalid)

	// Correct code after expiry fails with the very same error.
	env.now = env.now.Add(6 * time.Minute)
	_, expiredErr := env.svc.VerifyOTPAndRegister(ctx, VerifyOTPInput{
		Email: email, OTP: code, Password: "P@ssw0rd1", Name: "E",
	})
	require.ErrorIs(t, expiredErr, ErrOTPInvalid)
	require.Equal(t, wrongErr.Error(), expiredErr.Error())

	// Failed attempts never create an account.
	var count int64
	require.NoError(t, env.svc.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error)
	require.Zero(t, count)
}

func TestVerifyOTPCreatesUserAndConsumesCode(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()
	email := "new@example.com"

	_, err := env.svc.RequestSignupOTP(ctx, email)
	require.NoError(t, err)
	code := env.mailer.lastCode(t)

	result, err := env.svc.VerifyOTPAndRegister(ctx, VerifyOTPInput{
		Email:    email,
		OTP:      code,
		Password: "P@ssw0rd1",
		Name:     "New User",
		ImgURL:   "https://cdn.example.com/a.png",
	})
	require.NoError(t, err)
	require.Equal(t, "Signup successful", result.Message)
	require.NotEmpty(t, result.RefreshToken)

	var users []models.User
	require.NoError(t, env.svc.db.Where("email = ?", email).Find(&users).Error)
	require.Len(t, users, 1)
	require.NotEqual(t, "P@ssw0rd1", users[0].Password)
	require.True(t, crypto.VerifyPassword(users[0].Password, "P@ssw0rd1"))
	require.Equal(t, "New User", users[0].Name)

	var otps int64
	require.NoError(t, env.svc.db.Model(&models.Otp{}).Where("email = ?", email).Count(&otps).Error)
	require.Zero(t, otps)

	claims, err := env.jwt.ValidateToken(result.Token)
	require.NoError(t, err)
	require.Equal(t, users[0].ID, claims.UserID)
}

func TestVerifyOTPExistingUser(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.db.Create(&models.User{
		Email: "already@example.com", Password: "x", Name: "A",
	}).Error)

	_, err := env.svc.VerifyOTPAndRegister(ctx, VerifyOTPInput{
		Email: "already@example.com", OTP: "123456", Password: "P@ssw0rd1", Name: "A",
	})
	require.ErrorIs(t, err, ErrUserExists)
}

func TestLoginBranches(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()

	hashed, err := crypto.HashPassword("P@ssw0rd1")
	require.NoError(t, err)
	user := &models.User{Email: "login@example.com", Password: hashed, Name: "L"}
	require.NoError(t, env.svc.db.Create(user).Error)

	_, err = env.svc.Login(ctx, "unknown@example.com", "P@ssw0rd1")
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = env.svc.Login(ctx, "login@example.com", "wrong-password")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	result, err := env.svc.Login(ctx, "login@example.com", "P@ssw0rd1")
	require.NoError(t, err)
	require.Equal(t, "Login successful", result.Message)

	claims, err := env.jwt.ValidateToken(result.Token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
}

func TestRefresh(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()

	refresh, err := env.jwt.GenerateRefreshToken("user-42")
	require.NoError(t, err)

	access, err := env.svc.Refresh(ctx, refresh)
	require.NoError(t, err)

	claims, err := env.jwt.ValidateToken(access)
	require.NoError(t, err)
	require.Equal(t, "user-42", claims.UserID)
}

func TestRefreshRejectsGarbage(t *testing.T) {
	env := newAuthEnv(t)

	_, err := env.svc.Refresh(context.Background(), "not-a-token")
	appErr := apperrors.FromError(err)
	require.Equal(t, apperrors.ErrUnauthorized.Code, appErr.Code)
	require.Equal(t, 401, appErr.StatusCode)
}

func TestSignupScenarioEndToEnd(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()
	email := "a@x.com"

	_, err := env.svc.RequestSignupOTP(ctx, email)
	require.NoError(t, err)
	code := env.mailer.lastCode(t)

	wrong := "999999"
	if wrong == code {
		wrong = "999998"
	}
	_, err = env.svc.VerifyOTPAndRegister(ctx, VerifyOTPInput{
		Email: email, OTP: wrong, Password: "P@ssw0rd1", Name: "Ada",
	})
	require.ErrorIs(t, err, ErrOTPInvalid)

	var count int64
	require.NoError(t, env.svc.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error)
	require.Zero(t, count)

	result, err := env.svc.VerifyOTPAndRegister(ctx, VerifyOTPInput{
		Email: email, OTP: code, Password: "P@ssw0rd1", Name: "Ada",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)

	login, err := env.svc.Login(ctx, email, "P@ssw0rd1")
	require.NoError(t, err)
	require.Equal(t, "Login successful", login.Message)
}
