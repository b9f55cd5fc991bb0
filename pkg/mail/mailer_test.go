package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSMTPClient struct {
	mailFrom string
	rcptTo   []string
	data     strings.Builder
	quit     bool
}

func (f *fakeSMTPClient) Mail(from string) error { f.mailFrom = from; return nil }
func (f *fakeSMTPClient) Rcpt(to string) error   { f.rcptTo = append(f.rcptTo, to); return nil }
func (f *fakeSMTPClient) Data() (io.WriteCloser, error) {
	return nopWriteCloser{&f.data}, nil
}
func (f *fakeSMTPClient) Quit() error                     { f.quit = true; return nil }
func (f *fakeSMTPClient) Close() error                    { return nil }
func (f *fakeSMTPClient) StartTLS(*tls.Config) error      { return nil }
func (f *fakeSMTPClient) Auth(smtp.Auth) error            { return nil }
func (f *fakeSMTPClient) Extension(string) (bool, string) { return false, "" }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func newFakeMailer(client *fakeSMTPClient) *smtpMailer {
	server, _ := net.Pipe()
	return &smtpMailer{
		cfg: SMTPSettings{
			Enabled: true,
			Host:    "mail.example.com",
			Port:    587,
			From:    "no-reply@intervia.dev",
		},
		dialFn: func(ctx context.Context, cfg SMTPSettings) (net.Conn, smtpClient, error) {
			return server, client, nil
		},
		authFn: func(smtpClient, SMTPSettings) error { return nil },
	}
}

func TestSendDisabled(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{To: []string{"user@example.com"}})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestNewSMTPMailerValidatesConfig(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.Error(t, err)

	_, err = NewSMTPMailer(SMTPSettings{Enabled: true, Host: "mail.example.com"})
	require.Error(t, err)
}

func TestSendWritesHTMLMessage(t *testing.T) {
	client := &fakeSMTPClient{}
	mailer := newFakeMailer(client)

	err := mailer.Send(context.Background(), Message{
		To:      []string{"user@example.com", "user@example.com", " "},
		Subject: "User Verification",
		Body:    OTPVerificationBody("042917", "5 minutes"),
	})
	require.NoError(t, err)

	require.Equal(t, "no-reply@intervia.dev", client.mailFrom)
	require.Equal(t, []string{"user@example.com"}, client.rcptTo)
	require.True(t, client.quit)

	payload := client.data.String()
	require.Contains(t, payload, "Subject: User Verification")
	require.Contains(t, payload, "Content-Type: text/html")
	require.Contains(t, payload, "042917")
}

func TestSendRejectsInvalidAddresses(t *testing.T) {
	mailer := newFakeMailer(&fakeSMTPClient{})

	err := mailer.Send(context.Background(), Message{To: []string{"not-an-address"}})
	require.Error(t, err)

	err = mailer.Send(context.Background(), Message{To: nil})
	require.Error(t, err)
}

func TestSendDialFailure(t *testing.T) {
	mailer := newFakeMailer(&fakeSMTPClient{})
	mailer.dialFn = func(ctx context.Context, cfg SMTPSettings) (net.Conn, smtpClient, error) {
		return nil, nil, errors.New("dial refused")
	}

	err := mailer.Send(context.Background(), Message{To: []string{"user@example.com"}})
	require.EqualError(t, err, "dial refused")
}

func TestSubjectHeaderEscaping(t *testing.T) {
	formatted := formatMessage("a@x.com", []string{"b@x.com"}, "hello\r\nBcc: evil@x.com", "<p>hi</p>")
	require.NotContains(t, formatted, "\r\nBcc:")
}

func TestTemplatesEscapeInput(t *testing.T) {
	body := OTPVerificationBody("<script>", "5 minutes")
	require.NotContains(t, body, "<script>")

	reset := PasswordResetBody("tok&en", "30 minutes")
	require.Contains(t, reset, "tok&amp;en")
}

func TestTemplatesWrapCredentialInCodeSpan(t *testing.T) {
	// Callers extract the credential from the highlighted span. A bare digit
	// scan is not safe: the style block contains hex colors like #666666.
	body := OTPVerificationBody("123456", "5 minutes")
	require.Contains(t, body, `class="code">123456<`)

	reset := PasswordResetBody("reset-token", "30 minutes")
	require.Contains(t, reset, `class="code">reset-token<`)
}
