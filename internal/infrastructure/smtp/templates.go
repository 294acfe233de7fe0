package smtp

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/go-email-otp/internal/domain"
)

type otpTemplate struct {
	subject string
	body    *template.Template
}

// OTPData is the input to every OTP mail template.
type OTPData struct {
	AppName string
	Code    string
	Expiry  time.Duration
}

// Minutes renders the expiry for humans; anything under a minute rounds up.
func (d OTPData) Minutes() int {
	m := int((d.Expiry + time.Minute - 1) / time.Minute)
	if m < 1 {
		return 1
	}
	return m
}

var otpTemplates = map[domain.OTPPurpose]otpTemplate{
	domain.PurposeSignIn: {
		subject: "Your {{.AppName}} sign-in code",
		body: template.Must(template.New("sign-in").Parse(
			"Your sign-in code is {{.Code}}.\r\n\r\nIt expires in {{.Minutes}} minute(s). If you did not try to sign in, you can ignore this email.\r\n")),
	},
	domain.PurposeEmailVerification: {
		subject: "Verify your {{.AppName}} email",
		body: template.Must(template.New("email-verification").Parse(
			"Your email verification code is {{.Code}}.\r\n\r\nIt expires in {{.Minutes}} minute(s).\r\n")),
	},
	domain.PurposeForgetPassword: {
		subject: "Reset your {{.AppName}} password",
		body: template.Must(template.New("forget-password").Parse(
			"Your password reset code is {{.Code}}.\r\n\r\nIt expires in {{.Minutes}} minute(s). If you did not request a reset, you can ignore this email.\r\n")),
	},
}

// RenderOTP returns the subject and plain-text body for purpose.
func RenderOTP(purpose domain.OTPPurpose, data OTPData) (string, string, error) {
	t, ok := otpTemplates[purpose]
	if !ok {
		return "", "", fmt.Errorf("no email template for %q", purpose)
	}
	subject, err := template.New("subject").Parse(t.subject)
	if err != nil {
		return "", "", fmt.Errorf("parse subject %s: %w", purpose, err)
	}
	var s, b bytes.Buffer
	if err := subject.Execute(&s, data); err != nil {
		return "", "", fmt.Errorf("render subject %s: %w", purpose, err)
	}
	if err := t.body.Execute(&b, data); err != nil {
		return "", "", fmt.Errorf("render body %s: %w", purpose, err)
	}
	return s.String(), b.String(), nil
}
