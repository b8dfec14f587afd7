package notify

import (
	"fmt"
	"time"
)

const (
	SubjectActivation       = "Activate your account"
	SubjectResendActivation = "Resend of activation link"
	SubjectPasswordReset    = "Reset your password"
)

const activationBody = `Hello!

Click the link below to activate your account:

%s

If you did not create this account, you can ignore this email.
`

const resetBody = `Hello!

We received a request to reset the password for your account. Use the link below to choose a new one:

%s

The link expires in %s and can be used only once. If you did not ask for a reset, you can ignore this email.
`

func ActivationMessage(to, link string) Message {
	return Message{To: to, Subject: SubjectActivation, Body: fmt.Sprintf(activationBody, link)}
}

func ResendActivationMessage(to, link string) Message {
	return Message{To: to, Subject: SubjectResendActivation, Body: fmt.Sprintf(activationBody, link)}
}

func PasswordResetMessage(to, link string, ttl time.Duration) Message {
	return Message{To: to, Subject: SubjectPasswordReset, Body: fmt.Sprintf(resetBody, link, humanDuration(ttl))}
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
