package notify

import "fmt"

// Messages renders the notifications sent by the account flows.
type Messages struct {
	SiteName string
}

// VerificationCode is the SMS carrying an account verification code.
func (m Messages) VerificationCode(userID, mobile, code string) *Notification {
	n := New(userID, ChannelSMS, KindVerificationCode, mobile)
	n.Body = fmt.Sprintf("Your %s verification code is %s", m.SiteName, code)
	return n
}

// PasswordResetCode is the SMS carrying a password reset code.
func (m Messages) PasswordResetCode(userID, mobile, code string) *Notification {
	n := New(userID, ChannelSMS, KindPasswordResetCode, mobile)
	n.Body = fmt.Sprintf("Your %s password reset code is %s", m.SiteName, code)
	return n
}

// Welcome is the email sent after signup.
func (m Messages) Welcome(userID, email, name string) *Notification {
	n := New(userID, ChannelEmail, KindWelcome, email)
	n.Subject = fmt.Sprintf("Welcome to %s", m.SiteName)
	n.Body = fmt.Sprintf("Hi %s, thanks for signing up to %s.", name, m.SiteName)
	n.Data["name"] = name
	return n
}

// AccountDeactivated is the email sent when a user deletes their account.
func (m Messages) AccountDeactivated(userID, email, name string) *Notification {
	n := New(userID, ChannelEmail, KindAccountDeactivated, email)
	n.Subject = fmt.Sprintf("Your %s account has been deleted", m.SiteName)
	n.Body = fmt.Sprintf("Hi %s, your %s account and its data have been removed.", name, m.SiteName)
	n.Data["name"] = name
	return n
}
