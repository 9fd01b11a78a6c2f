// Package session manages the two signed cookie sessions used by the web
// layer: the login session, which only carries a server side session id,
// and the short lived verification session used while a challenge is in
// flight (signup, password reset, pending 2FA).
package session

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Cookie names registered with sessions.Many in the web server.
const (
	LoginCookie  = "resumaker"
	VerifyCookie = "resumaker_verify"
)

const (
	sessionID    = "SESSION_ID"
	verifiedTime = "VERIFIED_TIME"

	unverifiedSessionID   = "UNVERIFIED_SESSION_ID"
	rememberMe            = "REMEMBER_ME"
	onboardingEmail       = "ONBOARDING_EMAIL"
	resetPasswordUsername = "RESET_PASSWORD_USERNAME"
	newEmail              = "NEW_EMAIL"
	prestashedProfile     = "PRESTASHED_PROFILE"
)

// SetSessionID stores the server side session id in the login cookie.
// remember controls whether the cookie survives the browser session.
func SetSessionID(c *gin.Context, id string, remember bool, maxAge int) error {
	s := sessions.DefaultMany(c, LoginCookie)
	s.Set(sessionID, id)
	age := maxAge
	if !remember {
		age = 0
	}
	s.Options(sessions.Options{
		Path:     "/",
		MaxAge:   age,
		HttpOnly: true,
	})
	return s.Save()
}

// GetSessionID returns the session id from the login cookie, or "".
func GetSessionID(c *gin.Context) string {
	s := sessions.DefaultMany(c, LoginCookie)
	if obj := s.Get(sessionID); obj != nil {
		if id, ok := obj.(string); ok {
			return id
		}
	}
	return ""
}

// SetVerifiedTime records when the user last passed a 2FA check.
func SetVerifiedTime(c *gin.Context, unixTime int64) error {
	s := sessions.DefaultMany(c, LoginCookie)
	s.Set(verifiedTime, unixTime)
	return s.Save()
}

// GetVerifiedTime returns the unix time of the last 2FA check, or 0.
func GetVerifiedTime(c *gin.Context) int64 {
	s := sessions.DefaultMany(c, LoginCookie)
	if obj := s.Get(verifiedTime); obj != nil {
		if t, ok := obj.(int64); ok {
			return t
		}
	}
	return 0
}

// ClearSession drops the login cookie entirely.
func ClearSession(c *gin.Context) error {
	s := sessions.DefaultMany(c, LoginCookie)
	s.Clear()
	s.Options(sessions.Options{
		Path:   "/",
		MaxAge: -1,
	})
	if err := s.Save(); err != nil {
		return err
	}
	c.SetCookie(LoginCookie, "", -1, "/", "", false, true)
	return nil
}

// StageUnverifiedSession parks a freshly created session id in the verify
// cookie until the user answers the 2FA challenge.
func StageUnverifiedSession(c *gin.Context, id string, remember bool, maxAge int) error {
	s := sessions.DefaultMany(c, VerifyCookie)
	s.Set(unverifiedSessionID, id)
	s.Set(rememberMe, remember)
	s.Options(sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
	})
	return s.Save()
}

// GetUnverifiedSession returns the staged session id and remember flag.
func GetUnverifiedSession(c *gin.Context) (string, bool) {
	s := sessions.DefaultMany(c, VerifyCookie)
	id, _ := s.Get(unverifiedSessionID).(string)
	remember, _ := s.Get(rememberMe).(bool)
	return id, remember
}

// SetOnboardingEmail records the verified email while signup completes.
func SetOnboardingEmail(c *gin.Context, email string, maxAge int) error {
	s := sessions.DefaultMany(c, VerifyCookie)
	s.Set(onboardingEmail, email)
	s.Options(sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
	})
	return s.Save()
}

// GetOnboardingEmail returns the email staged for onboarding, or "".
func GetOnboardingEmail(c *gin.Context) string {
	s := sessions.DefaultMany(c, VerifyCookie)
	email, _ := s.Get(onboardingEmail).(string)
	return email
}

// SetResetPasswordUsername records whose password is being reset.
func SetResetPasswordUsername(c *gin.Context, username string, maxAge int) error {
	s := sessions.DefaultMany(c, VerifyCookie)
	s.Set(resetPasswordUsername, username)
	s.Options(sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
	})
	return s.Save()
}

// GetResetPasswordUsername returns the username staged for a reset, or "".
func GetResetPasswordUsername(c *gin.Context) string {
	s := sessions.DefaultMany(c, VerifyCookie)
	username, _ := s.Get(resetPasswordUsername).(string)
	return username
}

// SetNewEmail records the address an email change should land on.
func SetNewEmail(c *gin.Context, email string, maxAge int) error {
	s := sessions.DefaultMany(c, VerifyCookie)
	s.Set(newEmail, email)
	s.Options(sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
	})
	return s.Save()
}

// GetNewEmail returns the staged replacement email, or "".
func GetNewEmail(c *gin.Context) string {
	s := sessions.DefaultMany(c, VerifyCookie)
	email, _ := s.Get(newEmail).(string)
	return email
}

// SetPrestashedProfile stores an OAuth profile (as JSON) so onboarding
// can prefill and then create the connection.
func SetPrestashedProfile(c *gin.Context, profileJSON string, maxAge int) error {
	s := sessions.DefaultMany(c, VerifyCookie)
	s.Set(prestashedProfile, profileJSON)
	s.Options(sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
	})
	return s.Save()
}

// GetPrestashedProfile returns the staged OAuth profile JSON, or "".
func GetPrestashedProfile(c *gin.Context) string {
	s := sessions.DefaultMany(c, VerifyCookie)
	profile, _ := s.Get(prestashedProfile).(string)
	return profile
}

// ClearVerifySession drops the verification cookie.
func ClearVerifySession(c *gin.Context) error {
	s := sessions.DefaultMany(c, VerifyCookie)
	s.Clear()
	s.Options(sessions.Options{
		Path:   "/",
		MaxAge: -1,
	})
	if err := s.Save(); err != nil {
		return err
	}
	c.SetCookie(VerifyCookie, "", -1, "/", "", false, true)
	return nil
}
