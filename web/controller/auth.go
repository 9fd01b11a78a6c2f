package controller

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/RibkiAnas/resumaker/database"
	"github.com/RibkiAnas/resumaker/logger"
	"github.com/RibkiAnas/resumaker/web/service"
	"github.com/RibkiAnas/resumaker/web/session"

	"github.com/gin-gonic/gin"
)

// verifySessionMaxAge bounds how long an in-flight challenge (signup,
// reset, pending 2FA) may take, in seconds.
const verifySessionMaxAge = 10 * 60

var (
	emailRegex    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
)

// SignupForm starts signup with just an email address.
type SignupForm struct {
	Email string `json:"email" form:"email"`
}

// VerifyForm submits a one-time code for an email challenge.
type VerifyForm struct {
	Type   string `json:"type" form:"type"`
	Target string `json:"target" form:"target"`
	Code   string `json:"code" form:"code"`
}

// OnboardingForm completes signup once the email is verified.
type OnboardingForm struct {
	Username string `json:"username" form:"username"`
	Name     string `json:"name" form:"name"`
	Password string `json:"password" form:"password"`
	Remember bool   `json:"remember" form:"remember"`
}

// LoginForm represents the login request structure.
type LoginForm struct {
	Login    string `json:"login" form:"login"`
	Password string `json:"password" form:"password"`
	Remember bool   `json:"remember" form:"remember"`
}

// TwoFAForm submits an authenticator code.
type TwoFAForm struct {
	Code string `json:"code" form:"code"`
}

// ForgotPasswordForm asks for a reset code by username or email.
type ForgotPasswordForm struct {
	Login string `json:"login" form:"login"`
}

// ResetPasswordForm sets the new password after a verified reset.
type ResetPasswordForm struct {
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

// AuthController handles signup, verification, login, 2FA and password
// reset.
type AuthController struct {
	BaseController

	settingService      service.SettingService
	userService         service.UserService
	sessionService      service.SessionService
	verificationService service.VerificationService
	connectionService   service.ConnectionService
	emailService        service.EmailService
}

// NewAuthController creates an AuthController and initializes its routes.
func NewAuthController(g *gin.RouterGroup) *AuthController {
	a := &AuthController{}
	a.initRouter(g)
	return a
}

func (a *AuthController) initRouter(g *gin.RouterGroup) {
	g.POST("/signup", a.signup)
	// GET serves the emailed magic link, POST the typed-in code
	g.GET("/verify", a.verify)
	g.POST("/verify", a.verify)
	g.POST("/onboarding", a.onboarding)
	g.POST("/onboarding/:provider", a.onboardingProvider)
	g.POST("/login", a.login)
	g.POST("/2fa", a.twoFA)
	g.POST("/logout", a.logout)
	g.GET("/logout", a.logout)
	g.POST("/forgot-password", a.forgotPassword)
	g.POST("/reset-password", a.resetPassword)
}

// signup starts account creation by emailing a code to the address. The
// response is identical whether or not the address already has an
// account, so signup cannot be used to enumerate users.
func (a *AuthController) signup(c *gin.Context) {
	var form SignupForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusOK, false, "invalid form data")
		return
	}
	email := strings.ToLower(strings.TrimSpace(form.Email))
	if !emailRegex.MatchString(email) {
		pureJsonMsg(c, http.StatusOK, false, "invalid email address")
		return
	}

	if _, err := a.userService.GetUserByEmail(email); err == nil {
		// Existing accounts get a notice instead of a signup code
		err := a.emailService.SendEmail(c.Request.Context(), email,
			"You already have a Resumaker account",
			"", "Someone (hopefully you) tried to sign up with this email, but an account already exists. You can log in or reset your password instead.")
		if err != nil {
			logger.Warning("signup notice email failed:", err)
		}
		jsonMsg(c, "check your email for a verification code", nil)
		return
	}

	code, err := a.verificationService.PrepareVerification(service.VerificationOnboarding, email, service.DefaultCodePeriod)
	if err != nil {
		jsonMsg(c, "signup", err)
		return
	}

	err = a.emailService.SendVerificationEmail(c.Request.Context(), email, "signup", code,
		verifyURL(c, service.VerificationOnboarding, email, code))
	if err != nil {
		jsonMsg(c, "send verification email", err)
		return
	}

	jsonMsg(c, "check your email for a verification code", nil)
}

// verify checks an emailed code. Wrong, expired and unknown codes all
// produce the same "invalid code" answer.
func (a *AuthController) verify(c *gin.Context) {
	var form VerifyForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusOK, false, "invalid form data")
		return
	}
	target := strings.ToLower(strings.TrimSpace(form.Target))

	switch form.Type {
	case service.VerificationOnboarding:
		a.verifyOnboarding(c, target, form.Code)
	case service.VerificationResetPassword:
		a.verifyResetPassword(c, target, form.Code)
	case service.VerificationChangeEmail:
		a.verifyChangeEmail(c, target, form.Code)
	case service.VerificationTwoFA:
		a.completeTwoFA(c, form.Code)
	default:
		pureJsonMsg(c, http.StatusOK, false, "invalid code")
	}
}

func (a *AuthController) verifyOnboarding(c *gin.Context, target, code string) {
	valid, err := a.verificationService.ValidateCode(service.VerificationOnboarding, target, code)
	if err != nil {
		jsonMsg(c, "verify", err)
		return
	}
	if !valid {
		pureJsonMsg(c, http.StatusOK, false, "invalid code")
		return
	}

	if err := session.SetOnboardingEmail(c, target, verifySessionMaxAge); err != nil {
		jsonMsg(c, "verify", err)
		return
	}
	jsonObj(c, gin.H{"redirect": "onboarding"}, nil)
}

func (a *AuthController) verifyResetPassword(c *gin.Context, target, code string) {
	valid, err := a.verificationService.ValidateCode(service.VerificationResetPassword, target, code)
	if err != nil {
		jsonMsg(c, "verify", err)
		return
	}
	if !valid {
		pureJsonMsg(c, http.StatusOK, false, "invalid code")
		return
	}

	user, err := a.userService.GetUserByLogin(target)
	if err != nil {
		// The account disappeared between request and verify
		pureJsonMsg(c, http.StatusOK, false, "invalid code")
		return
	}

	if err := session.SetResetPasswordUsername(c, user.Username, verifySessionMaxAge); err != nil {
		jsonMsg(c, "verify", err)
		return
	}
	jsonObj(c, gin.H{"redirect": "reset-password"}, nil)
}

func (a *AuthController) verifyChangeEmail(c *gin.Context, target, code string) {
	valid, err := a.verificationService.ValidateCode(service.VerificationChangeEmail, target, code)
	if err != nil {
		jsonMsg(c, "verify", err)
		return
	}
	if !valid {
		pureJsonMsg(c, http.StatusOK, false, "invalid code")
		return
	}

	newEmail := session.GetNewEmail(c)
	if newEmail == "" {
		pureJsonMsg(c, http.StatusOK, false, "email change session expired, start over")
		return
	}

	// target is the user id for change-email challenges
	user, err := a.userService.GetUser(target)
	if err != nil {
		jsonMsg(c, "verify", err)
		return
	}
	oldEmail := user.Email

	if err := a.userService.UpdateEmail(target, newEmail); err != nil {
		jsonMsg(c, "change email", err)
		return
	}
	session.ClearVerifySession(c)

	err = a.emailService.SendEmail(c.Request.Context(), oldEmail,
		"Your Resumaker email was changed",
		"", fmt.Sprintf("The email on your account was changed to %s. If this wasn't you, contact support immediately.", newEmail))
	if err != nil {
		logger.Warning("email change notice failed:", err)
	}

	logger.Infof("user %s changed email, IP: %s", user.Username, getRemoteIp(c))
	jsonMsg(c, "email changed", nil)
}

// onboarding finishes signup for a verified email address.
func (a *AuthController) onboarding(c *gin.Context) {
	email := session.GetOnboardingEmail(c)
	if email == "" {
		pureJsonMsg(c, http.StatusOK, false, "signup session expired, start over")
		return
	}

	var form OnboardingForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusOK, false, "invalid form data")
		return
	}
	if !usernameRegex.MatchString(form.Username) {
		pureJsonMsg(c, http.StatusOK, false, "username must be 3-20 letters, digits or underscores")
		return
	}
	if len(form.Password) < 8 {
		pureJsonMsg(c, http.StatusOK, false, "password must be at least 8 characters")
		return
	}
	if _, err := a.userService.GetUserByUsername(form.Username); err == nil {
		pureJsonMsg(c, http.StatusOK, false, "username is already taken")
		return
	}

	user, err := a.userService.CreateUser(email, form.Username, form.Name, form.Password)
	if err != nil {
		jsonMsg(c, "create account", err)
		return
	}

	a.startSession(c, user.ID, form.Remember)
}

// onboardingProvider finishes signup for an OAuth profile stashed by the
// callback. No password is set; the connection is the login method.
func (a *AuthController) onboardingProvider(c *gin.Context) {
	provider := c.Param("provider")
	if provider != "github" {
		pureJsonMsg(c, http.StatusOK, false, "unknown provider")
		return
	}

	profileJSON := session.GetPrestashedProfile(c)
	email := session.GetOnboardingEmail(c)
	if profileJSON == "" || email == "" {
		pureJsonMsg(c, http.StatusOK, false, "signup session expired, start over")
		return
	}

	var profile service.GitHubProfile
	if err := json.Unmarshal([]byte(profileJSON), &profile); err != nil {
		jsonMsg(c, "onboarding", err)
		return
	}

	var form OnboardingForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusOK, false, "invalid form data")
		return
	}
	if !usernameRegex.MatchString(form.Username) {
		pureJsonMsg(c, http.StatusOK, false, "username must be 3-20 letters, digits or underscores")
		return
	}
	if _, err := a.userService.GetUserByUsername(form.Username); err == nil {
		pureJsonMsg(c, http.StatusOK, false, "username is already taken")
		return
	}

	user, err := a.userService.CreateUser(email, form.Username, form.Name, "")
	if err != nil {
		jsonMsg(c, "create account", err)
		return
	}

	if _, err := a.connectionService.CreateConnection(user.ID, provider, profile.ID); err != nil {
		jsonMsg(c, "link account", err)
		return
	}

	a.startSession(c, user.ID, form.Remember)
}

// startSession opens a DB session, sets the login cookie and drops the
// verify cookie.
func (a *AuthController) startSession(c *gin.Context, userID string, remember bool) {
	dbSession, err := a.sessionService.CreateSession(userID)
	if err != nil {
		jsonMsg(c, "create session", err)
		return
	}

	maxAgeDays, err := a.settingService.GetSessionMaxAge()
	if err != nil {
		logger.Warning("unable to get session max age:", err)
		maxAgeDays = 30
	}

	if err := session.SetSessionID(c, dbSession.ID, remember, maxAgeDays*24*60*60); err != nil {
		jsonMsg(c, "save session", err)
		return
	}
	session.ClearVerifySession(c)

	jsonMsg(c, "logged in successfully", nil)
}

// login authenticates a password and, when 2FA is enrolled, parks the
// new session behind a verification challenge instead of activating it.
func (a *AuthController) login(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusOK, false, "invalid form data")
		return
	}
	if form.Login == "" {
		pureJsonMsg(c, http.StatusOK, false, "please enter your username or email")
		return
	}
	if form.Password == "" {
		pureJsonMsg(c, http.StatusOK, false, "please enter your password")
		return
	}

	user := a.userService.CheckUser(form.Login, form.Password)
	if user == nil {
		logger.Warningf("failed login for %q, IP: %s", form.Login, getRemoteIp(c))
		pureJsonMsg(c, http.StatusOK, false, "invalid username or password")
		return
	}

	dbSession, err := a.sessionService.CreateSession(user.ID)
	if err != nil {
		jsonMsg(c, "create session", err)
		return
	}

	if a.needsTwoFA(c, user.ID) {
		err := session.StageUnverifiedSession(c, dbSession.ID, form.Remember, verifySessionMaxAge)
		if err != nil {
			jsonMsg(c, "login", err)
			return
		}
		jsonObj(c, gin.H{"requiresTwoFA": true, "redirect": "verify"}, nil)
		return
	}

	maxAgeDays, err := a.settingService.GetSessionMaxAge()
	if err != nil {
		logger.Warning("unable to get session max age:", err)
		maxAgeDays = 30
	}
	if err := session.SetSessionID(c, dbSession.ID, form.Remember, maxAgeDays*24*60*60); err != nil {
		jsonMsg(c, "save session", err)
		return
	}

	logger.Infof("%s logged in successfully, IP: %s", user.Username, getRemoteIp(c))
	jsonMsg(c, "logged in successfully", nil)
}

// twoFA serves two cases with one endpoint: completing a staged login,
// and re-verifying an already logged in user before a sensitive action.
func (a *AuthController) twoFA(c *gin.Context) {
	var form TwoFAForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusOK, false, "invalid form data")
		return
	}
	a.completeTwoFA(c, form.Code)
}

// completeTwoFA is shared by the /2fa endpoint and verify requests that
// carry the 2fa type.
func (a *AuthController) completeTwoFA(c *gin.Context, code string) {
	// Logged in: a correct code refreshes the verified-time marker.
	if sessionID := session.GetSessionID(c); sessionID != "" {
		dbSession, err := a.sessionService.GetValidSession(sessionID)
		if err == nil {
			a.reverify(c, dbSession.UserID, code)
			return
		}
		session.ClearSession(c)
	}

	// Otherwise this must be a staged login.
	stagedID, remember := session.GetUnverifiedSession(c)
	if stagedID == "" {
		pureJsonMsg(c, http.StatusOK, false, "verification session expired, log in again")
		return
	}

	dbSession, err := a.sessionService.GetValidSession(stagedID)
	if err != nil {
		session.ClearVerifySession(c)
		pureJsonMsg(c, http.StatusOK, false, "verification session expired, log in again")
		return
	}

	valid, err := a.verificationService.ValidateCode(service.VerificationTwoFA, dbSession.UserID, code)
	if err != nil {
		jsonMsg(c, "verify", err)
		return
	}
	if !valid {
		pureJsonMsg(c, http.StatusOK, false, "invalid code")
		return
	}

	maxAgeDays, err := a.settingService.GetSessionMaxAge()
	if err != nil {
		logger.Warning("unable to get session max age:", err)
		maxAgeDays = 30
	}
	if err := session.SetSessionID(c, dbSession.ID, remember, maxAgeDays*24*60*60); err != nil {
		jsonMsg(c, "save session", err)
		return
	}
	if err := session.SetVerifiedTime(c, time.Now().Unix()); err != nil {
		jsonMsg(c, "save session", err)
		return
	}
	session.ClearVerifySession(c)

	jsonMsg(c, "logged in successfully", nil)
}

func (a *AuthController) reverify(c *gin.Context, userID, code string) {
	valid, err := a.verificationService.ValidateCode(service.VerificationTwoFA, userID, code)
	if err != nil {
		jsonMsg(c, "verify", err)
		return
	}
	if !valid {
		pureJsonMsg(c, http.StatusOK, false, "invalid code")
		return
	}
	if err := session.SetVerifiedTime(c, time.Now().Unix()); err != nil {
		jsonMsg(c, "save session", err)
		return
	}
	jsonMsg(c, "identity verified", nil)
}

// logout deletes the DB session and clears the cookie.
func (a *AuthController) logout(c *gin.Context) {
	if sessionID := session.GetSessionID(c); sessionID != "" {
		if err := a.sessionService.DeleteSession(sessionID); err != nil {
			logger.Warning("delete session failed:", err)
		}
	}
	session.ClearSession(c)
	session.ClearVerifySession(c)

	if isAjax(c) {
		jsonMsg(c, "logged out", nil)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, c.GetString("base_path"))
}

// forgotPassword emails a reset code. The response never reveals
// whether the account exists.
func (a *AuthController) forgotPassword(c *gin.Context) {
	var form ForgotPasswordForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusOK, false, "invalid form data")
		return
	}
	login := strings.ToLower(strings.TrimSpace(form.Login))

	user, err := a.userService.GetUserByLogin(login)
	if err != nil {
		if !database.IsNotFound(err) {
			logger.Warning("forgot password lookup failed:", err)
		}
		jsonMsg(c, "if that account exists, a reset code is on its way", nil)
		return
	}

	code, err := a.verificationService.PrepareVerification(service.VerificationResetPassword, user.Username, service.DefaultCodePeriod)
	if err != nil {
		jsonMsg(c, "forgot password", err)
		return
	}

	err = a.emailService.SendVerificationEmail(c.Request.Context(), user.Email, "password reset", code,
		verifyURL(c, service.VerificationResetPassword, user.Username, code))
	if err != nil {
		jsonMsg(c, "send reset email", err)
		return
	}

	jsonMsg(c, "if that account exists, a reset code is on its way", nil)
}

// resetPassword sets the new password after the code was verified, then
// logs the user out everywhere.
func (a *AuthController) resetPassword(c *gin.Context) {
	username := session.GetResetPasswordUsername(c)
	if username == "" {
		pureJsonMsg(c, http.StatusOK, false, "reset session expired, start over")
		return
	}

	var form ResetPasswordForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusOK, false, "invalid form data")
		return
	}
	if len(form.Password) < 8 {
		pureJsonMsg(c, http.StatusOK, false, "password must be at least 8 characters")
		return
	}
	if form.Password != form.ConfirmPassword {
		pureJsonMsg(c, http.StatusOK, false, "passwords do not match")
		return
	}

	user, err := a.userService.GetUserByUsername(username)
	if err != nil {
		jsonMsg(c, "reset password", err)
		return
	}

	if err := a.userService.SetPassword(user.ID, form.Password); err != nil {
		jsonMsg(c, "reset password", err)
		return
	}
	if err := a.sessionService.DeleteUserSessions(user.ID); err != nil {
		logger.Warning("sign out sessions after reset failed:", err)
	}
	session.ClearVerifySession(c)

	logger.Infof("%s reset their password, IP: %s", user.Username, getRemoteIp(c))
	jsonObj(c, gin.H{"redirect": "login"}, nil)
}
