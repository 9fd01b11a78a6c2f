package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/RibkiAnas/resumaker/database"
	"github.com/RibkiAnas/resumaker/logger"
	"github.com/RibkiAnas/resumaker/util/random"
	"github.com/RibkiAnas/resumaker/web/service"
	"github.com/RibkiAnas/resumaker/web/session"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

const oauthStateCookie = "resumaker_oauth_state"

// gitHubOAuth is the slice of the OAuth service the controller uses.
type gitHubOAuth interface {
	Enabled() bool
	GitHubConfig(redirectURL string) *oauth2.Config
	Exchange(ctx context.Context, redirectURL, code string) (*service.GitHubProfile, error)
}

// OAuthController handles the GitHub authorization flow: the redirect
// out and the callback that decides between login, linking and signup.
type OAuthController struct {
	BaseController

	settingService      service.SettingService
	userService         service.UserService
	sessionService      service.SessionService
	verificationService service.VerificationService
	connectionService   service.ConnectionService
	oauthService        gitHubOAuth
}

// NewOAuthController creates an OAuthController and initializes its routes.
func NewOAuthController(g *gin.RouterGroup) *OAuthController {
	a := &OAuthController{oauthService: &service.OAuthService{}}
	a.initRouter(g)
	return a
}

func (a *OAuthController) initRouter(g *gin.RouterGroup) {
	g.GET("/github", a.githubRedirect)
	g.POST("/github", a.githubRedirect)
	g.GET("/github/callback", a.githubCallback)
}

func (a *OAuthController) callbackURL(c *gin.Context) string {
	scheme := "https"
	if c.Request.TLS == nil && c.GetHeader("X-Forwarded-Proto") != "https" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s%sauth/github/callback", scheme, c.Request.Host, c.GetString("base_path"))
}

// githubRedirect sends the browser to GitHub with a fresh state value.
func (a *OAuthController) githubRedirect(c *gin.Context) {
	if !a.oauthService.Enabled() {
		pureJsonMsg(c, http.StatusOK, false, "github login is not configured")
		return
	}

	state := random.Seq(32)
	c.SetCookie(oauthStateCookie, state, 600, "/", "", false, true)

	authURL := a.oauthService.GitHubConfig(a.callbackURL(c)).AuthCodeURL(state)
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// githubCallback resolves the provider identity against local accounts.
// Which branch runs depends on whether the visitor is logged in and
// whether the identity is already connected somewhere.
func (a *OAuthController) githubCallback(c *gin.Context) {
	state, err := c.Cookie(oauthStateCookie)
	if err != nil || state == "" || c.Query("state") != state {
		pureJsonMsg(c, http.StatusOK, false, "oauth state mismatch, try again")
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/", "", false, true)

	code := c.Query("code")
	if code == "" {
		pureJsonMsg(c, http.StatusOK, false, "github authorization was denied")
		return
	}

	profile, err := a.oauthService.Exchange(c.Request.Context(), a.callbackURL(c), code)
	if err != nil {
		jsonMsg(c, "github login", err)
		return
	}

	// Who, if anyone, is already logged in on this browser?
	var loggedInUserID string
	if sessionID := session.GetSessionID(c); sessionID != "" {
		if dbSession, err := a.sessionService.GetValidSession(sessionID); err == nil {
			loggedInUserID = dbSession.UserID
		}
	}

	connection, err := a.connectionService.GetConnection("github", profile.ID)
	if err != nil && !database.IsNotFound(err) {
		jsonMsg(c, "github login", err)
		return
	}
	hasConnection := err == nil

	if loggedInUserID != "" {
		if hasConnection {
			if connection.UserID == loggedInUserID {
				jsonMsg(c, "this github account is already connected", nil)
				return
			}
			pureJsonMsg(c, http.StatusOK, false,
				"this github account is already connected to another resumaker account")
			return
		}

		// Link the identity to the logged in account.
		if _, err := a.connectionService.CreateConnection(loggedInUserID, "github", profile.ID); err != nil {
			jsonMsg(c, "link github account", err)
			return
		}
		jsonMsg(c, "github account connected", nil)
		return
	}

	if hasConnection {
		a.loginWithConnection(c, connection.UserID, profile.Login)
		return
	}

	// No connection yet: a matching email means this is the same person,
	// so link and log in. The provider verified the address for us.
	if user, err := a.userService.GetUserByEmail(profile.Email); err == nil {
		if _, err := a.connectionService.CreateConnection(user.ID, "github", profile.ID); err != nil {
			jsonMsg(c, "link github account", err)
			return
		}
		a.loginWithConnection(c, user.ID, profile.Login)
		return
	}

	// New user: stash the profile and send them to onboarding.
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		jsonMsg(c, "github login", err)
		return
	}
	if err := session.SetPrestashedProfile(c, string(profileJSON), verifySessionMaxAge); err != nil {
		jsonMsg(c, "github login", err)
		return
	}
	if err := session.SetOnboardingEmail(c, profile.Email, verifySessionMaxAge); err != nil {
		jsonMsg(c, "github login", err)
		return
	}

	jsonObj(c, gin.H{"redirect": "onboarding/github"}, nil)
}

// loginWithConnection opens a session for the connection's owner,
// honoring a 2FA enrollment the same way password login does.
func (a *OAuthController) loginWithConnection(c *gin.Context, userID, providerLogin string) {
	dbSession, err := a.sessionService.CreateSession(userID)
	if err != nil {
		jsonMsg(c, "create session", err)
		return
	}

	if a.needsTwoFA(c, userID) {
		if err := session.StageUnverifiedSession(c, dbSession.ID, false, verifySessionMaxAge); err != nil {
			jsonMsg(c, "github login", err)
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
	if err := session.SetSessionID(c, dbSession.ID, false, maxAgeDays*24*60*60); err != nil {
		jsonMsg(c, "save session", err)
		return
	}

	logger.Infof("github login for %s, IP: %s", providerLogin, getRemoteIp(c))
	jsonMsg(c, "logged in successfully", nil)
}
