package controller

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RibkiAnas/resumaker/database"
	"github.com/RibkiAnas/resumaker/database/model"
	"github.com/RibkiAnas/resumaker/web/service"
	"github.com/RibkiAnas/resumaker/web/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
)

// fakeGitHub answers the exchange with a canned profile so the callback
// branches can run without talking to GitHub.
type fakeGitHub struct {
	profile *service.GitHubProfile
	err     error
}

func (f *fakeGitHub) Enabled() bool { return true }

func (f *fakeGitHub) GitHubConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{RedirectURL: redirectURL}
}

func (f *fakeGitHub) Exchange(ctx context.Context, redirectURL, code string) (*service.GitHubProfile, error) {
	return f.profile, f.err
}

// newOAuthTestEngine wires the oauth and auth controllers the way the
// server does, with the exchange stubbed out.
func newOAuthTestEngine(profile *service.GitHubProfile) *gin.Engine {
	engine := newTestEngine()
	engine.GET("/seed", func(c *gin.Context) {
		if id := c.Query("sessionId"); id != "" {
			_ = session.SetSessionID(c, id, true, 86400)
		}
		c.Status(http.StatusOK)
	})
	oauth := NewOAuthController(engine.Group("auth"))
	oauth.oauthService = &fakeGitHub{profile: profile}
	NewAuthController(engine.Group("api/auth"))
	return engine
}

func callbackRequest(cookies []*http.Cookie) *http.Request {
	req := httptest.NewRequest("GET", "/auth/github/callback?state=st&code=x", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "st"})
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	return req
}

func seedLogin(t *testing.T, engine *gin.Engine, sessionID string) []*http.Cookie {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/seed?sessionId="+sessionID, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	return lastCookies(w)
}

func countConnections(t *testing.T) int64 {
	var count int64
	err := database.GetDB().Model(model.Connection{}).Count(&count).Error
	assert.NoError(t, err)
	return count
}

func TestCallbackRejectsForeignConnection(t *testing.T) {
	setup()
	defer teardown()

	userService := service.UserService{}
	sessionService := service.SessionService{}
	connectionService := service.ConnectionService{}

	kody, err := userService.CreateUser("kody@example.com", "kody", "Kody", "koalas-are-great")
	assert.NoError(t, err)
	hannah, err := userService.CreateUser("hannah@example.com", "hannah", "Hannah", "h0ney-plz")
	assert.NoError(t, err)
	_, err = connectionService.CreateConnection(hannah.ID, "github", "12345")
	assert.NoError(t, err)

	kodySession, err := sessionService.CreateSession(kody.ID)
	assert.NoError(t, err)

	engine := newOAuthTestEngine(&service.GitHubProfile{ID: "12345", Login: "hannah-gh", Email: "hannah@example.com"})
	cookies := seedLogin(t, engine, kodySession.ID)

	before := countConnections(t)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, callbackRequest(cookies))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "another")

	// Nothing moved: same connection rows, still owned by hannah
	assert.Equal(t, before, countConnections(t))
	connection, err := connectionService.GetConnection("github", "12345")
	assert.NoError(t, err)
	assert.Equal(t, hannah.ID, connection.UserID)
}

func TestCallbackNoticesOwnConnection(t *testing.T) {
	setup()
	defer teardown()

	userService := service.UserService{}
	sessionService := service.SessionService{}
	connectionService := service.ConnectionService{}

	kody, err := userService.CreateUser("kody@example.com", "kody", "Kody", "koalas-are-great")
	assert.NoError(t, err)
	_, err = connectionService.CreateConnection(kody.ID, "github", "12345")
	assert.NoError(t, err)
	kodySession, err := sessionService.CreateSession(kody.ID)
	assert.NoError(t, err)

	engine := newOAuthTestEngine(&service.GitHubProfile{ID: "12345", Login: "kody-gh", Email: "kody@example.com"})
	cookies := seedLogin(t, engine, kodySession.ID)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, callbackRequest(cookies))
	assert.Contains(t, w.Body.String(), "already connected")
	assert.NotContains(t, w.Body.String(), "another")
	assert.EqualValues(t, 1, countConnections(t))
}

func TestCallbackLinksToLoggedInAccount(t *testing.T) {
	setup()
	defer teardown()

	userService := service.UserService{}
	sessionService := service.SessionService{}
	connectionService := service.ConnectionService{}

	kody, err := userService.CreateUser("kody@example.com", "kody", "Kody", "koalas-are-great")
	assert.NoError(t, err)
	kodySession, err := sessionService.CreateSession(kody.ID)
	assert.NoError(t, err)

	engine := newOAuthTestEngine(&service.GitHubProfile{ID: "12345", Login: "kody-gh", Email: "kody-gh@example.com"})
	cookies := seedLogin(t, engine, kodySession.ID)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, callbackRequest(cookies))
	assert.Contains(t, w.Body.String(), "connected")

	connection, err := connectionService.GetConnection("github", "12345")
	assert.NoError(t, err)
	assert.Equal(t, kody.ID, connection.UserID)
}

func TestCallbackLogsInConnectionOwner(t *testing.T) {
	setup()
	defer teardown()

	userService := service.UserService{}
	sessionService := service.SessionService{}
	connectionService := service.ConnectionService{}

	kody, err := userService.CreateUser("kody@example.com", "kody", "Kody", "koalas-are-great")
	assert.NoError(t, err)
	_, err = connectionService.CreateConnection(kody.ID, "github", "12345")
	assert.NoError(t, err)

	engine := newOAuthTestEngine(&service.GitHubProfile{ID: "12345", Login: "kody-gh", Email: "kody@example.com"})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, callbackRequest(nil))
	assert.Contains(t, w.Body.String(), "logged in successfully")

	count, err := sessionService.CountUserSessions(kody.ID)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestCallbackLinksByEmailMatch(t *testing.T) {
	setup()
	defer teardown()

	userService := service.UserService{}
	sessionService := service.SessionService{}
	connectionService := service.ConnectionService{}

	kody, err := userService.CreateUser("kody@example.com", "kody", "Kody", "koalas-are-great")
	assert.NoError(t, err)

	engine := newOAuthTestEngine(&service.GitHubProfile{ID: "12345", Login: "kody-gh", Email: "kody@example.com"})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, callbackRequest(nil))
	assert.Contains(t, w.Body.String(), "logged in successfully")

	connection, err := connectionService.GetConnection("github", "12345")
	assert.NoError(t, err)
	assert.Equal(t, kody.ID, connection.UserID)

	count, err := sessionService.CountUserSessions(kody.ID)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestCallbackStashesUnknownProfile(t *testing.T) {
	setup()
	defer teardown()

	engine := newOAuthTestEngine(&service.GitHubProfile{ID: "99999", Login: "stranger", Email: "stranger@example.com"})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, callbackRequest(nil))
	assert.Contains(t, w.Body.String(), "onboarding/github")
	assert.Zero(t, countConnections(t))
}

func TestCallbackStagesTwoFALogin(t *testing.T) {
	setup()
	defer teardown()

	userService := service.UserService{}
	sessionService := service.SessionService{}
	connectionService := service.ConnectionService{}
	verificationService := service.VerificationService{}

	kody, err := userService.CreateUser("kody@example.com", "kody", "Kody", "koalas-are-great")
	assert.NoError(t, err)
	_, err = connectionService.CreateConnection(kody.ID, "github", "12345")
	assert.NoError(t, err)
	secret := enrollTwoFA(t, &verificationService, kody.ID)

	engine := newOAuthTestEngine(&service.GitHubProfile{ID: "12345", Login: "kody-gh", Email: "kody@example.com"})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, callbackRequest(nil))
	assert.Contains(t, w.Body.String(), "requiresTwoFA")

	// The staged session completes through the challenge endpoint
	req := httptest.NewRequest("POST", fmt.Sprintf("/api/auth/2fa?code=%s", totpCode(secret)), nil)
	for _, ck := range lastCookies(w) {
		req.AddCookie(ck)
	}
	done := httptest.NewRecorder()
	engine.ServeHTTP(done, req)
	assert.Contains(t, done.Body.String(), "logged in successfully")

	count, err := sessionService.CountUserSessions(kody.ID)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
