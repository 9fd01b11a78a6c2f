package controller

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/RibkiAnas/resumaker/web/service"
	"github.com/RibkiAnas/resumaker/web/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// newAuthTestEngine registers the auth routes plus a seed route that
// stamps the verified-time marker into the login cookie.
func newAuthTestEngine() *gin.Engine {
	engine := newTestEngine()
	engine.GET("/seed", func(c *gin.Context) {
		var verifiedAt int64
		fmt.Sscan(c.Query("verifiedAt"), &verifiedAt)
		_ = session.SetVerifiedTime(c, verifiedAt)
		c.Status(http.StatusOK)
	})
	NewAuthController(engine.Group("api/auth"))
	return engine
}

func postForm(engine *gin.Engine, path, form string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// A login only faces the challenge when the browser's last 2FA check is
// absent or stale; a fresh marker goes straight to a live session.
func TestLoginHonorsFreshTwoFAMarker(t *testing.T) {
	setup()
	defer teardown()

	userService := service.UserService{}
	verificationService := service.VerificationService{}

	user, err := userService.CreateUser("kody@example.com", "kody", "Kody", "koalas-are-great")
	assert.NoError(t, err)
	enrollTwoFA(t, &verificationService, user.ID)

	engine := newAuthTestEngine()
	credentials := "login=kody&password=koalas-are-great"

	seededCookies := func(verifiedAt int64) []*http.Cookie {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest("GET", fmt.Sprintf("/seed?verifiedAt=%d", verifiedAt), nil))
		assert.Equal(t, http.StatusOK, w.Code)
		return lastCookies(w)
	}

	// No marker at all: the challenge is required
	w := postForm(engine, "/api/auth/login", credentials, nil)
	assert.Contains(t, w.Body.String(), "requiresTwoFA")

	// Verified just inside the freshness window: straight in
	fresh := time.Now().Add(-119 * time.Minute).Unix()
	w = postForm(engine, "/api/auth/login", credentials, seededCookies(fresh))
	assert.Contains(t, w.Body.String(), "logged in successfully")
	assert.NotContains(t, w.Body.String(), "requiresTwoFA")

	// Verified just outside it: challenged again
	stale := time.Now().Add(-121 * time.Minute).Unix()
	w = postForm(engine, "/api/auth/login", credentials, seededCookies(stale))
	assert.Contains(t, w.Body.String(), "requiresTwoFA")
}

// A verify request carrying the 2fa type completes a staged login just
// like the dedicated challenge endpoint.
func TestVerifyRoutesTwoFAType(t *testing.T) {
	setup()
	defer teardown()

	userService := service.UserService{}
	sessionService := service.SessionService{}
	verificationService := service.VerificationService{}

	user, err := userService.CreateUser("kody@example.com", "kody", "Kody", "koalas-are-great")
	assert.NoError(t, err)
	secret := enrollTwoFA(t, &verificationService, user.ID)

	engine := newAuthTestEngine()

	staged := postForm(engine, "/api/auth/login", "login=kody&password=koalas-are-great", nil)
	assert.Contains(t, staged.Body.String(), "requiresTwoFA")

	form := fmt.Sprintf("type=2fa&code=%s", totpCode(secret))
	w := postForm(engine, "/api/auth/verify", form, lastCookies(staged))
	assert.Contains(t, w.Body.String(), "logged in successfully")

	count, err := sessionService.CountUserSessions(user.ID)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
