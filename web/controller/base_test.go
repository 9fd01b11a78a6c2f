package controller

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/RibkiAnas/resumaker/database"
	"github.com/RibkiAnas/resumaker/web/service"
	"github.com/RibkiAnas/resumaker/web/session"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/xlzd/gotp"
)

func setup() {
	dbPath := "test.db"
	os.Remove(dbPath)
	database.InitDB(dbPath)
}

func teardown() {
	db, _ := database.GetDB().DB()
	db.Close()
	os.Remove("test.db")
}

// newTestEngine builds a gin engine with the same two cookie sessions
// the real server registers.
func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	store := cookie.NewStore([]byte("test-secret"))
	engine.Use(sessions.SessionsMany([]string{session.LoginCookie, session.VerifyCookie}, store))
	return engine
}

// lastCookies dedupes Set-Cookie headers, keeping the newest value per
// name, so repeated session saves in one handler don't confuse the
// follow up request.
func lastCookies(w *httptest.ResponseRecorder) []*http.Cookie {
	byName := make(map[string]*http.Cookie)
	order := make([]string, 0)
	for _, ck := range w.Result().Cookies() {
		if _, seen := byName[ck.Name]; !seen {
			order = append(order, ck.Name)
		}
		byName[ck.Name] = ck
	}
	result := make([]*http.Cookie, 0, len(byName))
	for _, name := range order {
		result = append(result, byName[name])
	}
	return result
}

// enrollTwoFA walks the real setup flow, reading the shared secret back
// out of the provisioning uri to compute valid codes.
func enrollTwoFA(t *testing.T, verificationService *service.VerificationService, userID string) string {
	uri, _, err := verificationService.PrepareTwoFASetup(userID)
	assert.NoError(t, err)

	parsed, err := url.Parse(uri)
	assert.NoError(t, err)
	secret := parsed.Query().Get("secret")
	assert.NotEmpty(t, secret)

	ok, err := verificationService.ConfirmTwoFASetup(userID, totpCode(secret))
	assert.NoError(t, err)
	assert.True(t, ok)
	return secret
}

func totpCode(secret string) string {
	return gotp.NewTOTP(secret, 6, 30, nil).Now()
}

func TestRequireRecentTwoFA(t *testing.T) {
	setup()
	defer teardown()

	userService := service.UserService{}
	sessionService := service.SessionService{}
	verificationService := service.VerificationService{}

	user, err := userService.CreateUser("kody@example.com", "kody", "Kody", "koalas-are-great")
	assert.NoError(t, err)
	enrollTwoFA(t, &verificationService, user.ID)

	dbSession, err := sessionService.CreateSession(user.ID)
	assert.NoError(t, err)

	base := &BaseController{}
	engine := newTestEngine()
	engine.GET("/seed", func(c *gin.Context) {
		err := session.SetSessionID(c, dbSession.ID, true, 86400)
		assert.NoError(t, err)
		if v := c.Query("verifiedAt"); v != "" {
			var verifiedAt int64
			fmt.Sscan(v, &verifiedAt)
			assert.NoError(t, session.SetVerifiedTime(c, verifiedAt))
		}
		c.Status(http.StatusOK)
	})
	sensitive := engine.Group("/sensitive", base.checkLogin)
	sensitive.GET("", func(c *gin.Context) {
		if !base.requireRecentTwoFA(c) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	callSensitive := func(seedQuery string) *httptest.ResponseRecorder {
		seed := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/seed"+seedQuery, nil)
		engine.ServeHTTP(seed, req)
		assert.Equal(t, http.StatusOK, seed.Code)

		w := httptest.NewRecorder()
		req = httptest.NewRequest("GET", "/sensitive", nil)
		for _, ck := range lastCookies(seed) {
			req.AddCookie(ck)
		}
		engine.ServeHTTP(w, req)
		return w
	}

	// Never verified in this session
	w := callSensitive("")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "requiresVerification")

	// Verified just inside the freshness window
	fresh := time.Now().Add(-119 * time.Minute).Unix()
	w = callSensitive(fmt.Sprintf("?verifiedAt=%d", fresh))
	assert.Equal(t, http.StatusOK, w.Code)

	// Verified just outside it
	stale := time.Now().Add(-121 * time.Minute).Unix()
	w = callSensitive(fmt.Sprintf("?verifiedAt=%d", stale))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRecentTwoFAWithoutEnrollment(t *testing.T) {
	setup()
	defer teardown()

	userService := service.UserService{}
	sessionService := service.SessionService{}

	user, err := userService.CreateUser("hannah@example.com", "hannah", "Hannah", "h0ney-plz")
	assert.NoError(t, err)
	dbSession, err := sessionService.CreateSession(user.ID)
	assert.NoError(t, err)

	base := &BaseController{}
	engine := newTestEngine()
	engine.GET("/seed", func(c *gin.Context) {
		assert.NoError(t, session.SetSessionID(c, dbSession.ID, true, 86400))
		c.Status(http.StatusOK)
	})
	sensitive := engine.Group("/sensitive", base.checkLogin)
	sensitive.GET("", func(c *gin.Context) {
		if !base.requireRecentTwoFA(c) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	seed := httptest.NewRecorder()
	engine.ServeHTTP(seed, httptest.NewRequest("GET", "/seed", nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/sensitive", nil)
	for _, ck := range lastCookies(seed) {
		req.AddCookie(ck)
	}
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheckLoginRejectsUnknownSession(t *testing.T) {
	setup()
	defer teardown()

	base := &BaseController{}
	engine := newTestEngine()
	engine.GET("/seed", func(c *gin.Context) {
		assert.NoError(t, session.SetSessionID(c, "no-such-session", true, 86400))
		c.Status(http.StatusOK)
	})
	private := engine.Group("/private", base.checkLogin)
	private.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	// No cookie at all redirects to the login page
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/private", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)

	// A cookie pointing at a deleted session is cleared and rejected
	seed := httptest.NewRecorder()
	engine.ServeHTTP(seed, httptest.NewRequest("GET", "/seed", nil))

	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	for _, ck := range lastCookies(seed) {
		req.AddCookie(ck)
	}
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
