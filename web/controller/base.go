// Package controller provides the HTTP request handlers for the resumaker
// web server: account and verification flows, profile management and the
// resume API.
package controller

import (
	"net/http"
	"time"

	"github.com/RibkiAnas/resumaker/database/model"
	"github.com/RibkiAnas/resumaker/web/service"
	"github.com/RibkiAnas/resumaker/web/session"

	"github.com/gin-gonic/gin"
)

// twoFAMaxAge is how long a 2FA check stays fresh. Sensitive actions
// past this window must re-verify first.
const twoFAMaxAge = 2 * time.Hour

// BaseController provides common functionality for all controllers,
// including the login check that resolves the cookie's session id
// against the sessions table.
type BaseController struct {
	sessionService      service.SessionService
	userService         service.UserService
	verificationService service.VerificationService
}

// checkLogin verifies the login session and stores the user id in the
// context. An expired or deleted session clears the cookie silently.
func (a *BaseController) checkLogin(c *gin.Context) {
	sessionID := session.GetSessionID(c)
	if sessionID == "" {
		a.rejectLogin(c)
		return
	}

	dbSession, err := a.sessionService.GetValidSession(sessionID)
	if err != nil {
		session.ClearSession(c)
		a.rejectLogin(c)
		return
	}

	c.Set("userId", dbSession.UserID)
	c.Set("sessionId", dbSession.ID)
	c.Next()
}

func (a *BaseController) rejectLogin(c *gin.Context) {
	if isAjax(c) {
		pureJsonMsg(c, http.StatusUnauthorized, false, "please log in again")
	} else {
		c.Redirect(http.StatusTemporaryRedirect, c.GetString("base_path")+"login")
	}
	c.Abort()
}

// loginUser loads the full user for the current request.
func (a *BaseController) loginUser(c *gin.Context) (*model.User, error) {
	return a.userService.GetUser(c.GetString("userId"))
}

// needsTwoFA reports whether the user must answer a challenge: an
// enrollment exists and this browser's last check is absent or older
// than twoFAMaxAge. Logins with a fresh marker skip the challenge.
func (a *BaseController) needsTwoFA(c *gin.Context, userID string) bool {
	if !a.verificationService.TwoFAEnabled(userID) {
		return false
	}
	verifiedAt := session.GetVerifiedTime(c)
	if verifiedAt == 0 {
		return true
	}
	return time.Since(time.Unix(verifiedAt, 0)) > twoFAMaxAge
}

// shouldRequestTwoFA is needsTwoFA for the logged in user.
func (a *BaseController) shouldRequestTwoFA(c *gin.Context) bool {
	return a.needsTwoFA(c, c.GetString("userId"))
}

// requireRecentTwoFA aborts with a verification demand when the 2FA
// check has gone stale.
func (a *BaseController) requireRecentTwoFA(c *gin.Context) bool {
	if a.shouldRequestTwoFA(c) {
		c.JSON(http.StatusForbidden, gin.H{
			"success":              false,
			"msg":                  "please verify your identity first",
			"requiresVerification": true,
		})
		c.Abort()
		return false
	}
	return true
}
