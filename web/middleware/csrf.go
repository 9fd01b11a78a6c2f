package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/RibkiAnas/resumaker/util/random"

	"github.com/gin-gonic/gin"
)

const (
	csrfCookie = "resumaker_csrf"
	csrfHeader = "X-CSRF-Token"
	csrfField  = "csrf"
)

// CSRFMiddleware implements the double-submit cookie pattern. Safe
// methods receive a token cookie; mutating requests must echo it back
// in the X-CSRF-Token header or a csrf form field.
func CSRFMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(csrfCookie)
		if err != nil || token == "" {
			token = random.Seq(32)
			c.SetCookie(csrfCookie, token, 0, "/", "", false, false)
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		submitted := c.GetHeader(csrfHeader)
		if submitted == "" {
			submitted = c.PostForm(csrfField)
		}

		if subtle.ConstantTimeCompare([]byte(submitted), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"msg":     "invalid csrf token",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
