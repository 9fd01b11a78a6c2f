// Package entity defines data structures used by the web layer of the resumaker server.
package entity

import (
	"crypto/tls"
	"math"
	"net"
	"strings"
	"time"

	"github.com/RibkiAnas/resumaker/util/common"
)

// Msg represents a standard API response message with success status, message text, and optional data object.
type Msg struct {
	Success bool   `json:"success"` // Indicates if the operation was successful
	Msg     string `json:"msg"`     // Response message text
	Obj     any    `json:"obj"`     // Optional data object
}

// AllSetting contains all configuration settings for the resumaker server.
type AllSetting struct {
	WebListen   string `json:"webListen" form:"webListen"`     // Web server listen IP address
	WebDomain   string `json:"webDomain" form:"webDomain"`     // Web server domain for domain validation
	WebPort     int    `json:"webPort" form:"webPort"`         // Web server port number
	WebCertFile string `json:"webCertFile" form:"webCertFile"` // Path to SSL certificate file
	WebKeyFile  string `json:"webKeyFile" form:"webKeyFile"`   // Path to SSL private key file
	WebBasePath string `json:"webBasePath" form:"webBasePath"` // Base path for URLs

	SessionMaxAge int    `json:"sessionMaxAge" form:"sessionMaxAge"` // Login session lifetime in days
	PageSize      int    `json:"pageSize" form:"pageSize"`           // Number of items per page in lists
	TimeLocation  string `json:"timeLocation" form:"timeLocation"`   // Time zone location
}

// CheckValid validates the settings, checking listen address, port, SSL files and base path.
func (s *AllSetting) CheckValid() error {
	if s.WebListen != "" {
		ip := net.ParseIP(s.WebListen)
		if ip == nil {
			return common.NewError("web listen is not valid ip:", s.WebListen)
		}
	}

	if s.WebPort <= 0 || s.WebPort > math.MaxUint16 {
		return common.NewError("web port is not a valid port:", s.WebPort)
	}

	if s.WebCertFile != "" || s.WebKeyFile != "" {
		_, err := tls.LoadX509KeyPair(s.WebCertFile, s.WebKeyFile)
		if err != nil {
			return common.NewErrorf("cert file <%v> or key file <%v> invalid: %v", s.WebCertFile, s.WebKeyFile, err)
		}
	}

	if !strings.HasPrefix(s.WebBasePath, "/") {
		s.WebBasePath = "/" + s.WebBasePath
	}
	if !strings.HasSuffix(s.WebBasePath, "/") {
		s.WebBasePath += "/"
	}

	_, err := time.LoadLocation(s.TimeLocation)
	if err != nil {
		return common.NewError("time location not exist:", s.TimeLocation)
	}

	return nil
}
