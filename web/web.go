// Package web provides the main web server implementation for resumaker,
// including HTTP/HTTPS serving, routing and background job scheduling.
package web

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/RibkiAnas/resumaker/logger"
	"github.com/RibkiAnas/resumaker/util/common"
	"github.com/RibkiAnas/resumaker/web/controller"
	"github.com/RibkiAnas/resumaker/web/job"
	"github.com/RibkiAnas/resumaker/web/middleware"
	"github.com/RibkiAnas/resumaker/web/service"
	"github.com/RibkiAnas/resumaker/web/session"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
)

// Server is the resumaker web server with its controllers, services and
// scheduled jobs.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	auth    *controller.AuthController
	oauth   *controller.OAuthController
	profile *controller.ProfileController
	resume  *controller.ResumeController
	setting *controller.SettingController

	settingService service.SettingService

	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new web server instance with a cancellable context.
func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{ctx: ctx, cancel: cancel}
}

func (s *Server) initRouter() (*gin.Engine, error) {
	engine := gin.Default()

	webDomain, err := s.settingService.GetWebDomain()
	if err != nil {
		return nil, err
	}
	if webDomain != "" {
		engine.Use(middleware.DomainValidatorMiddleware(webDomain))
	}

	secret, err := s.settingService.GetSecret()
	if err != nil {
		return nil, err
	}

	basePath, err := s.settingService.GetBasePath()
	if err != nil {
		return nil, err
	}
	engine.Use(func(c *gin.Context) {
		c.Set("base_path", basePath)
	})

	// Two signed cookies share one store: the login session and the
	// short lived verification session.
	store := cookie.NewStore(secret)
	engine.Use(sessions.SessionsMany([]string{session.LoginCookie, session.VerifyCookie}, store))

	engine.Use(middleware.CSRFMiddleware())

	// gzip, excluding the resume API to avoid double-compressing JSON
	engine.Use(gzip.Gzip(
		gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{basePath + "api/resumes/"}),
	))

	g := engine.Group(basePath)
	s.auth = controller.NewAuthController(g.Group("api/auth"))
	s.oauth = controller.NewOAuthController(g.Group("auth"))
	s.profile = controller.NewProfileController(g.Group("api/profile"))
	s.resume = controller.NewResumeController(g.Group("api/resumes"))
	s.setting = controller.NewSettingController(g.Group("api/settings"))

	// 404 handler
	engine.NoRoute(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusNotFound)
	})

	return engine, nil
}

// startTask schedules the cleanup jobs.
func (s *Server) startTask() {
	s.cron.AddJob("@hourly", job.NewSessionCleanupJob())
	s.cron.AddJob("@every 10m", job.NewVerificationCleanupJob())
}

// Start initializes and starts the web server.
func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	loc, err := s.settingService.GetTimeLocation()
	if err != nil {
		return err
	}
	s.cron = cron.New(cron.WithLocation(loc), cron.WithSeconds())
	s.cron.Start()

	engine, err := s.initRouter()
	if err != nil {
		return err
	}

	certFile, err := s.settingService.GetCertFile()
	if err != nil {
		return err
	}
	keyFile, err := s.settingService.GetKeyFile()
	if err != nil {
		return err
	}
	listen, err := s.settingService.GetListen()
	if err != nil {
		return err
	}
	port, err := s.settingService.GetPort()
	if err != nil {
		return err
	}

	listenAddr := net.JoinHostPort(listen, strconv.Itoa(port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	if certFile != "" || keyFile != "" {
		if cert, err := tls.LoadX509KeyPair(certFile, keyFile); err == nil {
			cfg := &tls.Config{Certificates: []tls.Certificate{cert}}
			listener = tls.NewListener(listener, cfg)
			logger.Info("Web server running HTTPS on", listener.Addr())
		} else {
			logger.Error("Error loading certificates:", err)
			logger.Info("Web server running HTTP on", listener.Addr())
		}
	} else {
		logger.Info("Web server running HTTP on", listener.Addr())
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		defer common.Recover("web server serve")
		_ = s.httpServer.Serve(listener)
	}()

	s.startTask()

	return nil
}

// Stop gracefully shuts down the web server and its cron jobs.
func (s *Server) Stop() error {
	s.cancel()
	if s.cron != nil {
		s.cron.Stop()
	}
	var err1, err2 error
	if s.httpServer != nil {
		err1 = s.httpServer.Shutdown(s.ctx)
	}
	if s.listener != nil {
		err2 = s.listener.Close()
	}
	return common.Combine(err1, err2)
}

// GetCtx returns the server's context.
func (s *Server) GetCtx() context.Context { return s.ctx }

// GetCron returns the server's cron scheduler instance.
func (s *Server) GetCron() *cron.Cron { return s.cron }
