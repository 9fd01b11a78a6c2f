package controller

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RibkiAnas/resumaker/logger"
	"github.com/RibkiAnas/resumaker/web/service"
	"github.com/RibkiAnas/resumaker/web/session"

	"github.com/gin-gonic/gin"
)

// maxPhotoSize caps profile photo uploads at 3MB.
const maxPhotoSize = 3 * 1024 * 1024

// ProfileForm updates display name and username.
type ProfileForm struct {
	Name     string `json:"name" form:"name"`
	Username string `json:"username" form:"username"`
}

// ChangeEmailForm asks to move the account to a new address.
type ChangeEmailForm struct {
	Email string `json:"email" form:"email"`
}

// ChangePasswordForm replaces the password, proving the old one first.
type ChangePasswordForm struct {
	CurrentPassword string `json:"currentPassword" form:"currentPassword"`
	NewPassword     string `json:"newPassword" form:"newPassword"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

// CreatePasswordForm adds a password to an OAuth-only account.
type CreatePasswordForm struct {
	NewPassword     string `json:"newPassword" form:"newPassword"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

// ProfileController handles the logged in user's account settings.
type ProfileController struct {
	BaseController

	settingService      service.SettingService
	verificationService service.VerificationService
	sessionService      service.SessionService
	userService         service.UserService
	connectionService   service.ConnectionService
	emailService        service.EmailService
}

// NewProfileController creates a ProfileController and initializes its routes.
func NewProfileController(g *gin.RouterGroup) *ProfileController {
	a := &ProfileController{}
	a.initRouter(g)
	return a
}

func (a *ProfileController) initRouter(g *gin.RouterGroup) {
	g.Use(a.checkLogin)

	g.GET("/", a.profile)
	g.POST("/", a.updateProfile)

	g.GET("/photo", a.photo)
	g.POST("/photo", a.uploadPhoto)
	g.POST("/photo/delete", a.deletePhoto)

	g.POST("/change-email", a.changeEmail)
	g.POST("/password", a.changePassword)
	g.POST("/password/create", a.createPassword)

	g.POST("/2fa/setup", a.twoFASetup)
	g.POST("/2fa/verify", a.twoFAVerify)
	g.POST("/2fa/disable", a.twoFADisable)

	g.POST("/signout-sessions", a.signoutSessions)

	g.GET("/connections", a.connections)
	g.POST("/connections/:id/delete", a.deleteConnection)

	g.GET("/download", a.downloadData)
	g.POST("/delete", a.deleteAccount)
}

// profile returns the account overview used by the settings page.
func (a *ProfileController) profile(c *gin.Context) {
	user, err := a.loginUser(c)
	if err != nil {
		jsonMsg(c, "load profile", err)
		return
	}

	sessionCount, err := a.sessionService.CountUserSessions(user.ID)
	if err != nil {
		jsonMsg(c, "load profile", err)
		return
	}

	jsonObj(c, gin.H{
		"user":         user,
		"hasPassword":  a.userService.HasPassword(user.ID),
		"twoFAEnabled": a.verificationService.TwoFAEnabled(user.ID),
		"sessionCount": sessionCount,
	}, nil)
}

func (a *ProfileController) updateProfile(c *gin.Context) {
	var form ProfileForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusOK, false, "invalid form data")
		return
	}
	if !usernameRegex.MatchString(form.Username) {
		pureJsonMsg(c, http.StatusOK, false, "username must be 3-20 letters, digits or underscores")
		return
	}

	err := a.userService.UpdateProfile(c.GetString("userId"), form.Name, form.Username)
	jsonMsg(c, "update profile", err)
}

func (a *ProfileController) photo(c *gin.Context) {
	image, err := a.userService.GetUserImage(c.GetString("userId"))
	if err != nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, image.ContentType, image.Blob)
}

func (a *ProfileController) uploadPhoto(c *gin.Context) {
	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		pureJsonMsg(c, http.StatusOK, false, "no photo in request")
		return
	}
	defer file.Close()

	if header.Size > maxPhotoSize {
		pureJsonMsg(c, http.StatusOK, false, "photo must be smaller than 3MB")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		pureJsonMsg(c, http.StatusOK, false, "file must be an image")
		return
	}

	blob, err := io.ReadAll(io.LimitReader(file, maxPhotoSize+1))
	if err != nil {
		jsonMsg(c, "read photo", err)
		return
	}
	if int64(len(blob)) > maxPhotoSize {
		pureJsonMsg(c, http.StatusOK, false, "photo must be smaller than 3MB")
		return
	}

	user, err := a.loginUser(c)
	if err != nil {
		jsonMsg(c, "upload photo", err)
		return
	}

	err = a.userService.SetUserImage(user.ID, user.Name, contentType, blob)
	jsonMsg(c, "upload photo", err)
}

func (a *ProfileController) deletePhoto(c *gin.Context) {
	err := a.userService.DeleteUserImage(c.GetString("userId"))
	jsonMsg(c, "delete photo", err)
}

// changeEmail starts an email change by sending a code to the NEW
// address. The account only moves once that code is verified.
func (a *ProfileController) changeEmail(c *gin.Context) {
	if !a.requireRecentTwoFA(c) {
		return
	}

	var form ChangeEmailForm
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
		pureJsonMsg(c, http.StatusOK, false, "this email is already in use")
		return
	}

	userID := c.GetString("userId")
	code, err := a.verificationService.PrepareVerification(service.VerificationChangeEmail, userID, service.DefaultCodePeriod)
	if err != nil {
		jsonMsg(c, "change email", err)
		return
	}
	if err := session.SetNewEmail(c, email, verifySessionMaxAge); err != nil {
		jsonMsg(c, "change email", err)
		return
	}

	err = a.emailService.SendVerificationEmail(c.Request.Context(), email, "email change", code,
		verifyURL(c, service.VerificationChangeEmail, userID, code))
	if err != nil {
		jsonMsg(c, "send verification email", err)
		return
	}

	jsonMsg(c, "check the new address for a verification code", nil)
}

func (a *ProfileController) changePassword(c *gin.Context) {
	var form ChangePasswordForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusOK, false, "invalid form data")
		return
	}
	if len(form.NewPassword) < 8 {
		pureJsonMsg(c, http.StatusOK, false, "password must be at least 8 characters")
		return
	}
	if form.NewPassword != form.ConfirmPassword {
		pureJsonMsg(c, http.StatusOK, false, "passwords do not match")
		return
	}

	err := a.userService.ChangePassword(c.GetString("userId"), form.CurrentPassword, form.NewPassword)
	jsonMsg(c, "change password", err)
}

// createPassword adds a password to an account that only has OAuth
// connections.
func (a *ProfileController) createPassword(c *gin.Context) {
	userID := c.GetString("userId")
	if a.userService.HasPassword(userID) {
		pureJsonMsg(c, http.StatusOK, false, "account already has a password")
		return
	}

	var form CreatePasswordForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusOK, false, "invalid form data")
		return
	}
	if len(form.NewPassword) < 8 {
		pureJsonMsg(c, http.StatusOK, false, "password must be at least 8 characters")
		return
	}
	if form.NewPassword != form.ConfirmPassword {
		pureJsonMsg(c, http.StatusOK, false, "passwords do not match")
		return
	}

	err := a.userService.SetPassword(userID, form.NewPassword)
	jsonMsg(c, "create password", err)
}

// twoFASetup starts TOTP enrollment and returns the otpauth URI plus a
// QR code for the authenticator app.
func (a *ProfileController) twoFASetup(c *gin.Context) {
	if !a.requireRecentTwoFA(c) {
		return
	}

	userID := c.GetString("userId")
	if a.verificationService.TwoFAEnabled(userID) {
		pureJsonMsg(c, http.StatusOK, false, "two-factor authentication is already enabled")
		return
	}

	uri, png, err := a.verificationService.PrepareTwoFASetup(userID)
	if err != nil {
		jsonMsg(c, "2fa setup", err)
		return
	}

	jsonObj(c, gin.H{
		"otpauthUri": uri,
		"qrPng":      png,
	}, nil)
}

// twoFAVerify confirms the pending enrollment with a code from the app.
func (a *ProfileController) twoFAVerify(c *gin.Context) {
	var form TwoFAForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusOK, false, "invalid form data")
		return
	}

	userID := c.GetString("userId")
	ok, err := a.verificationService.ConfirmTwoFASetup(userID, form.Code)
	if err != nil {
		jsonMsg(c, "2fa verify", err)
		return
	}
	if !ok {
		pureJsonMsg(c, http.StatusOK, false, "invalid code")
		return
	}

	// Enabling 2FA counts as a fresh verification.
	if err := session.SetVerifiedTime(c, time.Now().Unix()); err != nil {
		logger.Warning("save verified time failed:", err)
	}

	user, err := a.loginUser(c)
	if err == nil {
		logger.Infof("%s enabled two-factor authentication", user.Username)
	}
	jsonMsg(c, "two-factor authentication enabled", nil)
}

func (a *ProfileController) twoFADisable(c *gin.Context) {
	if !a.requireRecentTwoFA(c) {
		return
	}

	err := a.verificationService.DisableTwoFA(c.GetString("userId"))
	jsonMsg(c, "two-factor authentication disabled", err)
}

// signoutSessions logs out every other device.
func (a *ProfileController) signoutSessions(c *gin.Context) {
	count, err := a.sessionService.DeleteOtherSessions(c.GetString("userId"), c.GetString("sessionId"))
	if err != nil {
		jsonMsg(c, "sign out sessions", err)
		return
	}
	jsonObj(c, gin.H{"signedOut": count}, nil)
}

func (a *ProfileController) connections(c *gin.Context) {
	connections, err := a.connectionService.ListUserConnections(c.GetString("userId"))
	jsonObj(c, connections, err)
}

func (a *ProfileController) deleteConnection(c *gin.Context) {
	err := a.connectionService.DeleteConnection(c.GetString("userId"), c.Param("id"))
	jsonMsg(c, "disconnect", err)
}

// downloadData streams everything stored about the user as JSON.
func (a *ProfileController) downloadData(c *gin.Context) {
	data, err := a.userService.ExportUserData(c.GetString("userId"))
	if err != nil {
		jsonMsg(c, "download data", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="resumaker-data.json"`)
	c.Data(http.StatusOK, "application/json", data)
}

// deleteAccount removes the account and ends the session.
func (a *ProfileController) deleteAccount(c *gin.Context) {
	if !a.requireRecentTwoFA(c) {
		return
	}

	user, err := a.loginUser(c)
	if err != nil {
		jsonMsg(c, "delete account", err)
		return
	}

	if err := a.userService.DeleteUser(user.ID); err != nil {
		jsonMsg(c, "delete account", err)
		return
	}
	session.ClearSession(c)
	session.ClearVerifySession(c)

	logger.Infof("account %s deleted, IP: %s", user.Username, getRemoteIp(c))
	jsonMsg(c, "account deleted", nil)
}
