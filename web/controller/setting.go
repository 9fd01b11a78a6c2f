package controller

import (
	"net/http"

	"github.com/RibkiAnas/resumaker/web/entity"
	"github.com/RibkiAnas/resumaker/web/service"

	"github.com/gin-gonic/gin"
)

// SettingController exposes server settings and maintenance to admins.
type SettingController struct {
	BaseController

	settingService service.SettingService
	serverService  service.ServerService
}

// NewSettingController creates a SettingController and initializes its routes.
func NewSettingController(g *gin.RouterGroup) *SettingController {
	a := &SettingController{}
	a.initRouter(g)
	return a
}

func (a *SettingController) initRouter(g *gin.RouterGroup) {
	g.Use(a.checkLogin)
	g.Use(a.checkAdmin)

	g.POST("/all", a.getAllSetting)
	g.POST("/update", a.updateSetting)
	g.POST("/reset", a.resetSettings)

	g.POST("/logs/:count", a.getLogs)
	g.GET("/db", a.getDb)
	g.POST("/db/import", a.importDB)
}

// checkAdmin requires the admin role for everything in this group.
func (a *SettingController) checkAdmin(c *gin.Context) {
	isAdmin, err := a.userService.HasRole(c.GetString("userId"), "admin")
	if err != nil {
		jsonMsg(c, "check role", err)
		c.Abort()
		return
	}
	if !isAdmin {
		pureJsonMsg(c, http.StatusForbidden, false, "admin role required")
		c.Abort()
		return
	}
	c.Next()
}

func (a *SettingController) getAllSetting(c *gin.Context) {
	allSetting, err := a.settingService.GetAllSetting()
	if err != nil {
		jsonMsg(c, "get settings", err)
		return
	}
	jsonObj(c, allSetting, nil)
}

func (a *SettingController) updateSetting(c *gin.Context) {
	allSetting := &entity.AllSetting{}
	err := c.ShouldBind(allSetting)
	if err != nil {
		jsonMsg(c, "update settings", err)
		return
	}

	err = a.settingService.UpdateAllSetting(allSetting)
	jsonMsg(c, "update settings", err)
}

func (a *SettingController) resetSettings(c *gin.Context) {
	err := a.settingService.ResetSettings()
	jsonMsg(c, "reset settings", err)
}

func (a *SettingController) getLogs(c *gin.Context) {
	count := c.Param("count")
	level := c.PostForm("level")
	logs := a.serverService.GetLogs(count, level)
	jsonObj(c, logs, nil)
}

func (a *SettingController) getDb(c *gin.Context) {
	db, err := a.serverService.GetDb()
	if err != nil {
		jsonMsg(c, "get database", err)
		return
	}

	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Disposition", "attachment; filename=resumaker.db")
	c.Writer.Write(db)
}

func (a *SettingController) importDB(c *gin.Context) {
	file, _, err := c.Request.FormFile("db")
	if err != nil {
		jsonMsg(c, "read database", err)
		return
	}
	defer file.Close()

	if err := a.serverService.ImportDB(file); err != nil {
		jsonMsg(c, "import database", err)
		return
	}
	jsonMsg(c, "database imported", nil)
}
