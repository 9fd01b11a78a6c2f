package controller

import (
	"net/http"
	"strconv"

	"github.com/RibkiAnas/resumaker/database"
	"github.com/RibkiAnas/resumaker/web/service"

	"github.com/gin-gonic/gin"
)

// ResumeForm carries the editable fields of a resume. Content is the
// builder state as a JSON document.
type ResumeForm struct {
	Title   string `json:"title" form:"title"`
	Content string `json:"content" form:"content"`
}

// ResumeController handles the resume CRUD API. All routes require a
// login; ownership checks live in the service.
type ResumeController struct {
	BaseController

	resumeService service.ResumeService
}

// NewResumeController creates a ResumeController and initializes its routes.
func NewResumeController(g *gin.RouterGroup) *ResumeController {
	a := &ResumeController{}
	a.initRouter(g)
	return a
}

func (a *ResumeController) initRouter(g *gin.RouterGroup) {
	g.Use(a.checkLogin)

	g.GET("/", a.list)
	g.POST("/", a.create)
	g.GET("/:id", a.get)
	g.POST("/:id", a.update)
	g.POST("/:id/delete", a.del)
}

func (a *ResumeController) list(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	resumes, total, err := a.resumeService.ListResumes(c.GetString("userId"), page)
	if err != nil {
		jsonMsg(c, "list resumes", err)
		return
	}
	jsonObj(c, gin.H{
		"resumes": resumes,
		"total":   total,
		"page":    page,
	}, nil)
}

func (a *ResumeController) get(c *gin.Context) {
	resume, err := a.resumeService.GetOwnedResume(c.Param("id"), c.GetString("userId"))
	if err != nil {
		a.notFoundOrError(c, err)
		return
	}
	jsonObj(c, resume, nil)
}

func (a *ResumeController) create(c *gin.Context) {
	var form ResumeForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusOK, false, "invalid form data")
		return
	}

	resume, err := a.resumeService.CreateResume(c.GetString("userId"), form.Title, form.Content)
	if err != nil {
		jsonMsg(c, "create resume", err)
		return
	}
	jsonObj(c, resume, nil)
}

func (a *ResumeController) update(c *gin.Context) {
	var form ResumeForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusOK, false, "invalid form data")
		return
	}

	resume, err := a.resumeService.UpdateResume(c.Param("id"), c.GetString("userId"), form.Title, form.Content)
	if err != nil {
		a.notFoundOrError(c, err)
		return
	}
	jsonObj(c, resume, nil)
}

func (a *ResumeController) del(c *gin.Context) {
	err := a.resumeService.DeleteResume(c.Param("id"), c.GetString("userId"))
	if err != nil {
		a.notFoundOrError(c, err)
		return
	}
	jsonMsg(c, "resume deleted", nil)
}

// notFoundOrError hides whether a resume exists from non-owners: both
// missing rows and ownership failures come back 404.
func (a *ResumeController) notFoundOrError(c *gin.Context, err error) {
	if database.IsNotFound(err) || err == service.ErrNotOwner {
		pureJsonMsg(c, http.StatusNotFound, false, "resume not found")
		return
	}
	jsonMsg(c, "resume", err)
}
