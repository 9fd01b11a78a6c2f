package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResumeCRUD(t *testing.T) {
	setup()
	defer teardown()

	userService := UserService{}
	service := ResumeService{}

	user, err := userService.CreateUser("kody@example.com", "kody", "Kody", "koalas-are-great")
	assert.NoError(t, err)

	resume, err := service.CreateResume(user.ID, "  Backend Engineer  ", `{"sections":[]}`)
	assert.NoError(t, err)
	assert.Equal(t, "Backend Engineer", resume.Title)

	loaded, err := service.GetOwnedResume(resume.ID, user.ID)
	assert.NoError(t, err)
	assert.Equal(t, `{"sections":[]}`, loaded.Content)

	updated, err := service.UpdateResume(resume.ID, user.ID, "Platform Engineer", `{"sections":[{"title":"Work"}]}`)
	assert.NoError(t, err)
	assert.Equal(t, "Platform Engineer", updated.Title)

	assert.NoError(t, service.DeleteResume(resume.ID, user.ID))
	_, err = service.GetResume(resume.ID)
	assert.Error(t, err)
}

func TestResumeValidation(t *testing.T) {
	setup()
	defer teardown()

	userService := UserService{}
	service := ResumeService{}

	user, err := userService.CreateUser("kody@example.com", "kody", "Kody", "koalas-are-great")
	assert.NoError(t, err)

	_, err = service.CreateResume(user.ID, "   ", "")
	assert.Error(t, err)

	_, err = service.CreateResume(user.ID, "Broken", `{"not json`)
	assert.Error(t, err)

	// Empty content is allowed, the builder fills it in later
	_, err = service.CreateResume(user.ID, "Fresh", "")
	assert.NoError(t, err)
}

func TestResumeOwnership(t *testing.T) {
	setup()
	defer teardown()

	userService := UserService{}
	service := ResumeService{}

	kody, err := userService.CreateUser("kody@example.com", "kody", "Kody", "koalas-are-great")
	assert.NoError(t, err)
	hannah, err := userService.CreateUser("hannah@example.com", "hannah", "Hannah", "h0ney-plz")
	assert.NoError(t, err)

	resume, err := service.CreateResume(kody.ID, "Kody's Resume", "")
	assert.NoError(t, err)

	_, err = service.GetOwnedResume(resume.ID, hannah.ID)
	assert.Equal(t, ErrNotOwner, err)

	_, err = service.UpdateResume(resume.ID, hannah.ID, "Stolen", "")
	assert.Equal(t, ErrNotOwner, err)

	err = service.DeleteResume(resume.ID, hannah.ID)
	assert.Equal(t, ErrNotOwner, err)

	// Still intact for the owner
	loaded, err := service.GetOwnedResume(resume.ID, kody.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Kody's Resume", loaded.Title)
}

func TestListResumesPagination(t *testing.T) {
	setup()
	defer teardown()

	userService := UserService{}
	service := ResumeService{}

	user, err := userService.CreateUser("kody@example.com", "kody", "Kody", "koalas-are-great")
	assert.NoError(t, err)

	for i := 0; i < 60; i++ {
		_, err := service.CreateResume(user.ID, fmt.Sprintf("Resume %02d", i), "")
		assert.NoError(t, err)
	}

	// Default page size is 50
	first, total, err := service.ListResumes(user.ID, 1)
	assert.NoError(t, err)
	assert.EqualValues(t, 60, total)
	assert.Len(t, first, 50)

	second, _, err := service.ListResumes(user.ID, 2)
	assert.NoError(t, err)
	assert.Len(t, second, 10)
}
