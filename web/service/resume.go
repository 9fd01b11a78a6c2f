package service

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/RibkiAnas/resumaker/database"
	"github.com/RibkiAnas/resumaker/database/model"

	"github.com/google/uuid"
)

// ErrNotOwner is returned when a user touches a resume they do not own.
var ErrNotOwner = errors.New("resume belongs to another user")

// ResumeService manages resume documents. Ownership is enforced here so
// every caller gets the same rules.
type ResumeService struct {
	settingService SettingService
}

func (s *ResumeService) GetResume(id string) (*model.Resume, error) {
	db := database.GetDB()

	resume := &model.Resume{}
	err := db.Model(model.Resume{}).
		Where("id = ?", id).
		First(resume).
		Error
	if err != nil {
		return nil, err
	}
	return resume, nil
}

// GetOwnedResume loads the resume and checks it belongs to ownerID.
func (s *ResumeService) GetOwnedResume(id, ownerID string) (*model.Resume, error) {
	resume, err := s.GetResume(id)
	if err != nil {
		return nil, err
	}
	if resume.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return resume, nil
}

// ListResumes returns one page of the owner's resumes, newest first.
// page starts at 1; page 0 means the first page.
func (s *ResumeService) ListResumes(ownerID string, page int) ([]model.Resume, int64, error) {
	pageSize, err := s.settingService.GetPageSize()
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}

	db := database.GetDB()

	var total int64
	if err := db.Model(model.Resume{}).Where("owner_id = ?", ownerID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	resumes := make([]model.Resume, 0)
	err = db.Model(model.Resume{}).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&resumes).
		Error
	if err != nil {
		return nil, 0, err
	}
	return resumes, total, nil
}

// CreateResume stores a new resume. Content must be valid JSON when set.
func (s *ResumeService) CreateResume(ownerID, title, content string) (*model.Resume, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title can not be empty")
	}
	if err := checkContent(content); err != nil {
		return nil, err
	}

	resume := &model.Resume{
		ID:      uuid.NewString(),
		Title:   title,
		Content: content,
		OwnerID: ownerID,
	}

	db := database.GetDB()
	if err := db.Create(resume).Error; err != nil {
		return nil, err
	}
	return resume, nil
}

// UpdateResume replaces title and content after an ownership check.
func (s *ResumeService) UpdateResume(id, ownerID, title, content string) (*model.Resume, error) {
	resume, err := s.GetOwnedResume(id, ownerID)
	if err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title can not be empty")
	}
	if err := checkContent(content); err != nil {
		return nil, err
	}

	resume.Title = title
	resume.Content = content

	db := database.GetDB()
	if err := db.Save(resume).Error; err != nil {
		return nil, err
	}
	return resume, nil
}

func (s *ResumeService) DeleteResume(id, ownerID string) error {
	resume, err := s.GetOwnedResume(id, ownerID)
	if err != nil {
		return err
	}
	db := database.GetDB()
	return db.Delete(resume).Error
}

func checkContent(content string) error {
	if content == "" {
		return nil
	}
	if !json.Valid([]byte(content)) {
		return errors.New("content is not valid json")
	}
	return nil
}
