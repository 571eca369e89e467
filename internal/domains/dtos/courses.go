package dtos

import "github.com/studyarena/pkarena/internal/domains/entities"

type CourseListResponse struct {
	Courses []entities.Course `json:"courses"`
	Total   int               `json:"total"`
}

type UpdateProfileRequest struct {
	Nickname string `json:"nickname,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}
