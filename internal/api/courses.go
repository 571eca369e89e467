package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/studyarena/pkarena/internal/domains/dtos"
	"github.com/studyarena/pkarena/internal/domains/entities"
)

func (c *Client) ListCourses(ctx context.Context, page, pageSize int) (dtos.CourseListResponse, error) {
	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		params.Set("pageSize", strconv.Itoa(pageSize))
	}
	data, err := c.Get(ctx, "/courses", params)
	if err != nil {
		return dtos.CourseListResponse{}, err
	}
	var resp dtos.CourseListResponse
	err = decodePayload(data, &resp)
	return resp, err
}

func (c *Client) GetCourse(ctx context.Context, courseId string) (entities.Course, error) {
	data, err := c.Get(ctx, "/courses/"+courseId, nil)
	if err != nil {
		return entities.Course{}, err
	}
	var course entities.Course
	err = decodePayload(data, &course)
	return course, err
}

func (c *Client) GetChapter(ctx context.Context, chapterId string) (entities.Chapter, error) {
	data, err := c.Get(ctx, "/content/chapters/"+chapterId, nil)
	if err != nil {
		return entities.Chapter{}, err
	}
	var chapter entities.Chapter
	err = decodePayload(data, &chapter)
	return chapter, err
}
