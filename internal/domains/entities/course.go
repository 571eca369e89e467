package entities

import "time"

type Course struct {
	Id          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Cover       string    `json:"cover"`
	Chapters    []Chapter `json:"chapters,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Chapter struct {
	Id       string `json:"id"`
	CourseId string `json:"courseId"`
	Title    string `json:"title"`
	Order    int    `json:"order"`
	Content  string `json:"content,omitempty"`
}
