package dtos

import "github.com/studyarena/pkarena/internal/domains/entities"

type RankingsResponse struct {
	Entries []entities.RankingEntry `json:"entries"`
	Total   int                     `json:"total"`
}
