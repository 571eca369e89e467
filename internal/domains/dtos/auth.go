package dtos

import "github.com/studyarena/pkarena/internal/domains/entities"

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token        string        `json:"token"`
	RefreshToken string        `json:"refreshToken"`
	User         entities.User `json:"user"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}
