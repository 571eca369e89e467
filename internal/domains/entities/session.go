package entities

// Session mirrors the server-issued credentials. It is never validated
// locally beyond trusting server 401 responses.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}
