package model

// User is the uploader embedded in a track response.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PermalinkURL string `json:"permalink_url"`
}

// Account is the authenticated user returned by /me.
type Account struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	FullName     string `json:"full_name"`
	PermalinkURL string `json:"permalink_url"`
}
