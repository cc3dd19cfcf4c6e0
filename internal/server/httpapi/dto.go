package httpapi

import (
	"time"

	"github.com/dmitrijs2005/villagekeeper/internal/server/identity"
	"github.com/dmitrijs2005/villagekeeper/internal/server/models"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	SubjectID string    `json:"subject_id"`
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newSessionResponse(s *identity.Session) sessionResponse {
	return sessionResponse{
		SubjectID: s.SubjectID,
		Username:  s.Username,
		Token:     s.Token,
		TokenType: "bearer",
		ExpiresAt: s.ExpiresAt,
	}
}

type accountResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type villageResponse struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	NameKH    string    `json:"name_kh"`
	NameEN    string    `json:"name_en"`
	Age       int       `json:"age"`
	Gender    string    `json:"gender"`
	DOB       string    `json:"dob"`
	ImagePath *string   `json:"image_path"`
	CreatedAt time.Time `json:"created_at"`
}

func newVillageResponse(v *models.Village) villageResponse {
	out := villageResponse{
		ID:        v.ID,
		UserID:    v.UserID,
		NameKH:    v.NameKH,
		NameEN:    v.NameEN,
		Age:       v.Age,
		Gender:    v.Gender,
		DOB:       v.DOB,
		CreatedAt: v.CreatedAt,
	}
	if v.ImagePath.Valid {
		p := v.ImagePath.String
		out.ImagePath = &p
	}
	return out
}
