package authapi

import (
	"time"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/auth/apitoken"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User            string    `json:"user"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

type refreshResponse struct {
	Status string `json:"status"`
	User   string `json:"user"`
}

type meResponse struct {
	Identity Identity `json:"identity"`
}

type issueTokenRequest struct {
	Name      string     `json:"name"`
	Scopes    []string   `json:"scopes"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type listTokensResponse struct {
	Tokens []apitoken.Token `json:"tokens"`
}
