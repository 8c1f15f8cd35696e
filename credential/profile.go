package credential

import "time"

// UserProfile is the subset of OIDC userinfo claims shown to the signed in user.
type UserProfile struct {
	Subject           string     `json:"sub"`
	Name              string     `json:"name,omitempty"`
	Email             string     `json:"email,omitempty"`
	EmailVerified     bool       `json:"email_verified,omitempty"`
	PreferredUsername string     `json:"preferred_username,omitempty"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// DisplayName falls back from name to username to email to subject.
func (p *UserProfile) DisplayName() string {
	if p == nil {
		return ""
	}
	for _, v := range []string{p.Name, p.PreferredUsername, p.Email, p.Subject} {
		if v != "" {
			return v
		}
	}
	return ""
}
