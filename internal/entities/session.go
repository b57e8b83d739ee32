package entities

import "time"

// Session is the short-lived conversation state of one user.
type Session struct {
	UserID      int64          `json:"user_id"`
	Mode        GenerationMode `json:"mode,omitempty"`
	AspectRatio string         `json:"aspect_ratio,omitempty"`
	Images      []string       `json:"images,omitempty"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Ratio returns the chosen aspect ratio or the default one.
func (s *Session) Ratio() string {
	if s == nil || s.AspectRatio == "" {
		return DefaultAspectRatio
	}
	return s.AspectRatio
}
