package settings

import (
	"time"

	"github.com/tenteen/tenteen/internal/media"
)

// DefaultMaxUploadMB applies when no policy row exists yet.
const DefaultMaxUploadMB = 50

// Policy is the global upload policy, read once per request.
type Policy struct {
	AutoApprove    bool           `json:"auto_approve_uploads"`
	MaxUploadMB    int            `json:"max_upload_size_mb"`
	AllowedFormats []media.Format `json:"allowed_formats"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// DefaultPolicy is the policy of a fresh deployment.
func DefaultPolicy() Policy {
	return Policy{
		MaxUploadMB:    DefaultMaxUploadMB,
		AllowedFormats: append([]media.Format(nil), media.Formats...),
	}
}

// MaxUploadBytes returns the effective upload limit: the policy value,
// capped by ceiling when ceiling is positive.
func (p Policy) MaxUploadBytes(ceiling int64) int64 {
	limit := int64(p.MaxUploadMB) << 20
	if limit <= 0 {
		limit = int64(DefaultMaxUploadMB) << 20
	}
	if ceiling > 0 && limit > ceiling {
		return ceiling
	}
	return limit
}

// UpdateRequest changes the policy. Nil fields are left unchanged.
type UpdateRequest struct {
	AutoApprove    *bool    `json:"auto_approve_uploads,omitempty"`
	MaxUploadMB    *int     `json:"max_upload_size_mb,omitempty"`
	AllowedFormats []string `json:"allowed_formats,omitempty"`
}
