package designs

import (
	"time"

	"github.com/reloom/reloom-go/profiles"
)

// Limits enforced client-side before any upload is attempted. The
// backend enforces the same rules and answers with coded errors.
const (
	MaxImages     = 5
	MaxImageSize  = 5 * 1024 * 1024
	MaxCommentLen = 500
)

// DesignImage is one uploaded image of a design.
type DesignImage struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	IsPrimary bool   `json:"is_primary"`
}

// DesignStats holds engagement counters for a design.
type DesignStats struct {
	Likes       int  `json:"likes"`
	Comments    int  `json:"comments"`
	Views       int  `json:"views"`
	IsLikedByMe bool `json:"is_liked_by_me"`
}

// Comment is one comment on a design.
type Comment struct {
	ID        string           `json:"id"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
	UserID    string           `json:"user_id"`
	DesignID  string           `json:"design_id"`
	Author    profiles.Profile `json:"author"`
}

// Design is an upcycled fashion design post.
type Design struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Materials   string            `json:"materials"`
	CreatedAt   time.Time         `json:"created_at"`
	UserID      string            `json:"user_id"`
	Images      []DesignImage     `json:"images"`
	Author      *profiles.Profile `json:"author,omitempty"`
	Stats       *DesignStats      `json:"stats,omitempty"`
}

// PrimaryImage returns the image flagged primary, falling back to the
// first one.
func (d Design) PrimaryImage() (DesignImage, bool) {
	for _, img := range d.Images {
		if img.IsPrimary {
			return img, true
		}
	}
	if len(d.Images) > 0 {
		return d.Images[0], true
	}
	return DesignImage{}, false
}

// ImageFile is one image payload for upload.
type ImageFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// CreateInput is the payload for creating a design. The design and its
// images are submitted as one atomic multipart request.
type CreateInput struct {
	Title       string `validate:"required,min=3,max=100"`
	Description string `validate:"required,min=10,max=5000"`
	Materials   string `validate:"required,max=500"`
	Images      []ImageFile
}

// UpdateInput is the editable metadata of an existing design.
type UpdateInput struct {
	Title       string `json:"title" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"required,min=10,max=5000"`
	Materials   string `json:"materials" validate:"required,max=500"`
}

// FeedQuery selects and filters a design feed. The zero value is the
// unfiltered main feed.
type FeedQuery struct {
	// Q is a free-text search term.
	Q string
	// Category filters by design category.
	Category string
	// UserID restricts the feed to one designer's portfolio.
	UserID string
}
