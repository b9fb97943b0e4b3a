package profiles

// Profile is a user's public profile. Email is only present on the
// viewer's own profile.
type Profile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	Bio       string `json:"bio,omitempty"`
	Website   string `json:"website,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// UserStats aggregates a designer's activity counters.
type UserStats struct {
	TotalDesigns   int `json:"total_designs"`
	TotalLikes     int `json:"total_likes"`
	TotalViews     int `json:"total_views"`
	FollowersCount int `json:"followers_count"`
	FollowingCount int `json:"following_count"`
}

// UpdateInput is the editable subset of the viewer's own profile.
// Empty strings clear the corresponding field.
type UpdateInput struct {
	FullName string `json:"full_name" validate:"max=50"`
	Bio      string `json:"bio" validate:"max=160"`
	Website  string `json:"website,omitempty" validate:"omitempty,url"`
}
