package es

import "Parley/internal/model"

// UserES 对应 user_index 的文档结构，*_lc 为小写副本供忽略大小写的子串匹配
type UserES struct {
	ID         uint64  `json:"id"`
	ExternalID string  `json:"external_id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	NameLC     string  `json:"name_lc"`
	EmailLC    string  `json:"email_lc"`
	ImageURL   *string `json:"image_url,omitempty"`
}

func NewUserES(user *model.User) *UserES {
	return &UserES{
		ID:         user.ID,
		ExternalID: user.ExternalID,
		Name:       user.Name,
		Email:      user.Email,
		NameLC:     lower(user.Name),
		EmailLC:    lower(user.Email),
		ImageURL:   user.ImageURL,
	}
}
