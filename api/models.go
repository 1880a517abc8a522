package api

import "time"

type User struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	ProfileImage string    `json:"profileImage,omitempty"`
	Verified     bool      `json:"verified,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitzero"`
}

type Category struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
}

type Blog struct {
	ID        string         `json:"_id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Category  string         `json:"category"`
	Author    string         `json:"author"`
	Image     string         `json:"image,omitempty"`
	Reactions map[string]int `json:"reactions,omitempty"`
	CreatedAt time.Time      `json:"createdAt,omitzero"`
}

// BlogPage 分页列表
type BlogPage struct {
	Blogs      []Blog `json:"blogs"`
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
	Total      int    `json:"total"`
}

// SearchResult 搜索同时返回三类实体
type SearchResult struct {
	Blogs      []Blog     `json:"blogs"`
	Users      []User     `json:"users"`
	Categories []Category `json:"categories"`
}

// Message 大多数写接口的返回体
type Message struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email"`
	OTP      string `json:"otp"`
	Password string `json:"password"`
}

type VerifyOTPRequest struct {
	Email    string `json:"email"`
	OTP      string `json:"otp"`
	NewEmail string `json:"newEmail,omitempty"`
}

type ChangeEmailRequest struct {
	NewEmail string `json:"newEmail"`
	Password string `json:"password"`
}

type DeleteAccountRequest struct {
	Password string `json:"password"`
}

type CreateBlogRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

type ReactionRequest struct {
	Reaction string `json:"reaction"`
}

// BlogListParams /blogs 的查询参数
type BlogListParams struct {
	Page     int    `json:"page,omitempty"`
	Category string `json:"category,omitempty"`
}
