// Package api 声明后端接口表以及它们提供和失效的标签，并提供类型化的查询和写操作。
package api

import (
	"net/http"
	"strings"

	"github.com/kochabx/blogkit/cache"
	corehttp "github.com/kochabx/blogkit/core/net/http"
	"github.com/kochabx/blogkit/gateway"
	"github.com/kochabx/blogkit/mutation"
)

// 标签类别
const (
	TagAuth     = "auth"
	TagUser     = "user"
	TagBlog     = "blog"
	TagCategory = "category"
)

var (
	tagAuth     = cache.T(TagAuth)
	tagUser     = cache.T(TagUser)
	tagBlog     = cache.T(TagBlog)
	tagCategory = cache.T(TagCategory)
)

// QueryEndpoint 读接口
type QueryEndpoint struct {
	Name     string
	Path     string
	Provides []cache.Tag
	// IDTag 非空时额外提供 IDTag:{id}
	IDTag string
	Auth  gateway.AuthMode
}

// Resolve 填充 {id} 并返回路径和该查询提供的标签
func (e QueryEndpoint) Resolve(id string) (string, []cache.Tag) {
	tags := append([]cache.Tag(nil), e.Provides...)
	if e.IDTag != "" && id != "" {
		tags = append(tags, cache.TID(e.IDTag, id))
	}
	return withID(e.Path, id), tags
}

func withID(path, id string) string {
	return strings.ReplaceAll(path, "{id}", corehttp.PathEscape(id))
}

// 读接口表
var (
	// 搜索结果同时包含博客、用户和分类，任何一类变化都要刷新
	SearchEndpoint = QueryEndpoint{
		Name:     "search",
		Path:     "/auth/search",
		Provides: []cache.Tag{tagBlog, tagUser, tagCategory, tagAuth},
	}
	RefreshTokenEndpoint = QueryEndpoint{
		Name:     "refreshToken",
		Path:     "/auth/refresh-token",
		Provides: []cache.Tag{tagAuth, tagUser},
		Auth:     gateway.AuthRequired,
	}
	MeEndpoint = QueryEndpoint{
		Name:     "me",
		Path:     "/users/me",
		Provides: []cache.Tag{tagUser},
		Auth:     gateway.AuthRequired,
	}
	UserEndpoint = QueryEndpoint{
		Name:  "user",
		Path:  "/users/{id}",
		IDTag: TagUser,
	}
	BlogsEndpoint = QueryEndpoint{
		Name:     "blogs",
		Path:     "/blogs",
		Provides: []cache.Tag{tagBlog},
	}
	BlogEndpoint = QueryEndpoint{
		Name:  "blog",
		Path:  "/blogs/{id}",
		IDTag: TagBlog,
	}
	BlogsByUserEndpoint = QueryEndpoint{
		Name:     "blogsByUser",
		Path:     "/blogs/user/{id}",
		Provides: []cache.Tag{tagBlog},
	}
	CategoriesEndpoint = QueryEndpoint{
		Name:     "categories",
		Path:     "/categories",
		Provides: []cache.Tag{tagCategory},
	}
)

// 写接口表
var (
	RegisterSpec = mutation.Spec{
		Name:        "register",
		Method:      http.MethodPost,
		Path:        "/auth/register",
		Invalidates: []cache.Tag{tagAuth},
		Auth:        gateway.AuthNone,
	}
	// LoginSpec 登录由 session.Controller 发出，这里记录它的失效集合
	LoginSpec = mutation.Spec{
		Name:        "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Invalidates: []cache.Tag{tagAuth, tagUser},
		Auth:        gateway.AuthNone,
	}
	ForgotPasswordSpec = mutation.Spec{
		Name:        "forgotPassword",
		Method:      http.MethodPost,
		Path:        "/auth/forgot-password",
		Invalidates: []cache.Tag{tagAuth},
		Auth:        gateway.AuthNone,
	}
	ResetPasswordSpec = mutation.Spec{
		Name:        "resetPassword",
		Method:      http.MethodPost,
		Path:        "/auth/reset-password",
		Invalidates: []cache.Tag{tagAuth},
		Auth:        gateway.AuthNone,
	}
	VerifyOTPSpec = mutation.Spec{
		Name:        "verifyOTP",
		Method:      http.MethodPost,
		Path:        "/auth/verify-otp",
		Invalidates: []cache.Tag{tagAuth, tagUser},
	}
	ResendOTPSpec = mutation.Spec{
		Name:        "resendOTP",
		Method:      http.MethodPost,
		Path:        "/auth/resend-otp",
		Invalidates: []cache.Tag{tagAuth},
		Auth:        gateway.AuthNone,
	}
	// LogoutSpec 登出由 session.Controller 发出
	LogoutSpec = mutation.Spec{
		Name:        "logout",
		Method:      http.MethodPost,
		Path:        "/auth/logout",
		Invalidates: []cache.Tag{tagAuth},
		Auth:        gateway.AuthNone,
	}
	ChangeEmailSpec = mutation.Spec{
		Name:        "changeEmail",
		Method:      http.MethodPatch,
		Path:        "/users/email",
		Invalidates: []cache.Tag{tagUser},
		Auth:        gateway.AuthRequired,
	}
	ChangeAvatarSpec = mutation.Spec{
		Name:        "changeAvatar",
		Method:      http.MethodPatch,
		Path:        "/users/avatar",
		Invalidates: []cache.Tag{tagUser},
		Auth:        gateway.AuthRequired,
	}
	DeleteAccountSpec = mutation.Spec{
		Name:        "deleteAccount",
		Method:      http.MethodDelete,
		Path:        "/users",
		Invalidates: []cache.Tag{tagUser, tagBlog, tagAuth},
		Auth:        gateway.AuthRequired,
	}
	CreateBlogSpec = mutation.Spec{
		Name:        "createBlog",
		Method:      http.MethodPost,
		Path:        "/blogs",
		Invalidates: []cache.Tag{tagBlog},
		Auth:        gateway.AuthRequired,
	}
	DeleteBlogSpec = mutation.Spec{
		Name:        "deleteBlog",
		Method:      http.MethodDelete,
		Path:        "/blogs/{id}",
		Invalidates: []cache.Tag{tagBlog},
		Auth:        gateway.AuthRequired,
	}
	// ReactSpec 只影响单篇博客，失效 blog:{id}，列表通过类别标签匹配一并刷新
	ReactSpec = mutation.Spec{
		Name:   "react",
		Method: http.MethodPost,
		Path:   "/blogs/{id}/reaction",
		Auth:   gateway.AuthRequired,
	}
)

// Mutations 全部写接口，按名称索引
func Mutations() map[string]mutation.Spec {
	specs := []mutation.Spec{
		RegisterSpec, LoginSpec, ForgotPasswordSpec, ResetPasswordSpec, VerifyOTPSpec,
		ResendOTPSpec, LogoutSpec, ChangeEmailSpec, ChangeAvatarSpec, DeleteAccountSpec,
		CreateBlogSpec, DeleteBlogSpec, ReactSpec,
	}
	m := make(map[string]mutation.Spec, len(specs))
	for _, s := range specs {
		m[s.Name] = s
	}
	return m
}

// Queries 全部读接口，按名称索引
func Queries() map[string]QueryEndpoint {
	eps := []QueryEndpoint{
		SearchEndpoint, RefreshTokenEndpoint, MeEndpoint, UserEndpoint, BlogsEndpoint,
		BlogEndpoint, BlogsByUserEndpoint, CategoriesEndpoint,
	}
	m := make(map[string]QueryEndpoint, len(eps))
	for _, e := range eps {
		m[e.Name] = e
	}
	return m
}

// specFor 填充路径参数
func specFor(s mutation.Spec, id string) mutation.Spec {
	return s.WithPath(withID(s.Path, id))
}
