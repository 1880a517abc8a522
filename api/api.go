package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kochabx/blogkit/cache"
	"github.com/kochabx/blogkit/errors"
	"github.com/kochabx/blogkit/gateway"
	"github.com/kochabx/blogkit/mutation"
)

// AvatarField multipart 上传头像的字段名
const AvatarField = "profileImage"

// API 后端接口的类型化封装。读操作返回 cache.Query，由调用方订阅；写操作经 Dispatcher 执行
type API struct {
	sender     gateway.Sender
	dispatcher *mutation.Dispatcher
}

func New(sender gateway.Sender, dispatcher *mutation.Dispatcher) *API {
	return &API{sender: sender, dispatcher: dispatcher}
}

// fetchJSON 发送 GET 并把载荷解码为 T
func fetchJSON[T any](sender gateway.Sender, req gateway.Request) cache.Fetcher {
	return func(ctx context.Context) (any, error) {
		r := req
		resp, err := sender.Send(ctx, &r)
		if err != nil {
			return nil, err
		}
		var v T
		if err := resp.Decode(&v); err != nil {
			return nil, errors.Transport(errors.TransportMalformed, resp.Status, err)
		}
		return v, nil
	}
}

func query[T any](sender gateway.Sender, ep QueryEndpoint, id string, args any, q url.Values) cache.Query {
	path, tags := ep.Resolve(id)
	if args == nil && id != "" {
		args = map[string]string{"id": id}
	}
	return cache.Query{
		Key:  cache.NewKey(ep.Name, args),
		Tags: tags,
		Fetch: fetchJSON[T](sender, gateway.Request{
			Method: http.MethodGet,
			Path:   path,
			Query:  q,
			Auth:   ep.Auth,
		}),
	}
}

// Get 订阅查询，等到有结果后退订并返回数据。条目在 GC 宽限期内保留
func Get[T any](ctx context.Context, c *cache.Cache, q cache.Query) (T, error) {
	var zero T
	sub, err := c.Subscribe(q)
	if err != nil {
		return zero, err
	}
	defer sub.Unsubscribe()

	snap, err := sub.Wait(ctx)
	if err != nil {
		return zero, err
	}
	v, ok := snap.Data.(T)
	if !ok {
		return zero, errors.Transport(errors.TransportMalformed, 0, errors.Std("unexpected cache data type"))
	}
	return v, nil
}

func blogTags(data any) []cache.Tag {
	var blogs []Blog
	switch v := data.(type) {
	case []Blog:
		blogs = v
	case BlogPage:
		blogs = v.Blogs
	case SearchResult:
		blogs = v.Blogs
	}
	tags := make([]cache.Tag, 0, len(blogs))
	for _, b := range blogs {
		if b.ID != "" {
			tags = append(tags, cache.TID(TagBlog, b.ID))
		}
	}
	return tags
}

// Search 搜索博客、用户和分类
func (a *API) Search(keyword string) cache.Query {
	q := query[SearchResult](a.sender, SearchEndpoint, "", map[string]string{"q": keyword}, url.Values{"q": {keyword}})
	q.Provides = blogTags
	return q
}

// Me 当前登录用户
func (a *API) Me() cache.Query {
	return query[User](a.sender, MeEndpoint, "", nil, nil)
}

func (a *API) User(id string) cache.Query {
	return query[User](a.sender, UserEndpoint, id, nil, nil)
}

// Blogs 分页列表，page 从 1 开始，0 表示由服务端决定
func (a *API) Blogs(params BlogListParams) cache.Query {
	values := url.Values{}
	if params.Page > 0 {
		values.Set("page", strconv.Itoa(params.Page))
	}
	if params.Category != "" {
		values.Set("category", params.Category)
	}
	q := query[BlogPage](a.sender, BlogsEndpoint, "", params, values)
	q.Provides = blogTags
	return q
}

func (a *API) Blog(id string) cache.Query {
	return query[Blog](a.sender, BlogEndpoint, id, nil, nil)
}

func (a *API) BlogsByUser(userID string) cache.Query {
	q := query[[]Blog](a.sender, BlogsByUserEndpoint, userID, nil, nil)
	q.Provides = blogTags
	return q
}

func (a *API) Categories() cache.Query {
	return query[[]Category](a.sender, CategoriesEndpoint, "", nil, nil)
}

// exec 执行写操作并解码返回体
func exec[T any](ctx context.Context, d *mutation.Dispatcher, spec mutation.Spec, payload any) (T, error) {
	var v T
	res, err := d.Execute(ctx, spec, payload)
	if err != nil {
		return v, err
	}
	if err := res.Decode(&v); err != nil {
		return v, errors.Transport(errors.TransportMalformed, res.Response.Status, err)
	}
	return v, nil
}

func (a *API) Register(ctx context.Context, req RegisterRequest) (Message, error) {
	return exec[Message](ctx, a.dispatcher, RegisterSpec, req)
}

func (a *API) ForgotPassword(ctx context.Context, email string) (Message, error) {
	return exec[Message](ctx, a.dispatcher, ForgotPasswordSpec, EmailRequest{Email: email})
}

func (a *API) ResetPassword(ctx context.Context, req ResetPasswordRequest) (Message, error) {
	return exec[Message](ctx, a.dispatcher, ResetPasswordSpec, req)
}

func (a *API) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (Message, error) {
	return exec[Message](ctx, a.dispatcher, VerifyOTPSpec, req)
}

func (a *API) ResendOTP(ctx context.Context, email string) (Message, error) {
	return exec[Message](ctx, a.dispatcher, ResendOTPSpec, EmailRequest{Email: email})
}

func (a *API) ChangeEmail(ctx context.Context, req ChangeEmailRequest) (Message, error) {
	return exec[Message](ctx, a.dispatcher, ChangeEmailSpec, req)
}

// ChangeAvatar 以 multipart 上传头像
func (a *API) ChangeAvatar(ctx context.Context, filename string, r io.Reader) (User, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(AvatarField, filename)
	if err != nil {
		return User{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return User{}, err
	}
	if err := w.Close(); err != nil {
		return User{}, err
	}
	return exec[User](ctx, a.dispatcher, ChangeAvatarSpec, gateway.RawBody{
		ContentType: w.FormDataContentType(),
		Reader:      &buf,
	})
}

// RemoveAvatar 清除头像
func (a *API) RemoveAvatar(ctx context.Context) (User, error) {
	return exec[User](ctx, a.dispatcher, ChangeAvatarSpec, map[string]any{AvatarField: nil})
}

// DeleteAccount 删除账号。本地会话由调用方清理
func (a *API) DeleteAccount(ctx context.Context, password string) (Message, error) {
	return exec[Message](ctx, a.dispatcher, DeleteAccountSpec, DeleteAccountRequest{Password: password})
}

func (a *API) CreateBlog(ctx context.Context, req CreateBlogRequest) (Blog, error) {
	return exec[Blog](ctx, a.dispatcher, CreateBlogSpec, req)
}

func (a *API) DeleteBlog(ctx context.Context, id string) (Message, error) {
	return exec[Message](ctx, a.dispatcher, specFor(DeleteBlogSpec, id), nil)
}

// React 给博客添加表情回应，只失效这一篇
func (a *API) React(ctx context.Context, id, reaction string) (Blog, error) {
	spec := specFor(ReactSpec, id)
	spec.Invalidates = []cache.Tag{cache.TID(TagBlog, id)}
	return exec[Blog](ctx, a.dispatcher, spec, ReactionRequest{Reaction: reaction})
}
