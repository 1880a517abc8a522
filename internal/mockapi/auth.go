package mockapi

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kochabx/blogkit/api"
	"github.com/kochabx/blogkit/core/validator"
	"github.com/kochabx/blogkit/errors"
	transporthttp "github.com/kochabx/blogkit/transport/http"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	OTP      string `json:"otp" validate:"required,len=6"`
	Password string `json:"password" validate:"required,min=6"`
}

type verifyOTPRequest struct {
	Email    string `json:"email" validate:"required,email"`
	OTP      string `json:"otp" validate:"required,len=6"`
	NewEmail string `json:"newEmail" validate:"omitempty,email"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiredAt int64  `json:"expiredAt"`
}

// bind 解码 JSON 请求体并校验，失败时已写入错误响应
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		transporthttp.GinError(c, errors.BadRequest("invalid request body"))
		return false
	}
	if err := validator.Validate.StructCtx(c.Request.Context(), req); err != nil {
		transporthttp.GinError(c, errors.UnprocessableEntity("%s", err.Error()))
		return false
	}
	return true
}

func message(c *gin.Context, status int, msg string) {
	transporthttp.GinJSON(c, status, api.Message{Success: true, Message: msg})
}

func (b *Backend) newAccount(name, email, password string) (*account, error) {
	hashed, err := b.hashPassword(password)
	if err != nil {
		return nil, err
	}
	return &account{
		User: api.User{
			ID:        uuid.NewString(),
			Name:      strings.TrimSpace(name),
			Email:     strings.TrimSpace(email),
			CreatedAt: b.clock.Now(),
		},
		PasswordHash: hashed,
	}, nil
}

func (b *Backend) register(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}

	u, err := b.newAccount(req.Name, req.Email, req.Password)
	if err != nil {
		transporthttp.GinError(c, errors.Internal("register failed").WithCause(err))
		return
	}
	u.OTP = newOTP()

	b.data.mu.Lock()
	if _, ok := b.data.userByEmail(req.Email); ok {
		b.data.mu.Unlock()
		transporthttp.GinError(c, errors.Conflict("Email already registered"))
		return
	}
	b.data.addUser(u)
	b.data.mu.Unlock()

	message(c, http.StatusCreated, "Registered successfully, check your email for the OTP")
}

// issue 为用户签发 token，expiredAt 用毫秒时间戳
func (b *Backend) issue(c *gin.Context, u *account) {
	token, expiresAt, err := b.jwt.Generate(u.ID, u.Email)
	if err != nil {
		transporthttp.GinError(c, errors.Internal("issue token failed").WithCause(err))
		return
	}
	transporthttp.GinJSON(c, http.StatusOK, tokenResponse{Token: token, ExpiredAt: expiresAt.UnixMilli()})
}

func (b *Backend) login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}

	b.data.mu.RLock()
	u, ok := b.data.userByEmail(req.Email)
	var snapshot account
	if ok {
		snapshot = *u
	}
	b.data.mu.RUnlock()

	if !ok || !checkPassword(snapshot.PasswordHash, req.Password) {
		transporthttp.GinError(c, errors.BadRequest("Invalid email or password"))
		return
	}
	b.issue(c, &snapshot)
}

func (b *Backend) refreshToken(c *gin.Context) {
	claims := b.claims(c)

	b.data.mu.RLock()
	u, ok := b.data.users[claims.Subject]
	var snapshot account
	if ok {
		snapshot = *u
	}
	b.data.mu.RUnlock()

	if !ok {
		transporthttp.GinError(c, errors.Unauthorized("user no longer exists"))
		return
	}
	b.issue(c, &snapshot)
}

// logout 吊销 body 或 Authorization 里的 token，token 无效时同样返回成功
func (b *Backend) logout(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	_ = c.ShouldBindJSON(&req)

	token := req.Token
	if token == "" {
		if scheme, t, ok := strings.Cut(c.GetHeader("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
			token = strings.TrimSpace(t)
		}
	}
	if token != "" {
		if err := b.Revoke(token); err != nil {
			b.logger.Debug().Err(err).Msg("logout with invalid token")
		}
	}
	message(c, http.StatusOK, "Logged out successfully")
}

func (b *Backend) forgotPassword(c *gin.Context) {
	var req emailRequest
	if !bind(c, &req) {
		return
	}

	b.data.mu.Lock()
	u, ok := b.data.userByEmail(req.Email)
	if ok {
		u.OTP = newOTP()
	}
	b.data.mu.Unlock()

	if !ok {
		transporthttp.GinError(c, errors.NotFound("User not found"))
		return
	}
	message(c, http.StatusOK, "OTP sent to your email")
}

func (b *Backend) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bind(c, &req) {
		return
	}
	hashed, err := b.hashPassword(req.Password)
	if err != nil {
		transporthttp.GinError(c, errors.Internal("reset password failed").WithCause(err))
		return
	}

	b.data.mu.Lock()
	u, ok := b.data.userByEmail(req.Email)
	valid := ok && u.OTP != "" && u.OTP == req.OTP
	if valid {
		u.PasswordHash = hashed
		u.OTP = ""
	}
	b.data.mu.Unlock()

	if !valid {
		transporthttp.GinError(c, errors.BadRequest("Invalid OTP"))
		return
	}
	message(c, http.StatusOK, "Password reset successfully")
}

// verifyOTP 验证注册邮箱，newEmail 非空时确认换绑
func (b *Backend) verifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bind(c, &req) {
		return
	}

	b.data.mu.Lock()
	defer b.data.mu.Unlock()

	u, ok := b.data.userByEmail(req.Email)
	if !ok {
		transporthttp.GinError(c, errors.NotFound("User not found"))
		return
	}
	if u.OTP == "" || u.OTP != req.OTP {
		transporthttp.GinError(c, errors.BadRequest("Invalid OTP"))
		return
	}

	if req.NewEmail != "" {
		if normalizeEmail(req.NewEmail) != normalizeEmail(u.PendingEmail) {
			transporthttp.GinError(c, errors.BadRequest("Email change was not requested"))
			return
		}
		if _, taken := b.data.userByEmail(req.NewEmail); taken {
			transporthttp.GinError(c, errors.Conflict("Email already registered"))
			return
		}
		b.data.changeEmail(u, req.NewEmail)
		u.PendingEmail = ""
	}
	u.Verified = true
	u.OTP = ""
	message(c, http.StatusOK, "OTP verified successfully")
}

func (b *Backend) resendOTP(c *gin.Context) {
	var req emailRequest
	if !bind(c, &req) {
		return
	}

	b.data.mu.Lock()
	u, ok := b.data.userByEmail(req.Email)
	if ok {
		u.OTP = newOTP()
	}
	b.data.mu.Unlock()

	if !ok {
		transporthttp.GinError(c, errors.NotFound("User not found"))
		return
	}
	message(c, http.StatusOK, "OTP resent successfully")
}

func (b *Backend) search(c *gin.Context) {
	keyword := strings.TrimSpace(c.Query("q"))
	result := api.SearchResult{
		Blogs:      make([]api.Blog, 0),
		Users:      make([]api.User, 0),
		Categories: make([]api.Category, 0),
	}
	if keyword == "" {
		transporthttp.GinJSON(c, http.StatusOK, result)
		return
	}

	b.data.mu.RLock()
	defer b.data.mu.RUnlock()

	result.Blogs = b.data.listBlogs(func(bl *api.Blog) bool {
		return containsFold(bl.Title, keyword) || containsFold(bl.Content, keyword)
	})
	for _, u := range b.data.users {
		if containsFold(u.Name, keyword) {
			result.Users = append(result.Users, publicUser(u.User))
		}
	}
	slices.SortFunc(result.Users, func(a, b api.User) int { return strings.Compare(a.Name, b.Name) })
	for _, cat := range b.data.categories {
		if containsFold(cat.Title, keyword) {
			result.Categories = append(result.Categories, cat)
		}
	}
	transporthttp.GinJSON(c, http.StatusOK, result)
}
