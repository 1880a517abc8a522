package mockapi

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kochabx/blogkit/api"
	"github.com/kochabx/blogkit/errors"
	transporthttp "github.com/kochabx/blogkit/transport/http"
)

// maxAvatarSize 头像上传上限
const maxAvatarSize = 2 << 20

type changeEmailRequest struct {
	NewEmail string `json:"newEmail" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type passwordRequest struct {
	Password string `json:"password" validate:"required"`
}

// publicUser 其他用户看不到邮箱
func publicUser(u api.User) api.User {
	u.Email = ""
	return u
}

func (b *Backend) me(c *gin.Context) {
	claims := b.claims(c)

	b.data.mu.RLock()
	u, ok := b.data.users[claims.Subject]
	var user api.User
	if ok {
		user = u.User
	}
	b.data.mu.RUnlock()

	if !ok {
		transporthttp.GinError(c, errors.NotFound("User not found"))
		return
	}
	transporthttp.GinJSON(c, http.StatusOK, user)
}

func (b *Backend) user(c *gin.Context) {
	b.data.mu.RLock()
	u, ok := b.data.users[c.Param("id")]
	var user api.User
	if ok {
		user = publicUser(u.User)
	}
	b.data.mu.RUnlock()

	if !ok {
		transporthttp.GinError(c, errors.NotFound("User not found"))
		return
	}
	transporthttp.GinJSON(c, http.StatusOK, user)
}

// changeEmail 校验密码后给新邮箱发验证码，由 verify-otp 确认
func (b *Backend) changeEmail(c *gin.Context) {
	var req changeEmailRequest
	if !bind(c, &req) {
		return
	}
	claims := b.claims(c)

	b.data.mu.Lock()
	defer b.data.mu.Unlock()

	u, ok := b.data.users[claims.Subject]
	if !ok {
		transporthttp.GinError(c, errors.NotFound("User not found"))
		return
	}
	if !checkPassword(u.PasswordHash, req.Password) {
		transporthttp.GinError(c, errors.BadRequest("Incorrect password"))
		return
	}
	if _, taken := b.data.userByEmail(req.NewEmail); taken {
		transporthttp.GinError(c, errors.Conflict("Email already registered"))
		return
	}
	u.PendingEmail = strings.TrimSpace(req.NewEmail)
	u.OTP = newOTP()
	message(c, http.StatusOK, "OTP sent to your new email")
}

// changeAvatar multipart 上传新头像，JSON {"profileImage": null} 清除头像
func (b *Backend) changeAvatar(c *gin.Context) {
	var image string
	if strings.HasPrefix(c.ContentType(), gin.MIMEMultipartPOSTForm) {
		fh, err := c.FormFile(api.AvatarField)
		if err != nil {
			transporthttp.GinError(c, errors.BadRequest("%s is required", api.AvatarField))
			return
		}
		if fh.Size > maxAvatarSize {
			transporthttp.GinError(c, errors.New(http.StatusRequestEntityTooLarge, "Avatar is too large"))
			return
		}
		image = "/uploads/" + uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
	} else {
		var req map[string]*string
		if err := c.ShouldBindJSON(&req); err != nil {
			transporthttp.GinError(c, errors.BadRequest("invalid request body"))
			return
		}
		v, ok := req[api.AvatarField]
		if !ok {
			transporthttp.GinError(c, errors.BadRequest("%s is required", api.AvatarField))
			return
		}
		if v != nil {
			image = *v
		}
	}

	claims := b.claims(c)
	b.data.mu.Lock()
	u, ok := b.data.users[claims.Subject]
	var user api.User
	if ok {
		u.ProfileImage = image
		user = u.User
	}
	b.data.mu.Unlock()

	if !ok {
		transporthttp.GinError(c, errors.NotFound("User not found"))
		return
	}
	transporthttp.GinJSON(c, http.StatusOK, user)
}

// deleteAccount 删除用户和他的博客，并吊销当前 token
func (b *Backend) deleteAccount(c *gin.Context) {
	var req passwordRequest
	if !bind(c, &req) {
		return
	}
	claims := b.claims(c)

	b.data.mu.Lock()
	defer b.data.mu.Unlock()

	u, ok := b.data.users[claims.Subject]
	if !ok {
		transporthttp.GinError(c, errors.NotFound("User not found"))
		return
	}
	if !checkPassword(u.PasswordHash, req.Password) {
		transporthttp.GinError(c, errors.BadRequest("Incorrect password"))
		return
	}
	b.data.removeUser(u.ID)
	b.data.revoked[claims.ID] = b.clock.Now()
	message(c, http.StatusOK, "Account deleted successfully")
}
