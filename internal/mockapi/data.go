package mockapi

import (
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kochabx/blogkit/api"
)

type account struct {
	api.User
	PasswordHash string
	OTP          string
	PendingEmail string
}

// data 内存数据，所有字段由 mu 保护
type data struct {
	mu         sync.RWMutex
	users      map[string]*account
	byEmail    map[string]string
	blogs      map[string]*api.Blog
	blogOrder  []string
	categories []api.Category
	// revoked 已登出 token 的 jti
	revoked map[string]time.Time
}

func newData(categories []string) *data {
	d := &data{
		users:   make(map[string]*account),
		byEmail: make(map[string]string),
		blogs:   make(map[string]*api.Blog),
		revoked: make(map[string]time.Time),
	}
	for _, title := range categories {
		d.categories = append(d.categories, api.Category{ID: uuid.NewString(), Title: title})
	}
	return d
}

func newOTP() string {
	return fmt.Sprintf("%06d", rand.IntN(1000000))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (d *data) userByEmail(email string) (*account, bool) {
	id, ok := d.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, false
	}
	u, ok := d.users[id]
	return u, ok
}

func (d *data) addUser(u *account) {
	d.users[u.ID] = u
	d.byEmail[normalizeEmail(u.Email)] = u.ID
}

func (d *data) changeEmail(u *account, email string) {
	delete(d.byEmail, normalizeEmail(u.Email))
	u.Email = email
	d.byEmail[normalizeEmail(email)] = u.ID
}

func (d *data) removeUser(id string) {
	u, ok := d.users[id]
	if !ok {
		return
	}
	delete(d.users, id)
	delete(d.byEmail, normalizeEmail(u.Email))
	d.blogOrder = slices.DeleteFunc(d.blogOrder, func(bid string) bool {
		if d.blogs[bid].Author == id {
			delete(d.blogs, bid)
			return true
		}
		return false
	})
}

// category 按 id 或标题查找，标题不区分大小写
func (d *data) category(ref string) (api.Category, bool) {
	for _, c := range d.categories {
		if c.ID == ref || strings.EqualFold(c.Title, ref) {
			return c, true
		}
	}
	return api.Category{}, false
}

func (d *data) addBlog(b *api.Blog) {
	d.blogs[b.ID] = b
	d.blogOrder = append(d.blogOrder, b.ID)
}

func (d *data) removeBlog(id string) {
	delete(d.blogs, id)
	d.blogOrder = slices.DeleteFunc(d.blogOrder, func(bid string) bool { return bid == id })
}

// listBlogs 新的在前
func (d *data) listBlogs(match func(*api.Blog) bool) []api.Blog {
	out := make([]api.Blog, 0)
	for i := len(d.blogOrder) - 1; i >= 0; i-- {
		b := d.blogs[d.blogOrder[i]]
		if match == nil || match(b) {
			out = append(out, copyBlog(b))
		}
	}
	return out
}

func copyBlog(b *api.Blog) api.Blog {
	c := *b
	c.Reactions = maps.Clone(b.Reactions)
	return c
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
