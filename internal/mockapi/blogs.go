package mockapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kochabx/blogkit/api"
	"github.com/kochabx/blogkit/errors"
	transporthttp "github.com/kochabx/blogkit/transport/http"
)

type createBlogRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Content  string `json:"content" validate:"required"`
	Category string `json:"category" validate:"required"`
}

type reactionRequest struct {
	Reaction string `json:"reaction" validate:"required,max=32"`
}

// listBlogs 分页列表，page 从 1 开始，category 可以是分类 id 或标题
func (b *Backend) listBlogs(c *gin.Context) {
	page := 1
	if p := c.Query("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			transporthttp.GinError(c, errors.BadRequest("invalid page"))
			return
		}
		page = n
	}

	b.data.mu.RLock()
	var match func(*api.Blog) bool
	if ref := c.Query("category"); ref != "" {
		cat, ok := b.data.category(ref)
		if !ok {
			b.data.mu.RUnlock()
			transporthttp.GinError(c, errors.NotFound("Category not found"))
			return
		}
		match = func(bl *api.Blog) bool { return bl.Category == cat.ID }
	}
	all := b.data.listBlogs(match)
	b.data.mu.RUnlock()

	size := b.cfg.PageSize
	total := len(all)
	start := min((page-1)*size, total)
	end := min(start+size, total)

	transporthttp.GinJSON(c, http.StatusOK, api.BlogPage{
		Blogs:      all[start:end],
		Page:       page,
		TotalPages: (total + size - 1) / size,
		Total:      total,
	})
}

func (b *Backend) blog(c *gin.Context) {
	b.data.mu.RLock()
	bl, ok := b.data.blogs[c.Param("id")]
	var out api.Blog
	if ok {
		out = copyBlog(bl)
	}
	b.data.mu.RUnlock()

	if !ok {
		transporthttp.GinError(c, errors.NotFound("Blog not found"))
		return
	}
	transporthttp.GinJSON(c, http.StatusOK, out)
}

func (b *Backend) blogsByUser(c *gin.Context) {
	id := c.Param("id")

	b.data.mu.RLock()
	_, ok := b.data.users[id]
	blogs := b.data.listBlogs(func(bl *api.Blog) bool { return bl.Author == id })
	b.data.mu.RUnlock()

	if !ok {
		transporthttp.GinError(c, errors.NotFound("User not found"))
		return
	}
	transporthttp.GinJSON(c, http.StatusOK, blogs)
}

func (b *Backend) createBlog(c *gin.Context) {
	var req createBlogRequest
	if !bind(c, &req) {
		return
	}
	claims := b.claims(c)

	b.data.mu.Lock()
	defer b.data.mu.Unlock()

	cat, ok := b.data.category(req.Category)
	if !ok {
		transporthttp.GinError(c, errors.UnprocessableEntity("Unknown category %q", req.Category))
		return
	}
	bl := &api.Blog{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(req.Title),
		Content:   req.Content,
		Category:  cat.ID,
		Author:    claims.Subject,
		CreatedAt: b.clock.Now(),
	}
	b.data.addBlog(bl)
	transporthttp.GinJSON(c, http.StatusCreated, copyBlog(bl))
}

// deleteBlog 只有作者可以删除
func (b *Backend) deleteBlog(c *gin.Context) {
	claims := b.claims(c)
	id := c.Param("id")

	b.data.mu.Lock()
	defer b.data.mu.Unlock()

	bl, ok := b.data.blogs[id]
	if !ok {
		transporthttp.GinError(c, errors.NotFound("Blog not found"))
		return
	}
	if bl.Author != claims.Subject {
		transporthttp.GinError(c, errors.Forbidden("You can only delete your own blogs"))
		return
	}
	b.data.removeBlog(id)
	message(c, http.StatusOK, "Blog deleted successfully")
}

func (b *Backend) react(c *gin.Context) {
	var req reactionRequest
	if !bind(c, &req) {
		return
	}

	b.data.mu.Lock()
	defer b.data.mu.Unlock()

	bl, ok := b.data.blogs[c.Param("id")]
	if !ok {
		transporthttp.GinError(c, errors.NotFound("Blog not found"))
		return
	}
	if bl.Reactions == nil {
		bl.Reactions = make(map[string]int)
	}
	bl.Reactions[req.Reaction]++
	transporthttp.GinJSON(c, http.StatusOK, copyBlog(bl))
}

func (b *Backend) listCategories(c *gin.Context) {
	b.data.mu.RLock()
	cats := append(make([]api.Category, 0, len(b.data.categories)), b.data.categories...)
	b.data.mu.RUnlock()
	transporthttp.GinJSON(c, http.StatusOK, cats)
}
