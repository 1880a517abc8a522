package http

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Resolve 把接口路径拼到 base 上，保留 base 自带的路径前缀
//
//	Resolve("https://api.example.com/v1", "/auth/login") => https://api.example.com/v1/auth/login
func Resolve(base, p string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base url %q must be absolute", base)
	}

	rel, err := url.Parse(p)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", p, err)
	}

	// RawPath 保留 %2F 这类已转义的路径参数
	raw := Join(u.EscapedPath(), rel.EscapedPath())
	u.Path = Join(u.Path, rel.Path)
	u.RawPath = raw
	if rel.RawQuery != "" {
		q := u.Query()
		for k, vs := range rel.Query() {
			q[k] = append(q[k], vs...)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Join 拼接路径段，结果总以 / 开头
func Join(base string, segments ...string) string {
	parts := make([]string, 0, len(segments)+2)
	parts = append(parts, "/", base)
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	joined := path.Join(parts...)
	// 保留调用方显式的结尾斜杠
	if n := len(segments); n > 0 && strings.HasSuffix(segments[n-1], "/") && joined != "/" {
		joined += "/"
	}
	return joined
}

// PathEscape 路径参数转义，用于拼接 /users/{id}
func PathEscape(s string) string {
	return url.PathEscape(s)
}
