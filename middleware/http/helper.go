package middleware

import (
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// PathMatcher 跳过路径匹配。"/health" 精确匹配，"/auth/**" 匹配前缀及其子路径，
// 含 * ? [ 的按 path.Match 处理
type PathMatcher struct {
	exact    map[string]struct{}
	prefixes []string
	globs    []string
}

func NewPathMatcher(paths []string) *PathMatcher {
	pm := &PathMatcher{exact: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		switch prefix, ok := strings.CutSuffix(p, "/**"); {
		case ok:
			pm.prefixes = append(pm.prefixes, prefix)
		case strings.ContainsAny(p, "*?["):
			pm.globs = append(pm.globs, p)
		default:
			pm.exact[p] = struct{}{}
		}
	}
	return pm
}

func (pm *PathMatcher) Match(urlPath string) bool {
	if pm == nil {
		return false
	}
	if _, ok := pm.exact[urlPath]; ok {
		return true
	}
	for _, prefix := range pm.prefixes {
		if rest, ok := strings.CutPrefix(urlPath, prefix); ok && (rest == "" || rest[0] == '/') {
			return true
		}
	}
	for _, g := range pm.globs {
		if ok, _ := path.Match(g, urlPath); ok {
			return true
		}
	}
	return false
}

func shouldSkip(c *gin.Context, matcher *PathMatcher, skip func(*gin.Context) bool) bool {
	if skip != nil && skip(c) {
		return true
	}
	return matcher.Match(c.Request.URL.Path)
}
