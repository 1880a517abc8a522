package desensitize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrEmptyRule = errors.New("desensitize: rule name, pattern and fields must not be empty")

// Rule 一条替换规则，Apply 对整行日志生效
type Rule interface {
	Name() string
	Apply(line string) string
}

// regexRule 以正则命中的片段为单位替换
type regexRule struct {
	name    string
	re      *regexp.Regexp
	replace func(re *regexp.Regexp, match string) string
}

func (r *regexRule) Name() string { return r.name }

func (r *regexRule) Apply(line string) string {
	return r.re.ReplaceAllStringFunc(line, func(m string) string {
		return r.replace(r.re, m)
	})
}

// Content 按内容匹配，replacement 支持 $1 这类分组引用
func Content(name, pattern, replacement string) (Rule, error) {
	if name == "" || pattern == "" {
		return nil, ErrEmptyRule
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("desensitize: rule %s: %w", name, err)
	}
	return &regexRule{
		name: name,
		re:   re,
		replace: func(re *regexp.Regexp, m string) string {
			return re.ReplaceAllString(m, replacement)
		},
	}, nil
}

// Field 只处理 JSON 里名为 fields 的字符串值，数字和对象保持原样
func Field(name, replacement string, fields ...string) (Rule, error) {
	if name == "" || len(fields) == 0 {
		return nil, ErrEmptyRule
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		if f == "" {
			return nil, ErrEmptyRule
		}
		names[i] = regexp.QuoteMeta(f)
	}
	re := regexp.MustCompile(`"(?:` + strings.Join(names, "|") + `)"\s*:\s*"`)
	// 值可能包含转义引号，单独扫描到结尾
	return &fieldRule{name: name, key: re, replacement: replacement}, nil
}

type fieldRule struct {
	name        string
	key         *regexp.Regexp
	replacement string
}

func (r *fieldRule) Name() string { return r.name }

func (r *fieldRule) Apply(line string) string {
	locs := r.key.FindAllStringIndex(line, -1)
	if len(locs) == 0 {
		return line
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		if loc[0] < last {
			continue
		}
		end := valueEnd(line, loc[1])
		if end < 0 {
			break
		}
		b.WriteString(line[last:loc[1]])
		b.WriteString(r.replacement)
		last = end
	}
	b.WriteString(line[last:])
	return b.String()
}

// valueEnd 返回字符串值结束引号的位置
func valueEnd(s string, start int) int {
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

func must(r Rule, err error) Rule {
	if err != nil {
		panic(err)
	}
	return r
}

const mask = "******"

var (
	// Bearer Authorization 头 (Bearer eyJ... -> Bearer ******)
	Bearer = must(Content("bearer", `(?i)(bearer\s+)[A-Za-z0-9\-_=]+(\.[A-Za-z0-9\-_=]+){0,2}`, "${1}"+mask))
	// JWT 正文里裸露的 token
	JWT = must(Content("jwt", `\beyJ[A-Za-z0-9\-_=]+\.[A-Za-z0-9\-_=]+\.[A-Za-z0-9\-_.+/=]*`, mask))
	// Email jane@example.com -> j***e@e***.com
	Email = must(Content("email", `\b([A-Za-z0-9])[A-Za-z0-9._%+-]*([A-Za-z0-9])@([A-Za-z0-9])[A-Za-z0-9.-]*\.([A-Za-z]{2,})\b`, "$1***$2@$3***.$4"))

	Password = must(Field("password", mask, "password", "newPassword", "confirmPassword"))
	Token    = must(Field("token", mask, "token", "refreshToken", "accessToken"))
	OTP      = must(Field("otp", mask, "otp", "code"))
	Secret   = must(Field("secret", mask, "secret", "signingKey"))
)

// Builtin 字段规则排在前面，避免 email 规则先改写 token 值
func Builtin() []Rule {
	return []Rule{Token, Password, OTP, Secret, Bearer, JWT, Email}
}
