package cache

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Key 缓存键：endpoint 加参数的规范化 JSON，相同参数总是得到相同的键
type Key string

// NewKey args 为 nil 时键就是 endpoint。map 的键按字典序输出，结构体先转成 map 再输出
func NewKey(endpoint string, args any) Key {
	if args == nil {
		return Key(endpoint)
	}

	canonical, err := canonicalJSON(args)
	if err != nil {
		// 不可编码的参数退化成 %v，仍然是确定性的
		canonical = fmt.Sprintf("%v", args)
	}
	if canonical == "null" || canonical == "{}" {
		return Key(endpoint)
	}
	return Key(endpoint + "?" + canonical)
}

// Endpoint 键中 ? 之前的部分
func (k Key) Endpoint() string {
	s := string(k)
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[:i]
	}
	return s
}

func (k Key) String() string {
	return string(k)
}

// canonicalJSON 先编码再解码为通用值，encoding/json 对 map 的键排序，结构体字段顺序因此被抹平
func canonicalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
