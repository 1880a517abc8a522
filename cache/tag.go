package cache

import (
	"slices"
	"strings"
	"sync"
)

// Tag 实体类别标签。ID 为空表示该类别的全部实体
type Tag struct {
	Type string
	ID   string
}

// T 类别标签
func T(typ string) Tag {
	return Tag{Type: typ}
}

// TID 单个实体的标签
func TID(typ, id string) Tag {
	return Tag{Type: typ, ID: id}
}

// ParseTag 解析 "blog" 或 "blog:42"
func ParseTag(s string) Tag {
	typ, id, _ := strings.Cut(s, ":")
	return Tag{Type: typ, ID: id}
}

// ParseTags 逗号分隔，忽略空项
func ParseTags(s string) []Tag {
	var tags []Tag
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			tags = append(tags, ParseTag(part))
		}
	}
	return tags
}

func (t Tag) String() string {
	if t.ID == "" {
		return t.Type
	}
	return t.Type + ":" + t.ID
}

// Matches 使 t 失效时 provided 是否受影响。
// 类别标签命中同类的所有标签；实体标签命中同一实体和该类别标签（列表里可能包含这个实体）
func (t Tag) Matches(provided Tag) bool {
	if t.Type != provided.Type {
		return false
	}
	return t.ID == "" || provided.ID == "" || t.ID == provided.ID
}

func tagStrings(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}

// TagIndex 标签与缓存键的二部图。只记录关系，不持有缓存数据
type TagIndex struct {
	mu     sync.RWMutex
	byKey  map[Key][]Tag
	byTag  map[Tag]map[Key]struct{}
	byType map[string]map[Tag]struct{}
}

func NewTagIndex() *TagIndex {
	return &TagIndex{
		byKey:  make(map[Key][]Tag),
		byTag:  make(map[Tag]map[Key]struct{}),
		byType: make(map[string]map[Tag]struct{}),
	}
}

// Register 用 tags 替换 key 之前提供的标签
func (idx *TagIndex) Register(key Key, tags []Tag) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.unregister(key)
	if len(tags) == 0 {
		return
	}

	uniq := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if t.Type == "" || slices.Contains(uniq, t) {
			continue
		}
		uniq = append(uniq, t)

		keys := idx.byTag[t]
		if keys == nil {
			keys = make(map[Key]struct{})
			idx.byTag[t] = keys
		}
		keys[key] = struct{}{}

		types := idx.byType[t.Type]
		if types == nil {
			types = make(map[Tag]struct{})
			idx.byType[t.Type] = types
		}
		types[t] = struct{}{}
	}
	idx.byKey[key] = uniq
}

// Unregister 删除 key 的所有边
func (idx *TagIndex) Unregister(key Key) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.unregister(key)
}

func (idx *TagIndex) unregister(key Key) {
	for _, t := range idx.byKey[key] {
		keys := idx.byTag[t]
		delete(keys, key)
		if len(keys) > 0 {
			continue
		}
		delete(idx.byTag, t)
		if types := idx.byType[t.Type]; types != nil {
			delete(types, t)
			if len(types) == 0 {
				delete(idx.byType, t.Type)
			}
		}
	}
	delete(idx.byKey, key)
}

// Invalidate 返回受 tags 影响的键，已排序去重。索引本身不变，条目重新获取后会重新注册
func (idx *TagIndex) Invalidate(tags ...Tag) []Key {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	hit := make(map[Key]struct{})
	for _, t := range tags {
		for provided := range idx.byType[t.Type] {
			if !t.Matches(provided) {
				continue
			}
			for k := range idx.byTag[provided] {
				hit[k] = struct{}{}
			}
		}
	}

	keys := make([]Key, 0, len(hit))
	for k := range hit {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Tags key 当前提供的标签
func (idx *TagIndex) Tags(key Key) []Tag {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return slices.Clone(idx.byKey[key])
}

// Keys 精确提供 tag 的键
func (idx *TagIndex) Keys(tag Tag) []Key {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	keys := make([]Key, 0, len(idx.byTag[tag]))
	for k := range idx.byTag[tag] {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len 已注册的键数量
func (idx *TagIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byKey)
}
