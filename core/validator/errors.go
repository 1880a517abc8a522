package validator

import "strings"

// FieldError 单个字段的校验失败
type FieldError struct {
	Namespace string
	Field     string
	Tag       string
	Message   string
}

// ValidationErrors 翻译后的校验错误集合
type ValidationErrors struct {
	Fields []FieldError
}

func (e *ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// Field 按字段名查找
func (e *ValidationErrors) Field(name string) (FieldError, bool) {
	for _, f := range e.Fields {
		if f.Field == name {
			return f, true
		}
	}
	return FieldError{}, false
}
