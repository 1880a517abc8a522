package validator

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Validator 校验器接口
type Validator interface {
	Struct(s any) error
	StructCtx(ctx context.Context, s any) error
	Var(field any, tag string) error
}

// Validate 全局校验器，配置加载和请求参数校验共用
var Validate Validator = New()

type validatorImpl struct {
	validate *validator.Validate
	trans    ut.Translator
}

// Option 校验器选项
type Option func(*validator.Validate)

// WithTagName 设置校验标签名
func WithTagName(name string) Option {
	return func(v *validator.Validate) {
		v.SetTagName(name)
	}
}

// New 创建英文翻译的校验器，字段名取 json / mapstructure 标签
func New(opts ...Option) Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	for _, opt := range opts {
		opt(v)
	}

	locale := en.New()
	trans, _ := ut.New(locale, locale).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	return &validatorImpl{validate: v, trans: trans}
}

func fieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "mapstructure"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func (v *validatorImpl) Struct(s any) error {
	if s == nil {
		return errors.New("validation target cannot be nil")
	}
	return v.translate(v.validate.Struct(s))
}

func (v *validatorImpl) StructCtx(ctx context.Context, s any) error {
	if s == nil {
		return errors.New("validation target cannot be nil")
	}
	return v.translate(v.validate.StructCtx(ctx, s))
}

func (v *validatorImpl) Var(field any, tag string) error {
	return v.translate(v.validate.Var(field, tag))
}

func (v *validatorImpl) translate(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	fields := make([]FieldError, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, FieldError{
			Namespace: fe.Namespace(),
			Field:     fe.Field(),
			Tag:       fe.Tag(),
			Message:   fe.Translate(v.trans),
		})
	}
	return &ValidationErrors{Fields: fields}
}
