package errors

import (
	goerrors "errors"
)

// 标准库 errors 的转发，调用方只需导入本包

func Unwrap(err error) error {
	return goerrors.Unwrap(err)
}

func Is(err, target error) bool {
	return goerrors.Is(err, target)
}

func As(err error, target any) bool {
	return goerrors.As(err, target)
}

func Join(errs ...error) error {
	return goerrors.Join(errs...)
}

// Std creates a plain sentinel error.
func Std(text string) error {
	return goerrors.New(text)
}
