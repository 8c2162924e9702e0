package profile

import (
	"errors"
	"fmt"
)

// 这些错误的文本会直接返回给调用方。
var (
	ErrSectionNotFound = errors.New("Section not found")
	ErrImageNotFound   = errors.New("Image not found")
	ErrUserNotFound    = errors.New("User not found")

	// ErrPayloadDelete 包装对象存储的删除失败；此时图片记录保留不动。
	ErrPayloadDelete = errors.New("delete image payload")
)

// ValidationError 表示输入不合法，操作未执行。
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalidf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err (or anything it wraps) is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err is one of the not-found errors of this package.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSectionNotFound) ||
		errors.Is(err, ErrImageNotFound) ||
		errors.Is(err, ErrUserNotFound)
}
