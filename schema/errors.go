package schema

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrAmbiguousDirective 同一字段的元数据链上出现了多个指令
	ErrAmbiguousDirective = errors.New("ambiguous directive")
	// ErrInvalidDirective 元数据中的指令不是 ColumnDirective 或 RelationshipDirective
	ErrInvalidDirective = errors.New("invalid directive")
)

// FieldError 构建失败的字段，Err 为原始错误
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
