package registry

import (
	"context"
	"strings"
)

// Executor 在数据库上执行建表和删表
type Executor interface {
	Migrate(ctx context.Context, tables ...*Table) error
	DropTable(ctx context.Context, table string) error
	Close() error
}

// alreadyExists 建表和建索引时忽略对象已存在的错误
func alreadyExists(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "already exist") ||
		strings.Contains(msg, "Duplicate key name")
}
