package registry

import "github.com/pkg/errors"

var (
	ErrDuplicateTable      = errors.New("duplicate table name")
	ErrNoPrimaryKey        = errors.New("table has no primary key")
	ErrUnresolvedReference = errors.New("unresolved reference")
	ErrCyclicForeignKey    = errors.New("cyclic foreign key dependency")
	ErrUnsupportedDialect  = errors.New("unsupported dialect")
	ErrUnsupportedSQLType  = errors.New("unsupported storage type")
)
