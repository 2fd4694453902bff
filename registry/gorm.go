package registry

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hatlonely/sqltable/cfg"
	"github.com/hatlonely/sqltable/cfg/validator"
)

type GormOptions struct {
	// 驱动：sqlite, mysql
	Driver string `cfg:"driver" def:"sqlite" validate:"oneof=sqlite mysql"`
	DSN    string `cfg:"dsn" validate:"required"`
}

// Gorm 基于 gorm 连接的执行器，建表语句与 SQL 执行器相同
type Gorm struct {
	db      *gorm.DB
	dialect string
}

func NewGormWithOptions(options *GormOptions) (*Gorm, error) {
	opts := &GormOptions{}
	if options != nil {
		*opts = *options
	}
	if err := cfg.SetDefaults(opts); err != nil {
		return nil, errors.WithMessage(err, "cfg.SetDefaults failed")
	}
	if err := validator.ValidateStruct(opts); err != nil {
		return nil, errors.Wrap(err, "validator.ValidateStruct failed")
	}

	var dialector gorm.Dialector
	switch opts.Driver {
	case "sqlite":
		dialector = sqlite.Open(opts.DSN)
	case "mysql":
		dialector = mysql.Open(opts.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "gorm.Open %s failed", opts.Driver)
	}
	return NewGorm(db)
}

// NewGorm 包装已打开的 gorm 连接，方言由 gorm 的 Dialector 决定
func NewGorm(db *gorm.DB) (*Gorm, error) {
	name := db.Dialector.Name()
	d, err := parseDialect(name)
	if err != nil {
		return nil, err
	}
	return &Gorm{db: db, dialect: string(d)}, nil
}

func (g *Gorm) DB() *gorm.DB {
	return g.db
}

func (g *Gorm) Dialect() string {
	return g.dialect
}

func (g *Gorm) Migrate(ctx context.Context, tables ...*Table) error {
	db := g.db.WithContext(ctx)
	for _, table := range tables {
		stmts, err := MigrationSQL(g.dialect, table)
		if err != nil {
			return err
		}
		for _, stmt := range stmts {
			if err := db.Exec(stmt).Error; err != nil && !alreadyExists(err) {
				return errors.Wrapf(err, "migrate table %s failed", table.Name)
			}
		}
	}
	return nil
}

func (g *Gorm) DropTable(ctx context.Context, table string) error {
	stmt, err := DropTableSQL(g.dialect, table)
	if err != nil {
		return err
	}
	if err := g.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return errors.Wrapf(err, "drop table %s failed", table)
	}
	return nil
}

func (g *Gorm) HasTable(ctx context.Context, table string) bool {
	return g.db.WithContext(ctx).Migrator().HasTable(table)
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return errors.Wrap(err, "get sql.DB failed")
	}
	return sqlDB.Close()
}
