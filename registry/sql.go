package registry

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/hatlonely/sqltable/cfg"
	"github.com/hatlonely/sqltable/cfg/validator"
)

type SQLOptions struct {
	// 驱动：mysql, sqlite3 (mattn/go-sqlite3), sqlite (modernc.org/sqlite), postgres (lib/pq)
	Driver   string `cfg:"driver" def:"sqlite3" validate:"oneof=mysql sqlite3 sqlite postgres"`
	DSN      string `cfg:"dsn"`
	Host     string `cfg:"host" def:"localhost"`
	Port     string `cfg:"port"`
	Database string `cfg:"database"`
	Username string `cfg:"username"`
	Password string `cfg:"password"`
	Charset  string `cfg:"charset" def:"utf8mb4"`
	SSLMode  string `cfg:"sslMode" def:"disable"`
	MaxConns int    `cfg:"maxConns" def:"10"`
	MaxIdle  int    `cfg:"maxIdle" def:"5"`
}

// SQL 基于 database/sql 的执行器
type SQL struct {
	db      *sql.DB
	dialect string
}

func NewSQLWithOptions(options *SQLOptions) (*SQL, error) {
	opts := &SQLOptions{}
	if options != nil {
		*opts = *options
	}
	if err := cfg.SetDefaults(opts); err != nil {
		return nil, errors.WithMessage(err, "cfg.SetDefaults failed")
	}
	if err := validator.ValidateStruct(opts); err != nil {
		return nil, errors.Wrap(err, "validator.ValidateStruct failed")
	}

	dsn, err := buildDSN(opts)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "sql.Open %s failed", opts.Driver)
	}

	db.SetMaxOpenConns(opts.MaxConns)
	db.SetMaxIdleConns(opts.MaxIdle)
	// 内存数据库每个连接各自独立
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping database failed")
	}

	return NewSQL(db, opts.Driver), nil
}

// NewSQL 包装已打开的连接，dialect 取值同 Options.Dialect
func NewSQL(db *sql.DB, dialect string) *SQL {
	return &SQL{db: db, dialect: dialect}
}

func buildDSN(options *SQLOptions) (string, error) {
	if options.DSN != "" {
		return options.DSN, nil
	}

	switch options.Driver {
	case "mysql":
		port := options.Port
		if port == "" {
			port = "3306"
		}
		c := mysql.NewConfig()
		c.User = options.Username
		c.Passwd = options.Password
		c.Net = "tcp"
		c.Addr = net.JoinHostPort(options.Host, port)
		c.DBName = options.Database
		c.ParseTime = true
		c.Params = map[string]string{"charset": options.Charset}
		return c.FormatDSN(), nil
	case "postgres":
		port := options.Port
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			options.Host, port, options.Username, options.Password, options.Database, options.SSLMode), nil
	case "sqlite3", "sqlite":
		if options.Database == "" {
			return ":memory:", nil
		}
		return options.Database, nil
	}
	return "", errors.Wrapf(ErrUnsupportedDialect, "driver %q", options.Driver)
}

func (s *SQL) DB() *sql.DB {
	return s.db
}

func (s *SQL) Dialect() string {
	return s.dialect
}

// Migrate 依次建表和索引，已存在的表和索引被跳过
func (s *SQL) Migrate(ctx context.Context, tables ...*Table) error {
	for _, table := range tables {
		stmts, err := MigrationSQL(s.dialect, table)
		if err != nil {
			return err
		}
		for _, stmt := range stmts {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil && !alreadyExists(err) {
				return errors.Wrapf(err, "migrate table %s failed", table.Name)
			}
		}
	}
	return nil
}

func (s *SQL) DropTable(ctx context.Context, table string) error {
	stmt, err := DropTableSQL(s.dialect, table)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrapf(err, "drop table %s failed", table)
	}
	return nil
}

// HasTable 查询表是否存在
func (s *SQL) HasTable(ctx context.Context, table string) (bool, error) {
	var query string
	switch s.dialect {
	case DialectSQLite3, DialectSQLite:
		query = "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	case DialectMySQL:
		query = "SELECT count(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
	case DialectPostgres:
		query = "SELECT count(*) FROM information_schema.tables WHERE table_schema = CURRENT_SCHEMA() AND table_name = $1"
	default:
		return false, errors.Wrapf(ErrUnsupportedDialect, "%q", s.dialect)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, table).Scan(&n); err != nil {
		return false, errors.Wrapf(err, "query table %s failed", table)
	}
	return n > 0, nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}
