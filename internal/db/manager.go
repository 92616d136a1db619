package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/ecairns22/csvdeploy/internal/config"
)

var validName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ErrUnexpectedResult is returned by Probe when the round-trip query does not
// return the sentinel value.
var ErrUnexpectedResult = errors.New("unexpected database response")

// dialect captures the per-driver differences the manager cares about.
type dialect struct {
	sqlDriver   string // name registered with database/sql
	defaultPort int
	placeholder func(n int) string
	quote       func(ident string) string
}

func question(int) string { return "?" }
func dollar(n int) string { return "$" + strconv.Itoa(n) }
func atP(n int) string { return "@p" + strconv.Itoa(n) }
func bracket(s string) string { return "[" + s + "]" }
func backtick(s string) string { return "`" + s + "`" }
func doubleQuote(s string) string { return `"` + s + `"` }

var dialects = map[string]dialect{
	"sqlserver": {sqlDriver: "sqlserver", defaultPort: 1433, placeholder: atP, quote: bracket},
	"mysql":     {sqlDriver: "mysql", defaultPort: 3306, placeholder: question, quote: backtick},
	"postgres":  {sqlDriver: "pgx", defaultPort: 5432, placeholder: dollar, quote: doubleQuote},
	"sqlite":    {sqlDriver: "sqlite", placeholder: question, quote: doubleQuote},
}

// Drivers returns the supported DB_DRIVER values.
func Drivers() []string {
	return []string{"sqlserver", "mysql", "postgres", "sqlite"}
}

// Target is everything needed to reach a database.
type Target struct {
	Driver         string
	Server         string
	Port           int
	Name           string
	User           string
	Password       string
	ConnectTimeout time.Duration
}

// Manager wraps a database/sql handle together with its dialect.
type Manager struct {
	db      *sql.DB
	dialect dialect
}

// New opens a handle for the target. No connection is made until first use.
func New(t Target) (*Manager, error) {
	d, ok := dialects[t.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q; use one of %s", t.Driver, strings.Join(Drivers(), ", "))
	}
	dsn, err := DSN(t)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", t.Driver, err)
	}
	if t.Driver == "sqlite" {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}
	return &Manager{db: db, dialect: d}, nil
}

// TargetFromConfig extracts the database target from the tool configuration.
func TargetFromConfig(cfg *config.Config) Target {
	return Target{
		Driver:         cfg.Database.Driver,
		Server:         cfg.Database.Server,
		Port:           cfg.Database.Port,
		Name:           cfg.Database.Name,
		User:           cfg.Database.User,
		Password:       cfg.Database.Password,
		ConnectTimeout: cfg.Database.ConnectTimeout(),
	}
}

// NewFromConfig creates a manager from the tool configuration.
func NewFromConfig(cfg *config.Config) (*Manager, error) {
	return New(TargetFromConfig(cfg))
}

// Address returns host:port of a networked target, or "" for sqlite.
func (t Target) Address() string {
	d, ok := dialects[t.Driver]
	if !ok || t.Driver == "sqlite" || t.Server == "" {
		return ""
	}
	port := t.Port
	if port == 0 {
		port = d.defaultPort
	}
	return net.JoinHostPort(t.Server, strconv.Itoa(port))
}

// Wrap adopts an already opened handle. driver selects the SQL dialect.
func Wrap(db *sql.DB, driver string) (*Manager, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	return &Manager{db: db, dialect: d}, nil
}

// DSN renders the driver-specific connection string for t.
func DSN(t Target) (string, error) {
	if _, ok := dialects[t.Driver]; !ok {
		return "", fmt.Errorf("unsupported database driver %q", t.Driver)
	}
	host := t.Address()
	timeoutSecs := int(t.ConnectTimeout / time.Second)

	switch t.Driver {
	case "sqlserver":
		q := url.Values{}
		q.Set("database", t.Name)
		q.Set("encrypt", "true")
		if timeoutSecs > 0 {
			q.Set("connection timeout", strconv.Itoa(timeoutSecs))
		}
		u := url.URL{Scheme: "sqlserver", User: url.UserPassword(t.User, t.Password), Host: host, RawQuery: q.Encode()}
		return u.String(), nil
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = t.User
		mc.Passwd = t.Password
		mc.Net = "tcp"
		mc.Addr = host
		mc.DBName = t.Name
		mc.Timeout = t.ConnectTimeout
		return mc.FormatDSN(), nil
	case "postgres":
		q := url.Values{}
		if timeoutSecs > 0 {
			q.Set("connect_timeout", strconv.Itoa(timeoutSecs))
		}
		u := url.URL{Scheme: "postgres", User: url.UserPassword(t.User, t.Password), Host: host, Path: "/" + t.Name, RawQuery: q.Encode()}
		return u.String(), nil
	default: // sqlite
		if t.Name == "" {
			return "", fmt.Errorf("sqlite database path is empty")
		}
		return t.Name, nil
	}
}

// Close closes the underlying database handle.
func (m *Manager) Close() error {
	return m.db.Close()
}

// Ping tests the database connection.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w; check that the server is reachable and credentials are correct", err)
	}
	return nil
}

// Probe runs a trivial round-trip query and checks that it returns 1.
func (m *Manager) Probe(ctx context.Context) error {
	var result int
	if err := m.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("%w: SELECT 1 returned %d", ErrUnexpectedResult, result)
	}
	return nil
}

// ValidateTableName checks that a name is safe to use as a table identifier.
func ValidateTableName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid table name %q: must match %s", name, validName.String())
	}
	return nil
}

// InsertStatement builds a parameterized INSERT for table and columns.
func (m *Manager) InsertStatement(table string, columns []string) (string, error) {
	if err := ValidateTableName(table); err != nil {
		return "", err
	}
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		if !validName.MatchString(c) {
			return "", fmt.Errorf("invalid column name %q", c)
		}
		quoted[i] = m.dialect.quote(c)
		params[i] = m.dialect.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		m.dialect.quote(table), strings.Join(quoted, ", "), strings.Join(params, ", ")), nil
}

// InsertRows inserts every row in a single transaction. next is called once
// per row index and returns that row's values in column order; an error from
// next aborts the batch. Nothing is committed unless every row succeeds.
// Returns the number of rows inserted.
func (m *Manager) InsertRows(ctx context.Context, table string, columns []string, n int, next func(i int) ([]any, error)) (int, error) {
	stmtSQL, err := m.InsertStatement(table, columns)
	if err != nil {
		return 0, err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return 0, fmt.Errorf("preparing insert into %s: %w", table, err)
	}
	defer stmt.Close()

	inserted := 0
	for i := 0; i < n; i++ {
		args, err := next(i)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("inserting row %d into %s: %w", i+1, table, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing insert into %s: %w", table, err)
	}
	return inserted, nil
}
