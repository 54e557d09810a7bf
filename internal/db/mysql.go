package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// MySQLClient manages the connection pool to MySQL
type MySQLClient struct {
	db *sql.DB
}

// NewMySQLClient creates a new MySQL client
func NewMySQLClient(ctx context.Context, connString string) (*MySQLClient, error) {
	db, err := sql.Open("mysql", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &MySQLClient{db: db}, nil
}

// Close closes the database connection
func (c *MySQLClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying connection pool; Open draws sessions from it
func (c *MySQLClient) GetDB() *sql.DB {
	return c.db
}

// Open acquires one connection from the pool
func (c *MySQLClient) Open(ctx context.Context) (Session, error) {
	conn, err := c.GetDB().Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &MySQLSession{
		MySQLMetadata: NewMySQLMetadata(conn),
		SQLExecutor:   NewSQLExecutor(conn),
		conn:          conn,
	}, nil
}

// MySQLSession is one MySQL connection
type MySQLSession struct {
	MySQLMetadata
	SQLExecutor
	conn *sql.Conn
}

// Close returns the connection to the pool
func (s *MySQLSession) Close(context.Context) error {
	return s.conn.Close()
}

// ParseDatabaseName returns the database named in a MySQL DSN
func ParseDatabaseName(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	if cfg.DBName == "" {
		return "", fmt.Errorf("MySQL DSN has no database name")
	}
	return cfg.DBName, nil
}
