package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PostgresClient manages the connection to PostgreSQL
type PostgresClient struct {
	conn *pgx.Conn
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(ctx context.Context, connString string) (*PostgresClient, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{conn: conn}, nil
}

// Close closes the database connection
func (c *PostgresClient) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// GetConnection returns the underlying connection
func (c *PostgresClient) GetConnection() *pgx.Conn {
	return c.conn
}

// PostgresConnector opens one pgx connection per session
type PostgresConnector struct {
	ConnString string
}

// NewPostgresConnector creates a connector for a PostgreSQL URL
func NewPostgresConnector(connString string) *PostgresConnector {
	return &PostgresConnector{ConnString: connString}
}

// Open connects to PostgreSQL
func (c *PostgresConnector) Open(ctx context.Context) (Session, error) {
	client, err := NewPostgresClient(ctx, c.ConnString)
	if err != nil {
		return nil, err
	}
	return &PostgresSession{
		PostgresMetadata: NewPostgresMetadata(client.GetConnection()),
		PostgresExecutor: NewPostgresExecutor(client.GetConnection()),
		client:           client,
	}, nil
}

// PostgresSession is a PostgreSQL connection with metadata and query access
type PostgresSession struct {
	PostgresMetadata
	PostgresExecutor
	client *PostgresClient
}

// Close closes the connection
func (s *PostgresSession) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}
