// Package db stores conversation memories in SurrealDB.
package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// WebSocket upgrades need HTTP/1.1; stop WSS from negotiating HTTP/2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Config holds SurrealDB connection settings.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // "root" or "database"

	// Reconnect controls the backoff after a dropped connection. Zero uses DefaultReconnect.
	Reconnect Reconnect
}

// Reconnect is the exponential backoff applied when the socket drops.
type Reconnect struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxRetries   int
}

// DefaultReconnect retries for roughly five minutes before giving up.
var DefaultReconnect = Reconnect{
	InitialDelay: time.Second,
	MaxDelay:     30 * time.Second,
	MaxRetries:   10,
}

type socket = rews.Connection[*gorillaws.Connection]

// Client is a SurrealDB session bound to one namespace and database.
// Memory writes arriving while the socket reconnects wait for it.
type Client struct {
	conn   *socket
	db     *surrealdb.DB
	logger logger.Logger

	dimension int
}

// NewClient connects, signs in and selects cfg's namespace and database.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	sdkLogger := logger.New(log.Handler())

	conn := dial(cfg, sdkLogger)
	sdkLogger.Info("connecting to SurrealDB", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err == nil {
		err = signIn(ctx, db, cfg)
	}
	if err == nil {
		if err = db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
			err = fmt.Errorf("use %s/%s: %w", cfg.Namespace, cfg.Database, err)
		}
	}
	if err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}

	sdkLogger.Info("SurrealDB connection established", "namespace", cfg.Namespace, "database", cfg.Database)
	return &Client{conn: conn, db: db, logger: sdkLogger}, nil
}

// dial builds an auto-reconnecting socket. gorillaws appends /rpc itself,
// so a configured /rpc suffix is stripped.
func dial(cfg Config, sdkLogger logger.Logger) *socket {
	codec := surrealcbor.New()
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			}), nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	rc := cfg.Reconnect
	if rc == (Reconnect{}) {
		rc = DefaultReconnect
	}
	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = rc.InitialDelay
	retryer.MaxDelay = rc.MaxDelay
	retryer.Multiplier = 2.0
	retryer.MaxRetries = rc.MaxRetries
	conn.Retryer = retryer
	return conn
}

func signIn(ctx context.Context, db *surrealdb.DB, cfg Config) error {
	auth := surrealdb.Auth{Username: cfg.Username, Password: cfg.Password}
	if cfg.AuthLevel == "database" {
		auth.Namespace = cfg.Namespace
		auth.Database = cfg.Database
	}
	if _, err := db.SignIn(ctx, auth); err != nil {
		return fmt.Errorf("signin as %s (%s): %w", cfg.Username, cfg.AuthLevel, err)
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close(ctx context.Context) error {
	c.logger.Info("closing SurrealDB connection")
	return c.conn.Close(ctx)
}

// InitSchema defines the memory table with an HNSW index of the given dimension.
func (c *Client) InitSchema(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("init schema: invalid embedding dimension %d", dimension)
	}
	if _, err := surrealdb.Query[any](ctx, c.db, SchemaSQL(dimension), nil); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	c.dimension = dimension
	c.logger.Info("memory schema ready", "dimension", dimension)
	return nil
}

// Dimension returns the embedding dimension the schema was initialized with.
func (c *Client) Dimension() int {
	return c.dimension
}

// WipeData deletes every memory but keeps the schema. Tests only.
func (c *Client) WipeData(ctx context.Context) error {
	c.logger.Warn("wiping all memories")
	if _, err := surrealdb.Query[any](ctx, c.db, "DELETE memory", nil); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}
