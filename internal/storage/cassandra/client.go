package cassandra

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gocql/gocql"

	"github.com/sketchduel/backend/internal/config"
	"github.com/sketchduel/backend/pkg/logger"
)

// Client wraps a gocql.Session and provides connection management
type Client struct {
	session *gocql.Session
	config  config.CassandraConfig
	logger  *logger.Logger
}

// NewClient creates a new Cassandra client and establishes a connection
func NewClient(cfg config.CassandraConfig, log *logger.Logger) (*Client, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)

	cluster.Timeout = cfg.Timeout
	cluster.ConnectTimeout = cfg.Timeout
	cluster.Consistency = parseConsistency(cfg.Consistency)
	// Lightweight transactions need a serial consistency for the Paxos round
	cluster.SerialConsistency = gocql.LocalSerial
	cluster.RetryPolicy = RetryPolicy(3)

	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	cluster.NumConns = 2
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Cassandra session: %w", err)
	}

	log.Info("Connected to Cassandra", logger.F("hosts", strings.Join(cfg.Hosts, ",")), logger.F("keyspace", cfg.Keyspace))

	client := &Client{
		session: session,
		config:  cfg,
		logger:  log,
	}

	if err := client.initializeSchema(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return client, nil
}

// Session returns the underlying gocql.Session
func (c *Client) Session() *gocql.Session {
	return c.session
}

// Keyspace returns the configured keyspace
func (c *Client) Keyspace() string {
	return c.config.Keyspace
}

// Close closes the Cassandra session
func (c *Client) Close() {
	if c.session != nil {
		c.session.Close()
		c.logger.Info("Cassandra session closed")
	}
}

// initializeSchema creates the keyspace and table if they don't exist
func (c *Client) initializeSchema() error {
	keyspace := c.config.Keyspace

	createKeyspaceQuery := fmt.Sprintf(`
		CREATE KEYSPACE IF NOT EXISTS %s
		WITH replication = {
			'class': 'SimpleStrategy',
			'replication_factor': 1
		}`, keyspace)

	if err := c.session.Query(createKeyspaceQuery).Exec(); err != nil {
		return fmt.Errorf("failed to create keyspace: %w", err)
	}

	// The session body lives in `document` as JSON. `version` guards
	// compare-and-set writes; `predictions` is an append-only list kept out of
	// the document so appends never conflict with document writes.
	createTableQuery := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.game_sessions (
			session_id text PRIMARY KEY,
			mode text,
			status text,
			room_code text,
			created_at timestamp,
			version bigint,
			document text,
			predictions list<text>
		)`, keyspace)

	if err := c.session.Query(createTableQuery).Exec(); err != nil {
		return fmt.Errorf("failed to create game_sessions table: %w", err)
	}

	createIndexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS ON %s.game_sessions (status)`, keyspace)

	if err := c.session.Query(createIndexQuery).Exec(); err != nil {
		c.logger.Debug("Index creation result", logger.Err(err))
	}

	c.logger.Info("Cassandra schema initialized", logger.F("keyspace", keyspace))
	return nil
}

// parseConsistency parses a consistency level string
func parseConsistency(consistencyStr string) gocql.Consistency {
	switch strings.ToUpper(consistencyStr) {
	case "ONE":
		return gocql.One
	case "TWO":
		return gocql.Two
	case "THREE":
		return gocql.Three
	case "QUORUM":
		return gocql.Quorum
	case "ALL":
		return gocql.All
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum
	case "EACH_QUORUM":
		return gocql.EachQuorum
	case "LOCAL_ONE":
		return gocql.LocalOne
	default:
		return gocql.Quorum
	}
}

// RetryPolicy provides simple retry logic for transient errors
func RetryPolicy(maxRetries int) gocql.RetryPolicy {
	return &simpleRetryPolicy{maxRetries: maxRetries}
}

type simpleRetryPolicy struct {
	maxRetries int
}

func (p *simpleRetryPolicy) Attempt(q gocql.RetryableQuery) bool {
	return q.Attempts() <= p.maxRetries
}

func (p *simpleRetryPolicy) GetRetryType(err error) gocql.RetryType {
	if errors.Is(err, gocql.ErrTimeoutNoResponse) {
		return gocql.Retry
	}
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "timeout") || strings.Contains(msg, "connection") || strings.Contains(msg, "unavailable") {
			return gocql.Retry
		}
	}
	return gocql.Rethrow
}
