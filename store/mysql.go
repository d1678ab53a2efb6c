package store

import (
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// MySQLStore implements Store using MySQL (InnoDB).
type MySQLStore struct {
	sqlStore
}

// NewMySQL creates a new MySQL session record store on an open database.
// The DSN used to open db must set parseTime=true and clientFoundRows=true;
// NewMySQLFromDSN does this for you.
func NewMySQL(db *sql.DB) (*MySQLStore, error) {
	if err := createMySQLSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	// Rows read by FindActive are locked until commit. On a missing key
	// InnoDB takes a gap lock, which serializes concurrent first inserts.
	return &MySQLStore{sqlStore{
		db:      db,
		dialect: dialect{name: "mysql", lockSuffix: " FOR UPDATE"},
	}}, nil
}

// NewMySQLFromDSN creates a new MySQL session record store from a DSN.
// The DSN format is: user:password@tcp(host:port)/database
func NewMySQLFromDSN(dsn string) (*MySQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: invalid DSN: %w", err)
	}
	cfg.ParseTime = true
	// Report matched rather than changed rows so UpdateAction can tell a
	// missing row from an update that rewrote identical values.
	cfg.ClientFoundRows = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to create connector: %w", err)
	}
	db := sql.OpenDB(connector)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: failed to connect: %w", err)
	}

	return NewMySQL(db)
}

func createMySQLSchema(db *sql.DB) error {
	schema := "CREATE TABLE IF NOT EXISTS session_state (" + `
		id               BIGINT AUTO_INCREMENT PRIMARY KEY,
		` + "`user`" + `           VARCHAR(255) NOT NULL,
		session_id       VARCHAR(255) NOT NULL,
		` + "`timestamp`" + `      DATETIME(3) NOT NULL,
		` + "`action`" + `         VARCHAR(20) NOT NULL,
		service_provider VARCHAR(255) NOT NULL,

		INDEX idx_session_state_key (` + "`user`" + `, service_provider, ` + "`timestamp`" + `)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("mysql: failed to create schema: %w", err)
	}
	return nil
}
