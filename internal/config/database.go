package config

import (
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"os"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// tlsConfigName is the name used to register a custom TLS config with the
// MySQL driver when a CA file is configured.
const tlsConfigName = "dataapi-custom"

// DSN returns a MySQL data source name built from the discrete connection
// fields. parseTime and a UTC location are always set so DATETIME columns
// scan as time.Time.
func (d *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Database,
	)

	if tlsParam := d.effectiveTLSParam(); tlsParam != "" {
		dsn += fmt.Sprintf("&tls=%s", tlsParam)
	}

	return dsn
}

// effectiveTLSParam resolves the tls= DSN parameter. A configured CA file
// takes precedence over the named modes.
func (d *DatabaseConfig) effectiveTLSParam() string {
	if d.TLSCAFile != "" {
		return tlsConfigName
	}
	switch d.TLSMode {
	case "true", "false", "skip-verify", "preferred":
		return d.TLSMode
	}
	return ""
}

// RegisterTLSConfig installs a custom TLS configuration with the MySQL
// driver when a CA file is set. Must be called before Open.
func (d *DatabaseConfig) RegisterTLSConfig() error {
	if d.TLSCAFile == "" {
		return nil
	}

	pem, err := os.ReadFile(d.TLSCAFile)
	if err != nil {
		return errors.Wrapf(err, "reading TLS CA file %q", d.TLSCAFile)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return errors.Errorf("TLS CA file %q contains no usable certificates", d.TLSCAFile)
	}

	cfg := &tls.Config{RootCAs: pool}
	if d.TLSServerName != "" {
		cfg.ServerName = d.TLSServerName
	}

	return errors.Wrap(mysql.RegisterTLSConfig(tlsConfigName, cfg), "registering TLS config")
}

// Open opens a MySQL connection pool with the configured limits applied.
// The pool is not pinged; callers decide whether startup should block on
// database availability.
func (d *DatabaseConfig) Open() (*sql.DB, error) {
	if err := d.RegisterTLSConfig(); err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", d.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	if d.MaxOpenConns > 0 {
		db.SetMaxOpenConns(d.MaxOpenConns)
	}
	if d.MaxIdleConns > 0 {
		db.SetMaxIdleConns(d.MaxIdleConns)
	}
	if d.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(d.ConnMaxLifetime)
	}

	return db, nil
}
