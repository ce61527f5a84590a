package model

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// Warehouse SQL drivers registered with database/sql.
const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

// ConnectionDescriptor holds everything needed to reach the warehouse
// database. It is built once the cluster is available and never mutated.
type ConnectionDescriptor struct {
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     int32  `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"-"`
	// SSLMode defaults to "require".
	SSLMode string `json:"ssl_mode,omitempty"`
}

// DSN renders the descriptor as a postgres URL accepted by both pgx and lib/pq.
func (d ConnectionDescriptor) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(int(d.Port))),
		Path:     "/" + d.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// String renders the descriptor without the password.
func (d ConnectionDescriptor) String() string {
	return fmt.Sprintf("%s://%s@%s/%s", d.Driver, d.User, net.JoinHostPort(d.Host, strconv.Itoa(int(d.Port))), d.Database)
}
