// Package options builds the immutable Connection parameters record
// (spec §3) a Wire is constructed from, plus the bootstrap helpers spec.md
// deliberately keeps out of the wire engine itself: environment defaults,
// .pgpass lookup, and pg_service.conf lookup. URL/DSN parsing and option
// schema validation remain out of scope per spec §1 — callers who want
// those bring their own parser and hand this package the parsed fields.
package options

import (
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgpassfile"
	"github.com/jackc/pgservicefile"
	"github.com/rs/zerolog"

	"pglue/codec"
)

// Options is the immutable connection-parameters record. Construct with
// NewOptions and functional OptionFuncs; once passed to Connect it is
// never mutated.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// RuntimeParams are user overrides layered over the client's default
	// startup parameters (application_name, idle_session_timeout) and under
	// its forced ones (bytea_output, client_encoding, DateStyle, and
	// user/database) per spec §6.
	RuntimeParams map[string]string

	// ReconnectDelay, if non-nil, arms the reconnect timer on unexpected
	// close. Nil disables automatic reconnect.
	ReconnectDelay *time.Duration

	Codecs *codec.Registry

	Verbose bool

	Logger zerolog.Logger
}

// OptionFunc mutates an in-progress Options during construction.
type OptionFunc func(*Options)

// NewOptions builds Options for host/user with sane defaults (port 5432,
// no password/database, reconnect disabled, default codec registry, a
// disabled logger) overridden by opts in order.
func NewOptions(host, user string, opts ...OptionFunc) *Options {
	o := &Options{
		Host:          host,
		Port:          5432,
		User:          user,
		RuntimeParams: map[string]string{},
		Codecs:        codec.NewRegistry(),
		Logger:        zerolog.Nop(),
	}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

func WithPort(port int) OptionFunc              { return func(o *Options) { o.Port = port } }
func WithPassword(password string) OptionFunc   { return func(o *Options) { o.Password = password } }
func WithDatabase(database string) OptionFunc   { return func(o *Options) { o.Database = database } }
func WithVerbose(v bool) OptionFunc             { return func(o *Options) { o.Verbose = v } }
func WithLogger(l zerolog.Logger) OptionFunc    { return func(o *Options) { o.Logger = l } }
func WithCodecs(r *codec.Registry) OptionFunc   { return func(o *Options) { o.Codecs = r } }
func WithReconnectDelay(d time.Duration) OptionFunc {
	return func(o *Options) { o.ReconnectDelay = &d }
}
func WithRuntimeParam(name, value string) OptionFunc {
	return func(o *Options) { o.RuntimeParams[name] = value }
}

// StartupParameters computes the final startup parameter map: pglue's
// defaults overlaid with the user's RuntimeParams, except user/database/
// bytea_output/client_encoding/DateStyle, which are always forced to the
// client's own values regardless of what the caller set (spec §6).
func (o *Options) StartupParameters() map[string]string {
	params := map[string]string{
		"application_name":     "pglue",
		"idle_session_timeout": "0",
	}
	for k, v := range o.RuntimeParams {
		params[k] = v
	}
	params["user"] = o.User
	database := o.Database
	if database == "" {
		database = o.User
	}
	params["database"] = database
	params["bytea_output"] = "hex"
	params["client_encoding"] = "utf8"
	params["DateStyle"] = "ISO"
	return params
}

// LoadPgpass fills o.Password from a .pgpass-formatted file at path if the
// password is not already set, using github.com/jackc/pgpassfile — the
// same library the teacher already depended on (indirectly, via a driver
// it never itself imported).
func LoadPgpass(o *Options, path string) error {
	if o.Password != "" {
		return nil
	}
	pf, err := pgpassfile.ReadPassfile(path)
	if err != nil {
		return fmt.Errorf("options: read pgpass %s: %w", path, err)
	}
	database := o.Database
	if database == "" {
		database = o.User
	}
	port := fmt.Sprintf("%d", o.Port)
	if pass := pf.FindPassword(o.Host, port, database, o.User); pass != "" {
		o.Password = pass
	}
	return nil
}

// LoadServiceFile sets host/port/user/database/password from the named
// [service] stanza of a pg_service.conf-formatted file at path, using
// github.com/jackc/pgservicefile. Each key present in the stanza
// overwrites the corresponding field, whether or not it was already set.
func LoadServiceFile(o *Options, service, path string) error {
	services, err := pgservicefile.ReadServicefile(path)
	if err != nil {
		return fmt.Errorf("options: parse service file %s: %w", path, err)
	}
	for _, svc := range services.Services {
		if svc.Name != service {
			continue
		}
		for k, v := range svc.Settings {
			switch k {
			case "host":
				o.Host = v
			case "port":
				fmt.Sscanf(v, "%d", &o.Port)
			case "user":
				o.User = v
			case "dbname":
				o.Database = v
			case "password":
				o.Password = v
			}
		}
		return nil
	}
	return fmt.Errorf("options: service %q not found in %s", service, path)
}

// FromEnv builds Options the way libpq's environment fallbacks do
// (PGHOST/PGPORT/PGUSER/PGPASSWORD/PGDATABASE), mirroring the teacher's
// config.Parse() env-then-default style for the cmd/pglue-shell entrypoint.
func FromEnv() *Options {
	host := envStr("PGHOST", "localhost")
	user := envStr("PGUSER", currentUser())
	o := NewOptions(host, user,
		WithPort(envInt("PGPORT", 5432)),
		WithPassword(os.Getenv("PGPASSWORD")),
		WithDatabase(envStr("PGDATABASE", user)),
	)
	return o
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "postgres"
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
