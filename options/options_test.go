package options

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStartupParametersForcesClientDefaults(t *testing.T) {
	o := NewOptions("db.internal", "alice",
		WithDatabase("appdb"),
		WithRuntimeParam("user", "someone-else"),
		WithRuntimeParam("database", "wrong-db"),
		WithRuntimeParam("bytea_output", "escape"),
		WithRuntimeParam("client_encoding", "latin1"),
		WithRuntimeParam("DateStyle", "German"),
		WithRuntimeParam("statement_timeout", "5000"),
	)
	params := o.StartupParameters()

	forced := map[string]string{
		"user":            "alice",
		"database":        "appdb",
		"bytea_output":    "hex",
		"client_encoding": "utf8",
		"DateStyle":       "ISO",
	}
	for k, want := range forced {
		if got := params[k]; got != want {
			t.Fatalf("%s = %q, want %q (forced regardless of RuntimeParams)", k, got, want)
		}
	}
	if params["statement_timeout"] != "5000" {
		t.Fatalf("unforced runtime param was not preserved: %v", params)
	}
	if params["application_name"] != "pglue" {
		t.Fatalf("application_name = %q", params["application_name"])
	}
}

func TestStartupParametersDatabaseDefaultsToUser(t *testing.T) {
	o := NewOptions("localhost", "bob")
	params := o.StartupParameters()
	if params["database"] != "bob" {
		t.Fatalf("database = %q, want %q", params["database"], "bob")
	}
}

func TestNewOptionsDefaults(t *testing.T) {
	o := NewOptions("localhost", "bob")
	if o.Port != 5432 {
		t.Fatalf("Port = %d", o.Port)
	}
	if o.ReconnectDelay != nil {
		t.Fatal("ReconnectDelay should default to nil (reconnect disabled)")
	}
	if o.Codecs == nil {
		t.Fatal("Codecs should default to a populated registry")
	}
}

func TestEnvStrAndEnvInt(t *testing.T) {
	const key = "PGLUE_TEST_ENV_STR"
	os.Unsetenv(key)
	if got := envStr(key, "fallback"); got != "fallback" {
		t.Fatalf("got %q", got)
	}
	os.Setenv(key, "explicit")
	defer os.Unsetenv(key)
	if got := envStr(key, "fallback"); got != "explicit" {
		t.Fatalf("got %q", got)
	}

	const intKey = "PGLUE_TEST_ENV_INT"
	os.Unsetenv(intKey)
	if got := envInt(intKey, 7); got != 7 {
		t.Fatalf("got %d", got)
	}
	os.Setenv(intKey, "9999")
	defer os.Unsetenv(intKey)
	if got := envInt(intKey, 7); got != 9999 {
		t.Fatalf("got %d", got)
	}

	os.Setenv(intKey, "not-a-number")
	if got := envInt(intKey, 7); got != 7 {
		t.Fatalf("got %d, want fallback for unparseable value", got)
	}
}

func TestLoadPgpass(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pgpass")
	contents := "db.internal:5432:appdb:alice:s3cret\n"
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("write pgpass: %v", err)
	}

	o := NewOptions("db.internal", "alice", WithDatabase("appdb"))
	if err := LoadPgpass(o, path); err != nil {
		t.Fatalf("LoadPgpass: %v", err)
	}
	if o.Password != "s3cret" {
		t.Fatalf("Password = %q", o.Password)
	}
}

func TestLoadPgpassSkipsWhenPasswordAlreadySet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pgpass")
	if err := os.WriteFile(path, []byte("db.internal:5432:appdb:alice:fromfile\n"), 0600); err != nil {
		t.Fatalf("write pgpass: %v", err)
	}

	o := NewOptions("db.internal", "alice", WithDatabase("appdb"), WithPassword("already-set"))
	if err := LoadPgpass(o, path); err != nil {
		t.Fatalf("LoadPgpass: %v", err)
	}
	if o.Password != "already-set" {
		t.Fatalf("Password = %q, LoadPgpass should not override an explicit password", o.Password)
	}
}

func TestLoadServiceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pg_service.conf")
	contents := "[myservice]\nhost=db.internal\nport=6543\nuser=alice\ndbname=appdb\n"
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("write service file: %v", err)
	}

	o := NewOptions("localhost", "placeholder")
	if err := LoadServiceFile(o, "myservice", path); err != nil {
		t.Fatalf("LoadServiceFile: %v", err)
	}
	if o.Host != "db.internal" || o.Port != 6543 || o.User != "alice" || o.Database != "appdb" {
		t.Fatalf("unexpected options after LoadServiceFile: %+v", o)
	}
}

func TestLoadServiceFileUnknownService(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pg_service.conf")
	if err := os.WriteFile(path, []byte("[other]\nhost=x\n"), 0600); err != nil {
		t.Fatalf("write service file: %v", err)
	}
	o := NewOptions("localhost", "bob")
	if err := LoadServiceFile(o, "missing", path); err == nil {
		t.Fatal("expected error for unknown service name")
	}
}
