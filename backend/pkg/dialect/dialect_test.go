package dialect

import "testing"

func TestDialect_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dialect Dialect
		wantErr bool
	}{
		{SQLite, false},
		{PostgreSQL, false},
		{"mysql", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			t.Parallel()

			if err := tt.dialect.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDialect_Driver(t *testing.T) {
	t.Parallel()

	if got := SQLite.Driver(); got != "sqlite3" {
		t.Errorf("SQLite.Driver() = %q", got)
	}

	if got := PostgreSQL.Driver(); got != "pgx" {
		t.Errorf("PostgreSQL.Driver() = %q", got)
	}

	if got := Dialect("mysql").Driver(); got != "" {
		t.Errorf("unknown Driver() = %q", got)
	}
}

func TestDialect_MigrationsDir(t *testing.T) {
	t.Parallel()

	if got := PostgreSQL.MigrationsDir(); got != "migrations/postgres" {
		t.Errorf("MigrationsDir() = %q", got)
	}
}

func TestDialect_Rebind(t *testing.T) {
	t.Parallel()

	const query = `INSERT INTO command_log (id, actuator) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`

	tests := []struct {
		name    string
		dialect Dialect
		query   string
		want    string
	}{
		{"sqlite unchanged", SQLite, query, query},
		{
			"postgres numbered", PostgreSQL, query,
			`INSERT INTO command_log (id, actuator) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		},
		{"postgres without params", PostgreSQL, `DELETE FROM credentials`, `DELETE FROM credentials`},
		{"postgres limit", PostgreSQL, `SELECT id FROM command_log LIMIT ?`, `SELECT id FROM command_log LIMIT $1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.dialect.Rebind(tt.query); got != tt.want {
				t.Errorf("Rebind() = %q, want %q", got, tt.want)
			}
		})
	}
}
