package migrations

import (
	"embed"
	"io/fs"
)

// migrationsFS embeds the SQL migrations of the monitor database, one directory per dialect.
// Structure:
//
//	.
//	|-- migrations
//	    |-- sqlite
//	    |   |-- *.sql
//	    |-- postgres
//	        |-- *.sql
//
//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

func GetFS() fs.FS {
	return migrationsFS
}
