// Package migrations embeds SQL migration files into the binary.
//
// The service can create its verification history schema without the SQL
// files being present on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/mqtt-verify/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}

