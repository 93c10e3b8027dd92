// Package db embeds the PostgreSQL schema of the purchases service.
package db

import _ "embed"

// Schema creates every table the service reads and writes. It is idempotent.
//
//go:embed schema.sql
var Schema string
