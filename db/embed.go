// Package db embeds the SQL schema applied on service start.
package db

import _ "embed"

// Schema holds the DDL for the products, discounts, and sales tables.
//
//go:embed migrations/001_schema.sql
var Schema string
