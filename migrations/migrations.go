// Package migrations embeds the schema SQL applied via golang-migrate,
// including the reopen_<table>() functions the Repository's RollbackTo
// depends on existing in the database, and the operator-facing
// rollback_to() function.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
