// Package schemas хранит JSON-схемы событий, которые сервис принимает из брокера.
package schemas

import "embed"

//go:embed events
var SchemasFS embed.FS
