package schemas

import "embed"

// SchemasFS - JSON-схемы конфигурационных файлов
//
//go:embed config/*.json
var SchemasFS embed.FS
