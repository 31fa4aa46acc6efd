package api

import _ "embed"

// OpenAPISpec holds the raw OpenAPI 3.0 YAML served by the monitor.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
