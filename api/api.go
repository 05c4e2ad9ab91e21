// Package api embeds the OpenAPI document the HTTP layer in pkg/api is
// generated from.
package api

import (
	_ "embed"
)

//go:generate go run github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen --config=types.cfg.yaml openapi.yaml
//go:generate go run github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen --config=server.cfg.yaml openapi.yaml

// Spec is the raw OpenAPI 3 document served at /openapi.yaml.
//
//go:embed openapi.yaml
var Spec []byte
