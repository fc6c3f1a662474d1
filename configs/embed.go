// Package configs embeds the annotated configuration template written by
// `msgindex config init --template`.
package configs

import _ "embed"

// ConfigTemplate is a commented YAML file equivalent to the built-in
// defaults.
//
//go:embed config.example.yaml
var ConfigTemplate string
