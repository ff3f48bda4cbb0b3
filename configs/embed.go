// Package configs provides embedded configuration templates for kensaku.
//
// Templates are embedded at build time with //go:embed so they are
// available in every distribution. They back:
//   - `kensaku config init` → ~/.config/kensaku/config.yaml
//   - `kensaku config init --project` → .kensaku.yaml in the project root
//
// Configuration precedence (see internal/config.Load):
//  1. Hardcoded defaults
//  2. User config (~/.config/kensaku/config.yaml)
//  3. Project config (.kensaku.yaml)
//  4. Environment variables (KENSAKU_*)
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration:
// data directory, search backend, worker count.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for project-level configuration:
// extension allow-list, excludes, watch debounce. Meant to be committed
// alongside the project.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
