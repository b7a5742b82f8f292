// Package branding provides compile-time identity values for the extension
// manager: product name, home directory, environment prefix, and the CDN and
// component-updater endpoints baked into the binary.
//
// Packagers edit branding.yaml before building; Go's //go:embed bakes it in.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName          string `yaml:"cli_name"`
	DisplayName      string `yaml:"display_name"`
	Description      string `yaml:"description"`
	HomeDir          string `yaml:"home_dir"`
	EnvPrefix        string `yaml:"env_prefix"`
	GoModule         string `yaml:"go_module"`
	CDNBaseURL       string `yaml:"cdn_base_url"`
	UpdateServiceURL string `yaml:"update_service_url"`
	CDMComponent     string `yaml:"cdm_component"`
}

func load() {
	once.Do(func() {
		// Hard defaults in case the embedded file is missing or empty.
		defaults = brand{
			CLIName:          "mezzo-webext",
			DisplayName:      "Mezzo",
			Description:      "Extension manager for the Mezzo embedded browsing surface",
			HomeDir:          ".mezzo",
			EnvPrefix:        "MEZZO",
			GoModule:         "github.com/mezzo-player/webext",
			CDNBaseURL:       "https://extensions.mezzoplayer.com",
			UpdateServiceURL: "https://components.mezzoplayer.com",
			CDMComponent:     "mezzo-cdm",
		}
		// Overlay with embedded YAML values.
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "mezzo-webext").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name (e.g., "Mezzo").
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".mezzo").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "MEZZO").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// GoModule returns the Go module path. Used by packaging scripts,
// not consumed at runtime.
func GoModule() string { load(); return defaults.GoModule }

// CDNBaseURL returns the base URL of the extension CDN.
func CDNBaseURL() string { load(); return defaults.CDNBaseURL }

// UpdateServiceURL returns the base URL of the component-updater service.
func UpdateServiceURL() string { load(); return defaults.UpdateServiceURL }

// CDMComponent returns the component id of the content decryption module.
func CDMComponent() string { load(); return defaults.CDMComponent }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("HOME") → "MEZZO_HOME".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
