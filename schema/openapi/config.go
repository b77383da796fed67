package openapi

import "strings"

// Info is the document's info block.
type Info struct {
	Title       string
	Version     string
	Description string
}

type generatorConfig struct {
	version     string
	info        Info
	basePath    string
	contentType string
}

func defaultGeneratorConfig() generatorConfig {
	return generatorConfig{
		version:     "3.0.3",
		info:        Info{Title: "inkcloud settings API", Version: "1.0.0"},
		basePath:    "/v1",
		contentType: "application/json",
	}
}

// GeneratorOption adjusts a Generator.
type GeneratorOption func(*generatorConfig)

// WithOpenAPIVersion sets the "openapi" field. Blank keeps 3.0.3.
func WithOpenAPIVersion(version string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.version = keep(cfg.version, version)
	}
}

// WithInfo overrides the non-blank fields of the info block.
func WithInfo(info Info) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.info.Title = keep(cfg.info.Title, info.Title)
		cfg.info.Version = keep(cfg.info.Version, info.Version)
		cfg.info.Description = keep(cfg.info.Description, info.Description)
	}
}

// WithBasePath mounts every route under path; "" or "/" mounts at the root.
func WithBasePath(path string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if trimmed := strings.Trim(path, "/"); trimmed != "" {
			cfg.basePath = "/" + trimmed
		} else {
			cfg.basePath = ""
		}
	}
}

// WithContentType sets the media type of request and response bodies.
func WithContentType(contentType string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.contentType = keep(cfg.contentType, contentType)
	}
}

func keep(current, override string) string {
	if override = strings.TrimSpace(override); override != "" {
		return override
	}
	return current
}
