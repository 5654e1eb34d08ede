package config

import "strings"

const (
	keyAllowedOrigins = "allowed_origins"
	keyAllowedMethods = "allowed_methods"
	keyAllowedHeaders = "allowed_headers"
)

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type AllowedOrigins map[string]struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

// GetAllowedOrigins accepts a list in a config file or a comma separated env value.
func (c mainConfig) GetAllowedOrigins() AllowedOrigins {
	origins := AllowedOrigins{}
	for _, entry := range c.v.GetStringSlice(keyAllowedOrigins) {
		for _, origin := range strings.Split(entry, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins[origin] = struct{}{}
			}
		}
	}
	return origins
}

func (c mainConfig) GetAllowedMethods() string {
	return c.v.GetString(keyAllowedMethods)
}

func (c mainConfig) GetAllowedHeaders() string {
	return c.v.GetString(keyAllowedHeaders)
}
