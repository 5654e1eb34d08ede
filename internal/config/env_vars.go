package config

import "strings"

const (
	keyPort     = "port"
	keyAppName  = "app_name"
	keyEnv      = "env"
	keyBaseURL  = "base_url"
	keyLogLevel = "log_level"
)

func (c mainConfig) GetPort() string {
	port := c.v.GetString(keyPort)
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (c mainConfig) GetAppName() string {
	return c.v.GetString(keyAppName)
}

func (c mainConfig) GetEnv() string {
	return strings.ToUpper(c.v.GetString(keyEnv))
}

// GetBaseURL is the externally visible origin, e.g. "https://auth.example.com".
func (c mainConfig) GetBaseURL() string {
	return strings.TrimSuffix(c.v.GetString(keyBaseURL), "/")
}

func (c mainConfig) GetLogLevel() string {
	return c.v.GetString(keyLogLevel)
}
