// Package config reads server settings from the environment (prefix OAUTH_)
// and an optional config file, via viper.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "OAUTH"

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	KeyConfig
	StorageConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
}

type mainConfig struct {
	v *viper.Viper
}

var _ Config = mainConfig{}

// New loads defaults and environment variables. A non-empty configFile is
// read on top (any format viper understands).
func New(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "[config.New] read %s", configFile)
		}
	}
	return mainConfig{v: v}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyPort, "8080")
	v.SetDefault(keyAppName, "Go OAuth Server")
	v.SetDefault(keyEnv, "DEV")
	v.SetDefault(keyBaseURL, "http://localhost:8080")
	v.SetDefault(keyLogLevel, "info")

	v.SetDefault(keyAllowedOrigins, []string{})
	v.SetDefault(keyAllowedMethods, "GET, POST, OPTIONS")
	v.SetDefault(keyAllowedHeaders, "Content-Type, Authorization")

	v.SetDefault(keyAccessTokenTTL, time.Hour)
	v.SetDefault(keyRefreshTokenTTL, 30*24*time.Hour)
	v.SetDefault(keyAuthCodeTTL, 10*time.Minute)
	v.SetDefault(keyScopeDelimiter, " ")
	v.SetDefault(keyDefaultScope, "")

	v.SetDefault(keyRequirePKCE, false)
	v.SetDefault(keyRequireState, false)

	v.SetDefault(keyKeyID, "")
	v.SetDefault(keyPrivateKeyPath, "")
	v.SetDefault(keyPrivateKeyPassphrase, "")
	v.SetDefault(keyEncryptionKey, "")
	v.SetDefault(keyEncryptionPassphrase, "")

	v.SetDefault(keyRedisAddr, "")
	v.SetDefault(keyRedisPassword, "")
	v.SetDefault(keyRedisDB, 0)
	v.SetDefault(keyRedisKeyPrefix, "oauth:")
}
