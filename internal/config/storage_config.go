package config

import "strings"

const (
	keyRedisAddr      = "redis_addr"
	keyRedisPassword  = "redis_password"
	keyRedisDB        = "redis_db"
	keyRedisKeyPrefix = "redis_key_prefix"
)

// StorageConfig selects the token store. Without a Redis address tokens are kept in memory.
type StorageConfig interface {
	GetRedisAddrs() []string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisKeyPrefix() string
}

func (c mainConfig) GetRedisAddrs() []string {
	var addrs []string
	for _, entry := range c.v.GetStringSlice(keyRedisAddr) {
		for _, addr := range strings.Split(entry, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				addrs = append(addrs, addr)
			}
		}
	}
	return addrs
}

func (c mainConfig) GetRedisPassword() string {
	return c.v.GetString(keyRedisPassword)
}

func (c mainConfig) GetRedisDB() int {
	return c.v.GetInt(keyRedisDB)
}

func (c mainConfig) GetRedisKeyPrefix() string {
	return c.v.GetString(keyRedisKeyPrefix)
}
