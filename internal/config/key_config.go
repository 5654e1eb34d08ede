package config

const (
	keyKeyID                = "key_id"
	keyPrivateKeyPath       = "private_key_path"
	keyPrivateKeyPassphrase = "private_key_passphrase"
	keyEncryptionKey        = "encryption_key"
	keyEncryptionPassphrase = "encryption_passphrase"
)

// KeyConfig locates the signing key and the refresh token encryption secret.
// An empty private key path means an ephemeral key is generated at startup.
type KeyConfig interface {
	GetKeyID() string
	GetPrivateKeyPath() string
	GetPrivateKeyPassphrase() string
	GetEncryptionKey() string
	GetEncryptionPassphrase() string
}

func (c mainConfig) GetKeyID() string {
	return c.v.GetString(keyKeyID)
}

func (c mainConfig) GetPrivateKeyPath() string {
	return c.v.GetString(keyPrivateKeyPath)
}

func (c mainConfig) GetPrivateKeyPassphrase() string {
	return c.v.GetString(keyPrivateKeyPassphrase)
}

func (c mainConfig) GetEncryptionKey() string {
	return c.v.GetString(keyEncryptionKey)
}

func (c mainConfig) GetEncryptionPassphrase() string {
	return c.v.GetString(keyEncryptionPassphrase)
}
