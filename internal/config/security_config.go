package config

const (
	keyRequirePKCE  = "require_pkce"
	keyRequireState = "require_state"
)

type SecurityConfig interface {
	// GetRequirePKCE rejects public clients that send no code_challenge.
	GetRequirePKCE() bool
	GetRequireState() bool
}

func (c mainConfig) GetRequirePKCE() bool {
	return c.v.GetBool(keyRequirePKCE)
}

func (c mainConfig) GetRequireState() bool {
	return c.v.GetBool(keyRequireState)
}
