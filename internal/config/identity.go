package config

// IdentityConfig selects and configures the identity provider. Provider is
// "firebase" in deployments and "jwt" for local runs and tests.
type IdentityConfig struct {
	Provider        string `yaml:"provider"`
	CredentialsFile string `yaml:"credentials_file"`
}

func loadIdentityConfig() *IdentityConfig {
	return &IdentityConfig{
		Provider:        getEnv("IDENTITY_PROVIDER", "jwt"),
		CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
	}
}
