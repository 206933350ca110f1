package config

// StorageConfig selects the blob store for driver documents and profile
// photos: "s3", "gcs" or "local".
type StorageConfig struct {
	Provider        string `yaml:"provider"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	CredentialsFile string `yaml:"credentials_file"`
	CDNDomain       string `yaml:"cdn_domain"`
	LocalPath       string `yaml:"local_path"`
	LocalBaseURL    string `yaml:"local_base_url"`
}

func loadStorageConfig() *StorageConfig {
	return &StorageConfig{
		Provider:        getEnv("STORAGE_PROVIDER", "local"),
		Bucket:          getEnv("STORAGE_BUCKET", ""),
		Region:          getEnv("STORAGE_REGION", "us-east-1"),
		CredentialsFile: getEnv("STORAGE_CREDENTIALS_FILE", ""),
		CDNDomain:       getEnv("STORAGE_CDN_DOMAIN", ""),
		LocalPath:       getEnv("STORAGE_LOCAL_PATH", "./uploads"),
		LocalBaseURL:    getEnv("STORAGE_LOCAL_BASE_URL", "http://localhost:8080/uploads"),
	}
}
