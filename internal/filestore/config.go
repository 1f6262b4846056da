package filestore

// Provider identifies the file storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
)

// Config holds all settings needed to connect to a file storage backend.
type Config struct {
	// Provider is the storage backend. Empty means ProviderMinIO.
	Provider Provider `yaml:"provider" validate:"omitempty,oneof=minio"`

	// Endpoint is the host:port of the storage server.
	// Example: "localhost:9000" for local MinIO.
	Endpoint string `yaml:"endpoint" validate:"required,hostname_port"`

	// AccessKey is the access key ID (MinIO / S3 style).
	AccessKey string `yaml:"access_key" validate:"required"`

	// SecretKey is the secret access key.
	SecretKey string `yaml:"secret_key" validate:"required"`

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool `yaml:"use_ssl"`

	// Region is used by region-aware backends (e.g. AWS S3) and when a
	// bucket has to be created. Leave empty for MinIO.
	Region string `yaml:"region"`
}

// DefaultConfig returns a sensible local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		UseSSL:    false,
	}
}
