package services

import "strings"

// Storage backends understood by RealStoreFactory
const (
	BackendMinio  = "minio"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Credentials represents the object storage connection details
type Credentials struct {
	Backend      string `json:"backend" yaml:"backend"`
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	Region       string `json:"region,omitempty" yaml:"region"`
	AccessKey    string `json:"accessKey" yaml:"access_key_id"`
	SecretKey    string `json:"secretKey" yaml:"access_key_secret"`
	SessionToken string `json:"sessionToken,omitempty" yaml:"session_token"` // For STS
	// Secure overrides the TLS guess made from the endpoint.
	Secure *bool `json:"secure,omitempty" yaml:"secure"`
}

// BackendName returns the normalized backend, defaulting to minio
func (c Credentials) BackendName() string {
	b := strings.ToLower(strings.TrimSpace(c.Backend))
	if b == "" {
		return BackendMinio
	}
	return b
}

// UseSSL reports whether connections to the endpoint should use TLS
func (c Credentials) UseSSL() bool {
	if c.Secure != nil {
		return *c.Secure
	}
	return shouldUseSSL(c.Endpoint)
}
