package download

import "fmt"

// Settings are the per-deployment values a request cannot be served without.
// They are checked on every request rather than at startup so a misconfigured
// deployment fails closed with a 500.
type Settings struct {
	// Bucket holding the artifacts (BUCKET)
	Bucket string

	// Table holding the artifact records (TABLE)
	Table string

	// Issuer is the expected iss of identity tokens (ISSUER_URL or derived from COGNITO_REGION/COGNITO_USER_POOL_ID)
	Issuer string
}

// ConfigurationError reports a required setting that is not configured.
type ConfigurationError struct {
	// Setting is the environment variable name
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("required setting %s is not configured", e.Setting)
}

// Validate returns a *ConfigurationError for the first missing setting.
func (s Settings) Validate() error {
	switch {
	case s.Bucket == "":
		return &ConfigurationError{Setting: "BUCKET"}
	case s.Table == "":
		return &ConfigurationError{Setting: "TABLE"}
	case s.Issuer == "":
		return &ConfigurationError{Setting: "COGNITO_USER_POOL_ID"}
	}
	return nil
}
