package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/ini.v1"
)

const credentialsSection = "Credentials"

// ErrNoCredentials means the credentials file is absent; callers fall back to
// the default AWS provider chain.
var ErrNoCredentials = errors.New("no credentials file")

// Credentials is a static access key pair.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// LoadCredentials reads the [Credentials] section of an INI file holding
// aws_access_key_id and aws_access_key_secret.
func LoadCredentials(path string) (Credentials, error) {
	if path == "" {
		return Credentials{}, ErrNoCredentials
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, ErrNoCredentials
		}
		return Credentials{}, fmt.Errorf("stat credentials: %w", err)
	}
	file, err := ini.Load(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("parse credentials: %w", err)
	}
	section, err := file.GetSection(credentialsSection)
	if err != nil {
		return Credentials{}, fmt.Errorf("credentials section: %w", err)
	}
	creds := Credentials{
		AccessKeyID:     section.Key("aws_access_key_id").String(),
		SecretAccessKey: section.Key("aws_access_key_secret").String(),
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return Credentials{}, fmt.Errorf("credentials file %s: missing aws_access_key_id or aws_access_key_secret", path)
	}
	return creds, nil
}
