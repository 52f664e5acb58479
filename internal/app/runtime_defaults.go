package app

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/steamsedu/steams/internal/push"
)

const jwtSecretBytes = 48

// ApplyRuntimeDefaults ensures critical secrets are populated even when no configuration file is supplied.
// It returns a map describing which keys were generated so callers can log the event without exposing values.
//
// Generated VAPID keys only live as long as the process; browsers that
// subscribed against a previous key must resubscribe after a restart.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := generateHexKey(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated["auth.jwt.secret"] = true
	}

	if cfg.Push.Enabled {
		public := strings.TrimSpace(cfg.Push.VAPIDPublicKey)
		private := strings.TrimSpace(cfg.Push.VAPIDPrivateKey)
		switch {
		case public == "" && private == "":
			privateKey, publicKey, err := push.GenerateVAPIDKeys()
			if err != nil {
				return nil, fmt.Errorf("generate vapid keys: %w", err)
			}
			cfg.Push.VAPIDPrivateKey = privateKey
			cfg.Push.VAPIDPublicKey = publicKey
			generated["push.vapid_keys"] = true
		case public == "" || private == "":
			return nil, fmt.Errorf("push: vapid_public_key and vapid_private_key must be configured together")
		}
	}

	return generated, nil
}

func generateHexKey(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
