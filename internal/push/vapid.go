package push

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/storefront/messaging/internal/logger"
)

// VAPIDKeys - пара ключей Web Push. Публичный ключ отдаётся клиенту через /api/config/push.
type VAPIDKeys struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

const defaultVAPIDKeysPath = "config/vapid.json"

var errBadVAPIDKeys = errors.New("vapid: keys missing or malformed")

// validate проверяет, что ключи похожи на P-256 (65 байт публичный, 32 приватный).
func (k *VAPIDKeys) validate() error {
	if k == nil {
		return errBadVAPIDKeys
	}
	pub, err := base64.RawURLEncoding.DecodeString(k.PublicKey)
	if err != nil || len(pub) != 65 {
		return errBadVAPIDKeys
	}
	priv, err := base64.RawURLEncoding.DecodeString(k.PrivateKey)
	if err != nil || len(priv) != 32 {
		return errBadVAPIDKeys
	}
	return nil
}

// KeysPath: аргумент, затем VAPID_KEYS_FILE, затем config/vapid.json.
func KeysPath(path string) string {
	if path != "" {
		return path
	}
	if p := os.Getenv("VAPID_KEYS_FILE"); p != "" {
		return p
	}
	return defaultVAPIDKeysPath
}

// EnsureVAPIDKeys читает ключи из файла, при отсутствии или порче генерирует новые.
// Ошибка записи не фатальна: ключи живут до рестарта.
func EnsureVAPIDKeys(path string) (*VAPIDKeys, error) {
	path = KeysPath(path)
	keys, err := readKeys(path)
	if err == nil {
		return keys, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		logger.Errorf("push: VAPID-ключи в %s непригодны (%v), генерируем заново", path, err)
	}
	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return nil, fmt.Errorf("vapid generate: %w", err)
	}
	keys = &VAPIDKeys{PublicKey: pub, PrivateKey: priv}
	if err := writeKeys(path, keys); err != nil {
		logger.Errorf("push: VAPID-ключи не сохранены в %s: %v", path, err)
		return keys, nil
	}
	logger.Infof("push: VAPID-ключи сохранены в %s", path)
	return keys, nil
}

func readKeys(path string) (*VAPIDKeys, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var keys VAPIDKeys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, err
	}
	if err := keys.validate(); err != nil {
		return nil, err
	}
	return &keys, nil
}

func writeKeys(path string, keys *VAPIDKeys) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
