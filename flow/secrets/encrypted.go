package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/scrypt"
)

// EncryptedFileManager is a small on-disk secret vault: a JSON file
// holding an AES-GCM encrypted name/value map, with the key derived
// from a passphrase via scrypt. Suited to single-host deployments
// without a dedicated secret service.
type EncryptedFileManager struct {
	mu         sync.RWMutex
	path       string
	passphrase []byte
	values     map[string]string
}

// vaultFile is the on-disk shape. Salt and nonce are regenerated on
// every write.
type vaultFile struct {
	Salt  string `json:"salt"`
	Nonce string `json:"nonce"`
	Data  string `json:"data"`
}

// NewEncryptedFileManager opens (or initializes) the vault at path. A
// missing file yields an empty vault; it is created on the first
// SetSecret.
func NewEncryptedFileManager(path, passphrase string) (*EncryptedFileManager, error) {
	m := &EncryptedFileManager{
		path:       path,
		passphrase: []byte(passphrase),
		values:     make(map[string]string),
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read vault: %w", err)
	}
	if err := m.decode(data); err != nil {
		return nil, err
	}
	return m, nil
}

// GetSecret implements flow.SecretManager.
func (m *EncryptedFileManager) GetSecret(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[name]
	if !ok {
		return "", fmt.Errorf("secret %q not found", name)
	}
	return v, nil
}

// SetSecret stores a secret and rewrites the vault file.
func (m *EncryptedFileManager) SetSecret(name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
	return m.flush()
}

// DeleteSecret removes a secret and rewrites the vault file.
func (m *EncryptedFileManager) DeleteSecret(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, name)
	return m.flush()
}

func (m *EncryptedFileManager) decode(data []byte) error {
	var vf vaultFile
	if err := json.Unmarshal(data, &vf); err != nil {
		return fmt.Errorf("parse vault: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(vf.Salt)
	if err != nil {
		return fmt.Errorf("decode vault salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(vf.Nonce)
	if err != nil {
		return fmt.Errorf("decode vault nonce: %w", err)
	}
	blob, err := base64.StdEncoding.DecodeString(vf.Data)
	if err != nil {
		return fmt.Errorf("decode vault data: %w", err)
	}

	aead, err := m.aead(salt)
	if err != nil {
		return err
	}
	plain, err := aead.Open(nil, nonce, blob, nil)
	if err != nil {
		return fmt.Errorf("decrypt vault (wrong passphrase?): %w", err)
	}
	values := make(map[string]string)
	if err := json.Unmarshal(plain, &values); err != nil {
		return fmt.Errorf("parse vault contents: %w", err)
	}
	m.values = values
	return nil
}

func (m *EncryptedFileManager) flush() error {
	plain, err := json.Marshal(m.values)
	if err != nil {
		return fmt.Errorf("marshal vault contents: %w", err)
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	aead, err := m.aead(salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	blob := aead.Seal(nil, nonce, plain, nil)

	out, err := json.Marshal(vaultFile{
		Salt:  base64.StdEncoding.EncodeToString(salt),
		Nonce: base64.StdEncoding.EncodeToString(nonce),
		Data:  base64.StdEncoding.EncodeToString(blob),
	})
	if err != nil {
		return fmt.Errorf("marshal vault: %w", err)
	}
	if err := os.WriteFile(m.path, out, 0o600); err != nil {
		return fmt.Errorf("write vault: %w", err)
	}
	return nil
}

func (m *EncryptedFileManager) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(m.passphrase, salt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("derive vault key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init GCM: %w", err)
	}
	return aead, nil
}
