package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
)

// EnvelopeKey is the only session variable the wrapped store ever sees.
const EnvelopeKey = "__encrypted__"

var (
	// ErrInvalidKey is returned for keys that are not 32 bytes long.
	ErrInvalidKey = errors.New("encryption key must be 32 bytes (AES-256)")
	// ErrMissingEnvelope is returned when a stored session holds plain variables.
	ErrMissingEnvelope = errors.New("session is missing encrypted data envelope")
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot open a
	// session, so keys can be rotated without dropping live conversations.
	FallbackKeys [][]byte
}

// DecodeKey parses a base64 encoded AES-256 key.
func DecodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	return key, nil
}

type encryptionMiddleware struct {
	next   ports.SessionStore
	config EncryptionConfig
}

// NewEncryptionMiddleware seals session variables with AES-GCM before they
// reach the wrapped store. Stage pointers and timestamps stay in clear text so
// sweeps and expiry keep working.
//
// MergeSessionData is a read-modify-write on the wrapped store; callers must
// serialize writes per conversation (session.Manager does).
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, ErrInvalidKey
	}
	for _, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, ErrInvalidKey
		}
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) seal(data map[string]any) (map[string]any, error) {
	if data == nil {
		data = map[string]any{}
	}
	plainText, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session data: %w", err)
	}
	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt session data: %w", err)
	}
	return map[string]any{EnvelopeKey: base64.StdEncoding.EncodeToString(ciphertext)}, nil
}

func (m *encryptionMiddleware) open(data map[string]any) (map[string]any, error) {
	encoded, ok := data[EnvelopeKey].(string)
	if !ok {
		return nil, ErrMissingEnvelope
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session data: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(plainText, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted session data: %w", err)
	}
	return out, nil
}

func (m *encryptionMiddleware) GetActiveSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	s, err := m.next.GetActiveSession(ctx, key)
	if err != nil {
		return nil, err
	}
	if s.Data, err = m.open(s.Data); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *encryptionMiddleware) UpsertSession(ctx context.Context, key domain.SessionKey, stage domain.StageID, data map[string]any, ttl time.Duration) (*domain.Session, error) {
	sealed, err := m.seal(data)
	if err != nil {
		return nil, err
	}
	s, err := m.next.UpsertSession(ctx, key, stage, sealed, ttl)
	if err != nil {
		return nil, err
	}
	// The store may hand back an existing session sealed earlier.
	if s.Data, err = m.open(s.Data); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *encryptionMiddleware) MergeSessionData(ctx context.Context, key domain.SessionKey, partial map[string]any) error {
	current, err := m.GetActiveSession(ctx, key)
	if err != nil {
		return err
	}
	sealed, err := m.seal(ports.ApplyUpdates(current.Data, partial))
	if err != nil {
		return err
	}
	return m.next.MergeSessionData(ctx, key, sealed)
}

func (m *encryptionMiddleware) UpdateStage(ctx context.Context, key domain.SessionKey, stage domain.StageID) error {
	return m.next.UpdateStage(ctx, key, stage)
}

func (m *encryptionMiddleware) EndSession(ctx context.Context, key domain.SessionKey) error {
	return m.next.EndSession(ctx, key)
}

func (m *encryptionMiddleware) CleanExpiredSessions(ctx context.Context) (int, error) {
	return m.next.CleanExpiredSessions(ctx)
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
