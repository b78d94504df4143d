package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	resetRecordVersionV1 = 1
	maxTxRetries         = 4
)

var (
	ErrResetNotFound         = errors.New("reset record not found")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

// PasswordResetRecord is one issued reset token. Times are unix milliseconds.
type PasswordResetRecord struct {
	UserID    string
	CreatedAt int64
	ExpiresAt int64
}

// PasswordResetStore keeps at most one live reset token per identity. Records
// are keyed by the SHA-256 of the token; an index key per identity points at
// the current token hash.
type PasswordResetStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewPasswordResetStore(redisClient redis.UniversalClient, prefix string, now func() time.Time) *PasswordResetStore {
	if prefix == "" {
		prefix = "sias:pwr"
	}
	if now == nil {
		now = time.Now
	}
	return &PasswordResetStore{
		redis:  redisClient,
		prefix: prefix,
		now:    now,
	}
}

func (s *PasswordResetStore) key(tokenHash [32]byte) string {
	return s.prefix + ":t:" + hex.EncodeToString(tokenHash[:])
}

func (s *PasswordResetStore) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Issue stores record under tokenHash and deletes any token previously
// issued to the same identity.
func (s *PasswordResetStore) Issue(ctx context.Context, tokenHash [32]byte, record *PasswordResetRecord) error {
	ttl := time.UnixMilli(record.ExpiresAt).Sub(s.now())
	if ttl <= 0 {
		return errors.New("reset record already expired")
	}
	encoded, err := encodePasswordResetRecord(record)
	if err != nil {
		return err
	}

	userKey := s.userKey(record.UserID)
	for i := 0; i < maxTxRetries; i++ {
		err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
			prev, err := tx.Get(ctx, userKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if prev != "" {
					pipe.Del(ctx, s.prefix+":t:"+prev)
				}
				pipe.Set(ctx, s.key(tokenHash), encoded, ttl)
				pipe.Set(ctx, userKey, hex.EncodeToString(tokenHash[:]), ttl)
				return nil
			})
			return err
		}, userKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
		}
		return nil
	}

	return fmt.Errorf("%w: issue contention", ErrResetRedisUnavailable)
}

// Get returns the live record for tokenHash without consuming it. An expired
// record is deleted and reported as [ErrResetNotFound].
func (s *PasswordResetStore) Get(ctx context.Context, tokenHash [32]byte) (*PasswordResetRecord, error) {
	key := s.key(tokenHash)
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResetNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}

	record, err := decodePasswordResetRecord(data)
	if err != nil || s.now().UnixMilli() > record.ExpiresAt {
		if delErr := s.redis.Del(ctx, key).Err(); delErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, delErr)
		}
		return nil, ErrResetNotFound
	}

	return record, nil
}

// Consume atomically deletes and returns the live record for tokenHash.
// Exactly one concurrent caller can succeed for a given token.
func (s *PasswordResetStore) Consume(ctx context.Context, tokenHash [32]byte) (*PasswordResetRecord, error) {
	key := s.key(tokenHash)
	hashHex := hex.EncodeToString(tokenHash[:])

	for i := 0; i < maxTxRetries; i++ {
		var matched *PasswordResetRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, decodeErr := decodePasswordResetRecord(data)
			expired := decodeErr != nil || s.now().UnixMilli() > record.ExpiresAt

			var userKey string
			var current string
			if decodeErr == nil {
				userKey = s.userKey(record.UserID)
				current, err = tx.Get(ctx, userKey).Result()
				if err != nil && !errors.Is(err, redis.Nil) {
					return err
				}
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				if current == hashHex {
					pipe.Del(ctx, userKey)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if expired {
				return ErrResetNotFound
			}

			matched = record
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil), errors.Is(err, ErrResetNotFound):
				return nil, ErrResetNotFound
			default:
				return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
			}
		}

		return matched, nil
	}

	return nil, ErrResetNotFound
}

// DeleteAllForUser removes the identity's current token, if any.
func (s *PasswordResetStore) DeleteAllForUser(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)
	prev, err := s.redis.Get(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	if err := s.redis.Del(ctx, s.prefix+":t:"+prev, userKey).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return nil
}

func encodePasswordResetRecord(record *PasswordResetRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(resetRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if record.UserID == "" {
		return nil, errors.New("reset record user id empty")
	}
	if len(record.UserID) > 65535 {
		return nil, errors.New("reset record user id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)

	return buf.Bytes(), nil
}

func decodePasswordResetRecord(data []byte) (*PasswordResetRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != resetRecordVersionV1 {
		return nil, errors.New("invalid reset record version")
	}

	record := &PasswordResetRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var userIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userIDLen); err != nil {
		return nil, err
	}

	userID := make([]byte, userIDLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	record.UserID = string(userID)

	return record, nil
}
