// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"log/slog"
	"strings"

	"github.com/akamensky/base58"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
	"github.com/nats-io/nats.go"
)

// Key parts for every entity and index kept in the scheduling buckets.
const (
	KeyPrefixMeeting      = "meeting"
	KeyPrefixEvent        = "event"
	KeyPrefixVideoSession = "session"
	KeyPrefixIdempotency  = "idempotency"
	KeyPrefixJob          = "job"

	KeyPrefixIndex            = "index"
	KeyPrefixIndexParticipant = "participant"
	KeyPrefixIndexRoom        = "room"
)

// KeyBuilder builds NATS KV keys from "/" separated parts, optionally under a
// fixed prefix.
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with an optional prefix
func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{prefix: prefix}
}

func (kb *KeyBuilder) join(parts ...string) string {
	if kb.prefix != "" {
		parts = append([]string{kb.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

func (kb *KeyBuilder) encoded(parts ...string) string {
	raw := kb.join(parts...)
	key, err := kb.EncodeKey(raw)
	if err != nil {
		slog.Error("error encoding key", logging.ErrKey, err, "key", raw)
		return raw
	}
	return key
}

// EntityKeyEncoded returns the encoded key of one entity, e.g. meeting/<uid>.
func (kb *KeyBuilder) EntityKeyEncoded(entityType, uid string) string {
	return kb.encoded(entityType, uid)
}

// IndexKeyEncoded returns the encoded key of one index entry, e.g.
// index/participant/<user>/<meeting>.
func (kb *KeyBuilder) IndexKeyEncoded(indexType, indexValue, entityUID string) string {
	return kb.encoded(KeyPrefixIndex, indexType, indexValue, entityUID)
}

// IndexPrefix is the decoded prefix shared by every entry of one index value.
func (kb *KeyBuilder) IndexPrefix(indexType, indexValue string) string {
	return "/" + kb.join(KeyPrefixIndex, indexType, indexValue) + "/"
}

// CompoundKey joins parts without encoding them.
func (kb *KeyBuilder) CompoundKey(parts ...string) string {
	return kb.join(parts...)
}

// EncodeKey base58 encodes every "/" separated part and joins them with ".", so
// caller supplied ids never carry characters the KV store rejects. The wildcards
// ">" and "*" pass through for listing.
//
// NATS limitations: https://docs.nats.io/nats-concepts/jetstream/key-value-store#notes
func (kb *KeyBuilder) EncodeKey(key string) (string, error) {
	parts := strings.Split(strings.TrimPrefix(key, "/"), "/")
	for i, part := range parts {
		switch part {
		case "":
			return "", nats.ErrInvalidKey
		case ">", "*":
		default:
			parts[i] = base58.Encode([]byte(part))
		}
	}
	return strings.Join(parts, "."), nil
}

// DecodeKey reverses EncodeKey, returning the key with a leading "/".
func (kb *KeyBuilder) DecodeKey(key string) (string, error) {
	parts := strings.Split(key, ".")
	for i, part := range parts {
		raw, err := base58.Decode(part)
		if err != nil {
			return "", err
		}
		parts[i] = string(raw)
	}
	return "/" + strings.Join(parts, "/"), nil
}
