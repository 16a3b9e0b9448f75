package graphclustering

import (
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/c360/semcommunity/errors"
	"github.com/c360/semcommunity/natsclient"
)

const (
	// CommunityBucket is the NATS KV bucket for storing communities
	CommunityBucket = "COMMUNITY_INDEX"

	// Key patterns:
	// - graph.community.record.{level}.{id} - CommunityRecord
	// - graph.community.summary.{level}.{id} - CommunitySummary
	// IDs are base64url encoded so any ID yields a valid KV key.
	keyRoot       = "graph.community."
	recordPrefix  = keyRoot + "record."
	summaryPrefix = keyRoot + "summary."
)

// KVCommunityStorage persists community records and summaries in NATS KV.
type KVCommunityStorage struct {
	kv *natsclient.KVStore
}

var _ CommunityPersister = (*KVCommunityStorage)(nil)

// NewKVCommunityStorage creates a NATS-backed community persister
func NewKVCommunityStorage(kv *natsclient.KVStore) *KVCommunityStorage {
	return &KVCommunityStorage{kv: kv}
}

func recordKey(key CommunityKey) string {
	return recordPrefix + strconv.Itoa(key.Level) + "." + base64.RawURLEncoding.EncodeToString([]byte(key.ID))
}

func summaryKey(key CommunityKey) string {
	return summaryPrefix + strconv.Itoa(key.Level) + "." + base64.RawURLEncoding.EncodeToString([]byte(key.ID))
}

// parseKey recovers the community key from a stored key with the given prefix.
func parseKey(prefix, stored string) (CommunityKey, error) {
	rest := strings.TrimPrefix(stored, prefix)
	levelStr, encoded, ok := strings.Cut(rest, ".")
	if !ok {
		return CommunityKey{}, fmt.Errorf("malformed community key %q", stored)
	}
	level, err := strconv.Atoi(levelStr)
	if err != nil {
		return CommunityKey{}, fmt.Errorf("malformed level in key %q: %w", stored, err)
	}
	id, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return CommunityKey{}, fmt.Errorf("malformed id in key %q: %w", stored, err)
	}
	return CommunityKey{ID: string(id), Level: level}, nil
}

// WriteCommunityRecord stores a record, replacing any previous version
func (s *KVCommunityStorage) WriteCommunityRecord(ctx context.Context, record *CommunityRecord) error {
	if record == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "KVCommunityStorage", "WriteCommunityRecord", "record is nil")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return errors.WrapInvalid(err, "KVCommunityStorage", "WriteCommunityRecord", "marshal record")
	}
	if _, err := s.kv.Put(ctx, recordKey(record.Key()), data); err != nil {
		return errors.WrapTransient(err, "KVCommunityStorage", "WriteCommunityRecord", "put record")
	}
	return nil
}

// WriteSummary stores a summary, replacing any previous version
func (s *KVCommunityStorage) WriteSummary(ctx context.Context, summary *CommunitySummary) error {
	if summary == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "KVCommunityStorage", "WriteSummary", "summary is nil")
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return errors.WrapInvalid(err, "KVCommunityStorage", "WriteSummary", "marshal summary")
	}
	if _, err := s.kv.Put(ctx, summaryKey(summary.Key()), data); err != nil {
		return errors.WrapTransient(err, "KVCommunityStorage", "WriteSummary", "put summary")
	}
	return nil
}

// ReadSummary returns the stored summary for key, or nil if there is none
func (s *KVCommunityStorage) ReadSummary(ctx context.Context, key CommunityKey) (*CommunitySummary, error) {
	entry, err := s.kv.Get(ctx, summaryKey(key))
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return nil, nil
		}
		return nil, errors.WrapTransient(err, "KVCommunityStorage", "ReadSummary", "get summary")
	}

	var summary CommunitySummary
	if err := json.Unmarshal(entry.Value, &summary); err != nil {
		return nil, errors.WrapInvalid(err, "KVCommunityStorage", "ReadSummary", "unmarshal summary")
	}
	return &summary, nil
}

// ListCommunityRecords returns every stored record ordered by level, then ID
func (s *KVCommunityStorage) ListCommunityRecords(ctx context.Context) ([]*CommunityRecord, error) {
	keys, err := s.kv.Keys(ctx, recordPrefix)
	if err != nil {
		return nil, errors.WrapTransient(err, "KVCommunityStorage", "ListCommunityRecords", "list keys")
	}

	records := make([]*CommunityRecord, 0, len(keys))
	for _, key := range keys {
		want, err := parseKey(recordPrefix, key)
		if err != nil {
			return nil, errors.WrapInvalid(err, "KVCommunityStorage", "ListCommunityRecords", "parse key")
		}
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			if natsclient.IsKVNotFoundError(err) {
				continue // deleted since listing
			}
			return nil, errors.WrapTransient(err, "KVCommunityStorage", "ListCommunityRecords", "get record")
		}
		var record CommunityRecord
		if err := json.Unmarshal(entry.Value, &record); err != nil {
			return nil, errors.WrapInvalid(err, "KVCommunityStorage", "ListCommunityRecords", "unmarshal record")
		}
		if record.Key() != want {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: record %s stored under %s", errors.ErrInvalidData, record.Key(), want),
				"KVCommunityStorage", "ListCommunityRecords", "verify record key")
		}
		records = append(records, &record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Key().Less(records[j].Key())
	})
	return records, nil
}

// ResetCommunities deletes every stored record and summary
func (s *KVCommunityStorage) ResetCommunities(ctx context.Context) error {
	keys, err := s.kv.Keys(ctx, keyRoot)
	if err != nil {
		return errors.WrapTransient(err, "KVCommunityStorage", "ResetCommunities", "list keys")
	}

	// Accumulate errors so one bad key does not leave the rest behind.
	var deleteErrs []error
	for _, key := range keys {
		if err := s.kv.Delete(ctx, key); err != nil {
			deleteErrs = append(deleteErrs, fmt.Errorf("failed to delete %s: %w", key, err))
		}
	}
	if len(deleteErrs) > 0 {
		return errors.WrapTransient(stderrors.Join(deleteErrs...), "KVCommunityStorage", "ResetCommunities", "delete keys")
	}
	return nil
}
