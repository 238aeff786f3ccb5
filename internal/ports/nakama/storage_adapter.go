package nakama

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"turnbase/internal/domain"
	"turnbase/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	permissionReadPublic = 2
	permissionWriteNone  = 0

	// versionCreateOnly makes a storage write succeed only if the key does
	// not exist yet.
	versionCreateOnly = "*"
)

// NakamaStoreAdapter implements ports.MatchStore on Nakama's versioned
// storage engine. All objects are system-owned with public read.
type NakamaStoreAdapter struct {
	nk runtime.NakamaModule
}

// NewNakamaStoreAdapter creates a new storage adapter.
func NewNakamaStoreAdapter(nk runtime.NakamaModule) *NakamaStoreAdapter {
	return &NakamaStoreAdapter{nk: nk}
}

var _ ports.MatchStore = (*NakamaStoreAdapter)(nil)

func turnKey(matchID string, turn int64) string {
	return fmt.Sprintf("%s:%d", matchID, turn)
}

// isVersionConflict classifies a storage write rejection caused by a stale
// version token. The runtime surfaces it as a plain error, so the message is
// the only discriminator available.
func isVersionConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "version check failed")
}

func matchWrite(record domain.MatchRecord, version string) (*runtime.StorageWrite, error) {
	value, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal match record: %w", err)
	}
	return &runtime.StorageWrite{
		Collection:      CollectionMatches,
		Key:             record.MatchID,
		Value:           string(value),
		Version:         version,
		PermissionRead:  permissionReadPublic,
		PermissionWrite: permissionWriteNone,
	}, nil
}

// CreateMatch writes the initial match record, failing if the key exists.
func (a *NakamaStoreAdapter) CreateMatch(ctx context.Context, record domain.MatchRecord) error {
	write, err := matchWrite(record, versionCreateOnly)
	if err != nil {
		return err
	}
	if _, err := a.nk.StorageWrite(ctx, []*runtime.StorageWrite{write}); err != nil {
		if isVersionConflict(err) {
			return ports.ErrVersionConflict
		}
		return fmt.Errorf("failed to create match record: %w", err)
	}
	return nil
}

// ReadMatch returns the match record and its current version token.
func (a *NakamaStoreAdapter) ReadMatch(ctx context.Context, matchID string) (domain.MatchRecord, string, error) {
	objects, err := a.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: CollectionMatches,
		Key:        matchID,
	}})
	if err != nil {
		return domain.MatchRecord{}, "", fmt.Errorf("failed to read match record: %w", err)
	}
	if len(objects) == 0 {
		return domain.MatchRecord{}, "", ports.ErrNotFound
	}

	var record domain.MatchRecord
	if err := json.Unmarshal([]byte(objects[0].GetValue()), &record); err != nil {
		return domain.MatchRecord{}, "", fmt.Errorf("failed to unmarshal match record: %w", err)
	}
	return record, objects[0].GetVersion(), nil
}

// WriteMatch compare-and-writes the match record against version.
func (a *NakamaStoreAdapter) WriteMatch(ctx context.Context, record domain.MatchRecord, version string) (string, error) {
	write, err := matchWrite(record, version)
	if err != nil {
		return "", err
	}
	acks, err := a.nk.StorageWrite(ctx, []*runtime.StorageWrite{write})
	if err != nil {
		if isVersionConflict(err) {
			return "", ports.ErrVersionConflict
		}
		return "", fmt.Errorf("failed to write match record: %w", err)
	}
	return acks[0].GetVersion(), nil
}

// WriteTurn commits the match compare-and-write and the create-only turn
// record as one storage batch. The engine applies the batch atomically, so a
// stale match version rejects the turn record with it.
func (a *NakamaStoreAdapter) WriteTurn(ctx context.Context, record domain.MatchRecord, version string, turn domain.TurnRecord) (string, error) {
	write, err := matchWrite(record, version)
	if err != nil {
		return "", err
	}
	turnValue, err := json.Marshal(turn)
	if err != nil {
		return "", fmt.Errorf("failed to marshal turn record: %w", err)
	}

	acks, err := a.nk.StorageWrite(ctx, []*runtime.StorageWrite{
		write,
		{
			Collection:      CollectionTurns,
			Key:             turnKey(turn.MatchID, turn.Turn),
			Value:           string(turnValue),
			Version:         versionCreateOnly,
			PermissionRead:  permissionReadPublic,
			PermissionWrite: permissionWriteNone,
		},
	})
	if err != nil {
		if isVersionConflict(err) {
			return "", ports.ErrVersionConflict
		}
		return "", fmt.Errorf("failed to write turn batch: %w", err)
	}
	return acks[0].GetVersion(), nil
}

// ReadTurns reads turn records for indices from..to inclusive in one batched
// read. Missing keys are simply absent from the result.
func (a *NakamaStoreAdapter) ReadTurns(ctx context.Context, matchID string, from, to int64) ([]domain.TurnRecord, error) {
	if to < from {
		return []domain.TurnRecord{}, nil
	}

	reads := make([]*runtime.StorageRead, 0, to-from+1)
	for i := from; i <= to; i++ {
		reads = append(reads, &runtime.StorageRead{
			Collection: CollectionTurns,
			Key:        turnKey(matchID, i),
		})
	}

	objects, err := a.nk.StorageRead(ctx, reads)
	if err != nil {
		return nil, fmt.Errorf("failed to read turn records: %w", err)
	}

	turns := make([]domain.TurnRecord, 0, len(objects))
	for _, obj := range objects {
		var turn domain.TurnRecord
		if err := json.Unmarshal([]byte(obj.GetValue()), &turn); err != nil {
			// Tolerate individually corrupt records on the read path.
			continue
		}
		turns = append(turns, turn)
	}
	sort.Slice(turns, func(i, j int) bool { return turns[i].Turn < turns[j].Turn })
	return turns, nil
}

// ListMatches returns one page of match records plus the next-page cursor.
func (a *NakamaStoreAdapter) ListMatches(ctx context.Context, limit int, cursor string) ([]domain.MatchRecord, string, error) {
	objects, next, err := a.nk.StorageList(ctx, "", "", CollectionMatches, limit, cursor)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list match records: %w", err)
	}

	records := make([]domain.MatchRecord, 0, len(objects))
	for _, obj := range objects {
		var record domain.MatchRecord
		if err := json.Unmarshal([]byte(obj.GetValue()), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, next, nil
}
