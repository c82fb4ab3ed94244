package engine

import (
	"context"
	"errors"

	"github.com/kbsync/kbsync/internal/catalog"
	"github.com/kbsync/kbsync/internal/source"
)

// ErrTokenInvalid is returned by a DeltaCapable adapter (via errors.Is on the
// error from DeltaList) when the server reports a token it no longer honors;
// the Delta-Token Manager clears it and the orchestrator retries with a full
// listing in the same run (spec §4.7).
var ErrTokenInvalid = errors.New("engine: delta token invalid")

// deltaTokenManager persists and retrieves per-(source_id, drive_id) delta
// cursors (component E, spec §4.7), sitting directly on top of
// catalog.Repository's delta-token methods.
type deltaTokenManager struct {
	repo *catalog.Repository
}

// listing performs a Graph-style listing for adapter: if adapter is
// DeltaCapable and a saved token exists, it calls DeltaList; otherwise it
// falls back to a full List. It returns the descriptors, the drive_id used
// ("default" for a DeltaCapable adapter that is not DriveIdentifiable, empty
// if the adapter is not DeltaCapable), and the new token to save on success
// (empty if no delta token applies to this source at all).
func (m *deltaTokenManager) listing(ctx context.Context, sourceID string, adapter source.Adapter) ([]source.Descriptor, string, string, error) {
	deltaAdapter, ok := adapter.(source.DeltaCapable)
	if !ok {
		descriptors, err := adapter.List(ctx)
		return descriptors, "", "", err
	}

	driveID := "default"
	if di, ok := adapter.(source.DriveIdentifiable); ok {
		id, err := di.DriveID(ctx)
		if err != nil {
			return nil, "", "", err
		}
		driveID = id
	}

	token, err := m.repo.GetDeltaToken(ctx, sourceID, driveID)
	if err != nil {
		return nil, "", "", err
	}

	descriptors, nextToken, err := deltaAdapter.DeltaList(ctx, token)
	if errors.Is(err, ErrTokenInvalid) {
		if clearErr := m.repo.ClearDeltaToken(ctx, sourceID, driveID); clearErr != nil {
			return nil, "", "", clearErr
		}
		descriptors, nextToken, err = deltaAdapter.DeltaList(ctx, "")
	}
	if err != nil {
		return nil, "", "", err
	}

	return descriptors, driveID, nextToken, nil
}

// save upserts the new token for (sourceID, driveID), a no-op if driveID is
// empty (the adapter was not delta-capable at all).
func (m *deltaTokenManager) save(ctx context.Context, sourceID, sourceType, driveID, token string) error {
	if driveID == "" || token == "" {
		return nil
	}
	return m.repo.SaveDeltaToken(ctx, sourceID, sourceType, driveID, token)
}
