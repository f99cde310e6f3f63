package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/gradua/ceremonia-api/pkg/errors"
)

type fakeAdminStore struct {
	mu      sync.Mutex
	sheets  []string
	renames [][2]string
}

func (f *fakeAdminStore) ListSheets(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sheets...), nil
}

func (f *fakeAdminStore) RenameSheet(_ context.Context, oldName, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, name := range f.sheets {
		if name == oldName {
			f.sheets[i] = newName
		}
	}
	f.renames = append(f.renames, [2]string{oldName, newName})
	return nil
}

func boolPtr(b bool) *bool { return &b }

func TestSheetAdminList(t *testing.T) {
	store := &fakeAdminStore{sheets: []string{"2026-09-01", "2026-09-02-B-off", "Notas"}}
	svc := NewSheetAdminService(store, nil, nil)

	infos, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 3)

	assert.True(t, infos[0].Parsed)
	assert.True(t, infos[0].Active)
	assert.Equal(t, "2026-09-01", infos[0].Date)

	assert.True(t, infos[1].Parsed)
	assert.False(t, infos[1].Active)
	assert.Equal(t, "B", infos[1].Letter)

	assert.False(t, infos[2].Parsed)
	assert.Equal(t, "Notas", infos[2].Name)
}

func TestSetStateDeactivatesByRename(t *testing.T) {
	store := &fakeAdminStore{sheets: []string{"2026-09-01"}}
	svc := NewSheetAdminService(store, nil, nil)

	info, err := svc.SetState(context.Background(), SetSheetStateRequest{
		Date: "2026-09-01", Active: boolPtr(false),
	})
	require.NoError(t, err)

	assert.False(t, info.Active)
	assert.Equal(t, "2026-09-01-off", info.Name)
	require.Len(t, store.renames, 1)
	assert.Equal(t, [2]string{"2026-09-01", "2026-09-01-off"}, store.renames[0])
}

func TestSetStateReactivates(t *testing.T) {
	store := &fakeAdminStore{sheets: []string{"2026-09-02-B-off"}}
	svc := NewSheetAdminService(store, nil, nil)

	info, err := svc.SetState(context.Background(), SetSheetStateRequest{
		Date: "2026-09-02", Ceremony: "B", Active: boolPtr(true),
	})
	require.NoError(t, err)

	assert.True(t, info.Active)
	assert.Equal(t, "2026-09-02-B", info.Name)
	assert.Equal(t, []string{"2026-09-02-B"}, store.sheets)
}

func TestSetStateNoOpWhenAlreadyInState(t *testing.T) {
	store := &fakeAdminStore{sheets: []string{"2026-09-01"}}
	svc := NewSheetAdminService(store, nil, nil)

	info, err := svc.SetState(context.Background(), SetSheetStateRequest{
		Date: "2026-09-01", Active: boolPtr(true),
	})
	require.NoError(t, err)

	assert.True(t, info.Active)
	assert.Empty(t, store.renames)
}

func TestSetStateUnknownCeremony(t *testing.T) {
	store := &fakeAdminStore{sheets: []string{"2026-09-01"}}
	svc := NewSheetAdminService(store, nil, nil)

	_, err := svc.SetState(context.Background(), SetSheetStateRequest{
		Date: "2026-12-24", Active: boolPtr(false),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoCeremony.Code, appErrors.FromError(err).Code)
}

func TestSetStateValidation(t *testing.T) {
	store := &fakeAdminStore{sheets: []string{"2026-09-01"}}
	svc := NewSheetAdminService(store, nil, nil)

	_, err := svc.SetState(context.Background(), SetSheetStateRequest{Date: "2026-09-01"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.renames)
}
