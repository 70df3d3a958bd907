package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckpair/internal/domain"
)

func newTestStore(t *testing.T) *DeckStore {
	t.Helper()
	store, err := NewDeckStore(filepath.Join(t.TempDir(), "deck.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLoadReturnsDefaultsWhenEmpty(t *testing.T) {
	store := newTestStore(t)

	cfg, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultDeckConfig(), cfg)
	assert.NotEmpty(t, cfg.SoundButtons)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cfg := domain.DefaultDeckConfig()
	cfg.PlatformConfig.Channel = "mychannel"
	cfg.SoundButtons = append(cfg.SoundButtons, domain.SoundItem{ID: "custom", Label: "CUSTOM"})

	require.NoError(t, store.Save(ctx, cfg))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mychannel", got.PlatformConfig.Channel)
	assert.Equal(t, cfg.SoundButtons, got.SoundButtons)
}

func TestSaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := domain.DefaultDeckConfig()
	first.PlatformConfig.Channel = "one"
	require.NoError(t, store.Save(ctx, first))

	second := domain.DefaultDeckConfig()
	second.PlatformConfig.Channel = "two"
	require.NoError(t, store.Save(ctx, second))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", got.PlatformConfig.Channel)
}

func TestExportImportRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cfg := domain.DefaultDeckConfig()
	cfg.PlatformConfig.Channel = "exported"
	require.NoError(t, store.Save(ctx, cfg))

	raw, err := store.ExportJSON(ctx)
	require.NoError(t, err)
	assert.True(t, json.Valid(raw))

	other := newTestStore(t)
	imported, err := other.ImportJSON(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "exported", imported.PlatformConfig.Channel)

	got, err := other.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "exported", got.PlatformConfig.Channel)
}

func TestImportRejectsBadShape(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	good := domain.DefaultDeckConfig()
	good.PlatformConfig.Channel = "keepme"
	require.NoError(t, store.Save(ctx, good))

	for name, doc := range map[string]string{
		"not json":              `{"soundButtons": [`,
		"missing soundButtons":  `{"platformConfig":{}}`,
		"soundButtons not list": `{"soundButtons":{},"platformConfig":{}}`,
		"platform not object":   `{"soundButtons":[],"platformConfig":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := store.ImportJSON(ctx, []byte(doc))
			require.Error(t, err)
		})
	}

	// A rejected import leaves the stored config alone.
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "keepme", got.PlatformConfig.Channel)
}

func TestValidateShape(t *testing.T) {
	ok := `{"soundButtons":[],"platformConfig":{"channel":"c"}}`
	assert.NoError(t, ValidateShape([]byte(ok)))
	assert.Error(t, ValidateShape([]byte(`[]`)))
}
