package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/paintroom/paintroom/internal/model"
)

func TestMarketRepo_List_DecodesEffects(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewMarketRepo(db)

	mock.ExpectQuery(`SELECT id, name, price, effect, effect_arg, ord`).
		WillReturnRows(pgxmock.
			NewRows([]string{"id", "name", "price", "effect", "effect_arg", "ord"}).
			AddRow("golden-power", "Golden Power", int64(20), "golden_power_up", int64(5000), 1).
			AddRow("layer-wipe", "Layer Wipe", int64(30), "clear_active_layer", int64(0), 2).
			AddRow("big-brush", "Big Brush", int64(50), "brush_size_grant", int64(15), 3))

	items, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)

	require.Equal(t, model.EffectGoldenPowerUp, items[0].Effect.Kind)
	require.Equal(t, 5*time.Second, items[0].Effect.Duration)
	require.Equal(t, model.EffectClearActiveLayer, items[1].Effect.Kind)
	require.Equal(t, model.EffectBrushSizeGrant, items[2].Effect.Kind)
	require.Equal(t, float64(15), items[2].Effect.BrushSize)
}

func TestDrawingRepo_Save_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDrawingRepo(db)

	uid := uuid.Must(uuid.NewV4())
	mock.ExpectExec(`INSERT INTO drawings`).
		WithArgs("01J0000000000000000000000X", uid, "sunset", []byte{0x89, 'P', 'N', 'G'}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := r.Save(context.Background(), &model.Drawing{
		ID:     "01J0000000000000000000000X",
		UserID: uid,
		Title:  "sunset",
		Image:  []byte{0x89, 'P', 'N', 'G'},
	})
	require.NoError(t, err)
}
