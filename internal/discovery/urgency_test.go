package discovery

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

var testNow = time.Date(2025, 11, 9, 4, 0, 0, 0, time.UTC)

func startingIn(id string, hours float64) domain.MarketRecord {
	at := testNow.Add(time.Duration(hours * float64(time.Hour)))
	return domain.MarketRecord{ID: id, GameStartTime: at.Format("2006-01-02T15:04:05Z")}
}

func TestFilterUrgent_StartedGameIsIncluded(t *testing.T) {
	m := domain.MarketRecord{ID: "m1", GameStartTime: "2025-11-09 03:00:00+00"}

	got := FilterUrgent([]domain.MarketRecord{m}, Window{Mode: ModeUrgent, LookaheadHours: 6}, testNow)

	require.Len(t, got, 1)
	assert.InDelta(t, -1.0, got[0].HoursUntil, 1e-9)
	assert.Equal(t, domain.PriorityUrgent, got[0].Priority)
}

func TestFilterUrgent_Partition(t *testing.T) {
	urgent := Window{Mode: ModeUrgent, LookaheadHours: 6}
	live := Window{Mode: ModeLive, LookbackHours: 4}

	for h := -10.0; h <= 10.0; h += 0.5 {
		t.Run(fmt.Sprintf("%+.1fh", h), func(t *testing.T) {
			records := []domain.MarketRecord{startingIn("m", h)}

			gotUrgent := FilterUrgent(records, urgent, testNow)
			assert.Equal(t, h <= 6, len(gotUrgent) == 1, "urgent")

			gotLive := FilterUrgent(records, live, testNow)
			assert.Equal(t, h >= -4 && h < 0, len(gotLive) == 1, "live")
		})
	}
}

func TestFilterUrgent_LookbackBoundsUrgentMode(t *testing.T) {
	w := Window{Mode: ModeUrgent, LookaheadHours: 6, LookbackHours: 2}
	records := []domain.MarketRecord{startingIn("stale", -3), startingIn("running", -1), startingIn("soon", 5)}

	got := FilterUrgent(records, w, testNow)

	require.Len(t, got, 2)
	assert.Equal(t, "running", got[0].Market.ID)
	assert.Equal(t, "soon", got[1].Market.ID)
}

func TestFilterUrgent_SortsAscendingAndStable(t *testing.T) {
	records := []domain.MarketRecord{
		startingIn("later", 5),
		startingIn("tie-a", 1),
		startingIn("earliest", -2),
		startingIn("tie-b", 1),
	}

	got := FilterUrgent(records, Window{Mode: ModeUrgent, LookaheadHours: 6}, testNow)

	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.Market.ID)
	}
	assert.Equal(t, []string{"earliest", "tie-a", "tie-b", "later"}, ids)
}

func TestFilterUrgent_DropsUnresolved(t *testing.T) {
	records := []domain.MarketRecord{
		{ID: "garbage", GameStartTime: "not a date"},
		{ID: "none"},
		startingIn("ok", 2),
	}

	got := FilterUrgent(records, Window{Mode: ModeUrgent, LookaheadHours: 6}, testNow)

	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Market.ID)
}

func TestWindow_Validate(t *testing.T) {
	assert.NoError(t, Window{Mode: ModeUrgent, LookaheadHours: 6}.Validate())
	assert.NoError(t, Window{Mode: ModeLive, LookbackHours: 4}.Validate())

	assert.ErrorIs(t, Window{Mode: "later"}.Validate(), domain.ErrInvalidParams)
	assert.ErrorIs(t, Window{Mode: ModeLive}.Validate(), domain.ErrInvalidParams)
	assert.ErrorIs(t, Window{Mode: ModeUrgent, LookaheadHours: -1}.Validate(), domain.ErrInvalidParams)
}
