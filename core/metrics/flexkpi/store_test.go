package flexkpi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAggregatesPerDay(t *testing.T) {
	s := NewMemoryStore()
	d := time.Date(2020, 10, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Add(FromPower("1/1", d.Add(time.Hour), -4, 30*time.Minute)))
	require.NoError(t, s.Add(FromPower("1/1", d.Add(2*time.Hour), -6, time.Hour)))
	require.NoError(t, s.Add(FromPower("1/1", d.Add(3*time.Hour), 3, time.Hour)))
	require.NoError(t, s.Add(FromPower("1/1", d.Add(25*time.Hour), -1, time.Hour)))

	recs, err := s.Query("1/1", d, d)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 8.0, recs[0].ReducedKWh)
	assert.Equal(t, 3.0, recs[0].IncreasedKWh)
	assert.Equal(t, -5.0, recs[0].NetKWh())
	assert.Equal(t, 4.0, recs[0].Income(0.5))

	recs, err = s.Query("1/1", d, d.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].Date.Before(recs[1].Date))

	recs, err = s.Query("2/2", d, d)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
