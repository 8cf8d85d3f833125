package lqa_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hfale/pcale/lqa"
)

func TestTimeWeightedAveragingConverges(t *testing.T) {
	db := lqa.NewDatabase(lqa.DefaultConfig())
	for i := 0; i < 50; i++ {
		db.Update(7100000, "K6KB", lqa.Sample{SnrDb: 20, Ber: 0, SinadDb: 15}, int64(i)*1000)
	}
	e, ok := db.Get(7100000, "K6KB", 49000)
	require.True(t, ok)
	require.InDelta(t, 20, e.SnrDb, 0.01)
	require.Equal(t, 50, e.SampleCount)
}

func TestTimeWeightedAveragingWeighsRecentSamplesMore(t *testing.T) {
	db := lqa.NewDatabase(lqa.DefaultConfig())
	for i := 0; i < 20; i++ {
		db.Update(7100000, "K6KB", lqa.Sample{SnrDb: 10}, int64(i)*1000)
	}
	db.Update(7100000, "K6KB", lqa.Sample{SnrDb: 30}, 20000)
	e, ok := db.Get(7100000, "K6KB", 20000)
	require.True(t, ok)
	require.Greater(t, e.SnrDb, 10.5, "a single high sample should move the average up")
	require.Less(t, e.SnrDb, 30.0)
}

func TestScoreAlwaysInRange(t *testing.T) {
	db := lqa.NewDatabase(lqa.DefaultConfig())
	cases := []lqa.Sample{
		{SnrDb: -50, Ber: 1, SinadDb: -10},
		{SnrDb: 1000, Ber: -1, SinadDb: 1000},
		{SnrDb: 15, Ber: 0.05, SinadDb: 10},
		{SnrDb: 0, Ber: 0, SinadDb: 0},
	}
	for i, s := range cases {
		e := db.Update(uint32(7000000+i), "TEST", s, 0)
		require.GreaterOrEqual(t, e.Score, 0.0)
		require.LessOrEqual(t, e.Score, 31.0)
	}

	// Score also stays in range at long-after query times (recency decays
	// toward 0, not negative).
	e, ok := db.Get(7000000, "TEST", 10_000_000)
	require.True(t, ok)
	require.GreaterOrEqual(t, e.Score, 0.0)
	require.LessOrEqual(t, e.Score, 31.0)
}

func TestPruneRemovesStaleEntries(t *testing.T) {
	cfg := lqa.DefaultConfig()
	cfg.MaxAgeMs = 1000
	db := lqa.NewDatabase(cfg)
	db.Update(7100000, "K6KB", lqa.Sample{SnrDb: 20}, 0)
	db.Update(7200000, "W1AW", lqa.Sample{SnrDb: 20}, 5000)

	removed := db.Prune(5000)
	require.Equal(t, 1, removed)
	require.Equal(t, 1, db.Len())
	_, ok := db.Get(7200000, "W1AW", 5000)
	require.True(t, ok)
}

func TestGetBestChannelForStationPicksHighestQualifyingScore(t *testing.T) {
	db := lqa.NewDatabase(lqa.DefaultConfig())
	db.Update(7100000, "K6KB", lqa.Sample{SnrDb: 5, Ber: 0.5}, 0)  // weak
	db.Update(7200000, "K6KB", lqa.Sample{SnrDb: 28, Ber: 0}, 0)   // strong
	db.Update(7300000, "W1AW", lqa.Sample{SnrDb: 31, Ber: 0}, 0)   // different station

	best, ok := db.GetBestChannelForStation("K6KB", 0)
	require.True(t, ok)
	require.Equal(t, uint32(7200000), best.FrequencyHz)
}

func TestGetBestChannelForStationRejectsBelowMinimum(t *testing.T) {
	db := lqa.NewDatabase(lqa.DefaultConfig())
	db.Update(7100000, "K6KB", lqa.Sample{SnrDb: 0, Ber: 1}, 0)
	_, ok := db.GetBestChannelForStation("K6KB", 0)
	require.False(t, ok)
}

func TestRankAllChannelsOrdersDescending(t *testing.T) {
	db := lqa.NewDatabase(lqa.DefaultConfig())
	db.Update(7100000, "K6KB", lqa.Sample{SnrDb: 5, Ber: 0.9}, 0)
	db.Update(7200000, "K6KB", lqa.Sample{SnrDb: 31, Ber: 0}, 0)
	db.Update(7200000, "W1AW", lqa.Sample{SnrDb: 31, Ber: 0}, 0)

	ranks := db.RankAllChannels(0)
	require.Len(t, ranks, 2)
	require.Equal(t, uint32(7200000), ranks[0].FrequencyHz)
	require.Equal(t, uint32(7100000), ranks[1].FrequencyHz)
	require.Greater(t, ranks[0].MeanScore, ranks[1].MeanScore)
}

func TestIsSoundingDue(t *testing.T) {
	cfg := lqa.DefaultConfig()
	cfg.SoundingIntervalMs = 1000
	db := lqa.NewDatabase(cfg)

	require.True(t, db.IsSoundingDue(7100000, 0), "no prior sounding means due")

	db.Update(7100000, "", lqa.Sample{SnrDb: 20, IsSounding: true}, 0)
	require.False(t, db.IsSoundingDue(7100000, 500))
	require.True(t, db.IsSoundingDue(7100000, 1001))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	db := lqa.NewDatabase(lqa.DefaultConfig())
	db.Update(7100000, "K6KB", lqa.Sample{SnrDb: 18.5, Ber: 0.01, SinadDb: 12, FecErrors: 2, MultipathScore: 0.3, NoiseFloorDbm: -110}, 1000)
	db.Update(7200000, "", lqa.Sample{SnrDb: 10, IsSounding: true}, 2000)

	path := filepath.Join(t.TempDir(), "lqa.db")
	require.NoError(t, db.Save(path))

	loaded, err := lqa.Load(path)
	require.NoError(t, err)
	require.Equal(t, db.Len(), loaded.Len())

	want, ok := db.Get(7100000, "K6KB", 1000)
	require.True(t, ok)
	got, ok := loaded.Get(7100000, "K6KB", 1000)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestLoadMissingFileReturnsPersistenceError(t *testing.T) {
	_, err := lqa.Load(filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	var persistErr *lqa.PersistenceError
	require.ErrorAs(t, err, &persistErr)
	require.Equal(t, "load", persistErr.Op)
}

func TestExportCSVHeaderAndColumnOrder(t *testing.T) {
	db := lqa.NewDatabase(lqa.DefaultConfig())
	db.Update(7100000, "K6KB", lqa.Sample{SnrDb: 20, Ber: 0.02}, 0)

	var buf bytes.Buffer
	require.NoError(t, db.ExportCSV(&buf, 0))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	require.Equal(t, "frequency_hz,remote_station,snr_db,ber,sinad_db,fec_errors,total_words,multipath_score,noise_floor_dbm,last_sounding_ms,last_contact_ms,score,sample_count", string(lines[0]))
}
