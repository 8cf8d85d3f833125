// Package lqa implements the Link Quality Analysis subsystem (C9 in
// spec.md §4.9): a per-(frequency, station) quality database with
// time-weighted averaging, a composite 0-31 score, ranking, best-channel
// selection, sounding scheduling, and binary/CSV persistence.
package lqa

import (
	"math"

	"github.com/charmbracelet/log"
)

// Entry is one LQAEntry keyed by (frequency_hz, remote_station) (spec.md
// §3). Station == "" denotes a sounding/general-channel entry.
type Entry struct {
	FrequencyHz    uint32
	Station        string
	SnrDb          float64
	Ber            float64
	SinadDb        float64
	FecErrors      int // cumulative
	TotalWords     int // cumulative
	MultipathScore float64
	NoiseFloorDbm  float64
	LastSoundingMs int64
	LastContactMs  int64
	Score          float64
	SampleCount    int
}

// Config holds the subsystem's tunable parameters (spec.md §4.9 defaults).
type Config struct {
	Decay              float64
	MaxAgeMs           int64
	WeightSnr          float64
	WeightSuccess      float64
	WeightRecency      float64
	MinAcceptableScore float64
	SoundingIntervalMs int64
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		Decay:              0.9,
		MaxAgeMs:           3600000,
		WeightSnr:          0.5,
		WeightSuccess:      0.3,
		WeightRecency:      0.2,
		MinAcceptableScore: 10,
		SoundingIntervalMs: 300000,
	}
}

// Sample is one observed measurement fed into Database.Update.
type Sample struct {
	SnrDb          float64
	Ber            float64
	SinadDb        float64
	FecErrors      int
	MultipathScore float64
	NoiseFloorDbm  float64
	IsSounding     bool
}

type key struct {
	freq    uint32
	station string
}

// Database is the per-(frequency, station) LQA store (spec.md §5: "the
// only long-lived mutable store", single-owner mediated).
type Database struct {
	cfg     Config
	entries map[key]*Entry
	logger  *log.Logger
}

// NewDatabase creates an empty LQA database.
func NewDatabase(cfg Config) *Database {
	return &Database{
		cfg:     cfg,
		entries: make(map[key]*Entry),
		logger:  log.With("component", "lqa"),
	}
}

// Update combines a new sample with the prior entry for (frequencyHz,
// station) using time-weighted averaging (spec.md §4.9):
//
//	weighted_old = old_value * decay * old_sample_count
//	total_weight = old_sample_count * decay + 1
//	new_avg      = (weighted_old + new_value) / total_weight
func (db *Database) Update(frequencyHz uint32, station string, s Sample, nowMs int64) *Entry {
	k := key{freq: frequencyHz, station: station}
	e, ok := db.entries[k]
	if !ok {
		e = &Entry{FrequencyHz: frequencyHz, Station: station}
		db.entries[k] = e
	}

	e.SnrDb = timeWeightedAvg(e.SnrDb, e.SampleCount, s.SnrDb, db.cfg.Decay)
	e.Ber = timeWeightedAvg(e.Ber, e.SampleCount, s.Ber, db.cfg.Decay)
	e.SinadDb = timeWeightedAvg(e.SinadDb, e.SampleCount, s.SinadDb, db.cfg.Decay)
	e.MultipathScore = timeWeightedAvg(e.MultipathScore, e.SampleCount, s.MultipathScore, db.cfg.Decay)
	e.NoiseFloorDbm = timeWeightedAvg(e.NoiseFloorDbm, e.SampleCount, s.NoiseFloorDbm, db.cfg.Decay)

	e.FecErrors += s.FecErrors
	e.TotalWords++
	e.SampleCount++
	e.LastContactMs = nowMs
	if s.IsSounding {
		e.LastSoundingMs = nowMs
	}

	e.Score = db.computeScore(e, nowMs)
	return e
}

func timeWeightedAvg(old float64, oldSampleCount int, newValue, decay float64) float64 {
	if oldSampleCount == 0 {
		return newValue
	}
	weightedOld := old * decay * float64(oldSampleCount)
	totalWeight := float64(oldSampleCount)*decay + 1
	return (weightedOld + newValue) / totalWeight
}

// computeScore implements spec.md §4.9's composite score formula, scale
// 0..31, clamped to [0,31].
func (db *Database) computeScore(e *Entry, nowMs int64) float64 {
	snrComponent := clamp(e.SnrDb, 0, 31)

	ber := e.Ber
	if ber < 0 {
		ber = 0
	}
	successComponent := (1 - math.Min(1, ber)) * 31

	var ageMs int64
	if nowMs > e.LastContactMs {
		ageMs = nowMs - e.LastContactMs
	}
	maxAge := db.cfg.MaxAgeMs
	if maxAge <= 0 {
		maxAge = 1
	}
	recencyFraction := clamp(1-float64(ageMs)/float64(maxAge), 0, 1)
	recencyComponent := recencyFraction * 31

	score := snrComponent*db.cfg.WeightSnr + successComponent*db.cfg.WeightSuccess + recencyComponent*db.cfg.WeightRecency
	return clamp(score, 0, 31)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Get returns a copy of the entry for (frequencyHz, station), recomputing
// its score against nowMs for up-to-date recency.
func (db *Database) Get(frequencyHz uint32, station string, nowMs int64) (Entry, bool) {
	e, ok := db.entries[key{freq: frequencyHz, station: station}]
	if !ok {
		return Entry{}, false
	}
	cp := *e
	cp.Score = db.computeScore(e, nowMs)
	return cp, true
}

// Prune removes entries whose last contact is older than max_age_ms
// (spec.md §4.9).
func (db *Database) Prune(nowMs int64) int {
	removed := 0
	for k, e := range db.entries {
		if nowMs-e.LastContactMs > db.cfg.MaxAgeMs {
			delete(db.entries, k)
			removed++
		}
	}
	return removed
}

// GetBestChannelForStation returns the entry for station with the highest
// score at or above min_acceptable_score, or false if none qualifies
// (spec.md §4.9).
func (db *Database) GetBestChannelForStation(station string, nowMs int64) (Entry, bool) {
	var best Entry
	found := false
	for _, e := range db.entries {
		if e.Station != station {
			continue
		}
		score := db.computeScore(e, nowMs)
		if score < db.cfg.MinAcceptableScore {
			continue
		}
		if !found || score > best.Score {
			cp := *e
			cp.Score = score
			best = cp
			found = true
		}
	}
	return best, found
}

// ChannelRank is one frequency's mean score across all known stations, as
// returned by RankAllChannels.
type ChannelRank struct {
	FrequencyHz uint32
	MeanScore   float64
}

// RankAllChannels computes, for each known frequency, the mean score
// across all stations heard on it, and returns frequencies sorted
// score-descending (spec.md §4.9).
func (db *Database) RankAllChannels(nowMs int64) []ChannelRank {
	sums := make(map[uint32]float64)
	counts := make(map[uint32]int)
	for _, e := range db.entries {
		sums[e.FrequencyHz] += db.computeScore(e, nowMs)
		counts[e.FrequencyHz]++
	}

	ranks := make([]ChannelRank, 0, len(sums))
	for freq, sum := range sums {
		ranks = append(ranks, ChannelRank{FrequencyHz: freq, MeanScore: sum / float64(counts[freq])})
	}

	sortRanksDescending(ranks)
	return ranks
}

func sortRanksDescending(ranks []ChannelRank) {
	for i := 1; i < len(ranks); i++ {
		for j := i; j > 0 && ranks[j].MeanScore > ranks[j-1].MeanScore; j-- {
			ranks[j], ranks[j-1] = ranks[j-1], ranks[j]
		}
	}
}

// IsSoundingDue reports whether the most recent sounding heard on freq
// (the "" station entry) is older than sounding_interval_ms, or there is
// no prior sounding at all (spec.md §4.9).
func (db *Database) IsSoundingDue(frequencyHz uint32, nowMs int64) bool {
	e, ok := db.entries[key{freq: frequencyHz, station: ""}]
	if !ok || e.LastSoundingMs == 0 {
		return true
	}
	return nowMs-e.LastSoundingMs >= db.cfg.SoundingIntervalMs
}

// Len returns the number of entries currently in the database.
func (db *Database) Len() int { return len(db.entries) }

// All returns a copy of every entry, for export/iteration.
func (db *Database) All() []Entry {
	out := make([]Entry, 0, len(db.entries))
	for _, e := range db.entries {
		out = append(out, *e)
	}
	return out
}
