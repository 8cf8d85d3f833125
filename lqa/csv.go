package lqa

import (
	"encoding/csv"
	"io"
	"strconv"
)

// csvHeader is the exact column order of spec.md §3's LQAEntry field list.
var csvHeader = []string{
	"frequency_hz",
	"remote_station",
	"snr_db",
	"ber",
	"sinad_db",
	"fec_errors",
	"total_words",
	"multipath_score",
	"noise_floor_dbm",
	"last_sounding_ms",
	"last_contact_ms",
	"score",
	"sample_count",
}

// ExportCSV writes every entry to w in spec.md §3's column order.
func (db *Database) ExportCSV(w io.Writer, nowMs int64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range db.entries {
		score := db.computeScore(e, nowMs)
		row := []string{
			strconv.FormatUint(uint64(e.FrequencyHz), 10),
			e.Station,
			strconv.FormatFloat(e.SnrDb, 'f', -1, 64),
			strconv.FormatFloat(e.Ber, 'f', -1, 64),
			strconv.FormatFloat(e.SinadDb, 'f', -1, 64),
			strconv.Itoa(e.FecErrors),
			strconv.Itoa(e.TotalWords),
			strconv.FormatFloat(e.MultipathScore, 'f', -1, 64),
			strconv.FormatFloat(e.NoiseFloorDbm, 'f', -1, 64),
			strconv.FormatInt(e.LastSoundingMs, 10),
			strconv.FormatInt(e.LastContactMs, 10),
			strconv.FormatFloat(score, 'f', -1, 64),
			strconv.Itoa(e.SampleCount),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
