package lqa

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// fileMagic identifies an LQA database file (spec.md §5.persistence).
const fileMagic = "PCALE_LQA"

// fileVersion is the current on-disk format version.
const fileVersion uint32 = 1

// PersistenceError is returned by Save and Load when the on-disk LQA
// database cannot be written or read back, wrapping the underlying cause so
// callers can errors.As it (spec.md §7).
type PersistenceError struct {
	Op   string // "save" or "load"
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("lqa: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Save writes the database to path as a versioned binary file, using
// write-to-temp-then-rename so a reader never observes a partial file
// (spec.md §5 "Shared resources": the LQA database is the only long-lived
// mutable store and persistence must be atomic).
func (db *Database) Save(path string) error {
	if err := db.save(path); err != nil {
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}
	return nil
}

func (db *Database) save(path string) error {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	if _, err := w.WriteString(fileMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, fileVersion); err != nil {
		return err
	}
	if err := writeConfig(w, db.cfg); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(db.entries))); err != nil {
		return err
	}
	for _, e := range db.entries {
		if err := writeEntry(w, e); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".lqa-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// Load reads the database persisted at path and returns it as a new Database.
func Load(path string) (*Database, error) {
	db, err := load(path)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Path: path, Err: err}
	}
	return db, nil
}

func load(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	magic := make([]byte, len(fileMagic))
	if _, err := f.Read(magic); err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	r := bufio.NewReader(f)
	if string(magic) != fileMagic {
		return nil, fmt.Errorf("bad magic %q", magic)
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	if version != fileVersion {
		return nil, fmt.Errorf("unsupported version %d", version)
	}

	cfg, err := readConfig(r)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("reading entry count: %w", err)
	}

	db := NewDatabase(cfg)
	for i := uint32(0); i < count; i++ {
		e, err := readEntry(r)
		if err != nil {
			return nil, fmt.Errorf("reading entry %d: %w", i, err)
		}
		db.entries[key{freq: e.FrequencyHz, station: e.Station}] = e
	}
	return db, nil
}

func writeConfig(w *bufio.Writer, cfg Config) error {
	fields := []float64{cfg.Decay, cfg.WeightSnr, cfg.WeightSuccess, cfg.WeightRecency, cfg.MinAcceptableScore}
	for _, v := range fields {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	ints := []int64{cfg.MaxAgeMs, cfg.SoundingIntervalMs}
	for _, v := range ints {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func readConfig(r *bufio.Reader) (Config, error) {
	var cfg Config
	floats := []*float64{&cfg.Decay, &cfg.WeightSnr, &cfg.WeightSuccess, &cfg.WeightRecency, &cfg.MinAcceptableScore}
	for _, p := range floats {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return cfg, err
		}
	}
	ints := []*int64{&cfg.MaxAgeMs, &cfg.SoundingIntervalMs}
	for _, p := range ints {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// writeEntry serializes one Entry: frequency, station name (length-prefixed),
// then SNR, BER, SINAD, multipath score, noise floor and score as float64,
// last-sounding and last-contact times as int64, and FEC errors, total words
// and sample count as int32. This order is grouped by type and is not the
// column order of csvHeader; readEntry reads the same order.
func writeEntry(w *bufio.Writer, e *Entry) error {
	if err := binary.Write(w, binary.LittleEndian, e.FrequencyHz); err != nil {
		return err
	}
	stationBytes := []byte(e.Station)
	if err := binary.Write(w, binary.LittleEndian, uint32(len(stationBytes))); err != nil {
		return err
	}
	if _, err := w.Write(stationBytes); err != nil {
		return err
	}

	floats := []float64{e.SnrDb, e.Ber, e.SinadDb, e.MultipathScore, e.NoiseFloorDbm, e.Score}
	for _, v := range floats {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	ints64 := []int64{e.LastSoundingMs, e.LastContactMs}
	for _, v := range ints64 {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	ints32 := []int32{int32(e.FecErrors), int32(e.TotalWords), int32(e.SampleCount)}
	for _, v := range ints32 {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func readEntry(r *bufio.Reader) (*Entry, error) {
	e := &Entry{}
	if err := binary.Read(r, binary.LittleEndian, &e.FrequencyHz); err != nil {
		return nil, err
	}
	var stationLen uint32
	if err := binary.Read(r, binary.LittleEndian, &stationLen); err != nil {
		return nil, err
	}
	stationBytes := make([]byte, stationLen)
	if _, err := readFull(r, stationBytes); err != nil {
		return nil, err
	}
	e.Station = string(stationBytes)

	floats := []*float64{&e.SnrDb, &e.Ber, &e.SinadDb, &e.MultipathScore, &e.NoiseFloorDbm, &e.Score}
	for _, p := range floats {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, err
		}
	}
	ints64 := []*int64{&e.LastSoundingMs, &e.LastContactMs}
	for _, p := range ints64 {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, err
		}
	}
	var fecErrors, totalWords, sampleCount int32
	for _, p := range []*int32{&fecErrors, &totalWords, &sampleCount} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, err
		}
	}
	e.FecErrors = int(fecErrors)
	e.TotalWords = int(totalWords)
	e.SampleCount = int(sampleCount)
	return e, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
