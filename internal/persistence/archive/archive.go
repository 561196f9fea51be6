// Package archive writes whole-colony snapshots to single compressed files.
// A file is zstd-compressed: one JSON header line followed by the gob-encoded
// snapshot, so the header can be inspected without decoding the colony.
package archive

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/mini-colony/internal/engine"
)

// Version is bumped when the gob layout of engine.WorldSnapshot changes.
const Version = 1

const ext = ".colony.zst"

// Header describes an archive without decoding its body.
type Header struct {
	Version   int       `json:"version"`
	Tick      uint64    `json:"tick"`
	Seed      int64     `json:"seed"`
	Ants      int       `json:"ants"`
	Elements  int       `json:"elements"`
	CreatedAt time.Time `json:"created_at"`
}

// Write stores snap at path, creating parent directories.
func Write(path string, snap engine.WorldSnapshot) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(Header{
		Version:   Version,
		Tick:      snap.Story.ElapsedTicks,
		Seed:      snap.Seed,
		Ants:      len(snap.Ants),
		Elements:  len(snap.Elements),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		enc.Close()
		return err
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Read loads the snapshot stored at path.
func Read(path string) (Header, engine.WorldSnapshot, error) {
	var (
		h    Header
		snap engine.WorldSnapshot
	)
	f, err := os.Open(path)
	if err != nil {
		return h, snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, snap, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, snap, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return h, snap, fmt.Errorf("archive version %d, want %d", h.Version, Version)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return h, snap, fmt.Errorf("gob decode: %w", err)
	}
	return h, snap, nil
}

// Name returns the file name used for an archive taken at tick.
func Name(tick uint64) string {
	return fmt.Sprintf("tick-%012d%s", tick, ext)
}

// List returns the archive files in dir, oldest tick first.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ext) {
			names = append(names, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Latest returns the newest archive in dir. ok is false when there is none.
func Latest(dir string) (path string, ok bool, err error) {
	names, err := List(dir)
	if err != nil || len(names) == 0 {
		return "", false, err
	}
	return names[len(names)-1], true, nil
}
