package mcdf

import (
	"archive/zip"
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoPayload is wrapped by every Load failure.
var ErrNoPayload = errors.New("no payload")

// zipEntries are looked up in order inside a generic archive.
var zipEntries = []string{"v1/payload.json", "payload.json"}

// probe is one way of interpreting a file. A probe either returns a complete
// payload or an error; it never returns partial data.
type probe struct {
	name string
	load func(path string) (Payload, error)
}

var (
	nativeProbe = probe{"mcdf", loadNative}
	legacyProbe = probe{"mcdf-lz4", loadLegacy}
	zipProbe    = probe{"zip", loadZip}
	jsonProbe   = probe{"json", loadJSON}
)

// probesFor selects the probes for a file by extension. Unknown extensions
// fall back to trying everything, binary formats first.
func probesFor(path string) []probe {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return []probe{jsonProbe}
	case ".mcdf", ".zip":
		return []probe{nativeProbe, legacyProbe, zipProbe}
	default:
		return []probe{nativeProbe, legacyProbe, zipProbe, jsonProbe}
	}
}

// Load reads a payload from path using the first probe that succeeds. When
// none does, it returns nil and an error wrapping ErrNoPayload together with
// every probe's failure.
func Load(path string) (*Payload, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoPayload, err)
	}

	var errs []error
	for _, p := range probesFor(path) {
		payload, err := p.load(path)
		if err == nil {
			return &payload, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
	}
	return nil, fmt.Errorf("%w in %s: %w", ErrNoPayload, filepath.Base(path), errors.Join(errs...))
}

func loadNative(path string) (Payload, error) {
	rec, err := ReadFile(path)
	if err != nil {
		return Payload{}, err
	}
	return rec.Payload(), nil
}

func loadLegacy(path string) (Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return Payload{}, err
	}
	defer f.Close()
	return ReadLegacy(bufio.NewReader(f))
}

func loadZip(path string) (Payload, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return Payload{}, err
	}
	defer zr.Close()

	for _, name := range zipEntries {
		f, err := zr.Open(name)
		if err != nil {
			continue
		}
		defer f.Close()
		return decodePayload(f)
	}
	return Payload{}, fmt.Errorf("archive has none of %v", zipEntries)
}

func loadJSON(path string) (Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return Payload{}, err
	}
	defer f.Close()
	return decodePayload(f)
}

func decodePayload(r io.Reader) (Payload, error) {
	var p Payload
	dec := json.NewDecoder(io.LimitReader(r, MaxPayloadSize))
	if err := dec.Decode(&p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrCorruptMetadata, err)
	}
	return p, nil
}
