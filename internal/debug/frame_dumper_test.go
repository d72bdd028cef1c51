package debug

import (
	"os"
	"path/filepath"
	"testing"
)

func solidFrame(r, g, b byte) []byte {
	buf := make([]byte, 256*240*4)
	for i := 0; i < 256*240; i++ {
		buf[i*4] = r
		buf[i*4+1] = g
		buf[i*4+2] = b
		buf[i*4+3] = 0xFF
	}
	return buf
}

func TestFrameDumper_DisabledByDefaultWritesNothing(t *testing.T) {
	dir := t.TempDir()
	fd := NewFrameDumper(dir)

	if err := fd.DumpFrame(solidFrame(1, 2, 3), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected no files written while disabled, got %d", len(entries))
	}
}

func TestFrameDumper_EnabledWritesPPMFile(t *testing.T) {
	dir := t.TempDir()
	fd := NewFrameDumper(dir)
	if err := fd.Enable(); err != nil {
		t.Fatalf("enable: %v", err)
	}

	if err := fd.DumpFrame(solidFrame(0x11, 0x22, 0x33), 5); err != nil {
		t.Fatalf("dump: %v", err)
	}

	path := filepath.Join(dir, "frame_000005.ppm")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected dump file at %s: %v", path, err)
	}
	if data[0] != 'P' || data[1] != '6' {
		t.Errorf("expected a binary PPM (P6) header, got %q", data[:2])
	}
}

func TestFrameDumper_RespectsMaxDumps(t *testing.T) {
	dir := t.TempDir()
	fd := NewFrameDumper(dir)
	fd.Enable()
	fd.SetMaxDumps(2)

	for i := uint64(0); i < 5; i++ {
		fd.DumpFrame(solidFrame(0, 0, 0), i)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("expected exactly 2 dumps, got %d", len(entries))
	}
}

func TestFrameDumper_RegionFilterBlanksOutsidePixels(t *testing.T) {
	dir := t.TempDir()
	fd := NewFrameDumper(dir)
	fd.Enable()
	fd.SetRegionFilter(CreateRegionFilter(0, 0, 0, 0)) // only pixel (0,0)

	if err := fd.DumpFrame(solidFrame(0xAA, 0xBB, 0xCC), 0); err != nil {
		t.Fatalf("dump: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "frame_000000.ppm"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	// Header is "P6\n256 240\n255\n" then raw RGB triples.
	headerLen := len("P6\n256 240\n255\n")
	if data[headerLen] != 0xAA || data[headerLen+1] != 0xBB || data[headerLen+2] != 0xCC {
		t.Error("expected pixel (0,0) to keep its color")
	}
	if data[headerLen+3] != 0 || data[headerLen+4] != 0 || data[headerLen+5] != 0 {
		t.Error("expected pixel (1,0) blanked by the region filter")
	}
}
