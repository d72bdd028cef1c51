// Package debug provides optional, opt-in diagnostics for the emulator core
// — currently a gated frame-buffer-to-PPM dumper for inspecting a frame's
// output outside of a host window.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
)

// FrameDumper writes the PPU's RGBA framebuffer to disk as PPM images.
// Disabled by default; normal operation never touches the filesystem.
type FrameDumper struct {
	outputDir    string
	dumpEnabled  bool
	dumpedCount  int
	maxDumps     int
	dumpInterval int // dump every N frames
	regionFilter func(x, y int) bool
}

// NewFrameDumper creates a dumper writing into outputDir (created on Enable).
func NewFrameDumper(outputDir string) *FrameDumper {
	return &FrameDumper{
		outputDir:    outputDir,
		maxDumps:     10,
		dumpInterval: 1,
	}
}

// Enable activates dumping and creates the output directory.
func (fd *FrameDumper) Enable() error {
	fd.dumpEnabled = true
	return os.MkdirAll(fd.outputDir, 0755)
}

// Disable deactivates dumping.
func (fd *FrameDumper) Disable() {
	fd.dumpEnabled = false
}

// SetMaxDumps caps how many frames will be written before dumping stops.
func (fd *FrameDumper) SetMaxDumps(max int) {
	fd.maxDumps = max
}

// SetDumpInterval dumps only every N-th frame passed to DumpFrame.
func (fd *FrameDumper) SetDumpInterval(interval int) {
	fd.dumpInterval = interval
}

// SetRegionFilter restricts dumped output to pixels inside the region;
// pixels outside are written black. A nil filter (the default) dumps the
// full 256x240 frame.
func (fd *FrameDumper) SetRegionFilter(filter func(x, y int) bool) {
	fd.regionFilter = filter
}

// CreateRegionFilter returns a filter matching the rectangle [x1,x2]x[y1,y2].
func CreateRegionFilter(x1, y1, x2, y2 int) func(x, y int) bool {
	return func(x, y int) bool {
		return x >= x1 && x <= x2 && y >= y1 && y <= y2
	}
}

// DumpFrame writes frameBuffer (256x240 RGBA bytes, as returned by
// ppu.GetFrameBuffer) to a binary PPM file, subject to the interval/max-dump
// limits and region filter. A no-op when dumping is disabled.
func (fd *FrameDumper) DumpFrame(frameBuffer []byte, frameNum uint64) error {
	if !fd.dumpEnabled {
		return nil
	}
	if fd.dumpInterval > 0 && frameNum%uint64(fd.dumpInterval) != 0 {
		return nil
	}
	if fd.dumpedCount >= fd.maxDumps {
		return nil
	}
	if len(frameBuffer) != 256*240*4 {
		return fmt.Errorf("expected a 256x240x4 RGBA framebuffer, got %d bytes", len(frameBuffer))
	}

	filePath := filepath.Join(fd.outputDir, fmt.Sprintf("frame_%06d.ppm", frameNum))
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("creating frame dump file: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "P6\n256 240\n255\n")
	rgb := make([]byte, 256*240*3)
	for y := 0; y < 240; y++ {
		for x := 0; x < 256; x++ {
			srcIdx := (y*256 + x) * 4
			dstIdx := (y*256 + x) * 3
			if fd.regionFilter != nil && !fd.regionFilter(x, y) {
				continue // leaves rgb[dstIdx:dstIdx+3] at zero (black)
			}
			rgb[dstIdx] = frameBuffer[srcIdx]
			rgb[dstIdx+1] = frameBuffer[srcIdx+1]
			rgb[dstIdx+2] = frameBuffer[srcIdx+2]
		}
	}
	if _, err := file.Write(rgb); err != nil {
		return fmt.Errorf("writing frame dump pixels: %w", err)
	}

	fd.dumpedCount++
	return nil
}
