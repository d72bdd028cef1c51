package emulator

import (
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/claude/gones/internal/cartridge"
)

// infiniteLoopROM builds a minimal NROM image that jumps to itself forever,
// which is enough to exercise CPU/PPU/APU stepping without needing a real
// game ROM.
func infiniteLoopROM(t *testing.T, mapperID uint8) *cartridge.Cartridge {
	t.Helper()
	cart, err := cartridge.NewTestROMBuilder().
		WithMapper(mapperID).
		WithResetVector(0x8000).
		WithInstructions([]uint8{0x4C, 0x00, 0x80}). // JMP $8000
		BuildCartridge()
	if err != nil {
		t.Fatalf("building test ROM: %v", err)
	}
	return cart
}

func TestRunFrame_ProducesFullSizedFrameBuffer(t *testing.T) {
	e := New()
	e.LoadCartridge(infiniteLoopROM(t, 0))

	e.RunFrame()

	fb := e.FrameBuffer()
	if len(fb) != 256*240*4 {
		t.Fatalf("expected 256x240x4 RGBA framebuffer, got %d bytes", len(fb))
	}
}

func TestRunFrame_AdvancesFrameCounter(t *testing.T) {
	e := New()
	e.LoadCartridge(infiniteLoopROM(t, 0))

	before := e.PPU.GetFrameCount()
	e.RunFrame()
	e.RunFrame()
	after := e.PPU.GetFrameCount()

	if after <= before {
		t.Errorf("expected frame count to advance, before=%d after=%d", before, after)
	}
}

func TestSetController_RoundTripsThroughButtonMask(t *testing.T) {
	e := New()
	e.LoadCartridge(infiniteLoopROM(t, 0))

	e.SetController(0, 1<<0 | 1<<4) // A + Up
	if !e.Input.Controller1.IsPressed(1 << 0) {
		t.Error("expected A pressed on controller 1")
	}
	if !e.Input.Controller1.IsPressed(1 << 4) {
		t.Error("expected Up pressed on controller 1")
	}
	if e.Input.Controller1.IsPressed(1 << 1) {
		t.Error("expected B not pressed on controller 1")
	}
}

func TestReset_IsIdempotentAfterSuccessfulLoad(t *testing.T) {
	e := New()
	e.LoadCartridge(infiniteLoopROM(t, 0))
	e.RunFrame()

	e.Reset()
	e.Reset()

	if e.CPU.PC != 0x8000 {
		t.Errorf("expected PC at reset vector 0x8000 after reset, got %04X", e.CPU.PC)
	}
}

// TestBootAcrossMappers runs several headless ROM-boot scenarios, one per
// supported mapper, concurrently via errgroup: each scenario gets its own
// Emulator so there's no shared mutable state across goroutines.
func TestBootAcrossMappers(t *testing.T) {
	mapperIDs := []uint8{0, 1, 2, 3, 7}

	var g errgroup.Group
	for _, id := range mapperIDs {
		id := id
		g.Go(func() error {
			e := New()
			cart, err := cartridge.NewTestROMBuilder().
				WithMapper(id).
				WithResetVector(0x8000).
				WithInstructions([]uint8{0x4C, 0x00, 0x80}).
				BuildCartridge()
			if err != nil {
				return err
			}
			e.LoadCartridge(cart)

			for i := 0; i < 3; i++ {
				e.RunFrame()
			}

			if len(e.FrameBuffer()) != 256*240*4 {
				t.Errorf("mapper %d: unexpected framebuffer size %d", id, len(e.FrameBuffer()))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("boot scenario failed: %v", err)
	}
}
