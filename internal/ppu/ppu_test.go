package ppu

import (
	"testing"

	"github.com/claude/gones/internal/memory"
)

// MockCartridge is a minimal CHR-only cartridge stand-in for PPU tests.
type MockCartridge struct {
	chrData [0x2000]uint8
}

func NewMockCartridge() *MockCartridge { return &MockCartridge{} }

func (m *MockCartridge) ReadPRG(address uint16) uint8        { return 0 }
func (m *MockCartridge) WritePRG(address uint16, value uint8) {}
func (m *MockCartridge) ReadCHR(address uint16) uint8 {
	return m.chrData[address&0x1FFF]
}
func (m *MockCartridge) WriteCHR(address uint16, value uint8) {
	m.chrData[address&0x1FFF] = value
}
func (m *MockCartridge) SetCHRByte(address uint16, value uint8) {
	m.chrData[address&0x1FFF] = value
}

func newTestPPU() (*PPU, *MockCartridge) {
	cart := NewMockCartridge()
	mem := memory.NewPPUMemory(cart, memory.MirrorHorizontal)
	p := New()
	p.SetMemory(mem)
	return p, cart
}

func TestPPUCreation(t *testing.T) {
	p := New()
	if p.scanline != 261 {
		t.Errorf("expected initial scanline 261 (pre-render), got %d", p.scanline)
	}
	if p.dot != 0 {
		t.Errorf("expected initial dot 0, got %d", p.dot)
	}
	if p.frameCount != 0 {
		t.Errorf("expected initial frame count 0, got %d", p.frameCount)
	}
	if len(p.frameBuffer) != 256*240*4 {
		t.Errorf("expected RGBA frame buffer of 256*240*4 bytes, got %d", len(p.frameBuffer))
	}
}

func TestPPUReset(t *testing.T) {
	p := New()
	p.ppuCtrl = 0xFF
	p.ppuMask = 0xFF
	p.oamAddr = 0x80
	p.scanline = 100
	p.dot = 200
	p.frameCount = 5
	p.v = 0x2000
	p.t = 0x1000
	p.x = 7
	p.w = true

	p.Reset()

	if p.ppuCtrl != 0 {
		t.Errorf("expected PPUCTRL 0 after reset, got %02X", p.ppuCtrl)
	}
	if p.ppuMask != 0 {
		t.Errorf("expected PPUMASK 0 after reset, got %02X", p.ppuMask)
	}
	if p.ppuStatus != 0xA0 {
		t.Errorf("expected PPUSTATUS 0xA0 after reset, got %02X", p.ppuStatus)
	}
	if p.v != 0 || p.t != 0 || p.x != 0 || p.w {
		t.Errorf("expected scroll registers cleared after reset")
	}
	if p.scanline != 261 {
		t.Errorf("expected scanline 261 after reset, got %d", p.scanline)
	}
	if p.dot != 0 {
		t.Errorf("expected dot 0 after reset, got %d", p.dot)
	}
}

func TestWriteRegister_PPUCTRL_SetsNametableBitsInT(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2000, 0x03)
	if p.t&0x0C00 != 0x0C00 {
		t.Errorf("expected nametable bits set in t, got t=%04X", p.t)
	}
}

func TestReadRegister_PPUSTATUS_ClearsVBlankAndWriteLatch(t *testing.T) {
	p, _ := newTestPPU()
	p.ppuStatus = 0x80
	p.w = true

	status := p.ReadRegister(0x2002)
	if status&0x80 == 0 {
		t.Fatal("expected VBlank bit set in returned status")
	}
	if p.ppuStatus&0x80 != 0 {
		t.Error("expected VBlank flag cleared after PPUSTATUS read")
	}
	if p.w {
		t.Error("expected write latch cleared after PPUSTATUS read")
	}
}

func TestPPUScroll_TwoWritesSetXAndYScroll(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2005, 0x7D) // coarse X=15, fine X=5
	if p.x != 5 {
		t.Errorf("expected fine X=5, got %d", p.x)
	}
	if !p.w {
		t.Fatal("expected write latch set after first PPUSCROLL write")
	}
	p.WriteRegister(0x2005, 0x5E) // coarse Y=11, fine Y=6
	if p.w {
		t.Error("expected write latch cleared after second PPUSCROLL write")
	}
}

func TestPPUAddr_SecondWriteLoadsV(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2006, 0x21)
	p.WriteRegister(0x2006, 0x08)
	if p.v != 0x2108 {
		t.Errorf("expected v=0x2108, got %04X", p.v)
	}
}

func TestPPUData_BufferedReadExceptPalette(t *testing.T) {
	p, cart := newTestPPU()
	cart.SetCHRByte(0x0010, 0x42)

	p.v = 0x0010
	first := p.ReadRegister(0x2007)
	if first != 0 {
		t.Errorf("expected stale buffer (0) on first read, got %02X", first)
	}
	p.v = 0x0010
	second := p.ReadRegister(0x2007)
	if second != 0x42 {
		t.Errorf("expected buffered byte 0x42 on second read, got %02X", second)
	}

	p.v = 0x3F00
	p.memory.Write(0x3F00, 0x15)
	direct := p.ReadRegister(0x2007)
	if direct != 0x15 {
		t.Errorf("expected unbuffered palette read, got %02X", direct)
	}
}

func TestPPUData_AddressIncrementFollowsPPUCTRLBit2(t *testing.T) {
	p, _ := newTestPPU()
	p.v = 0
	p.WriteRegister(0x2007, 0xAA)
	if p.v != 1 {
		t.Errorf("expected v+=1 with increment mode 0, got %d", p.v)
	}
	p.ppuCtrl = 0x04
	p.WriteRegister(0x2007, 0xAA)
	if p.v != 33 {
		t.Errorf("expected v+=32 with increment mode 1, got %d", p.v)
	}
}

func TestScrollHelpers_IncrementXWrapsNametable(t *testing.T) {
	p := New()
	p.v = 0x001F
	p.incrementX()
	if p.v&0x001F != 0 {
		t.Errorf("expected coarse X to wrap to 0, got %04X", p.v&0x001F)
	}
	if p.v&0x0400 == 0 {
		t.Error("expected horizontal nametable bit to toggle")
	}
}

func TestScrollHelpers_IncrementYWrapsAt29(t *testing.T) {
	p := New()
	p.v = 0x7000 | (29 << 5)
	p.incrementY()
	if (p.v>>5)&0x1F != 0 {
		t.Errorf("expected coarse Y wrap to 0, got %d", (p.v>>5)&0x1F)
	}
	if p.v&0x0800 == 0 {
		t.Error("expected vertical nametable bit to toggle at coarse Y 29")
	}
}

func TestScrollHelpers_CopyXAndCopyY(t *testing.T) {
	p := New()
	p.t = 0x7FFF
	p.v = 0
	p.copyX()
	if p.v&0x041F != 0x041F {
		t.Errorf("expected horizontal bits copied from t, got %04X", p.v)
	}
	p.v = 0
	p.copyY()
	if p.v&0x7BE0 != 0x7BE0 {
		t.Errorf("expected vertical bits copied from t, got %04X", p.v)
	}
}

// stepDots advances the PPU by n dots.
func stepDots(p *PPU, n int) {
	for i := 0; i < n; i++ {
		p.Step()
	}
}

func TestStep_VBlankSetsStatusAndFiresNMI(t *testing.T) {
	p, _ := newTestPPU()
	fired := false
	p.SetNMICallback(func() { fired = true })
	p.ppuCtrl = 0x80 // enable NMI

	// From the pre-render line (261, dot 0), advance through scanline 241, dot 1.
	stepDots(p, 341+241*341+2)

	if p.ppuStatus&0x80 == 0 {
		t.Error("expected VBlank flag set")
	}
	if !fired {
		t.Error("expected NMI callback invoked at VBlank start")
	}
}

func TestStep_PreRenderClearsStatusFlags(t *testing.T) {
	p, _ := newTestPPU()
	p.ppuStatus = 0xE0
	p.sprite0Hit = true
	p.spriteOverflow = true

	// Drive scanline/dot directly to the pre-render clear point.
	p.scanline = 261
	p.dot = 1
	p.Step()

	if p.ppuStatus&0xE0 != 0 {
		t.Errorf("expected VBlank/sprite0/overflow cleared, got %02X", p.ppuStatus)
	}
	if p.sprite0Hit || p.spriteOverflow {
		t.Error("expected internal sprite flags cleared at pre-render")
	}
}

func TestFrame_OddFrameSkipsLastPrerenderDot(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2001, 0x18) // enable background+sprites
	p.oddFrame = true
	p.scanline = 261
	p.dot = 339

	p.Step() // consumes dot 339, and because oddFrame+rendering, jumps past 340
	if p.scanline != 0 || p.dot != 0 {
		t.Errorf("expected wrap to scanline 0 dot 0, got scanline=%d dot=%d", p.scanline, p.dot)
	}
}

func TestEvaluateSprites_SelectsUpToEightAndSetsOverflow(t *testing.T) {
	p, _ := newTestPPU()
	for i := 0; i < 10; i++ {
		p.oam[i*4] = 50 // all visible on the same scanline
		p.oam[i*4+1] = uint8(i)
	}
	p.scanline = 49 // next scanline (50) should match all 10 sprites' Y
	p.evaluateSprites()

	if p.spriteCount != 8 {
		t.Errorf("expected 8 sprites selected, got %d", p.spriteCount)
	}
	if !p.spriteOverflow {
		t.Error("expected sprite overflow flag set with a 9th match")
	}
}

func TestEvaluateSprites_MarksSpriteZero(t *testing.T) {
	p, _ := newTestPPU()
	p.oam[0] = 50 // sprite 0's Y
	p.scanline = 49
	p.evaluateSprites()

	if p.spriteCount == 0 || !p.spriteIsZero[0] {
		t.Error("expected sprite 0 marked in the selection")
	}
}

func TestSprite0Hit_SetsStatusBitWhenBothPixelsNonzero(t *testing.T) {
	p, cart := newTestPPU()
	p.WriteRegister(0x2001, 0x18) // show bg + sprites, left-8 masking default off
	p.WriteRegister(0x2001, 0x1E) // also show in left 8 pixels

	// Solid background shift registers.
	p.bgShiftPatternLo = 0xFFFF
	p.bgShiftPatternHi = 0x0000

	// One sprite-zero pixel active at x=0.
	p.spriteCount = 1
	p.spriteIsZero[0] = true
	p.spriteX[0] = 0
	p.spritePatternLo[0] = 0x80
	p.spritePatternHi[0] = 0x00
	p.spriteAttr[0] = 0

	p.scanline = 10
	cart.SetCHRByte(0, 0) // palette reads default to 0, irrelevant here
	p.renderPixel(0)

	if p.ppuStatus&0x40 == 0 {
		t.Error("expected sprite-0 hit status bit set")
	}
}

func TestNESColorToRGB_OutOfRangeReturnsBlack(t *testing.T) {
	if got := NESColorToRGB(64); got != 0 {
		t.Errorf("expected black for out-of-range index, got %06X", got)
	}
}

func TestClearFrameBuffer_FillsOpaqueColor(t *testing.T) {
	p := New()
	p.ClearFrameBuffer(0x112233)
	if p.frameBuffer[0] != 0x11 || p.frameBuffer[1] != 0x22 || p.frameBuffer[2] != 0x33 || p.frameBuffer[3] != 0xFF {
		t.Errorf("expected RGBA 11,22,33,FF at pixel 0, got %v", p.frameBuffer[0:4])
	}
}
