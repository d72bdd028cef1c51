package cartridge

import "testing"

func TestMapper001_PowerOnState_FixesLastBank(t *testing.T) {
	cart := createTestCartridge(0x10000, 0x4000, false) // 64KB PRG, 16KB CHR ROM
	m := NewMapper001(cart)

	// power-on control register fixes PRG mode 3 (switchable low, fixed high)
	last := cart.prgROM[len(cart.prgROM)-1]
	if got := m.ReadPRG(0xFFFF); got != last {
		t.Errorf("expected last PRG bank fixed at $FFFF, got 0x%02X want 0x%02X", got, last)
	}
}

func writeMMC1(m *Mapper001, address uint16, value uint8) {
	for bit := 0; bit < 5; bit++ {
		m.WritePRG(address, (value>>bit)&1)
	}
}

func TestMapper001_SerialWrite_SelectsPRGBank(t *testing.T) {
	cart := createTestCartridge(0x10000, 0x4000, false) // four 16KB PRG banks
	m := NewMapper001(cart)

	// control = prg-mode 3 (0x0C), chr-mode irrelevant
	writeMMC1(m, 0x8000, 0x0C)
	// select PRG bank 2 at $8000-$BFFF
	writeMMC1(m, 0xE000, 0x02)

	want := cart.prgROM[2*0x4000]
	if got := m.ReadPRG(0x8000); got != want {
		t.Errorf("expected bank 2 selected at $8000, got 0x%02X want 0x%02X", got, want)
	}
	// high half should remain fixed to the last bank
	wantLast := cart.prgROM[3*0x4000]
	if got := m.ReadPRG(0xC000); got != wantLast {
		t.Errorf("expected last bank fixed at $C000, got 0x%02X want 0x%02X", got, wantLast)
	}
}

func TestMapper001_ResetBit_ForcesPRGMode3(t *testing.T) {
	cart := createTestCartridge(0x8000, 0x2000, false)
	m := NewMapper001(cart)

	writeMMC1(m, 0x8000, 0x00) // prg-mode 0 (32KB switchable)
	m.WritePRG(0x8000, 0x80)   // reset bit set

	if m.control&0x0C != 0x0C {
		t.Errorf("expected reset write to force prg-mode 3, control=0x%02X", m.control)
	}
}

func TestMapper001_Mirroring_TracksControlBits(t *testing.T) {
	cart := createTestCartridge(0x8000, 0x2000, false)
	m := NewMapper001(cart)

	cases := []struct {
		bits uint8
		want MirrorMode
	}{
		{0, MirrorSingleScreen0},
		{1, MirrorSingleScreen1},
		{2, MirrorVertical},
		{3, MirrorHorizontal},
	}
	for _, c := range cases {
		writeMMC1(m, 0x8000, 0x0C|c.bits)
		if got := m.Mirroring(); got != c.want {
			t.Errorf("control bits %d: expected mirroring %v, got %v", c.bits, c.want, got)
		}
	}
}

func TestMapper001_PRGRAM_WritableUnlessDisabled(t *testing.T) {
	cart := createTestCartridge(0x8000, 0x2000, false)
	m := NewMapper001(cart)

	m.WritePRG(0x6000, 0x42)
	if got := m.ReadPRG(0x6000); got != 0x42 {
		t.Errorf("expected PRG-RAM write/read roundtrip, got 0x%02X", got)
	}

	// set bit4 of PRG/RAM register to disable RAM
	writeMMC1(m, 0xE000, 0x10)
	if got := m.ReadPRG(0x6000); got != 0 {
		t.Errorf("expected disabled PRG-RAM to read 0, got 0x%02X", got)
	}
}
