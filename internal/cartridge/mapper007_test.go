package cartridge

import "testing"

func TestMapper007_PRGBank_Switches32KBAtOnce(t *testing.T) {
	cart := createTestCartridge(0x10000, 0x2000, true) // two 32KB PRG banks
	m := NewMapper007(cart)

	m.WritePRG(0x8000, 0x01)
	want := cart.prgROM[1*0x8000]
	if got := m.ReadPRG(0x8000); got != want {
		t.Errorf("expected bank 1 selected, got 0x%02X want 0x%02X", got, want)
	}

	wantEnd := cart.prgROM[1*0x8000+0x7FFF]
	if got := m.ReadPRG(0xFFFF); got != wantEnd {
		t.Errorf("expected bank 1's last byte at $FFFF, got 0x%02X want 0x%02X", got, wantEnd)
	}
}

func TestMapper007_Mirroring_FollowsBit4(t *testing.T) {
	cart := createTestCartridge(0x8000, 0x2000, true)
	m := NewMapper007(cart)

	m.WritePRG(0x8000, 0x00)
	if got := m.Mirroring(); got != MirrorSingleScreen0 {
		t.Errorf("expected single-screen 0, got %v", got)
	}

	m.WritePRG(0x8000, 0x10)
	if got := m.Mirroring(); got != MirrorSingleScreen1 {
		t.Errorf("expected single-screen 1, got %v", got)
	}
}
