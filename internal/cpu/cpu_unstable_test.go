package cpu

import "testing"

// These opcodes have chip-revision-dependent real behavior; this emulation
// executes them as correctly-sized, correctly-timed NOPs rather than
// guessing at unstable silicon quirks.

func TestUnstableOpcodes_PreserveRegistersAndAdvancePCByDeclaredSize(t *testing.T) {
	cases := []struct {
		name    string
		opcode  uint8
		operand []uint8
	}{
		{"KIL", 0x02, nil},
		{"ANC imm", 0x0B, []uint8{0x55}},
		{"ALR imm", 0x4B, []uint8{0x55}},
		{"ARR imm", 0x6B, []uint8{0x55}},
		{"XAA imm", 0x8B, []uint8{0x55}},
		{"LAX imm (unstable)", 0xAB, []uint8{0x55}},
		{"AXS imm", 0xCB, []uint8{0x55}},
		{"AHX izy", 0x93, []uint8{0x10}},
		{"AHX aby", 0x9F, []uint8{0x00, 0x20}},
		{"TAS aby", 0x9B, []uint8{0x00, 0x20}},
		{"SHY abx", 0x9C, []uint8{0x00, 0x20}},
		{"SHX aby", 0x9E, []uint8{0x00, 0x20}},
		{"LAS aby", 0xBB, []uint8{0x00, 0x20}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewCPUTestHelper()
			h.SetupResetVector(0x8000)

			h.CPU.A, h.CPU.X, h.CPU.Y = 0x11, 0x22, 0x33
			program := append([]uint8{tc.opcode}, tc.operand...)
			h.LoadProgram(0x8000, program...)

			instr := h.CPU.instructions[tc.opcode]
			if instr == nil {
				t.Fatalf("opcode 0x%02X has no instruction table entry", tc.opcode)
			}

			h.CPU.Step()

			if h.CPU.A != 0x11 || h.CPU.X != 0x22 || h.CPU.Y != 0x33 {
				t.Errorf("%s: expected registers untouched, got A=%02X X=%02X Y=%02X",
					tc.name, h.CPU.A, h.CPU.X, h.CPU.Y)
			}
			wantPC := 0x8000 + uint16(instr.Bytes)
			if h.CPU.PC != wantPC {
				t.Errorf("%s: expected PC=%04X after %d-byte opcode, got %04X", tc.name, wantPC, instr.Bytes, h.CPU.PC)
			}
		})
	}
}

func TestUnstableOpcodes_AreRegisteredForEveryDocumentedEncoding(t *testing.T) {
	h := NewCPUTestHelper()
	for _, op := range []uint8{
		0x02, 0x12, 0x22, 0x32, 0x42, 0x52, 0x62, 0x72, 0x92, 0xB2, 0xD2, 0xF2,
		0x0B, 0x2B, 0x4B, 0x6B, 0x8B, 0xAB, 0xCB,
		0x93, 0x9F, 0x9B, 0x9C, 0x9E, 0xBB,
	} {
		if h.CPU.instructions[op] == nil {
			t.Errorf("opcode 0x%02X should be registered, not fall back to the nil-instruction path", op)
		}
	}
}
