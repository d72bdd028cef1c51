package ppu

// SetFrameBufferForTesting overwrites the frame buffer with test pixel data.
func (p *PPU) SetFrameBufferForTesting(frameBuffer []byte) {
	p.frameBuffer = frameBuffer
}
