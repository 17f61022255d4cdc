package wtc640

import "tcsicore/memspace"

// Address layout for the reference WTC640-class memory space: a narrow
// STATUS register that OR-accumulates across reads, a block of general
// registers holding the readback/control properties this package wires, an
// SRAM scratch region used to stage a palette bank before it is committed to
// flash, and two flash regions (the dead-pixel replacement table and the
// palette banks) exercising the flash-burst write path.
const (
	// StatusAddress is a single 32-bit register whose bits latch until
	// drained; it is the one region with AccumulateChanges set.
	StatusAddress uint32 = 0x0000

	registersBase uint32 = 0x0010

	FPATemperatureAddress   uint32 = registersBase
	BaudRateAddress         uint32 = registersBase + 0x04
	PaletteIndexAddress     uint32 = registersBase + 0x08
	DeadPixelCountAddress   uint32 = registersBase + 0x0C
	DeviceTypeAddress       uint32 = registersBase + 0x10
	MainFirmwareVersionAddr uint32 = registersBase + 0x14
	SerialNumberAddress     uint32 = registersBase + 0x18

	registersLast = registersBase + 0x1F

	// PaletteStagingAddress is an SRAM scratch region: a candidate palette
	// bank is written here and read back for verification. Nothing in this
	// package copies a staged bank into the flash banks at PaletteBankAddress.
	PaletteStagingAddress uint32 = 0x00020000
	paletteStagingSize    uint32 = 4096

	// deadPixelTableSectors is how many flash sectors the dead-pixel
	// replacement table occupies; sized generously for a 640x480 core
	// (see wtc640/include/core/wtc640/deadpixels.h's per-pixel coordinate +
	// replacement encoding).
	deadPixelTableSectors = 2
	// paletteBankCount is how many independently addressable palette slots
	// (factory + user, see palettesmanager.h) the flash palette region
	// holds, each occupying its own sector.
	paletteBankCount = 4

	DeadPixelTableAddress uint32 = 0x00100000
	PaletteBanksAddress   uint32 = 0x00200000
)

// PaletteBankAddress returns the flash address of palette bank index
// (0-based). Panics if index is out of range, since a caller asking for a
// bank that doesn't exist is a wiring bug.
func PaletteBankAddress(index int) uint32 {
	if index < 0 || index >= paletteBankCount {
		panic("wtc640: palette bank index out of range")
	}
	return PaletteBanksAddress + uint32(index)*flashBytesPerSector
}

const flashBytesPerSector = 65536

// NewMemorySpace builds the reference memory space shared by every WTC640
// device instance.
func NewMemorySpace() memspace.Space {
	return memspace.NewSpace([]memspace.Descriptor{
		{
			Range:             memspace.FirstAndSize(StatusAddress, 4),
			Kind:              memspace.KindRegister,
			MinimumSize:       4,
			MaximumSize:       4,
			AccumulateChanges: true,
		},
		{
			Range:       memspace.FirstToLast(registersBase, registersLast),
			Kind:        memspace.KindRegister,
			MinimumSize: 4,
			MaximumSize: 32,
		},
		{
			Range:       memspace.FirstAndSize(PaletteStagingAddress, paletteStagingSize),
			Kind:        memspace.KindSRAM,
			MinimumSize: 1,
			MaximumSize: 256,
		},
		{
			Range:       memspace.FirstAndSize(DeadPixelTableAddress, deadPixelTableSectors*flashBytesPerSector),
			Kind:        memspace.KindFlash,
			MinimumSize: 4,
			MaximumSize: flashBytesPerSector,
		},
		{
			Range:       memspace.FirstAndSize(PaletteBanksAddress, paletteBankCount*flashBytesPerSector),
			Kind:        memspace.KindFlash,
			MinimumSize: 4,
			MaximumSize: flashBytesPerSector,
		},
	})
}
