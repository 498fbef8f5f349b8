// Package idcode decodes IEEE 1149.1 IDCODE words and maps JEP106
// manufacturer codes to names.
package idcode

import "fmt"

// IDCode is a parsed 32-bit JTAG IDCODE.
type IDCode struct {
	Raw              uint32
	Version          uint8  // [31:28]
	PartNumber       uint16 // [27:12]
	ManufacturerCode uint16 // [11:1], JEP106
	Valid            bool   // bit 0 must read 1
}

// Parse splits a raw IDCODE into its fields.
func Parse(raw uint32) IDCode {
	return IDCode{
		Raw:              raw,
		Version:          uint8(raw >> 28),
		PartNumber:       uint16(raw>>12) & 0xFFFF,
		ManufacturerCode: uint16(raw>>1) & 0x7FF,
		Valid:            raw&1 == 1,
	}
}

func (id IDCode) String() string {
	return fmt.Sprintf("0x%08X (Mfg: %s, Part: 0x%04X, Ver: %d)",
		id.Raw, ManufacturerName(id.ManufacturerCode), id.PartNumber, id.Version)
}

// manufacturers holds the JEP106 vendors commonly seen on debug taps.
var manufacturers = map[uint16]string{
	0x017: "Texas Instruments",
	0x020: "STMicroelectronics",
	0x029: "Microchip",
	0x041: "Infineon",
	0x049: "Xilinx",
	0x06E: "Altera",
	0x23B: "ARM",
	0x244: "Nordic Semiconductor",
	0x493: "Raspberry Pi",
}

// ManufacturerName returns the JEP106 vendor name, or a formatted fallback
// for codes not in the table.
func ManufacturerName(code uint16) string {
	if name, ok := manufacturers[code]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (0x%03X)", code)
}
