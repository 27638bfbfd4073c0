// Package protocol implements the framed binary message link between the
// bootloader and the host.
package protocol

// Version represents the piksiboot firmware version
const Version = "0.1.0"

// Framing constants
const (
	Preamble      = 0x55 // Start of every frame
	HeaderSize    = 6    // preamble + type(2) + sender(2) + length(1)
	TrailerSize   = 2    // CRC16, little-endian
	PayloadMax    = 255  // Length field is a single byte
	FrameMin      = HeaderSize + TrailerSize
	FrameMax      = FrameMin + PayloadMax
	MessageMax    = 2 * FrameMax // Output scratch holds a couple of replies
	DeviceSender  = 0x0042       // Sender ID stamped on frames we emit
	HostSender    = 0x0000       // Sender ID used by the flashing host
	crcCoverStart = 1            // CRC covers everything after the preamble
)

// Message types understood by the bootloader
const (
	MsgHandshake       uint16 = 0xB0 // host <-> device, empty
	MsgJumpToApp       uint16 = 0xB1 // host -> device, empty
	MsgEraseSector     uint16 = 0xE2 // sector u8 -> status u8
	MsgLockSector      uint16 = 0xE3 // sector u8 -> status u8
	MsgUnlockSector    uint16 = 0xE4 // sector u8 -> status u8
	MsgProgram         uint16 = 0xE6 // addr u32, len u8, data -> status u8
	MsgReadUniqueID    uint16 = 0xE8 // empty -> 12 byte id
	MsgExtFlashErase   uint16 = 0xF2 // sector u8 -> status u8
	MsgExtFlashProgram uint16 = 0xF3 // addr u32, len u8, data -> status u8
	MsgExtFlashRead    uint16 = 0xF4 // addr u32, len u8 -> addr, len, data
)

// UniqueIDSize is the length of the READ_UNIQUE_ID reply payload
const UniqueIDSize = 12

// MessageName returns a printable name for a message type
func MessageName(msgType uint16) string {
	switch msgType {
	case MsgHandshake:
		return "handshake"
	case MsgJumpToApp:
		return "jump_to_app"
	case MsgEraseSector:
		return "erase_sector"
	case MsgLockSector:
		return "lock_sector"
	case MsgUnlockSector:
		return "unlock_sector"
	case MsgProgram:
		return "program"
	case MsgReadUniqueID:
		return "read_unique_id"
	case MsgExtFlashErase:
		return "ext_flash_erase"
	case MsgExtFlashProgram:
		return "ext_flash_program"
	case MsgExtFlashRead:
		return "ext_flash_read"
	default:
		return "unknown"
	}
}

// Message is a decoded frame
type Message struct {
	Type    uint16
	Sender  uint16
	Payload []byte
	CRC     uint16
}
