package protocol

import "github.com/sigurn/crc16"

// Frames are protected with CRC-16/XMODEM (poly 0x1021, init 0)
var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// CRC16 calculates the frame checksum over data
func CRC16(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
