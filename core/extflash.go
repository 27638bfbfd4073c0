package core

import (
	"encoding/binary"

	"piksiboot/protocol"
)

// checkExtRange validates an off-chip flash access of length bytes
func checkExtRange(ext ExternalFlash, addr uint32, length int) Status {
	size := ext.Size()
	if addr >= size {
		return StatusInvalidAddress
	}
	if int64(addr)+int64(length) > int64(size) {
		return StatusInvalidRange
	}
	return StatusOK
}

// handleExtFlashErase: sector u8 -> status u8
func (m *Machine) handleExtFlashErase(payload []byte) error {
	if len(payload) < 1 {
		return ErrShortPayload
	}
	ext := m.board.ExtFlash
	sector := uint32(payload[0])

	status := StatusOK
	if sector >= ext.Size()/ext.SectorSize() {
		status = StatusInvalidSector
	} else if err := ext.EraseSector(sector); err != nil {
		return err
	}
	return m.replyStatus(protocol.MsgExtFlashErase, status)
}

// handleExtFlashProgram: addr u32 LE, len u8, data[len] -> status u8
func (m *Machine) handleExtFlashProgram(payload []byte) error {
	addr, data, err := decodeAddrData(payload)
	if err != nil {
		return err
	}
	ext := m.board.ExtFlash

	status := checkExtRange(ext, addr, len(data))
	if status == StatusOK && len(data) > 0 {
		if err := ext.WriteAt(data, addr); err != nil {
			return err
		}
	}
	return m.replyStatus(protocol.MsgExtFlashProgram, status)
}

// handleExtFlashRead: addr u32 LE, len u8 -> addr u32 LE, len u8, data[len].
// A request outside the device, or too long for one reply frame, is
// answered with len 0.
func (m *Machine) handleExtFlashRead(payload []byte) error {
	if len(payload) < 5 {
		return ErrShortPayload
	}
	addr := binary.LittleEndian.Uint32(payload[0:4])
	length := int(payload[4])
	ext := m.board.ExtFlash

	var reply [protocol.PayloadMax]byte
	binary.LittleEndian.PutUint32(reply[0:4], addr)

	if checkExtRange(ext, addr, length) != StatusOK || length > len(reply)-5 {
		reply[4] = 0
		return m.disp.Send(protocol.MsgExtFlashRead, reply[:5])
	}

	if err := ext.ReadAt(reply[5:5+length], addr); err != nil {
		return err
	}
	reply[4] = byte(length)
	return m.disp.Send(protocol.MsgExtFlashRead, reply[:5+length])
}
