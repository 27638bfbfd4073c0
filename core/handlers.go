package core

import (
	"encoding/binary"

	"piksiboot/protocol"
)

// handleHandshake records that the host asked for bootload mode. The
// transition itself happens in the wait loop.
func (m *Machine) handleHandshake(_ []byte) error {
	m.handshakeSeen = true
	return nil
}

// handleJumpToApp starts the application; on hardware it does not return
func (m *Machine) handleJumpToApp(_ []byte) error {
	m.jumper.Jump()
	return nil
}

// handleLockSector: sector u8 -> status u8
func (m *Machine) handleLockSector(payload []byte) error {
	if len(payload) < 1 {
		return ErrShortPayload
	}
	status, err := m.guard.Lock(payload[0])
	if err != nil {
		return err
	}
	return m.replyStatus(protocol.MsgLockSector, status)
}

// handleUnlockSector: sector u8 -> status u8
func (m *Machine) handleUnlockSector(payload []byte) error {
	if len(payload) < 1 {
		return ErrShortPayload
	}
	status, err := m.guard.Unlock(payload[0])
	if err != nil {
		return err
	}
	return m.replyStatus(protocol.MsgUnlockSector, status)
}

// handleEraseSector: sector u8 -> status u8
func (m *Machine) handleEraseSector(payload []byte) error {
	if len(payload) < 1 {
		return ErrShortPayload
	}
	status, err := m.engine.EraseSector(payload[0])
	if err != nil {
		return err
	}
	return m.replyStatus(protocol.MsgEraseSector, status)
}

// handleProgram: addr u32 LE, len u8, data[len] -> status u8
func (m *Machine) handleProgram(payload []byte) error {
	addr, data, err := decodeAddrData(payload)
	if err != nil {
		return err
	}
	status, err := m.engine.Program(addr, data)
	if err != nil {
		return err
	}
	return m.replyStatus(protocol.MsgProgram, status)
}

// handleReadUniqueID replies with the 12-byte device identifier
func (m *Machine) handleReadUniqueID(_ []byte) error {
	id := m.board.ID.UniqueID()
	return m.disp.Send(protocol.MsgReadUniqueID, id[:])
}

func (m *Machine) replyStatus(msgType uint16, status Status) error {
	if status != StatusOK {
		DebugPrintln("[FLASH] " + protocol.MessageName(msgType) + " rejected: " + status.String())
	}
	return m.disp.Send(msgType, []byte{byte(status)})
}

// decodeAddrData splits an addr u32, len u8, data[len] payload
func decodeAddrData(payload []byte) (uint32, []byte, error) {
	if len(payload) < 5 {
		return 0, nil, ErrShortPayload
	}
	addr := binary.LittleEndian.Uint32(payload[0:4])
	length := int(payload[4])
	if len(payload) < 5+length {
		return 0, nil, ErrShortPayload
	}
	return addr, payload[5 : 5+length], nil
}
