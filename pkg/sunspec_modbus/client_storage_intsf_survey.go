package sunspec_modbus

import (
	"errors"

	"github.com/simonvetter/modbus"
)

const (
	SUNSPEC_WK_COMMON  = 1
	SUNSPEC_WK_STATUS  = 122
	SUNSPEC_WK_STORAGE = 124
)

const (
	SUNSPEC_BASE_ADDRESS  = 40000
	SUNSPEC_FIRST_BLOCK   = 40002
	SUNSPEC_MAX_BLOCKS    = 20
	SUNSPEC_END_BLOCK_ID  = 0xFFFF
	SUNSPEC_MARKER_STRING = "SunS"
)

type storageIntSFModbusBlocks struct {
	common  uint16
	status  uint16
	storage uint16
}

func (blk *storageIntSFModbusBlocks) allBlocksDefined() bool {
	return blk.common > 0 && blk.status > 0 && blk.storage > 0
}

func (rd *StorageIntSFModbusReader) survey() error {

	// check SunSpec
	str, err := rd.readString(SUNSPEC_BASE_ADDRESS, 4)
	if err != nil {
		return err
	}
	if str != SUNSPEC_MARKER_STRING {
		return errors.New("could not find a SunSpec device")
	}

	blocks, err := surveyBlocks(func(addr uint16) (uint16, uint16, error) {
		regs, err := rd.readRegisters(addr, 2, modbus.HOLDING_REGISTER)
		if err != nil {
			return 0, 0, err
		}
		return regs[0], regs[1], nil
	})
	if err != nil {
		return err
	}
	if blocks.common == 0 || blocks.storage == 0 {
		return errors.New("could not find all required sunspec blocks (common, storage)")
	}
	rd.blocks = *blocks
	return nil
}

type modbusBlock struct {
	id       uint16
	baseAddr uint16
	length   uint16
}

func (block *modbusBlock) isEndBlock() bool {
	return block.id == SUNSPEC_END_BLOCK_ID
}

// surveyBlocks walks the SunSpec model chain. readHeader returns the model id and length at addr.
func surveyBlocks(readHeader func(addr uint16) (uint16, uint16, error)) (*storageIntSFModbusBlocks, error) {
	blocks := storageIntSFModbusBlocks{}
	var baseAddr uint16 = SUNSPEC_FIRST_BLOCK
	for n := 0; n <= SUNSPEC_MAX_BLOCKS; n++ {
		id, length, err := readHeader(baseAddr)
		if err != nil {
			return nil, err
		}
		block := modbusBlock{id: id, baseAddr: baseAddr, length: length}
		if block.isEndBlock() {
			break
		}
		switch block.id {
		case SUNSPEC_WK_COMMON:
			blocks.common = block.baseAddr
		case SUNSPEC_WK_STATUS:
			blocks.status = block.baseAddr
		case SUNSPEC_WK_STORAGE:
			blocks.storage = block.baseAddr
		}
		if blocks.allBlocksDefined() {
			break
		}
		baseAddr = baseAddr + block.length + 2
	}
	return &blocks, nil
}
