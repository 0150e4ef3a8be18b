package sunspec_modbus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplySF(t *testing.T) {
	assert.Equal(t, 5230.0, applySF(523, 1))
	assert.InDelta(t, 52.3, applySF(523, uint16(0xFFFF)), 1e-9)
	assert.Equal(t, 523.0, applySF(523, 0))
}

func TestTrimNul(t *testing.T) {
	assert.Equal(t, "Fronius", trimNul([]byte{'F', 'r', 'o', 'n', 'i', 'u', 's', 0, 0, 0}))
	assert.Equal(t, "SunS", trimNul([]byte("SunS")))
}

func TestStorageStateFromRegisters(t *testing.T) {
	regs := make([]uint16, 24)
	// WChaMax and its scale factor
	regs[0] = 526
	regs[17] = 1
	// ChaState at scale -2
	regs[6] = 4570
	regs[20] = uint16(0xFFFE)
	regs[9] = StorageChargeStatusDischarging

	st := storageStateFromRegisters(regs)
	assert.InDelta(t, 45.7, st.StateOfCharge, 1e-9)
	assert.Equal(t, uint32(5260), st.MaxCapacityWatt)
	assert.Equal(t, uint32(2404), st.CurrentCapacityWatt)
	assert.Equal(t, "discharging", st.ChargeStatusStr)

	regs[9] = StorageChargeStatusOff
	assert.Equal(t, 0.0, storageStateFromRegisters(regs).StateOfCharge)
}

func TestSurveyBlocks(t *testing.T) {
	chain := map[uint16][2]uint16{
		40002: {SUNSPEC_WK_COMMON, 66},
		40070: {103, 50},
		40122: {SUNSPEC_WK_STATUS, 44},
		40168: {SUNSPEC_WK_STORAGE, 24},
	}
	blocks, err := surveyBlocks(func(addr uint16) (uint16, uint16, error) {
		h, ok := chain[addr]
		if !ok {
			return SUNSPEC_END_BLOCK_ID, 0, nil
		}
		return h[0], h[1], nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint16(40002), blocks.common)
	assert.Equal(t, uint16(40122), blocks.status)
	assert.Equal(t, uint16(40168), blocks.storage)
}

func TestSurveyBlocksStopsAtEnd(t *testing.T) {
	calls := 0
	blocks, err := surveyBlocks(func(addr uint16) (uint16, uint16, error) {
		calls++
		if addr == SUNSPEC_FIRST_BLOCK {
			return SUNSPEC_WK_COMMON, 66, nil
		}
		return SUNSPEC_END_BLOCK_ID, 0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, uint16(0), blocks.storage)

	_, err = surveyBlocks(func(addr uint16) (uint16, uint16, error) {
		return 0, 0, errors.New("timeout")
	})
	assert.Error(t, err)
}

func TestTestStorageReader(t *testing.T) {
	rd := CreateTestStorageModbusReader(23.5)
	st, err := rd.GetStorageState()
	require.NoError(t, err)
	assert.Equal(t, 23.5, st.StateOfCharge)

	rd.SetError(errors.New("bus error"))
	_, err = rd.GetStorageState()
	assert.Error(t, err)
	assert.Equal(t, 2, rd.Reads())
}
