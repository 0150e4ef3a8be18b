package sunspec_modbus

import (
	"sync"
)

var _ StorageModbusReader = (*TestStorageModbusReader)(nil)

// TestStorageModbusReader is an in-memory reader for tests and local runs.
type TestStorageModbusReader struct {
	mu    sync.Mutex
	soc   float64
	err   error
	reads int
}

func CreateTestStorageModbusReader(soc float64) *TestStorageModbusReader {
	return &TestStorageModbusReader{soc: soc}
}

func (rd *TestStorageModbusReader) SetStateOfCharge(soc float64) {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	rd.soc = soc
}

func (rd *TestStorageModbusReader) SetError(err error) {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	rd.err = err
}

func (rd *TestStorageModbusReader) Reads() int {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	return rd.reads
}

func (rd *TestStorageModbusReader) Open() error {
	return nil
}

func (rd *TestStorageModbusReader) Close() error {
	return nil
}

func (rd *TestStorageModbusReader) GetInfo() (*DeviceInfo, error) {
	return &DeviceInfo{
		Manufacturer: "Energyopt",
		Model:        "Test Storage 10.0",
		Version:      "1.0.0",
		HasStorage:   true,
	}, nil
}

func (rd *TestStorageModbusReader) HasStorage() (bool, error) {
	return true, nil
}

func (rd *TestStorageModbusReader) GetStorageState() (*StorageState, error) {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	rd.reads++
	if rd.err != nil {
		return nil, rd.err
	}
	return &StorageState{
		StateOfCharge:       rd.soc,
		MaxCapacityWatt:     10000,
		CurrentCapacityWatt: uint32(rd.soc * 100),
		ChargeStatus:        StorageChargeStatusCharging,
		ChargeStatusStr:     StorageChargeStatusToString(StorageChargeStatusCharging),
	}, nil
}
