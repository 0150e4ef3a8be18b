package sunspec_modbus

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

var ErrStorageNotSupported = errors.New("sunspec: storage block not supported")

var _ StorageModbusReader = (*StorageIntSFModbusReader)(nil)

type StorageIntSFModbusReader struct {
	ModbusClient

	logger *zap.Logger
	blocks storageIntSFModbusBlocks
}

func (rd *StorageIntSFModbusReader) Open() error {
	if err := rd.client.Open(); err != nil {
		return err
	}
	if err := rd.survey(); err != nil {
		rd.client.Close()
		return err
	}
	rd.logger.Debug("sunspec survey completed",
		zap.Uint16("common", rd.blocks.common),
		zap.Uint16("status", rd.blocks.status),
		zap.Uint16("storage", rd.blocks.storage))
	return nil
}

func (rd *StorageIntSFModbusReader) Close() error {
	return rd.client.Close()
}

func (rd *StorageIntSFModbusReader) GetInfo() (*DeviceInfo, error) {
	manufacturer, err := rd.readString(rd.blocks.common+2, 32)
	if err != nil {
		return nil, err
	}
	model, err := rd.readString(rd.blocks.common+18, 32)
	if err != nil {
		return nil, err
	}
	version, err := rd.readString(rd.blocks.common+42, 16)
	if err != nil {
		return nil, err
	}
	serial, err := rd.readString(rd.blocks.common+50, 32)
	if err != nil {
		return nil, err
	}
	hasStorage, err := rd.HasStorage()
	if err != nil {
		return nil, err
	}
	return &DeviceInfo{
		Manufacturer: manufacturer,
		Model:        model,
		Version:      version,
		Serial:       serial,
		HasStorage:   hasStorage,
	}, nil
}

func (rd *StorageIntSFModbusReader) HasStorage() (bool, error) {
	if rd.blocks.storage == 0 {
		return false, nil
	}
	// without a status block assume the storage model is authoritative
	if rd.blocks.status == 0 {
		return true, nil
	}
	storageConn, err := rd.readRegister(rd.blocks.status+3, modbus.HOLDING_REGISTER)
	if err != nil {
		return false, err
	}
	return storageConn&0x0001 != 0, nil
}

func (rd *StorageIntSFModbusReader) GetStorageState() (*StorageState, error) {
	if rd.blocks.storage == 0 {
		return nil, ErrStorageNotSupported
	}
	regs, err := rd.readRegisters(rd.blocks.storage+2, 24, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	return storageStateFromRegisters(regs), nil
}

// storageStateFromRegisters decodes the model 124 block starting at WChaMax.
func storageStateFromRegisters(regs []uint16) *StorageState {
	soc := applySF(regs[6], regs[20])
	// if state == off, soc = 0
	if regs[9] == StorageChargeStatusOff {
		soc = 0
	}
	maxCap := applySF(regs[0], regs[17])

	return &StorageState{
		StateOfCharge:       soc,
		MaxCapacityWatt:     uint32(math.Round(maxCap)),
		CurrentCapacityWatt: uint32(math.Round(soc / 100 * maxCap)),
		ChargeStatus:        regs[9],
		ChargeStatusStr:     StorageChargeStatusToString(regs[9]),
	}
}

func debugLoggerInstrumentation(logger *zap.Logger) *ModbusInstrument {
	return &ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus read", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}

func CreateStorageIntSFModbusReader(host string, port uint, unitId uint8, timeout time.Duration,
	logger *zap.Logger, instrumentation *ModbusInstrument) (StorageModbusReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("target", "storage"), zap.Uint8("unit", unitId))

	inst := []ModbusInstrument{*debugLoggerInstrumentation(logger)}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	if unitId > 0 {
		err = client.SetUnitId(unitId)
		if err != nil {
			return nil, err
		}
	}

	return &StorageIntSFModbusReader{
		ModbusClient: ModbusClient{
			client:     client,
			instrument: inst,
		},
		logger: logger,
	}, nil
}
