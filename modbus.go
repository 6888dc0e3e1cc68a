package main

import (
	"fmt"
	"sync"

	"github.com/goburrow/modbus"
	"go.uber.org/zap"
)

// ModbusConn 與風機盤管的 Modbus 連線
// 封裝 goburrow/modbus 的 RTU/TCP handler，讀寫失敗時重連並重試一次
type ModbusConn struct {
	mu        sync.Mutex
	client    modbus.Client
	reconnect func() error
	closeFn   func() error
	logger    *zap.Logger
}

// NewModbusConn 根據配置建立 Modbus 連線
func NewModbusConn(cfg ModbusConfig, logger *zap.Logger) (*ModbusConn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Mode {
	case "tcp":
		handler := modbus.NewTCPClientHandler(cfg.TCPAddress)
		handler.Timeout = cfg.Timeout
		handler.SlaveId = byte(cfg.SlaveID)

		if err := handler.Connect(); err != nil {
			return nil, fmt.Errorf("連線 %s 失敗: %w", cfg.TCPAddress, err)
		}

		logger.Info("Modbus TCP 已連線",
			zap.String("address", cfg.TCPAddress),
			zap.Int("slave_id", cfg.SlaveID),
		)

		return &ModbusConn{
			client:    modbus.NewClient(handler),
			reconnect: handler.Connect,
			closeFn:   handler.Close,
			logger:    logger,
		}, nil

	case "rtu":
		handler := modbus.NewRTUClientHandler(cfg.Device)
		handler.BaudRate = cfg.BaudRate
		handler.DataBits = cfg.DataBits
		handler.Parity = cfg.Parity
		handler.StopBits = cfg.StopBits
		handler.SlaveId = byte(cfg.SlaveID)
		handler.Timeout = cfg.Timeout

		if err := handler.Connect(); err != nil {
			return nil, fmt.Errorf("開啟 %s 失敗: %w", cfg.Device, err)
		}

		logger.Info("Modbus RTU 已連線",
			zap.String("device", cfg.Device),
			zap.Int("baud_rate", cfg.BaudRate),
			zap.Int("slave_id", cfg.SlaveID),
		)

		return &ModbusConn{
			client:    modbus.NewClient(handler),
			reconnect: handler.Connect,
			closeFn:   handler.Close,
			logger:    logger,
		}, nil

	default:
		return nil, fmt.Errorf("無效的 Modbus 模式: %q", cfg.Mode)
	}
}

// ReadHoldingRegisters 讀取保持暫存器 (FC 03)
func (c *ModbusConn) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.client.ReadHoldingRegisters(address, quantity)
	if err == nil {
		return res, nil
	}

	c.logger.Warn("讀取暫存器失敗，嘗試重連",
		zap.Uint16("address", address),
		zap.Error(err),
	)

	if rerr := c.reconnect(); rerr != nil {
		return nil, fmt.Errorf("重連失敗: %w (原始錯誤: %v)", rerr, err)
	}

	return c.client.ReadHoldingRegisters(address, quantity)
}

// WriteSingleRegister 寫入單一保持暫存器 (FC 06)
func (c *ModbusConn) WriteSingleRegister(address, value uint16) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.client.WriteSingleRegister(address, value)
	if err == nil {
		return res, nil
	}

	c.logger.Warn("寫入暫存器失敗，嘗試重連",
		zap.Uint16("address", address),
		zap.Uint16("value", value),
		zap.Error(err),
	)

	if rerr := c.reconnect(); rerr != nil {
		return nil, fmt.Errorf("重連失敗: %w (原始錯誤: %v)", rerr, err)
	}

	return c.client.WriteSingleRegister(address, value)
}

// Close 關閉連線
func (c *ModbusConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeFn()
}
