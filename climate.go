package main

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RegisterClient Fancoil 所需的最小 Modbus 客戶端介面
// goburrow/modbus 的 Client 直接滿足此介面
type RegisterClient interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
}

// ClimateState 風機盤管的解碼後狀態
type ClimateState struct {
	CurrentTemp float64   `json:"current_temperature"`
	TargetTemp  float64   `json:"target_temperature"`
	WaterTemp   float64   `json:"water_temperature"`
	FanSpeed    uint16    `json:"fan_speed"`
	FanMode     FanMode   `json:"-"`
	Mode        HVACMode  `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// Fancoil 代表一台 Innova 風機盤管
// 負責暫存器讀寫與氣候單位之間的轉換
type Fancoil struct {
	mu     sync.RWMutex
	client RegisterClient
	logger *zap.Logger

	minTemp float64
	maxTemp float64

	state    ClimateState
	hasState bool
}

// FancoilOption Fancoil 配置選項
type FancoilOption func(*Fancoil)

// WithFancoilLogger 設定日誌
func WithFancoilLogger(logger *zap.Logger) FancoilOption {
	return func(f *Fancoil) {
		f.logger = logger
	}
}

// NewFancoil 建立新的 Fancoil
func NewFancoil(client RegisterClient, cfg BridgeConfig, opts ...FancoilOption) *Fancoil {
	f := &Fancoil{
		client:  client,
		minTemp: cfg.MinTemp,
		maxTemp: cfg.MaxTemp,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.logger == nil {
		f.logger = zap.NewNop()
	}

	return f
}

// Refresh 讀取所有相關暫存器並更新快取狀態
// 解碼失敗時保留前一次的狀態
func (f *Fancoil) Refresh() (ClimateState, error) {
	var next ClimateState

	raw, err := f.readRegister(RegAirTemp)
	if err != nil {
		return f.lastState(), fmt.Errorf("讀取環境溫度失敗: %w", err)
	}
	next.CurrentTemp = DecodeTemp(raw)

	raw, err = f.readRegister(RegTargetTemp)
	if err != nil {
		return f.lastState(), fmt.Errorf("讀取目標溫度失敗: %w", err)
	}
	next.TargetTemp = DecodeTemp(raw)

	raw, err = f.readRegister(RegWaterTemp)
	if err != nil {
		return f.lastState(), fmt.Errorf("讀取水溫失敗: %w", err)
	}
	next.WaterTemp = float64(int16(raw))

	raw, err = f.readRegister(RegFanSpeed)
	if err != nil {
		return f.lastState(), fmt.Errorf("讀取風扇轉速失敗: %w", err)
	}
	next.FanSpeed = raw

	prg, err := f.readRegister(RegProgram)
	if err != nil {
		return f.lastState(), fmt.Errorf("讀取 PRG 失敗: %w", err)
	}

	next.FanMode, err = DecodeFanMode(prg)
	if err != nil {
		f.logger.Error("收到無效的 PRG", zap.Uint16("prg", prg))
		return f.lastState(), err
	}

	season, err := f.readRegister(RegSeason)
	if err != nil {
		return f.lastState(), fmt.Errorf("讀取季節失敗: %w", err)
	}

	next.Mode, err = DecodeSeason(season)
	if err != nil {
		f.logger.Error("收到無效的季節值", zap.Uint16("season", season))
		return f.lastState(), err
	}

	// 待機位元優先於季節
	if IsStandby(prg) {
		next.Mode = HVACOff
	}

	next.UpdatedAt = time.Now()

	f.mu.Lock()
	f.state = next
	f.hasState = true
	f.mu.Unlock()

	return next, nil
}

// State 取得最近一次成功讀取的狀態
func (f *Fancoil) State() (ClimateState, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state, f.hasState
}

// SetTargetTemperature 設定目標溫度
func (f *Fancoil) SetTargetTemperature(t float64) error {
	if t < f.minTemp || t > f.maxTemp {
		return fmt.Errorf("目標溫度 %.1f 超出範圍 [%.1f, %.1f]", t, f.minTemp, f.maxTemp)
	}

	if err := f.writeRegister(RegTargetTemp, EncodeTemp(t)); err != nil {
		return fmt.Errorf("寫入目標溫度失敗: %w", err)
	}

	f.mu.Lock()
	f.state.TargetTemp = t
	f.mu.Unlock()

	f.logger.Debug("已設定目標溫度", zap.Float64("temperature", t))
	return nil
}

// SetMode 設定運轉模式
// off 只設置待機位元；heat/cool 清除待機位元並寫入季節
func (f *Fancoil) SetMode(mode HVACMode) error {
	prg, err := f.readRegister(RegProgram)
	if err != nil {
		return fmt.Errorf("讀取 PRG 失敗: %w", err)
	}

	if mode == HVACOff {
		if err := f.writeRegister(RegProgram, SetStandby(prg, true)); err != nil {
			return fmt.Errorf("寫入待機位元失敗: %w", err)
		}

		f.mu.Lock()
		f.state.Mode = HVACOff
		f.mu.Unlock()

		f.logger.Debug("已設定運轉模式", zap.String("mode", mode.String()))
		return nil
	}

	season, err := EncodeSeason(mode)
	if err != nil {
		return err
	}

	if err := f.writeRegister(RegProgram, SetStandby(prg, false)); err != nil {
		return fmt.Errorf("清除待機位元失敗: %w", err)
	}

	if err := f.writeRegister(RegSeason, season); err != nil {
		return fmt.Errorf("寫入季節失敗: %w", err)
	}

	f.mu.Lock()
	f.state.Mode = mode
	f.mu.Unlock()

	f.logger.Debug("已設定運轉模式", zap.String("mode", mode.String()))
	return nil
}

// SetFanMode 設定風扇模式 (僅修改 PRG bits 0-2)
func (f *Fancoil) SetFanMode(mode FanMode) error {
	prg, err := f.readRegister(RegProgram)
	if err != nil {
		return fmt.Errorf("讀取 PRG 失敗: %w", err)
	}

	if err := f.writeRegister(RegProgram, EncodeFanMode(prg, mode)); err != nil {
		return fmt.Errorf("寫入風扇模式失敗: %w", err)
	}

	f.mu.Lock()
	f.state.FanMode = mode
	f.mu.Unlock()

	f.logger.Debug("已設定風扇模式", zap.String("fan_mode", mode.String()))
	return nil
}

// lastState 取得快取狀態 (讀取失敗時回傳)
func (f *Fancoil) lastState() ClimateState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// readRegister 讀取單一保持暫存器
func (f *Fancoil) readRegister(address uint16) (uint16, error) {
	res, err := f.client.ReadHoldingRegisters(address, 1)
	if err != nil {
		return 0, err
	}
	if len(res) < 2 {
		return 0, fmt.Errorf("回應長度不足: %d bytes", len(res))
	}
	return binary.BigEndian.Uint16(res), nil
}

// writeRegister 寫入單一保持暫存器
func (f *Fancoil) writeRegister(address, value uint16) error {
	_, err := f.client.WriteSingleRegister(address, value)
	return err
}
