package main

import (
	"fmt"
	"math"
)

// Innova 風機盤管保持暫存器位址
const (
	RegAirTemp    = 0   // 環境溫度 (°C × 10)
	RegWaterTemp  = 1   // 水溫 (°C)
	RegFanSpeed   = 15  // 實際風扇轉速
	RegProgram    = 201 // PRG 程式位元欄
	RegTargetTemp = 231 // 目標溫度 (°C × 10)
	RegSeason     = 233 // 季節 (製熱/製冷)
)

// PRG 位元欄配置
const (
	prgFanMask    = 0b111 // bits 0-2: 風扇程式
	prgStandbyBit = 7     // bit 7: 待機
)

// 季節暫存器值
const (
	SeasonHeat    = 0 // 製熱 (寫入值)
	SeasonHeatAlt = 3 // 製熱 (部分韌體回報值)
	SeasonCool    = 5 // 製冷
)

// 溫度縮放因子 (暫存器值 = °C × 10)
const tempScale = 10.0

// 目標溫度硬限制 (°C)
const (
	AbsoluteMinTemp = 5.0
	AbsoluteMaxTemp = 40.0
)

// FanMode 風扇模式
type FanMode int

const (
	FanAuto FanMode = iota
	FanSilent
	FanNight
	FanHigh
)

func (m FanMode) String() string {
	switch m {
	case FanAuto:
		return "auto"
	case FanSilent:
		return "silent"
	case FanNight:
		return "night"
	case FanHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseFanMode 解析風扇模式字串
func ParseFanMode(s string) (FanMode, error) {
	switch s {
	case "auto":
		return FanAuto, nil
	case "silent":
		return FanSilent, nil
	case "night":
		return FanNight, nil
	case "high":
		return FanHigh, nil
	default:
		return 0, fmt.Errorf("無效的風扇模式: %q", s)
	}
}

// ListFanModes 列出所有風扇模式
func ListFanModes() []FanMode {
	return []FanMode{FanAuto, FanSilent, FanNight, FanHigh}
}

// HVACMode 空調運轉模式
type HVACMode int

const (
	HVACOff HVACMode = iota
	HVACHeat
	HVACCool
)

func (m HVACMode) String() string {
	switch m {
	case HVACOff:
		return "off"
	case HVACHeat:
		return "heat"
	case HVACCool:
		return "cool"
	default:
		return "unknown"
	}
}

// ParseHVACMode 解析運轉模式字串
func ParseHVACMode(s string) (HVACMode, error) {
	switch s {
	case "off":
		return HVACOff, nil
	case "heat":
		return HVACHeat, nil
	case "cool":
		return HVACCool, nil
	default:
		return 0, fmt.Errorf("無效的運轉模式: %q", s)
	}
}

// ListHVACModes 列出所有運轉模式
func ListHVACModes() []HVACMode {
	return []HVACMode{HVACOff, HVACHeat, HVACCool}
}

// DecodeTemp 將暫存器原始值轉換為攝氏溫度
func DecodeTemp(raw uint16) float64 {
	return float64(int16(raw)) / tempScale
}

// EncodeTemp 將攝氏溫度轉換為暫存器原始值
func EncodeTemp(t float64) uint16 {
	return uint16(int16(math.Round(t * tempScale)))
}

// DecodeFanMode 從 PRG 位元欄解析風扇模式
// 只有 000/001/010/011 是合法組合
func DecodeFanMode(prg uint16) (FanMode, error) {
	switch prg & prgFanMask {
	case 0b000:
		return FanAuto, nil
	case 0b001:
		return FanSilent, nil
	case 0b010:
		return FanNight, nil
	case 0b011:
		return FanHigh, nil
	default:
		return 0, fmt.Errorf("無效的 PRG 風扇位元: 0b%03b", prg&prgFanMask)
	}
}

// EncodeFanMode 將風扇模式寫入 PRG 位元欄 (僅修改 bits 0-2)
func EncodeFanMode(prg uint16, mode FanMode) uint16 {
	var bits uint16
	switch mode {
	case FanAuto:
		bits = 0b000
	case FanSilent:
		bits = 0b001
	case FanNight:
		bits = 0b010
	case FanHigh:
		bits = 0b011
	}
	return prg&^uint16(prgFanMask) | bits
}

// IsStandby 判斷 PRG 待機位元是否設置
func IsStandby(prg uint16) bool {
	return prg&(1<<prgStandbyBit) != 0
}

// SetStandby 設置或清除 PRG 待機位元 (僅修改 bit 7)
func SetStandby(prg uint16, standby bool) uint16 {
	if standby {
		return prg | (1 << prgStandbyBit)
	}
	return prg &^ (1 << prgStandbyBit)
}

// DecodeSeason 將季節暫存器值轉換為運轉模式
// 待機位元的優先級更高，由呼叫端另行判斷
func DecodeSeason(raw uint16) (HVACMode, error) {
	switch raw {
	case SeasonCool:
		return HVACCool, nil
	case SeasonHeat, SeasonHeatAlt:
		return HVACHeat, nil
	default:
		return 0, fmt.Errorf("無效的季節值: %d", raw)
	}
}

// EncodeSeason 將運轉模式轉換為季節暫存器寫入值
func EncodeSeason(mode HVACMode) (uint16, error) {
	switch mode {
	case HVACHeat:
		return SeasonHeat, nil
	case HVACCool:
		return SeasonCool, nil
	default:
		return 0, fmt.Errorf("模式 %s 沒有對應的季節值", mode)
	}
}
