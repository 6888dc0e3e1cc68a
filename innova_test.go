package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecodeTemp 測試溫度解碼
func TestDecodeTemp(t *testing.T) {
	tests := []struct {
		name     string
		raw      uint16
		expected float64
	}{
		{"室溫", 215, 21.5},
		{"零度", 0, 0.0},
		{"高溫", 400, 40.0},
		{"負溫度 (二補數)", 0xFFF6, -1.0},
		{"半度", 185, 18.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DecodeTemp(tt.raw), "解碼結果應該一致")
		})
	}
}

// TestEncodeTemp 測試溫度編碼
func TestEncodeTemp(t *testing.T) {
	tests := []struct {
		name     string
		temp     float64
		expected uint16
	}{
		{"整數溫度", 21.0, 210},
		{"半度", 21.5, 215},
		{"四捨五入", 21.04, 210},
		{"負溫度", -1.0, 0xFFF6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EncodeTemp(tt.temp), "編碼結果應該一致")
		})
	}
}

// TestTempRoundTrip 測試溫度編碼解碼往返
func TestTempRoundTrip(t *testing.T) {
	for _, temp := range []float64{5.0, 18.5, 22.0, 40.0, -5.5} {
		assert.Equal(t, temp, DecodeTemp(EncodeTemp(temp)), "往返後溫度應該一致")
	}
}

// TestDecodeFanMode 測試 PRG 風扇位元解碼
func TestDecodeFanMode(t *testing.T) {
	tests := []struct {
		name     string
		prg      uint16
		expected FanMode
		wantErr  bool
	}{
		{"自動", 0b000, FanAuto, false},
		{"靜音", 0b001, FanSilent, false},
		{"夜間", 0b010, FanNight, false},
		{"高速", 0b011, FanHigh, false},
		{"自動 (待機位元設置)", 0b10000000, FanAuto, false},
		{"高速 (其他位元設置)", 0b10100011, FanHigh, false},
		{"無效位元 100", 0b100, 0, true},
		{"無效位元 111", 0b111, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, err := DecodeFanMode(tt.prg)
			if tt.wantErr {
				assert.Error(t, err, "應該返回錯誤")
				return
			}
			require.NoError(t, err, "不應該返回錯誤")
			assert.Equal(t, tt.expected, mode, "風扇模式應該一致")
		})
	}
}

// TestEncodeFanMode 測試 PRG 風扇位元編碼
func TestEncodeFanMode(t *testing.T) {
	// 只修改 bits 0-2，其他位元保持不變
	prg := uint16(0b10101001) // 待機 + 其他位元 + silent

	assert.Equal(t, uint16(0b10101000), EncodeFanMode(prg, FanAuto), "應該只清除風扇位元")
	assert.Equal(t, uint16(0b10101011), EncodeFanMode(prg, FanHigh), "應該只修改風扇位元")
	assert.Equal(t, uint16(0b10101010), EncodeFanMode(prg, FanNight), "應該只修改風扇位元")

	// 從零開始
	assert.Equal(t, uint16(0b001), EncodeFanMode(0, FanSilent), "應該設置靜音位元")
}

// TestStandbyBit 測試待機位元操作
func TestStandbyBit(t *testing.T) {
	assert.False(t, IsStandby(0b00000000), "待機位元未設置")
	assert.True(t, IsStandby(0b10000000), "待機位元已設置")
	assert.True(t, IsStandby(0b10000011), "待機位元與風扇位元共存")

	// 設置與清除只影響 bit 7
	assert.Equal(t, uint16(0b10000011), SetStandby(0b00000011, true), "應該設置待機位元並保留風扇位元")
	assert.Equal(t, uint16(0b00000011), SetStandby(0b10000011, false), "應該清除待機位元並保留風扇位元")
	assert.Equal(t, uint16(0b10000000), SetStandby(0b10000000, true), "重複設置應該無副作用")
}

// TestDecodeSeason 測試季節解碼
func TestDecodeSeason(t *testing.T) {
	tests := []struct {
		name     string
		raw      uint16
		expected HVACMode
		wantErr  bool
	}{
		{"製冷", 5, HVACCool, false},
		{"製熱", 0, HVACHeat, false},
		{"製熱 (韌體回報 3)", 3, HVACHeat, false},
		{"無效值 1", 1, 0, true},
		{"無效值 99", 99, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, err := DecodeSeason(tt.raw)
			if tt.wantErr {
				assert.Error(t, err, "應該返回錯誤")
				return
			}
			require.NoError(t, err, "不應該返回錯誤")
			assert.Equal(t, tt.expected, mode, "運轉模式應該一致")
		})
	}
}

// TestEncodeSeason 測試季節編碼
func TestEncodeSeason(t *testing.T) {
	v, err := EncodeSeason(HVACHeat)
	require.NoError(t, err, "製熱應該可以編碼")
	assert.Equal(t, uint16(SeasonHeat), v, "製熱寫入值應該是 0")

	v, err = EncodeSeason(HVACCool)
	require.NoError(t, err, "製冷應該可以編碼")
	assert.Equal(t, uint16(SeasonCool), v, "製冷寫入值應該是 5")

	_, err = EncodeSeason(HVACOff)
	assert.Error(t, err, "off 沒有對應的季節值")
}

// TestParseFanMode 測試風扇模式字串解析
func TestParseFanMode(t *testing.T) {
	for _, mode := range ListFanModes() {
		parsed, err := ParseFanMode(mode.String())
		require.NoError(t, err, "合法模式應該可以解析")
		assert.Equal(t, mode, parsed, "解析後模式應該一致")
	}

	_, err := ParseFanMode("turbo")
	assert.Error(t, err, "無效模式應該返回錯誤")

	_, err = ParseFanMode("")
	assert.Error(t, err, "空字串應該返回錯誤")
}

// TestParseHVACMode 測試運轉模式字串解析
func TestParseHVACMode(t *testing.T) {
	for _, mode := range ListHVACModes() {
		parsed, err := ParseHVACMode(mode.String())
		require.NoError(t, err, "合法模式應該可以解析")
		assert.Equal(t, mode, parsed, "解析後模式應該一致")
	}

	_, err := ParseHVACMode("dry")
	assert.Error(t, err, "無效模式應該返回錯誤")
}
