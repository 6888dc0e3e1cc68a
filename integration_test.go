//go:build integration
// +build integration

package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbrandon/mbserver"
	"go.uber.org/zap"
)

// startSimulatedFancoil 啟動模擬的風機盤管 Modbus TCP slave
func startSimulatedFancoil(t *testing.T, addr string) *mbserver.Server {
	server := mbserver.NewServer()

	// 初始暫存器狀態
	server.HoldingRegisters[RegAirTemp] = 215 // 21.5 °C
	server.HoldingRegisters[RegWaterTemp] = 45
	server.HoldingRegisters[RegFanSpeed] = 2
	server.HoldingRegisters[RegProgram] = 0b001 // silent
	server.HoldingRegisters[RegTargetTemp] = 220
	server.HoldingRegisters[RegSeason] = SeasonCool

	require.NoError(t, server.ListenTCP(addr), "模擬 slave 應該可以啟動")

	// 等待伺服器啟動
	time.Sleep(100 * time.Millisecond)
	return server
}

func integrationModbusConfig(addr string) ModbusConfig {
	return ModbusConfig{
		Mode:       "tcp",
		TCPAddress: addr,
		SlaveID:    1,
		Timeout:    5 * time.Second,
	}
}

func TestFancoilIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	const addr = "127.0.0.1:5512"

	server := startSimulatedFancoil(t, addr)
	defer server.Close()

	logger, _ := zap.NewDevelopment()

	conn, err := NewModbusConn(integrationModbusConfig(addr), logger)
	require.NoError(t, err, "連線模擬 slave 不應該失敗")
	defer conn.Close()

	cfg := DefaultConfig()
	fancoil := NewFancoil(conn, cfg.Bridge, WithFancoilLogger(logger))

	// 讀取初始狀態
	t.Run("Refresh", func(t *testing.T) {
		state, err := fancoil.Refresh()
		require.NoError(t, err)

		assert.Equal(t, 21.5, state.CurrentTemp, "環境溫度")
		assert.Equal(t, 22.0, state.TargetTemp, "目標溫度")
		assert.Equal(t, 45.0, state.WaterTemp, "水溫")
		assert.Equal(t, uint16(2), state.FanSpeed, "風扇轉速")
		assert.Equal(t, FanSilent, state.FanMode, "風扇模式")
		assert.Equal(t, HVACCool, state.Mode, "運轉模式")
	})

	// 寫入目標溫度 (FC 06) 並讀回
	t.Run("SetTargetTemperature", func(t *testing.T) {
		require.NoError(t, fancoil.SetTargetTemperature(24.5))
		assert.Equal(t, uint16(245), server.HoldingRegisters[RegTargetTemp], "暫存器應該被寫入")

		state, err := fancoil.Refresh()
		require.NoError(t, err)
		assert.Equal(t, 24.5, state.TargetTemp, "讀回的目標溫度應該一致")
	})

	// off: 只設置待機位元
	t.Run("SetModeOff", func(t *testing.T) {
		require.NoError(t, fancoil.SetMode(HVACOff))
		assert.Equal(t, uint16(0b10000001), server.HoldingRegisters[RegProgram], "應該設置待機位元並保留風扇位元")

		state, err := fancoil.Refresh()
		require.NoError(t, err)
		assert.Equal(t, HVACOff, state.Mode, "讀回的模式應該是 off")
	})

	// heat: 清除待機位元並寫入季節
	t.Run("SetModeHeat", func(t *testing.T) {
		require.NoError(t, fancoil.SetMode(HVACHeat))
		assert.Equal(t, uint16(0b001), server.HoldingRegisters[RegProgram], "待機位元應該被清除")
		assert.Equal(t, uint16(SeasonHeat), server.HoldingRegisters[RegSeason], "季節應該被寫入")

		state, err := fancoil.Refresh()
		require.NoError(t, err)
		assert.Equal(t, HVACHeat, state.Mode, "讀回的模式應該是 heat")
	})

	// 風扇模式: 只修改 bits 0-2
	t.Run("SetFanMode", func(t *testing.T) {
		require.NoError(t, fancoil.SetFanMode(FanHigh))
		assert.Equal(t, uint16(0b011), server.HoldingRegisters[RegProgram]&0b111, "風扇位元應該被更新")

		state, err := fancoil.Refresh()
		require.NoError(t, err)
		assert.Equal(t, FanHigh, state.FanMode, "讀回的風扇模式應該一致")
	})
}

func TestBridgeIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	const addr = "127.0.0.1:5513"

	server := startSimulatedFancoil(t, addr)
	defer server.Close()

	logger, _ := zap.NewDevelopment()

	conn, err := NewModbusConn(integrationModbusConfig(addr), logger)
	require.NoError(t, err, "連線模擬 slave 不應該失敗")
	defer conn.Close()

	cfg := DefaultConfig()
	cfg.Bridge.DeviceID = "sim_fancoil"
	cfg.Bridge.PollInterval = 200 * time.Millisecond

	fancoil := NewFancoil(conn, cfg.Bridge, WithFancoilLogger(logger))
	publisher := newFakePublisher()
	bridge := NewBridge(cfg, fancoil, publisher, WithLogger(logger))

	ctx := context.Background()
	require.NoError(t, bridge.Start(ctx), "啟動橋接器不應該失敗")
	defer bridge.Stop(ctx)

	assert.Equal(t, BridgeStateRunning, bridge.State())

	// 等待幾個輪詢週期
	time.Sleep(500 * time.Millisecond)
	assert.Greater(t, bridge.Stats().PollCount.Load(), uint64(1), "應該完成多次輪詢")

	// 透過命令主題寫入，驗證端到端流程
	publisher.deliver(t, CommandTopic(cfg, "temperature"), "25.0")
	assert.Equal(t, uint16(250), server.HoldingRegisters[RegTargetTemp], "命令應該寫入模擬裝置")

	avail, ok := publisher.lastPayload(AvailabilityTopic(cfg))
	require.True(t, ok, "應該發佈可用性")
	assert.Equal(t, PayloadOnline, string(avail), "裝置應該上線")
}
