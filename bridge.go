package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// 可用性 payload
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// BridgeState 橋接器狀態
type BridgeState int32

const (
	BridgeStateStopped BridgeState = iota
	BridgeStateStarting
	BridgeStateRunning
	BridgeStateStopping
)

func (s BridgeState) String() string {
	switch s {
	case BridgeStateStopped:
		return "stopped"
	case BridgeStateStarting:
		return "starting"
	case BridgeStateRunning:
		return "running"
	case BridgeStateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Bridge 風機盤管與 MQTT 之間的橋接器
// 週期性輪詢暫存器並發佈狀態，接收命令主題的寫入請求
type Bridge struct {
	// 配置
	config *Config

	// 裝置與 MQTT
	fancoil *Fancoil
	mqtt    Publisher

	// 狀態
	state atomic.Int32

	// 統計
	stats BridgeStats

	// 輪詢控制
	pollCtx  context.Context
	pollStop context.CancelFunc

	// 指標
	metrics *Metrics

	// 日誌
	logger *zap.Logger
}

// BridgeStats 橋接器統計資訊
type BridgeStats struct {
	StartTime     time.Time
	PollCount     atomic.Uint64
	PollErrors    atomic.Uint64
	CommandCount  atomic.Uint64
	CommandErrors atomic.Uint64
}

// BridgeOption Bridge 配置選項
type BridgeOption func(*Bridge)

// WithLogger 設定日誌
func WithLogger(logger *zap.Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// WithMetrics 設定指標收集
func WithMetrics(m *Metrics) BridgeOption {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// NewBridge 建立新的橋接器
func NewBridge(config *Config, fancoil *Fancoil, publisher Publisher, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		config:  config,
		fancoil: fancoil,
		mqtt:    publisher,
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger, _ = zap.NewProduction()
	}

	return b
}

// Start 啟動橋接器
func (b *Bridge) Start(ctx context.Context) error {
	if !b.state.CompareAndSwap(int32(BridgeStateStopped), int32(BridgeStateStarting)) {
		return fmt.Errorf("橋接器已經在運行中")
	}

	b.stats.StartTime = time.Now()
	b.logger.Info("正在啟動橋接器",
		zap.String("device_id", b.config.Bridge.DeviceID),
		zap.Duration("poll_interval", b.config.Bridge.PollInterval),
	)

	// 發佈 HA discovery
	if b.config.MQTT.Discovery {
		if err := b.publishDiscovery(); err != nil {
			b.state.Store(int32(BridgeStateStopped))
			return fmt.Errorf("發佈 discovery 失敗: %w", err)
		}
	}

	// 訂閱命令主題
	for _, kind := range []string{"temperature", "mode", "fan_mode"} {
		topic := CommandTopic(b.config, kind)
		if err := b.mqtt.Subscribe(topic, 1, b.commandHandler(kind)); err != nil {
			b.state.Store(int32(BridgeStateStopped))
			return fmt.Errorf("訂閱 %s 失敗: %w", topic, err)
		}
	}

	// 啟動前先輪詢一次，讓平台立即取得狀態
	b.poll()

	b.pollCtx, b.pollStop = context.WithCancel(ctx)
	go b.pollLoop()

	b.state.Store(int32(BridgeStateRunning))

	b.logger.Info("橋接器已啟動",
		zap.Duration("startup_time", time.Since(b.stats.StartTime)),
	)

	return nil
}

// Stop 停止橋接器
func (b *Bridge) Stop(ctx context.Context) error {
	if !b.state.CompareAndSwap(int32(BridgeStateRunning), int32(BridgeStateStopping)) {
		return nil // 已經停止
	}

	b.logger.Info("正在停止橋接器")

	if b.pollStop != nil {
		b.pollStop()
	}

	// 主動通知離線 (遺囑僅涵蓋非正常斷線)
	if err := b.publishAvailability(false); err != nil {
		b.logger.Warn("發佈離線狀態失敗", zap.Error(err))
	}

	b.state.Store(int32(BridgeStateStopped))

	b.logger.Info("橋接器已停止",
		zap.Duration("uptime", time.Since(b.stats.StartTime)),
		zap.Uint64("polls", b.stats.PollCount.Load()),
		zap.Uint64("commands", b.stats.CommandCount.Load()),
	)

	return nil
}

// State 取得當前狀態
func (b *Bridge) State() BridgeState {
	return BridgeState(b.state.Load())
}

// Stats 取得統計資訊
func (b *Bridge) Stats() *BridgeStats {
	return &b.stats
}

// pollLoop 輪詢迴圈
func (b *Bridge) pollLoop() {
	ticker := time.NewTicker(b.config.Bridge.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.pollCtx.Done():
			return
		case <-ticker.C:
			b.poll()
		}
	}
}

// poll 讀取裝置狀態並發佈
func (b *Bridge) poll() {
	b.stats.PollCount.Add(1)
	if b.metrics != nil {
		b.metrics.IncPoll()
	}

	state, err := b.fancoil.Refresh()
	if err != nil {
		b.stats.PollErrors.Add(1)
		if b.metrics != nil {
			b.metrics.IncPollError()
		}
		b.logger.Error("輪詢失敗", zap.Error(err))

		if perr := b.publishAvailability(false); perr != nil {
			b.logger.Warn("發佈離線狀態失敗", zap.Error(perr))
		}
		return
	}

	if err := b.publishAvailability(true); err != nil {
		b.logger.Warn("發佈上線狀態失敗", zap.Error(err))
	}

	if err := b.publishState(state); err != nil {
		b.logger.Error("發佈狀態失敗", zap.Error(err))
		return
	}

	if b.metrics != nil {
		b.metrics.Observe(state)
	}

	b.logger.Debug("輪詢完成",
		zap.Float64("current_temp", state.CurrentTemp),
		zap.Float64("target_temp", state.TargetTemp),
		zap.String("mode", state.Mode.String()),
		zap.String("fan_mode", state.FanMode.String()),
	)
}

// statePayload 狀態主題的 JSON 結構
type statePayload struct {
	CurrentTemperature float64 `json:"current_temperature"`
	TargetTemperature  float64 `json:"target_temperature"`
	WaterTemperature   float64 `json:"water_temperature"`
	FanSpeed           uint16  `json:"fan_speed"`
	Mode               string  `json:"mode"`
	FanMode            string  `json:"fan_mode"`
	Timestamp          int64   `json:"ts"`
}

// publishState 發佈狀態 (retained)
func (b *Bridge) publishState(state ClimateState) error {
	payload := statePayload{
		CurrentTemperature: state.CurrentTemp,
		TargetTemperature:  state.TargetTemp,
		WaterTemperature:   state.WaterTemp,
		FanSpeed:           state.FanSpeed,
		Mode:               state.Mode.String(),
		FanMode:            state.FanMode.String(),
		Timestamp:          state.UpdatedAt.Unix(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化狀態失敗: %w", err)
	}

	return b.mqtt.Publish(StateTopic(b.config), data, 1, true)
}

// publishAvailability 發佈可用性 (retained)
func (b *Bridge) publishAvailability(online bool) error {
	payload := PayloadOffline
	if online {
		payload = PayloadOnline
	}
	if b.metrics != nil {
		b.metrics.SetAvailability(online)
	}
	return b.mqtt.Publish(AvailabilityTopic(b.config), []byte(payload), 1, true)
}

// publishDiscovery 發佈 HA discovery payload (retained)
func (b *Bridge) publishDiscovery() error {
	prefix := b.config.MQTT.DiscoveryPrefix
	unique := b.config.Bridge.DeviceID

	climate := NewClimateConfig(b.config)
	data, err := climate.Marshal()
	if err != nil {
		return fmt.Errorf("序列化 climate discovery 失敗: %w", err)
	}
	if err := b.mqtt.Publish(TopicClimateConfig(prefix, unique), data, 1, true); err != nil {
		return err
	}

	sensors := map[string]*SensorConfig{
		"water_temperature": NewWaterTempSensorConfig(b.config),
		"fan_speed":         NewFanSpeedSensorConfig(b.config),
	}
	for object, sensor := range sensors {
		data, err := sensor.Marshal()
		if err != nil {
			return fmt.Errorf("序列化 sensor discovery 失敗: %w", err)
		}
		if err := b.mqtt.Publish(TopicSensorConfig(prefix, unique, object), data, 1, true); err != nil {
			return err
		}
	}

	b.logger.Info("HA discovery 已發佈",
		zap.String("prefix", prefix),
		zap.String("unique_id", unique),
	)

	return nil
}

// commandHandler 建立命令主題的處理器
func (b *Bridge) commandHandler(kind string) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		payload := strings.TrimSpace(string(msg.Payload()))

		b.stats.CommandCount.Add(1)
		if b.metrics != nil {
			b.metrics.IncCommand()
		}

		b.logger.Info("收到命令",
			zap.String("kind", kind),
			zap.String("payload", payload),
		)

		if err := b.applyCommand(kind, payload); err != nil {
			b.stats.CommandErrors.Add(1)
			if b.metrics != nil {
				b.metrics.IncCommandError()
			}
			b.logger.Error("執行命令失敗",
				zap.String("kind", kind),
				zap.String("payload", payload),
				zap.Error(err),
			)
			return
		}

		// 立即輪詢讓平台看到新狀態
		b.poll()
	}
}

// applyCommand 將命令寫入裝置
func (b *Bridge) applyCommand(kind, payload string) error {
	switch kind {
	case "temperature":
		t, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return fmt.Errorf("無效的溫度 payload %q: %w", payload, err)
		}
		return b.fancoil.SetTargetTemperature(t)

	case "mode":
		mode, err := ParseHVACMode(payload)
		if err != nil {
			return err
		}
		return b.fancoil.SetMode(mode)

	case "fan_mode":
		mode, err := ParseFanMode(payload)
		if err != nil {
			return err
		}
		return b.fancoil.SetFanMode(mode)

	default:
		return fmt.Errorf("未知的命令類型: %q", kind)
	}
}

// StateTopic 狀態主題
func StateTopic(cfg *Config) string {
	return fmt.Sprintf("%s/%s/state", cfg.MQTT.BaseTopic, cfg.Bridge.DeviceID)
}

// AvailabilityTopic 可用性主題
func AvailabilityTopic(cfg *Config) string {
	return fmt.Sprintf("%s/%s/availability", cfg.MQTT.BaseTopic, cfg.Bridge.DeviceID)
}

// CommandTopic 命令主題
func CommandTopic(cfg *Config, kind string) string {
	return fmt.Sprintf("%s/%s/set/%s", cfg.MQTT.BaseTopic, cfg.Bridge.DeviceID, kind)
}
