package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClimateDiscoveryPayload 測試 climate discovery payload
func TestClimateDiscoveryPayload(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bridge.DeviceID = "fc1"
	cfg.Bridge.Name = "Living Room"
	cfg.Bridge.MinTemp = 16.0
	cfg.Bridge.MaxTemp = 28.0

	payload := NewClimateConfig(cfg)
	data, err := payload.Marshal()
	require.NoError(t, err, "序列化不應該失敗")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded), "payload 應該是合法 JSON")

	assert.Equal(t, "Living Room", decoded["name"], "名稱應該來自配置")
	assert.Equal(t, "fc1", decoded["unique_id"], "unique_id 應該是裝置 ID")
	assert.ElementsMatch(t, []interface{}{"off", "heat", "cool"}, decoded["modes"], "運轉模式列表")
	assert.ElementsMatch(t, []interface{}{"auto", "silent", "night", "high"}, decoded["fan_modes"], "風扇模式列表")
	assert.Equal(t, "fancoil/fc1/state", decoded["current_temperature_topic"], "狀態主題")
	assert.Equal(t, "fancoil/fc1/set/temperature", decoded["temperature_command_topic"], "溫度命令主題")
	assert.Equal(t, "fancoil/fc1/set/mode", decoded["mode_command_topic"], "模式命令主題")
	assert.Equal(t, "fancoil/fc1/set/fan_mode", decoded["fan_mode_command_topic"], "風扇命令主題")
	assert.Equal(t, "fancoil/fc1/availability", decoded["availability_topic"], "可用性主題")
	assert.Equal(t, 16.0, decoded["min_temp"], "最低溫度")
	assert.Equal(t, 28.0, decoded["max_temp"], "最高溫度")
	assert.Equal(t, 0.5, decoded["temp_step"], "溫度步進")
	assert.Equal(t, "C", decoded["temperature_unit"], "溫度單位")

	device, ok := decoded["device"].(map[string]interface{})
	require.True(t, ok, "應該包含裝置區塊")
	assert.Equal(t, "Innova", device["manufacturer"], "製造商")
}

// TestSensorDiscoveryPayloads 測試 sensor discovery payload
func TestSensorDiscoveryPayloads(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bridge.DeviceID = "fc1"

	water := NewWaterTempSensorConfig(cfg)
	data, err := water.Marshal()
	require.NoError(t, err, "序列化不應該失敗")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded), "payload 應該是合法 JSON")
	assert.Equal(t, "fc1_water_temperature", decoded["unique_id"], "水溫 unique_id")
	assert.Equal(t, "temperature", decoded["device_class"], "水溫 device_class")
	assert.Equal(t, "{{ value_json.water_temperature }}", decoded["value_template"], "水溫模板")

	fan := NewFanSpeedSensorConfig(cfg)
	data, err = fan.Marshal()
	require.NoError(t, err, "序列化不應該失敗")

	require.NoError(t, json.Unmarshal(data, &decoded), "payload 應該是合法 JSON")
	assert.Equal(t, "fc1_fan_speed", decoded["unique_id"], "風扇轉速 unique_id")
	assert.Equal(t, "{{ value_json.fan_speed }}", decoded["value_template"], "風扇轉速模板")
}

// TestDiscoveryTopics 測試 discovery 主題組裝
func TestDiscoveryTopics(t *testing.T) {
	assert.Equal(t, "homeassistant/climate/fc1/config",
		TopicClimateConfig("homeassistant", "fc1"), "climate 主題")
	assert.Equal(t, "homeassistant/sensor/fc1/water_temperature/config",
		TopicSensorConfig("homeassistant", "fc1", "water_temperature"), "sensor 主題")
}

// TestBridgeTopics 測試狀態與命令主題組裝
func TestBridgeTopics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MQTT.BaseTopic = "home/fancoil"
	cfg.Bridge.DeviceID = "fc1"

	assert.Equal(t, "home/fancoil/fc1/state", StateTopic(cfg), "狀態主題")
	assert.Equal(t, "home/fancoil/fc1/availability", AvailabilityTopic(cfg), "可用性主題")
	assert.Equal(t, "home/fancoil/fc1/set/temperature", CommandTopic(cfg, "temperature"), "命令主題")
}
