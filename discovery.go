package main

import (
	"encoding/json"
	"fmt"
)

// Home Assistant MQTT Discovery payload 定義
// https://www.home-assistant.io/integrations/mqtt/#mqtt-discovery

// Device HA 裝置資訊區塊
type Device struct {
	Identifiers  []string `json:"identifiers,omitempty"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
}

// ClimateConfig climate 實體的 discovery 配置
type ClimateConfig struct {
	Name                 string   `json:"name"`
	UniqueID             string   `json:"unique_id"`
	Modes                []string `json:"modes"`
	FanModes             []string `json:"fan_modes"`
	CurrentTempTopic     string   `json:"current_temperature_topic"`
	CurrentTempTpl       string   `json:"current_temperature_template"`
	TempStateTopic       string   `json:"temperature_state_topic"`
	TempStateTpl         string   `json:"temperature_state_template"`
	TempCommandTopic     string   `json:"temperature_command_topic"`
	ModeStateTopic       string   `json:"mode_state_topic"`
	ModeStateTpl         string   `json:"mode_state_template"`
	ModeCommandTopic     string   `json:"mode_command_topic"`
	FanModeStateTopic    string   `json:"fan_mode_state_topic"`
	FanModeStateTpl      string   `json:"fan_mode_state_template"`
	FanModeCommandTopic  string   `json:"fan_mode_command_topic"`
	AvailabilityTopic    string   `json:"availability_topic"`
	MinTemp              float64  `json:"min_temp"`
	MaxTemp              float64  `json:"max_temp"`
	TempStep             float64  `json:"temp_step"`
	TemperatureUnit      string   `json:"temperature_unit"`
	Device               *Device  `json:"device,omitempty"`
}

// SensorConfig sensor 實體的 discovery 配置 (水溫、風扇轉速)
type SensorConfig struct {
	Name              string  `json:"name"`
	UniqueID          string  `json:"unique_id"`
	StateTopic        string  `json:"state_topic"`
	ValueTpl          string  `json:"value_template,omitempty"`
	DeviceClass       string  `json:"device_class,omitempty"`
	UnitOfMeas        string  `json:"unit_of_measurement,omitempty"`
	AvailabilityTopic string  `json:"availability_topic,omitempty"`
	Device            *Device `json:"device,omitempty"`
}

// NewClimateConfig 根據配置組裝 climate discovery payload
func NewClimateConfig(cfg *Config) *ClimateConfig {
	state := StateTopic(cfg)

	modes := make([]string, 0, 3)
	for _, m := range ListHVACModes() {
		modes = append(modes, m.String())
	}

	fanModes := make([]string, 0, 4)
	for _, m := range ListFanModes() {
		fanModes = append(fanModes, m.String())
	}

	return &ClimateConfig{
		Name:                cfg.Bridge.Name,
		UniqueID:            cfg.Bridge.DeviceID,
		Modes:               modes,
		FanModes:            fanModes,
		CurrentTempTopic:    state,
		CurrentTempTpl:      "{{ value_json.current_temperature }}",
		TempStateTopic:      state,
		TempStateTpl:        "{{ value_json.target_temperature }}",
		TempCommandTopic:    CommandTopic(cfg, "temperature"),
		ModeStateTopic:      state,
		ModeStateTpl:        "{{ value_json.mode }}",
		ModeCommandTopic:    CommandTopic(cfg, "mode"),
		FanModeStateTopic:   state,
		FanModeStateTpl:     "{{ value_json.fan_mode }}",
		FanModeCommandTopic: CommandTopic(cfg, "fan_mode"),
		AvailabilityTopic:   AvailabilityTopic(cfg),
		MinTemp:             cfg.Bridge.MinTemp,
		MaxTemp:             cfg.Bridge.MaxTemp,
		TempStep:            0.5,
		TemperatureUnit:     "C",
		Device:              NewDevice(cfg),
	}
}

// NewWaterTempSensorConfig 水溫 sensor discovery payload
func NewWaterTempSensorConfig(cfg *Config) *SensorConfig {
	return &SensorConfig{
		Name:              fmt.Sprintf("%s water temperature", cfg.Bridge.Name),
		UniqueID:          cfg.Bridge.DeviceID + "_water_temperature",
		StateTopic:        StateTopic(cfg),
		ValueTpl:          "{{ value_json.water_temperature }}",
		DeviceClass:       "temperature",
		UnitOfMeas:        "°C",
		AvailabilityTopic: AvailabilityTopic(cfg),
		Device:            NewDevice(cfg),
	}
}

// NewFanSpeedSensorConfig 風扇轉速 sensor discovery payload
func NewFanSpeedSensorConfig(cfg *Config) *SensorConfig {
	return &SensorConfig{
		Name:              fmt.Sprintf("%s fan speed", cfg.Bridge.Name),
		UniqueID:          cfg.Bridge.DeviceID + "_fan_speed",
		StateTopic:        StateTopic(cfg),
		ValueTpl:          "{{ value_json.fan_speed }}",
		AvailabilityTopic: AvailabilityTopic(cfg),
		Device:            NewDevice(cfg),
	}
}

// NewDevice HA 裝置資訊
func NewDevice(cfg *Config) *Device {
	return &Device{
		Identifiers:  []string{cfg.Bridge.DeviceID},
		Manufacturer: "Innova",
		Model:        "Fancoil",
		Name:         cfg.Bridge.Name,
	}
}

// Marshal 序列化 discovery payload
func (c *ClimateConfig) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Marshal 序列化 discovery payload
func (c *SensorConfig) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// TopicClimateConfig climate discovery 主題
func TopicClimateConfig(prefix, unique string) string {
	return fmt.Sprintf("%s/climate/%s/config", prefix, unique)
}

// TopicSensorConfig sensor discovery 主題
func TopicSensorConfig(prefix, unique, object string) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", prefix, unique, object)
}
