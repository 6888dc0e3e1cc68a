package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config 全域配置
type Config struct {
	Modbus  ModbusConfig  `json:"modbus" mapstructure:"modbus"`
	Bridge  BridgeConfig  `json:"bridge" mapstructure:"bridge"`
	MQTT    MQTTConfig    `json:"mqtt" mapstructure:"mqtt"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ModbusConfig Modbus 連線配置
type ModbusConfig struct {
	Mode       string        `json:"mode" mapstructure:"mode"` // "rtu" 或 "tcp"
	Device     string        `json:"device" mapstructure:"device"`
	BaudRate   int           `json:"baud_rate" mapstructure:"baud_rate"`
	DataBits   int           `json:"data_bits" mapstructure:"data_bits"`
	Parity     string        `json:"parity" mapstructure:"parity"` // "N","E","O"
	StopBits   int           `json:"stop_bits" mapstructure:"stop_bits"`
	TCPAddress string        `json:"tcp_address" mapstructure:"tcp_address"`
	SlaveID    int           `json:"slave_id" mapstructure:"slave_id"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
}

// BridgeConfig 橋接器配置
type BridgeConfig struct {
	DeviceID     string        `json:"device_id" mapstructure:"device_id"`
	Name         string        `json:"name" mapstructure:"name"`
	PollInterval time.Duration `json:"poll_interval" mapstructure:"poll_interval"`
	MinTemp      float64       `json:"min_temp" mapstructure:"min_temp"`
	MaxTemp      float64       `json:"max_temp" mapstructure:"max_temp"`
}

// MQTTConfig MQTT 連線配置
type MQTTConfig struct {
	BrokerURL       string `json:"broker_url" mapstructure:"broker_url"`
	ClientID        string `json:"client_id" mapstructure:"client_id"`
	Username        string `json:"username" mapstructure:"username"`
	Password        string `json:"password" mapstructure:"password"`
	TLS             bool   `json:"tls" mapstructure:"tls"`
	BaseTopic       string `json:"base_topic" mapstructure:"base_topic"`
	DiscoveryPrefix string `json:"discovery_prefix" mapstructure:"discovery_prefix"`
	Discovery       bool   `json:"discovery" mapstructure:"discovery"`
}

// MetricsConfig 指標配置
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`
	Port     int    `json:"port" mapstructure:"port"`
}

// LoggingConfig 日誌配置
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	Format     string `json:"format" mapstructure:"format"`
	OutputPath string `json:"output_path" mapstructure:"output_path"`
}

// DefaultConfig 返回預設配置
func DefaultConfig() *Config {
	return &Config{
		Modbus: ModbusConfig{
			Mode:       "rtu",
			Device:     "/dev/ttyUSB0",
			BaudRate:   9600,
			DataBits:   8,
			Parity:     "N",
			StopBits:   1,
			TCPAddress: "127.0.0.1:502",
			SlaveID:    1,
			Timeout:    500 * time.Millisecond,
		},
		Bridge: BridgeConfig{
			DeviceID:     "innova_fancoil",
			Name:         "Fancoil",
			PollInterval: 30 * time.Second,
			MinTemp:      AbsoluteMinTemp,
			MaxTemp:      AbsoluteMaxTemp,
		},
		MQTT: MQTTConfig{
			BrokerURL:       "tcp://127.0.0.1:1883",
			ClientID:        "fancoil-bridge",
			BaseTopic:       "fancoil",
			DiscoveryPrefix: "homeassistant",
			Discovery:       true,
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
			Port:     9090,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
	}
}

// LoadConfig 載入配置檔
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("json")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/fancoil-bridge/")
		viper.AddConfigPath("$HOME/.fancoil-bridge/")
	}

	// 環境變數覆蓋
	viper.SetEnvPrefix("FANCOIL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("讀取配置檔失敗: %w", err)
		}
		// 配置檔不存在，使用預設值
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置失敗: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置驗證失敗: %w", err)
	}

	return cfg, nil
}

// Validate 驗證配置
func (c *Config) Validate() error {
	switch c.Modbus.Mode {
	case "rtu":
		if c.Modbus.Device == "" {
			return fmt.Errorf("RTU 模式必須指定串列埠裝置")
		}
		switch c.Modbus.Parity {
		case "N", "E", "O":
		default:
			return fmt.Errorf("無效的同位檢查: %q", c.Modbus.Parity)
		}
	case "tcp":
		if c.Modbus.TCPAddress == "" {
			return fmt.Errorf("TCP 模式必須指定位址")
		}
	default:
		return fmt.Errorf("無效的 Modbus 模式: %q", c.Modbus.Mode)
	}

	if c.Modbus.SlaveID < 0 || c.Modbus.SlaveID > 254 {
		return fmt.Errorf("無效的 Slave 位址: %d (範圍 0-254)", c.Modbus.SlaveID)
	}

	if c.Bridge.DeviceID == "" {
		return fmt.Errorf("必須指定 device_id")
	}

	if c.Bridge.PollInterval <= 0 {
		return fmt.Errorf("輪詢間隔必須大於 0")
	}

	if c.Bridge.MinTemp < AbsoluteMinTemp || c.Bridge.MinTemp > AbsoluteMaxTemp {
		return fmt.Errorf("min_temp %.1f 超出範圍 [%.0f, %.0f]", c.Bridge.MinTemp, AbsoluteMinTemp, AbsoluteMaxTemp)
	}

	if c.Bridge.MaxTemp < AbsoluteMinTemp || c.Bridge.MaxTemp > AbsoluteMaxTemp {
		return fmt.Errorf("max_temp %.1f 超出範圍 [%.0f, %.0f]", c.Bridge.MaxTemp, AbsoluteMinTemp, AbsoluteMaxTemp)
	}

	if c.Bridge.MinTemp >= c.Bridge.MaxTemp {
		return fmt.Errorf("min_temp 必須小於 max_temp")
	}

	if c.MQTT.BrokerURL == "" {
		return fmt.Errorf("必須指定 MQTT broker URL")
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("無效的指標埠號: %d", c.Metrics.Port)
	}

	return nil
}

// SaveConfig 儲存配置到檔案
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失敗: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("寫入配置檔失敗: %w", err)
	}

	return nil
}
