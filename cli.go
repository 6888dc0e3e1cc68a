package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile   string
	logger    *zap.Logger
	appConfig *Config
)

// 優雅關閉的最長等待時間
const gracefulTimeout = 10 * time.Second

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "fancoil-bridge",
	Short: "Innova 風機盤管 Modbus/MQTT 橋接器",
	Long: `透過 Modbus RTU/TCP 輪詢 Innova 風機盤管，
將溫度、風扇與運轉模式發佈到 MQTT，並支援 Home Assistant discovery。`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 初始化日誌
		var err error
		logger, err = initLogger()
		if err != nil {
			return fmt.Errorf("初始化日誌失敗: %w", err)
		}

		// 載入配置 (除了 version 和 help 命令)
		if cmd.Name() != "version" && cmd.Name() != "help" && cmd.Name() != "generate" {
			appConfig, err = LoadConfig(cfgFile)
			if err != nil {
				// 配置載入失敗時使用預設值
				appConfig = DefaultConfig()
				if cfgFile != "" {
					logger.Warn("載入配置檔失敗，使用預設配置", zap.Error(err))
				}
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// startCmd 啟動命令
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "啟動橋接器",
	Long:  "連線風機盤管與 MQTT broker，開始輪詢與命令轉發。",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 覆蓋 CLI 參數
		applyModbusFlags(cmd)
		if broker, _ := cmd.Flags().GetString("broker"); broker != "" {
			appConfig.MQTT.BrokerURL = broker
		}
		if interval, _ := cmd.Flags().GetDuration("interval"); interval > 0 {
			appConfig.Bridge.PollInterval = interval
		}

		logger.Info("啟動橋接器",
			zap.String("device_id", appConfig.Bridge.DeviceID),
			zap.String("modbus_mode", appConfig.Modbus.Mode),
			zap.String("broker", appConfig.MQTT.BrokerURL),
		)

		// 建立 Modbus 連線與裝置
		conn, err := NewModbusConn(appConfig.Modbus, logger)
		if err != nil {
			return fmt.Errorf("建立 Modbus 連線失敗: %w", err)
		}
		defer conn.Close()

		fancoil := NewFancoil(conn, appConfig.Bridge, WithFancoilLogger(logger))

		// 建立 MQTT 連線 (遺囑發佈離線狀態)
		mqttClient, err := NewMQTTClient(appConfig.MQTT, AvailabilityTopic(appConfig), logger)
		if err != nil {
			return fmt.Errorf("連線 MQTT 失敗: %w", err)
		}
		defer mqttClient.Close(250)

		// 建立橋接器
		opts := []BridgeOption{WithLogger(logger)}

		var metrics *Metrics
		if appConfig.Metrics.Enabled {
			metrics = NewMetrics(logger)
			opts = append(opts, WithMetrics(metrics))
		}

		bridge := NewBridge(appConfig, fancoil, mqttClient, opts...)

		// 設置優雅關閉
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		// 啟動橋接器
		if err := bridge.Start(ctx); err != nil {
			return fmt.Errorf("啟動橋接器失敗: %w", err)
		}

		// 啟動指標伺服器
		if metrics != nil {
			ready := func() bool { return bridge.State() == BridgeStateRunning }
			if err := metrics.Start(appConfig.Metrics.Endpoint, appConfig.Metrics.Port, ready); err != nil {
				logger.Warn("啟動指標伺服器失敗", zap.Error(err))
			}
		}

		// 等待信號
		sig := <-sigChan
		logger.Info("收到關閉信號", zap.String("signal", sig.String()))

		// 優雅關閉
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulTimeout)
		defer shutdownCancel()

		if err := bridge.Stop(shutdownCtx); err != nil {
			logger.Error("關閉橋接器失敗", zap.Error(err))
			return err
		}

		logger.Info("橋接器已停止")
		return nil
	},
}

// statusCmd 狀態命令 (一次性讀取)
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "讀取風機盤管當前狀態",
	Long:  "連線風機盤管，讀取並顯示解碼後的氣候狀態。",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyModbusFlags(cmd)

		fancoil, conn, err := dialFancoil()
		if err != nil {
			return err
		}
		defer conn.Close()

		state, err := fancoil.Refresh()
		if err != nil {
			return fmt.Errorf("讀取狀態失敗: %w", err)
		}

		fmt.Printf("環境溫度: %.1f °C\n", state.CurrentTemp)
		fmt.Printf("目標溫度: %.1f °C\n", state.TargetTemp)
		fmt.Printf("水溫:     %.0f °C\n", state.WaterTemp)
		fmt.Printf("風扇轉速: %d\n", state.FanSpeed)
		fmt.Printf("運轉模式: %s\n", state.Mode)
		fmt.Printf("風扇模式: %s\n", state.FanMode)
		return nil
	},
}

// setCmd 設定命令組
var setCmd = &cobra.Command{
	Use:   "set",
	Short: "寫入風機盤管設定",
	Long:  "直接寫入目標溫度、運轉模式或風扇模式。",
}

// setTempCmd 設定目標溫度
var setTempCmd = &cobra.Command{
	Use:   "temp [value]",
	Short: "設定目標溫度 (°C)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyModbusFlags(cmd)

		var t float64
		if _, err := fmt.Sscanf(args[0], "%f", &t); err != nil {
			return fmt.Errorf("無效的溫度: %q", args[0])
		}

		fancoil, conn, err := dialFancoil()
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := fancoil.SetTargetTemperature(t); err != nil {
			return err
		}

		fmt.Printf("目標溫度已設為 %.1f °C\n", t)
		return nil
	},
}

// setModeCmd 設定運轉模式
var setModeCmd = &cobra.Command{
	Use:   "mode [off|heat|cool]",
	Short: "設定運轉模式",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyModbusFlags(cmd)

		mode, err := ParseHVACMode(args[0])
		if err != nil {
			return err
		}

		fancoil, conn, err := dialFancoil()
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := fancoil.SetMode(mode); err != nil {
			return err
		}

		fmt.Printf("運轉模式已設為 %s\n", mode)
		return nil
	},
}

// setFanCmd 設定風扇模式
var setFanCmd = &cobra.Command{
	Use:   "fan [auto|silent|night|high]",
	Short: "設定風扇模式",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyModbusFlags(cmd)

		mode, err := ParseFanMode(args[0])
		if err != nil {
			return err
		}

		fancoil, conn, err := dialFancoil()
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := fancoil.SetFanMode(mode); err != nil {
			return err
		}

		fmt.Printf("風扇模式已設為 %s\n", mode)
		return nil
	},
}

// configCmd 配置命令組
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "配置管理命令",
	Long:  "管理配置檔。",
}

// configValidateCmd 驗證配置
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "驗證配置檔",
	Long:  "驗證指定的配置檔是否有效。",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("配置驗證失敗: %w", err)
		}

		fmt.Println("配置驗證通過")
		fmt.Printf("  Modbus: %s", cfg.Modbus.Mode)
		if cfg.Modbus.Mode == "tcp" {
			fmt.Printf(" (%s)\n", cfg.Modbus.TCPAddress)
		} else {
			fmt.Printf(" (%s)\n", cfg.Modbus.Device)
		}
		fmt.Printf("  Slave: %d\n", cfg.Modbus.SlaveID)
		fmt.Printf("  Broker: %s\n", cfg.MQTT.BrokerURL)
		fmt.Printf("  Device ID: %s\n", cfg.Bridge.DeviceID)
		fmt.Printf("  Poll Interval: %v\n", cfg.Bridge.PollInterval)
		return nil
	},
}

// configGenerateCmd 生成配置
var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "生成範例配置",
	Long:  "生成範例配置檔。",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = "config.json"
		}

		cfg := DefaultConfig()

		if err := cfg.SaveConfig(output); err != nil {
			return fmt.Errorf("生成配置失敗: %w", err)
		}

		fmt.Printf("範例配置已生成: %s\n", output)
		return nil
	},
}

// versionCmd 版本命令
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "顯示版本資訊",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fancoil-bridge version %s\n", Version)
		fmt.Printf("  Build: %s\n", BuildTime)
		fmt.Printf("  Commit: %s\n", GitCommit)
	},
}

func init() {
	// 全域 flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置檔路徑")

	// Modbus 覆蓋 flags (start/status/set 共用)
	for _, cmd := range []*cobra.Command{startCmd, statusCmd, setTempCmd, setModeCmd, setFanCmd} {
		cmd.Flags().String("tcp", "", "Modbus TCP 位址 (host:port)")
		cmd.Flags().StringP("device", "d", "", "Modbus RTU 串列埠裝置")
		cmd.Flags().IntP("slave", "s", 0, "Modbus Slave 位址")
	}

	// start 命令 flags
	startCmd.Flags().StringP("broker", "b", "", "MQTT broker URL")
	startCmd.Flags().DurationP("interval", "i", 0, "輪詢間隔")

	// config 命令 flags
	configGenerateCmd.Flags().StringP("output", "o", "config.json", "輸出檔案路徑")

	// 組裝命令樹
	setCmd.AddCommand(setTempCmd, setModeCmd, setFanCmd)
	configCmd.AddCommand(configValidateCmd, configGenerateCmd)

	rootCmd.AddCommand(
		startCmd,
		statusCmd,
		setCmd,
		configCmd,
		versionCmd,
	)
}

// applyModbusFlags 將共用的 Modbus 覆蓋 flags 套用到配置
func applyModbusFlags(cmd *cobra.Command) {
	if tcp, _ := cmd.Flags().GetString("tcp"); tcp != "" {
		appConfig.Modbus.Mode = "tcp"
		appConfig.Modbus.TCPAddress = tcp
	}
	if device, _ := cmd.Flags().GetString("device"); device != "" {
		appConfig.Modbus.Mode = "rtu"
		appConfig.Modbus.Device = device
	}
	if slave, _ := cmd.Flags().GetInt("slave"); slave > 0 {
		appConfig.Modbus.SlaveID = slave
	}
}

// dialFancoil 建立 Modbus 連線與 Fancoil (一次性命令共用)
func dialFancoil() (*Fancoil, *ModbusConn, error) {
	conn, err := NewModbusConn(appConfig.Modbus, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("建立 Modbus 連線失敗: %w", err)
	}

	fancoil := NewFancoil(conn, appConfig.Bridge, WithFancoilLogger(logger))
	return fancoil, conn, nil
}

func initLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// Execute 執行 CLI
func Execute() error {
	return rootCmd.Execute()
}
