package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics Prometheus 指標集
type Metrics struct {
	registry *prometheus.Registry

	// 氣候狀態
	currentTemp  prometheus.Gauge
	targetTemp   prometheus.Gauge
	waterTemp    prometheus.Gauge
	fanSpeed     prometheus.Gauge
	hvacMode     *prometheus.GaugeVec
	fanMode      *prometheus.GaugeVec
	availability prometheus.Gauge

	// 請求統計
	pollsTotal         prometheus.Counter
	pollErrorsTotal    prometheus.Counter
	commandsTotal      prometheus.Counter
	commandErrorsTotal prometheus.Counter

	logger *zap.Logger
}

// NewMetrics 建立指標集
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		currentTemp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fancoil_current_temperature_celsius",
			Help: "Current ambient temperature reported by the fancoil",
		}),
		targetTemp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fancoil_target_temperature_celsius",
			Help: "Target temperature setpoint",
		}),
		waterTemp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fancoil_water_temperature_celsius",
			Help: "Water loop temperature",
		}),
		fanSpeed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fancoil_fan_speed",
			Help: "Actual fan speed",
		}),
		hvacMode: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fancoil_hvac_mode",
			Help: "Active HVAC mode (1 = active)",
		}, []string{"mode"}),
		fanMode: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fancoil_fan_mode",
			Help: "Active fan mode (1 = active)",
		}, []string{"mode"}),
		availability: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fancoil_available",
			Help: "Whether the fancoil responded to the last poll (1 = online)",
		}),
		pollsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fancoil_polls_total",
			Help: "Total number of poll cycles",
		}),
		pollErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fancoil_poll_errors_total",
			Help: "Total number of failed poll cycles",
		}),
		commandsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fancoil_commands_total",
			Help: "Total number of received commands",
		}),
		commandErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fancoil_command_errors_total",
			Help: "Total number of failed commands",
		}),
		logger: logger,
	}
}

// Observe 記錄一次成功輪詢的氣候狀態
func (m *Metrics) Observe(state ClimateState) {
	m.currentTemp.Set(state.CurrentTemp)
	m.targetTemp.Set(state.TargetTemp)
	m.waterTemp.Set(state.WaterTemp)
	m.fanSpeed.Set(float64(state.FanSpeed))

	for _, mode := range ListHVACModes() {
		v := 0.0
		if mode == state.Mode {
			v = 1.0
		}
		m.hvacMode.WithLabelValues(mode.String()).Set(v)
	}

	for _, mode := range ListFanModes() {
		v := 0.0
		if mode == state.FanMode {
			v = 1.0
		}
		m.fanMode.WithLabelValues(mode.String()).Set(v)
	}
}

// SetAvailability 記錄裝置可用性
func (m *Metrics) SetAvailability(online bool) {
	if online {
		m.availability.Set(1)
	} else {
		m.availability.Set(0)
	}
}

// IncPoll 累計輪詢次數
func (m *Metrics) IncPoll() { m.pollsTotal.Inc() }

// IncPollError 累計輪詢失敗次數
func (m *Metrics) IncPollError() { m.pollErrorsTotal.Inc() }

// IncCommand 累計命令次數
func (m *Metrics) IncCommand() { m.commandsTotal.Inc() }

// IncCommandError 累計命令失敗次數
func (m *Metrics) IncCommandError() { m.commandErrorsTotal.Inc() }

// Start 啟動指標 HTTP 伺服器
func (m *Metrics) Start(endpoint string, port int, ready func() bool) error {
	mux := http.NewServeMux()
	mux.Handle(endpoint, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", m.handleHealth)
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		m.handleReady(w, r, ready)
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("啟動指標伺服器",
		zap.String("addr", addr),
		zap.String("endpoint", endpoint),
	)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("指標伺服器錯誤", zap.Error(err))
		}
	}()

	return nil
}

// handleHealth 處理 /health 請求
func (m *Metrics) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// handleReady 處理 /ready 請求
func (m *Metrics) handleReady(w http.ResponseWriter, r *http.Request, ready func() bool) {
	if ready == nil || !ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}
