package main

import (
	"crypto/tls"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const mqttTokenTimeout = 10 * time.Second

// Publisher Bridge 所需的最小 MQTT 介面
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retain bool) error
	Subscribe(topic string, qos byte, cb mqtt.MessageHandler) error
}

// MQTTClient paho 客戶端包裝
type MQTTClient struct {
	c      mqtt.Client
	logger *zap.Logger
}

// NewMQTTClient 連線到 MQTT broker
// willTopic 設定遺囑訊息：斷線時 broker 代為發佈 offline
func NewMQTTClient(cfg MQTTConfig, willTopic string, logger *zap.Logger) (*MQTTClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetKeepAlive(30 * time.Second).
		SetConnectTimeout(5 * time.Second).
		SetPingTimeout(3 * time.Second).
		SetAutoReconnect(true).
		SetOrderMatters(false)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	if willTopic != "" {
		opts.SetWill(willTopic, PayloadOffline, 1, true)
	}

	client := mqtt.NewClient(opts)
	t := client.Connect()
	if ok := t.WaitTimeout(mqttTokenTimeout); !ok {
		return nil, fmt.Errorf("連線 MQTT broker 逾時: %s", cfg.BrokerURL)
	}
	if t.Error() != nil {
		return nil, fmt.Errorf("連線 MQTT broker 失敗: %w", t.Error())
	}

	logger.Info("MQTT 已連線",
		zap.String("broker", cfg.BrokerURL),
		zap.String("client_id", cfg.ClientID),
	)

	return &MQTTClient{c: client, logger: logger}, nil
}

// Publish 發佈訊息
func (m *MQTTClient) Publish(topic string, payload []byte, qos byte, retain bool) error {
	t := m.c.Publish(topic, qos, retain, payload)
	if ok := t.WaitTimeout(mqttTokenTimeout); !ok {
		return fmt.Errorf("發佈到 %s 逾時", topic)
	}
	return t.Error()
}

// Subscribe 訂閱主題
func (m *MQTTClient) Subscribe(topic string, qos byte, cb mqtt.MessageHandler) error {
	t := m.c.Subscribe(topic, qos, cb)
	if ok := t.WaitTimeout(mqttTokenTimeout); !ok {
		return fmt.Errorf("訂閱 %s 逾時", topic)
	}
	return t.Error()
}

// Close 關閉連線
func (m *MQTTClient) Close(quiesce uint) {
	if m.c.IsConnectionOpen() {
		m.c.Disconnect(quiesce)
	}
}
