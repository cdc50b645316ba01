package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-gridsim/internal/simulation"
)

// watchOptions are the flags of the watch command.
type watchOptions struct {
	Topic string
	Count int
}

// watch subscribes to the voltage topic and prints one summary line per
// received snapshot until ctx is done or Count snapshots were printed.
func watch(ctx context.Context, configPath string, opts watchOptions, w io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)

	topic := opts.Topic
	if topic == "" {
		topic = cfg.Simulation.Topic
	}

	// A distinct client id keeps the simulator's session intact.
	mqttCfg := cfg.MQTT
	mqttCfg.Broker.ClientID = fmt.Sprintf("%s-watch-%s", cfg.MQTT.Broker.ClientID, uuid.NewString()[:8])

	client, err := mqtt.ConnectSubscriber(mqttCfg)
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck // Nothing to do on close failure
	client.SetLogger(log)

	done := make(chan struct{})
	var (
		mu       sync.Mutex
		received int
		once     sync.Once
	)

	err = client.Subscribe(topic, byte(cfg.MQTT.QoS), func(topic string, payload []byte) error { //nolint:gosec // validated to 0-2
		line, err := summarisePayload(time.Now(), payload)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", topic, err)
		}

		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, line)
		received++
		if opts.Count > 0 && received >= opts.Count {
			once.Do(func() { close(done) })
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info("watching", "topic", topic, "broker", cfg.BrokerAddress())

	select {
	case <-ctx.Done():
	case <-done:
	}
	return nil
}

// summarisePayload renders a published payload as one line:
// time, bus count, voltage range and the bus with the lowest voltage.
func summarisePayload(at time.Time, payload []byte) (string, error) {
	var readings []simulation.VoltageReading
	if err := json.Unmarshal(payload, &readings); err != nil {
		return "", err
	}
	if len(readings) == 0 {
		return fmt.Sprintf("%s  0 buses", at.Format(time.TimeOnly)), nil
	}

	minPU, maxPU := math.Inf(1), math.Inf(-1)
	weakest := ""
	for _, r := range readings {
		if r.VmPU < minPU {
			minPU, weakest = r.VmPU, r.Name
		}
		maxPU = math.Max(maxPU, r.VmPU)
	}

	return fmt.Sprintf("%s  %d buses  vm_pu %.4f..%.4f  lowest %s",
		at.Format(time.TimeOnly), len(readings), minPU, maxPU, weakest), nil
}
