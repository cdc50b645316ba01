package mqtt

import "github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/config"

// Topics provides builders for the simulator's fixed MQTT topics. The
// voltage topic is configurable and comes from simulation.topic.
//
//	topics := mqtt.Topics{}
//	topics.Status() // "power/cigre_mv/status"
type Topics struct{}

// Status returns the retained online/offline status topic. The broker
// publishes the Last Will here if the simulator drops off.
//
// Example: power/cigre_mv/status
func (Topics) Status() string {
	return config.TopicPrefix + "/status"
}
