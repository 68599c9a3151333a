package config

import (
	"slices"

	"github.com/justapithecus/snapfeed/adapter"
	"github.com/justapithecus/snapfeed/adapter/aio"
	"github.com/justapithecus/snapfeed/adapter/mqtt"
	"github.com/justapithecus/snapfeed/camera"
	"github.com/justapithecus/snapfeed/runtime"
)

// Effective returns c with every unset value replaced by the default the
// run command would use. Mode and DeviceID are left as-is; the run
// command resolves them.
func (c Config) Effective() Config {
	if c.Interval.Duration == 0 {
		c.Interval.Duration = runtime.DefaultInterval
	}
	c.Sizing = sizingFrom(c.Sizing.Policy())

	if c.Camera.Driver == "" {
		c.Camera.Driver = string(camera.DriverCommand)
	}
	if c.Camera.Driver == string(camera.DriverCommand) {
		if len(c.Camera.Command) == 0 {
			c.Camera.Command = slices.Clone(camera.DefaultCommand)
		}
		if c.Camera.Timeout.Duration == 0 {
			c.Camera.Timeout.Duration = camera.DefaultCommandTimeout
		}
	}

	if c.HTTP.BaseURL == "" {
		c.HTTP.BaseURL = aio.DefaultBaseURL
	}
	if c.HTTP.Feed == "" {
		c.HTTP.Feed = adapter.DefaultFeed
	}

	if c.Publish.Broker == "" {
		c.Publish.Broker = BrokerMQTT
	}
	if c.Publish.URL == "" && c.Publish.Broker == BrokerMQTT {
		c.Publish.URL = mqtt.DefaultBroker
	}
	if c.Publish.Topic == "" && c.Account.Username != "" {
		c.Publish.Topic = adapter.FeedTopic(c.Account.Username, adapter.DefaultFeed)
	}
	return c
}
