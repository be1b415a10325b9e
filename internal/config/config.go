package config

import (
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/LeonardoBeccarini/model4916_decoder/pkg/broker"
)

// Config defines the configuration shared by the services.
type Config struct {
	General struct {
		LogLevel int  `mapstructure:"log_level"`
		LogJSON  bool `mapstructure:"log_json"`
	} `mapstructure:"general"`

	MQTT broker.Config `mapstructure:"mqtt"`

	Decoder struct {
		UplinkTopics         []string `mapstructure:"uplink_topics"`
		DecodedTopicTemplate string   `mapstructure:"decoded_topic_template"`
		NodeType             string   `mapstructure:"node_type"`
		PlatformType         string   `mapstructure:"platform_type"`
		RadioType            string   `mapstructure:"radio_type"`
		ApplicationName      string   `mapstructure:"application_name"`
	} `mapstructure:"decoder"`

	Dedup struct {
		Backend    string        `mapstructure:"backend"`
		TTL        time.Duration `mapstructure:"ttl"`
		MaxEntries int           `mapstructure:"max_entries"`
	} `mapstructure:"dedup"`

	Redis struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"redis"`

	Influx struct {
		URL           string        `mapstructure:"url"`
		Token         string        `mapstructure:"token"`
		Org           string        `mapstructure:"org"`
		Bucket        string        `mapstructure:"bucket"`
		Measurement   string        `mapstructure:"measurement"`
		SubTopic      string        `mapstructure:"sub_topic"`
		BatchSize     int           `mapstructure:"batch_size"`
		FlushInterval time.Duration `mapstructure:"flush_interval"`
	} `mapstructure:"influx"`

	Breaker struct {
		Failures int           `mapstructure:"failures"`
		OpenFor  time.Duration `mapstructure:"open_for"`
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"breaker"`

	Aggregator struct {
		SubTopic         string        `mapstructure:"sub_topic"`
		PubTopicTemplate string        `mapstructure:"pub_topic_template"`
		Interval         time.Duration `mapstructure:"interval"`
	} `mapstructure:"aggregator"`

	HTTP struct {
		Bind string `mapstructure:"bind"`
	} `mapstructure:"http"`

	GRPC struct {
		Bind string `mapstructure:"bind"`
	} `mapstructure:"grpc"`
}

// SetDefaults registers the default of every key on v. Environment
// overrides only apply to keys viper knows about, so every key needs one.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", 4)
	v.SetDefault("general.log_json", false)

	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.user", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.clean_session", false)
	v.SetDefault("mqtt.connect_retries", 5)
	v.SetDefault("mqtt.connect_max_elapsed", 10*time.Second)

	v.SetDefault("decoder.uplink_topics", []string{
		"v3/+/devices/+/up",
		"+/devices/+/up",
		"application/+/device/+/event/up",
	})
	v.SetDefault("decoder.decoded_topic_template", "sensor/decoded/{device}")
	v.SetDefault("decoder.node_type", "Model 4916")
	v.SetDefault("decoder.platform_type", "Model 4916")
	v.SetDefault("decoder.radio_type", "Murata")
	v.SetDefault("decoder.application_name", "MultiGas sensor")

	v.SetDefault("dedup.backend", "memory")
	v.SetDefault("dedup.ttl", 10*time.Minute)
	v.SetDefault("dedup.max_entries", 20000)

	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "mcci")
	v.SetDefault("influx.bucket", "model4916")
	v.SetDefault("influx.measurement", "environment")
	v.SetDefault("influx.sub_topic", "sensor/decoded/#")
	v.SetDefault("influx.batch_size", 10)
	v.SetDefault("influx.flush_interval", 200*time.Millisecond)

	v.SetDefault("breaker.failures", 3)
	v.SetDefault("breaker.open_for", 10*time.Second)
	v.SetDefault("breaker.interval", time.Minute)

	v.SetDefault("aggregator.sub_topic", "sensor/decoded/#")
	v.SetDefault("aggregator.pub_topic_template", "sensor/aggregated/{device}")
	v.SetDefault("aggregator.interval", time.Minute)

	v.SetDefault("http.bind", ":8080")
	v.SetDefault("grpc.bind", ":50051")
}

// Load reads the optional TOML file at path, applies environment
// overrides (mqtt.host from MQTT_HOST) and decodes the result.
func Load(v *viper.Viper, path string) (Config, error) {
	var c Config

	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return c, errors.Wrapf(err, "read config file %s", path)
		}
	}

	hooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&c, viper.DecodeHook(hooks)); err != nil {
		return c, errors.Wrap(err, "unmarshal config error")
	}

	switch c.Dedup.Backend {
	case "memory", "redis":
	default:
		return c, errors.Errorf("unknown dedup backend %q", c.Dedup.Backend)
	}
	if len(c.Decoder.UplinkTopics) == 0 {
		return c, errors.New("at least one decoder uplink topic must be configured")
	}
	return c, nil
}

// SetService derives the MQTT client id of the named service. A configured
// client_id is used as a prefix, otherwise the host name is appended, so
// services sharing one configuration never take over each other's session.
func (c *Config) SetService(name string) {
	if c.MQTT.ClientID != "" {
		c.MQTT.ClientID = c.MQTT.ClientID + "-" + name
		return
	}
	c.MQTT.ClientID = name
	if host, err := os.Hostname(); err == nil && host != "" {
		c.MQTT.ClientID = name + "-" + host
	}
}
