package config

import (
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "MODELGATE"

// NewViper returns a viper instance that reads MODELGATE_ environment
// variables, e.g. MODELGATE_ENGINE_ADDRESS for engine.address. Flags are
// bound onto it by the commands.
//
// Precedence, highest first: flags, environment, config file, Default.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyOverrides copies every key explicitly set in v onto cfg and validates
// the result.
func ApplyOverrides(cfg Config, v *viper.Viper) (Config, error) {
	if v == nil {
		return cfg, cfg.Validate()
	}

	if v.IsSet("server.port") {
		cfg.Server.Port = v.GetInt("server.port")
	}
	if v.IsSet("server.request_timeout") {
		cfg.Server.RequestTimeout = v.GetDuration("server.request_timeout")
	}
	if v.IsSet("model.name") {
		cfg.Model.Name = v.GetString("model.name")
	}
	if v.IsSet("model.revision") {
		cfg.Model.Revision = v.GetString("model.revision")
	}
	if v.IsSet("engine.transport") {
		cfg.Engine.Transport = v.GetString("engine.transport")
	}
	if v.IsSet("engine.address") {
		cfg.Engine.Address = v.GetString("engine.address")
	}
	if v.IsSet("engine.init_timeout") {
		cfg.Engine.InitTimeout = v.GetDuration("engine.init_timeout")
	}
	if v.IsSet("engine.eager") {
		cfg.Engine.Eager = v.GetBool("engine.eager")
	}
	if v.IsSet("templates.catalog") {
		cfg.Templates.Catalog = v.GetString("templates.catalog")
	}
	if v.IsSet("completion.report_length_finish") {
		cfg.Completion.ReportLengthFinish = v.GetBool("completion.report_length_finish")
	}
	if v.IsSet("events.kafka.brokers") {
		cfg.Events.Kafka.Brokers = splitList(v.GetStringSlice("events.kafka.brokers"))
	}
	if v.IsSet("events.kafka.topic") {
		cfg.Events.Kafka.Topic = v.GetString("events.kafka.topic")
	}
	if v.IsSet("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
	if v.IsSet("log.format") {
		cfg.Log.Format = v.GetString("log.format")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// splitList accepts both repeated values and a single comma separated value,
// as environment variables only carry the latter.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}
