package main

import (
	"log"

	"github.com/spf13/viper"
)

// demoConfig mirrors the shape of other_examples' viper config loaders
// (pranavp2005-ProjectShowcase's config.Load): read a file if one exists,
// otherwise fall back to defaults, with every field that has a default
// overridable by a RELAYDEMO_-prefixed environment variable. etcd_endpoints
// has no default, so it is read from the config file only.
type demoConfig struct {
	ListenAddr      string   `mapstructure:"listen_addr"`
	ServerURL       string   `mapstructure:"server_url"`
	ClientID        string   `mapstructure:"client_id"`
	EtcdEndpoints   []string `mapstructure:"etcd_endpoints"`
	HeartbeatPeriod int      `mapstructure:"heartbeat_period_ms"`
}

func loadDemoConfig(configPath string) (*demoConfig, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":8088")
	v.SetDefault("server_url", "http://127.0.0.1:8088")
	v.SetDefault("client_id", "demo-client")
	v.SetDefault("heartbeat_period_ms", 5000)

	v.SetEnvPrefix("RELAYDEMO")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("relaydemo")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			log.Printf("relaydemo: no config file found, using defaults and environment")
		}
	}

	var cfg demoConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
