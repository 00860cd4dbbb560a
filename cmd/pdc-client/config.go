package main

import (
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds the PDC client's connection and logging settings, loaded
// the way the reference PMU simulator loads its own (viper: YAML file,
// falling back to defaults and environment variables).
type Config struct {
	PDC struct {
		Address     string        `mapstructure:"address"`
		IDCode      uint16        `mapstructure:"id_code"`
		Proto       string        `mapstructure:"proto"` // "tcp" or "udp"
		ReadTimeout time.Duration `mapstructure:"read_timeout"`
		MetricsPort int           `mapstructure:"metrics_port"`
		LogLevel    string        `mapstructure:"log_level"`
	} `mapstructure:"pdc"`
}

func loadConfig() (*Config, error) {
	var cfg Config

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/pdc-client/")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		log.Info("No config file found, using defaults and environment variables")
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("pdc.address")
	_ = viper.BindEnv("pdc.id_code")
	_ = viper.BindEnv("pdc.log_level")

	viper.SetDefault("pdc.address", "localhost:4712")
	viper.SetDefault("pdc.id_code", 1)
	viper.SetDefault("pdc.proto", "tcp")
	viper.SetDefault("pdc.read_timeout", "5s")
	viper.SetDefault("pdc.metrics_port", 9091)
	viper.SetDefault("pdc.log_level", "INFO")

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
