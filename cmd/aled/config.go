package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hfale/pcale/ale"
	"github.com/hfale/pcale/arq"
	"github.com/hfale/pcale/lqa"
)

// stationConfig is the on-disk YAML configuration for aled, following the
// teacher's convention of one config file driving a soundcard-modem
// station (config.go's "direwolf.conf" parser), reworked to this core's
// ALE/ARQ/LQA parameters instead of audio channel/modem settings.
type stationConfig struct {
	SelfAddress string     `yaml:"self_address"`
	Channels    []uint32   `yaml:"channels_hz"`
	Stations    []netEntry `yaml:"stations"`
	Nets        []netEntry `yaml:"nets"`

	LQAFile string `yaml:"lqa_file"`

	ALE ale.Config `yaml:"ale"`
	ARQ arq.Config `yaml:"arq"`
	LQA lqa.Config `yaml:"lqa"`
}

type netEntry struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name"`
}

func defaultStationConfig() stationConfig {
	return stationConfig{
		SelfAddress: "NOCALL",
		Channels:    []uint32{7100000},
		LQAFile:     "aled_lqa.db",
		ALE:         ale.DefaultConfig(),
		ARQ:         arq.DefaultConfig(),
		LQA:         lqa.DefaultConfig(),
	}
}

func loadStationConfig(path string) (stationConfig, error) {
	cfg := defaultStationConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}
