package contract

import (
	"fmt"
	"time"

	"github.com/prometheus/common/model"
	"gopkg.in/yaml.v3"
)

// defaultScrapeInterval is Prometheus's own global default.
const defaultScrapeInterval = time.Minute

// ScrapeConfig is the subset of prometheus.yml the checks read.
type ScrapeConfig struct {
	Global struct {
		ScrapeInterval string `yaml:"scrape_interval"`
	} `yaml:"global"`
	Jobs []ScrapeJob `yaml:"scrape_configs"`
}

// ScrapeJob is one entry of scrape_configs.
type ScrapeJob struct {
	JobName        string `yaml:"job_name"`
	ScrapeInterval string `yaml:"scrape_interval"`
	MetricsPath    string `yaml:"metrics_path"`
	StaticConfigs  []struct {
		Targets []string `yaml:"targets"`
	} `yaml:"static_configs"`
}

// ParseScrapeConfig decodes a prometheus.yml document.
func ParseScrapeConfig(data []byte) (*ScrapeConfig, error) {
	var cfg ScrapeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("contract: parse scrape config: %w", err)
	}
	return &cfg, nil
}

// JobFor returns the first job with target among its static targets.
func (c *ScrapeConfig) JobFor(target string) (ScrapeJob, bool) {
	for _, j := range c.Jobs {
		for _, sc := range j.StaticConfigs {
			for _, t := range sc.Targets {
				if t == target {
					return j, true
				}
			}
		}
	}
	return ScrapeJob{}, false
}

// Interval resolves j's effective scrape interval: its own, else the global
// one, else Prometheus's one-minute default.
func (c *ScrapeConfig) Interval(j ScrapeJob) (time.Duration, error) {
	s := j.ScrapeInterval
	if s == "" {
		s = c.Global.ScrapeInterval
	}
	if s == "" {
		return defaultScrapeInterval, nil
	}
	d, err := model.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("contract: job %q: scrape_interval %q: %w", j.JobName, s, err)
	}
	return time.Duration(d), nil
}
