package config

import "time"

// Config represents the full shiush configuration
type Config struct {
	// Directory holding the database. Empty means the XDG data dir.
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// IANA zone calendar boundaries are computed in. Empty means local time.
	Timezone string `yaml:"timezone" mapstructure:"timezone"`

	// Log destination for the TUI. Empty means <data_dir>/shiush.log.
	LogFile string `yaml:"log_file" mapstructure:"log_file"`

	Schedule ScheduleConfig `yaml:"schedule" mapstructure:"schedule"`

	Offline OfflineConfig `yaml:"offline" mapstructure:"offline"`
}

// ScheduleConfig configures the periodic evaluation
type ScheduleConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

// MarshalYAML writes the interval in its readable form
func (s ScheduleConfig) MarshalYAML() (any, error) {
	return struct {
		PollInterval string `yaml:"poll_interval"`
	}{s.PollInterval.String()}, nil
}

// OfflineConfig configures the offline cache server
type OfflineConfig struct {
	Addr        string   `yaml:"addr" mapstructure:"addr"`
	Origin      string   `yaml:"origin" mapstructure:"origin"`
	Version     string   `yaml:"version" mapstructure:"version"`
	Strategy    string   `yaml:"strategy" mapstructure:"strategy"`
	OfflinePage string   `yaml:"offline_page" mapstructure:"offline_page"`
	ShellPage   string   `yaml:"shell_page" mapstructure:"shell_page"`
	SkipWaiting bool     `yaml:"skip_waiting" mapstructure:"skip_waiting"`
	Manifest    []string `yaml:"manifest" mapstructure:"manifest"`
}
