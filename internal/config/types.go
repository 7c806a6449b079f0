package config

// Config is the top-level devcompass configuration, corresponding to .devcompass.yml.
type Config struct {
	APIURL          string   `yaml:"api_url" koanf:"api_url"`
	GitHubBase      string   `yaml:"github_base" koanf:"github_base"`
	Port            int      `yaml:"port" koanf:"port"`
	DataDir         string   `yaml:"data_dir" koanf:"data_dir"`
	PollIntervalMS  int      `yaml:"poll_interval_ms" koanf:"poll_interval_ms"`
	SettleDelayMS   int      `yaml:"settle_delay_ms" koanf:"settle_delay_ms"`
	MaxPollRetries  int      `yaml:"max_poll_retries" koanf:"max_poll_retries"`
	ZoomDurationMS  int      `yaml:"zoom_duration_ms" koanf:"zoom_duration_ms"`
	Renderer        string   `yaml:"renderer" koanf:"renderer"`
	TTSCommand      string   `yaml:"tts_command" koanf:"tts_command"`
	Protected       []string `yaml:"protected" koanf:"protected"`
	AllowAllOrigins bool     `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}
