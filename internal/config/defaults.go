package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8720
	}
	if cfg.Server.RateLimitPerSec == 0 {
		cfg.Server.RateLimitPerSec = 5
	}
	if cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = 10
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotae/data/workspace.db"
	}
	if cfg.Retrieval.BaseURL == "" {
		cfg.Retrieval.BaseURL = "http://localhost:8000"
	}
	if cfg.Retrieval.CollectionPrefix == "" {
		cfg.Retrieval.CollectionPrefix = "messages-"
	}
	if cfg.Retrieval.TimeoutSec == 0 {
		cfg.Retrieval.TimeoutSec = 30
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-2.0-flash"
	}
	if cfg.LLM.MaxOutputTokens == 0 {
		cfg.LLM.MaxOutputTokens = 1000
	}
	if cfg.QA.ContextMessages == 0 {
		cfg.QA.ContextMessages = 10
	}
	if cfg.QA.HistoryLimit == 0 {
		cfg.QA.HistoryLimit = 20
	}
}
