package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Data.CatalogPath == "" {
		cfg.Data.CatalogPath = "./data/artifacts.csv"
	}
	if cfg.Data.IndexPath == "" {
		cfg.Data.IndexPath = "./data/embeddings/artifacts.index"
	}
	if cfg.Data.MetadataPath == "" {
		cfg.Data.MetadataPath = "./data/embeddings/artifacts_meta.db"
	}
	if cfg.Data.RunsPath == "" {
		cfg.Data.RunsPath = "./data/runs.db"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderRemote
	}
	if cfg.Embedding.BaseURL == "" && cfg.Embedding.Provider == ProviderRemote {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 && cfg.Embedding.Provider == ProviderHashing {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = 30
	}
	if cfg.Embedding.MaxAttempts == 0 {
		cfg.Embedding.MaxAttempts = 5
	}
	if cfg.Embedding.BaseDelayMS == 0 {
		cfg.Embedding.BaseDelayMS = 1000
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-4o-mini"
	}
	if cfg.Generation.TimeoutSecs == 0 {
		cfg.Generation.TimeoutSecs = 120
	}
	if cfg.Generation.Language == "" {
		cfg.Generation.Language = "en"
	}
	if cfg.Retrieval.DefaultK == 0 {
		cfg.Retrieval.DefaultK = 3
	}
	if cfg.Retrieval.MaxK == 0 {
		cfg.Retrieval.MaxK = 50
	}
	if cfg.Evaluation.QueriesPath == "" {
		cfg.Evaluation.QueriesPath = "./data/queries.csv"
	}
	if cfg.Evaluation.GroundTruthPath == "" {
		cfg.Evaluation.GroundTruthPath = "./data/ground_truth.csv"
	}
	if cfg.Evaluation.RetrievalLogPath == "" {
		cfg.Evaluation.RetrievalLogPath = "./data/retrieval_log.csv"
	}
	if cfg.Evaluation.RetrievalEvalPath == "" {
		cfg.Evaluation.RetrievalEvalPath = "./data/retrieval_evaluation.csv"
	}
	if cfg.Evaluation.GroundingEvalPath == "" {
		cfg.Evaluation.GroundingEvalPath = "./data/grounding_evaluation.csv"
	}
	if cfg.Evaluation.K == 0 {
		cfg.Evaluation.K = 3
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 500
	}
}

// Default returns a config with every default applied and paths left relative.
func Default() *Config {
	cfg := &Config{}
	cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	cfg.Generation.APIKeyEnv = "OPENAI_API_KEY"
	ApplyDefaults(cfg)
	return cfg
}
