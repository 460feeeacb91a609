package search

// Config 搜索编排配置。
type Config struct {
	// 流程开关
	ExtractInfo      bool `json:"extract_information"` // 拆解原子信息需求
	RewriteQuery     bool `json:"rewrite_query"`       // 按检索器改写查询
	VerifyContext    bool `json:"verify_context"`      // 校验上下文充分性（启用后允许重试）
	SummarizeContext bool `json:"summarize_context"`   // 摘要并过滤无关上下文

	// 检索参数
	TopK         int      `json:"top_k"`
	Retrievers   []string `json:"retrievers"` // 检索器名，按此顺序执行
	DisableCache bool     `json:"disable_cache"`

	// 协作者模型：searcher 负责改写/校验/摘要/拆解，generator 负责答案生成。
	// generator 留空时复用 searcher。
	SearcherProvider  string `json:"searcher_provider"`
	SearcherModel     string `json:"searcher_model"`
	SearcherMaxTokens int    `json:"searcher_max_tokens"`
	GeneratorProvider string `json:"generator_provider"`
	GeneratorModel    string `json:"generator_model"`

	// 批量问答进度日志间隔（问题数）
	LogInterval int `json:"log_interval"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		TopK:              10,
		SearcherProvider:  "openai",
		SearcherModel:     "gpt-4o-mini",
		SearcherMaxTokens: 512,
		LogInterval:       100,
	}
}

// MaxTurns 校验重试轮数上限：启用校验为 3，否则单轮不重试。
func (c *Config) MaxTurns() int {
	if c.VerifyContext {
		return 3
	}
	return 1
}

// Normalize 填充缺省值。
func (c *Config) Normalize() {
	if c.TopK <= 0 {
		c.TopK = 10
	}
	if c.LogInterval <= 0 {
		c.LogInterval = 100
	}
	if c.SearcherMaxTokens <= 0 {
		c.SearcherMaxTokens = 512
	}
	if c.GeneratorProvider == "" {
		c.GeneratorProvider = c.SearcherProvider
	}
	if c.GeneratorModel == "" {
		c.GeneratorModel = c.SearcherModel
	}
}
