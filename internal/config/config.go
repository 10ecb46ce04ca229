package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Bot       BotConfig       `mapstructure:"bot"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Translate TranslateConfig `mapstructure:"translate"`
	Render    RenderConfig    `mapstructure:"render"`
	AI        AIConfig        `mapstructure:"ai"`
	Search    SearchConfig    `mapstructure:"search"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type BotConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Token             string        `mapstructure:"token"`
	ChatID            int64         `mapstructure:"chat_id"`
	APIEndpoint       string        `mapstructure:"api_endpoint"` // 代理地址，格式同 tgbotapi.APIEndpoint
	PollTimeout       int           `mapstructure:"poll_timeout"` // 秒
	GenerationTimeout time.Duration `mapstructure:"generation_timeout"`
}

type FetchConfig struct {
	APIBase string        `mapstructure:"api_base"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TranslateConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	TargetLang  string        `mapstructure:"target_lang"`
	ChunkMax    int           `mapstructure:"chunk_max"`
	Concurrency int           `mapstructure:"concurrency"`
	CacheSize   int           `mapstructure:"cache_size"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type RenderConfig struct {
	ExecPath       string        `mapstructure:"exec_path"`
	ViewportWidth  int64         `mapstructure:"viewport_width"`
	ViewportHeight int64         `mapstructure:"viewport_height"`
	LoadTimeout    time.Duration `mapstructure:"load_timeout"`
	SettleDelay    time.Duration `mapstructure:"settle_delay"`
}

type AIConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	TopP        float32       `mapstructure:"top_p"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Enabled 配置了 api_key 才会生成文案，provider 默认 deepseek
func (c AIConfig) Enabled() bool {
	return c.Provider != "" && c.APIKey != ""
}

type SearchConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Endpoint   string        `mapstructure:"endpoint"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxResults int           `mapstructure:"max_results"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var (
	mu  sync.RWMutex
	cfg *Config
	v   *viper.Viper
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 4009)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("bot.enabled", true)
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.chat_id", 0)
	v.SetDefault("bot.api_endpoint", "")
	v.SetDefault("bot.poll_timeout", 30)
	v.SetDefault("bot.generation_timeout", 45*time.Second)

	v.SetDefault("fetch.api_base", "https://api.fxtwitter.com")
	v.SetDefault("fetch.timeout", 10*time.Second)

	v.SetDefault("translate.endpoint", "https://translate.googleapis.com/translate_a/single")
	v.SetDefault("translate.target_lang", "zh-TW")
	v.SetDefault("translate.chunk_max", 800)
	v.SetDefault("translate.concurrency", 4)
	v.SetDefault("translate.cache_size", 512)
	v.SetDefault("translate.timeout", 10*time.Second)

	v.SetDefault("render.exec_path", "")
	v.SetDefault("render.viewport_width", 1400)
	v.SetDefault("render.viewport_height", 900)
	v.SetDefault("render.load_timeout", 15*time.Second)
	v.SetDefault("render.settle_delay", 500*time.Millisecond)

	v.SetDefault("ai.provider", "deepseek")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.max_tokens", 300)
	v.SetDefault("ai.temperature", 0.4)
	v.SetDefault("ai.top_p", 0.9)
	v.SetDefault("ai.timeout", 60*time.Second)

	v.SetDefault("search.enabled", true)
	v.SetDefault("search.endpoint", "https://html.duckduckgo.com/html/")
	v.SetDefault("search.timeout", 8*time.Second)
	v.SetDefault("search.max_results", 3)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization"})
	v.SetDefault("cors.exposed_headers", []string{"X-Request-ID"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load 读取配置文件，文件不存在时只使用默认值和环境变量
func Load(configPath string) (*Config, error) {
	nv := viper.New()
	setDefaults(nv)
	nv.SetConfigFile(configPath)
	nv.SetConfigType("yaml")

	nv.SetEnvPrefix("XCARD")
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	if err := nv.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	c, err := decode(nv)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	v = nv
	cfg = c
	mu.Unlock()

	return c, nil
}

func decode(nv *viper.Viper) (*Config, error) {
	c := &Config{}
	if err := nv.Unmarshal(c); err != nil {
		return nil, err
	}

	// 配置文件优先，如果配置文件中没有设置，则使用环境变量
	if c.Bot.Token == "" {
		c.Bot.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if c.Bot.ChatID == 0 {
		if id, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64); err == nil {
			c.Bot.ChatID = id
		}
	}
	if c.AI.APIKey == "" {
		c.AI.APIKey = os.Getenv("AI_API_KEY")
	}

	return c, nil
}

// Watch 监听配置文件变化，重新解析成功后回调
func Watch(onChange func(*Config)) {
	mu.RLock()
	nv := v
	mu.RUnlock()
	if nv == nil {
		return
	}

	nv.OnConfigChange(func(e fsnotify.Event) {
		c, err := decode(nv)
		if err != nil {
			return
		}
		mu.Lock()
		cfg = c
		mu.Unlock()
		if onChange != nil {
			onChange(c)
		}
	})
	nv.WatchConfig()
}

func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}
