package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/browser"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/crawlers"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/models"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/storage"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/utils"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Browser   BrowserConfig       `mapstructure:"browser"`
	Collector CollectorConfig     `mapstructure:"collector"`
	Paginator PaginatorConfig     `mapstructure:"paginator"`
	Profile   ProfileConfig       `mapstructure:"profile"`
	Crawl     models.CrawlConfig  `mapstructure:"crawl"`
	Output    OutputConfig        `mapstructure:"output"`
	Logging   LoggingConfig       `mapstructure:"logging"`
	Dedup     storage.DedupConfig `mapstructure:"dedup"`
	Auth      AuthConfig          `mapstructure:"auth"`
	Selectors crawlers.Selectors  `mapstructure:"selectors"`
}

// BrowserConfig 浏览器配置
type BrowserConfig struct {
	Bin         string `mapstructure:"bin"`
	UserDataDir string `mapstructure:"user_data_dir"`
	NoSandbox   bool   `mapstructure:"no_sandbox"`
	NavTimeout  int    `mapstructure:"nav_timeout"`  // 秒
	PingTimeout int    `mapstructure:"ping_timeout"` // 秒

	// 会话重建
	MaxRetries      int     `mapstructure:"max_retries"`
	InitialInterval float64 `mapstructure:"initial_interval"` // 秒
	MaxInterval     float64 `mapstructure:"max_interval"`     // 秒
	Multiplier      float64 `mapstructure:"multiplier"`
	RecoveryPause   int     `mapstructure:"recovery_pause"` // 重建后暂停(秒)
}

// CollectorConfig 视频URL收集配置
type CollectorConfig struct {
	BatchSize   int     `mapstructure:"batch_size"`
	RestSeconds float64 `mapstructure:"rest_seconds"`
	RetryDelay  float64 `mapstructure:"retry_delay"`
	MaxRetries  int     `mapstructure:"max_retries"`
	MinStep     int     `mapstructure:"min_step"`
	MaxStep     int     `mapstructure:"max_step"`
}

// PaginatorConfig 评论翻页配置
type PaginatorConfig struct {
	MaxScrollAttempts int    `mapstructure:"max_scroll_attempts"`
	MaxNoGrowth       int    `mapstructure:"max_no_growth"`
	InitialWait       int    `mapstructure:"initial_wait"`   // 秒
	ContainerWait     int    `mapstructure:"container_wait"` // 秒
	MinStep           int    `mapstructure:"min_step"`
	MaxStep           int    `mapstructure:"max_step"`
	Back              int    `mapstructure:"back"`
	DebugDump         bool   `mapstructure:"debug_dump"`
	DebugDir          string `mapstructure:"debug_dir"`
}

// ProfileConfig 用户主页配置
type ProfileConfig struct {
	SettleWait int `mapstructure:"settle_wait"` // 秒
	BioWait    int `mapstructure:"bio_wait"`    // 秒
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir string `mapstructure:"base_dir"`
	URLsDir string `mapstructure:"urls_dir"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	NoColor  bool           `mapstructure:"no_color"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// AuthConfig 登录配置
type AuthConfig struct {
	EnvFile        string `mapstructure:"env_file"`
	CaptchaTimeout int    `mapstructure:"captcha_timeout"` // 秒
	PollInterval   int    `mapstructure:"poll_interval"`   // 秒
	ElementTimeout int    `mapstructure:"element_timeout"` // 秒
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tiktokscraper"))
		}
	}

	setDefaults(v)

	// 环境变量覆盖, 如 TIKTOK_SCRAPER_CRAWL_MAX_POSTS
	v.SetEnvPrefix("TIKTOK_SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 配置文件不存在时使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	config.Selectors = config.Selectors.WithDefaults()

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 浏览器
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.user_data_dir", "")
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.nav_timeout", 60)
	v.SetDefault("browser.ping_timeout", 5)
	v.SetDefault("browser.max_retries", 3)
	v.SetDefault("browser.initial_interval", 2.0)
	v.SetDefault("browser.max_interval", 10.0)
	v.SetDefault("browser.multiplier", 1.5)
	v.SetDefault("browser.recovery_pause", 5)

	// 视频URL收集
	v.SetDefault("collector.batch_size", 50)
	v.SetDefault("collector.rest_seconds", 5.0)
	v.SetDefault("collector.retry_delay", 2.0)
	v.SetDefault("collector.max_retries", 3)
	v.SetDefault("collector.min_step", 300)
	v.SetDefault("collector.max_step", 800)

	// 评论翻页
	v.SetDefault("paginator.max_scroll_attempts", 15)
	v.SetDefault("paginator.max_no_growth", 5)
	v.SetDefault("paginator.initial_wait", 5)
	v.SetDefault("paginator.container_wait", 10)
	v.SetDefault("paginator.min_step", 800)
	v.SetDefault("paginator.max_step", 1200)
	v.SetDefault("paginator.back", 100)
	v.SetDefault("paginator.debug_dump", false)
	v.SetDefault("paginator.debug_dir", "debug")

	// 用户主页
	v.SetDefault("profile.settle_wait", 3)
	v.SetDefault("profile.bio_wait", 10)

	// 爬取
	v.SetDefault("crawl.hashtag", "")
	v.SetDefault("crawl.max_posts", 2000)
	v.SetDefault("crawl.batch_size", 3)
	v.SetDefault("crawl.max_comments", 50)
	v.SetDefault("crawl.cache_profiles", false)
	v.SetDefault("crawl.headless", false)
	v.SetDefault("crawl.skip_login", false)

	// 输出
	v.SetDefault("output.base_dir", "output")
	v.SetDefault("output.urls_dir", "urls_lists")

	// 日志
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.no_color", false)
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 跨运行去重, redis_addr 为空时不启用
	v.SetDefault("dedup.redis_addr", "")
	v.SetDefault("dedup.redis_password", "")
	v.SetDefault("dedup.redis_db", 0)
	v.SetDefault("dedup.ttl_hours", 48)

	// 登录
	v.SetDefault("auth.env_file", ".env")
	v.SetDefault("auth.captcha_timeout", 300)
	v.SetDefault("auth.poll_interval", 5)
	v.SetDefault("auth.element_timeout", 10)
}

// CLIFlags 命令行参数, 零值表示未指定
type CLIFlags struct {
	Hashtag       string
	MaxPosts      int
	BatchSize     int
	MaxComments   int
	Headless      *bool
	SkipLogin     bool
	CacheProfiles bool
	UserDataDir   string
	OutputDir     string
	LogLevel      string
}

// MergeCLIFlags 合并命令行参数到配置, 命令行参数优先于配置文件
func (c *Config) MergeCLIFlags(f CLIFlags) {
	if f.Hashtag != "" {
		c.Crawl.Hashtag = models.NormalizeHashtag(f.Hashtag)
	}
	if f.MaxPosts > 0 {
		c.Crawl.MaxPosts = f.MaxPosts
	}
	if f.BatchSize > 0 {
		c.Crawl.BatchSize = f.BatchSize
	}
	if f.MaxComments > 0 {
		c.Crawl.MaxComments = f.MaxComments
	}
	if f.Headless != nil {
		c.Crawl.Headless = *f.Headless
	}
	if f.SkipLogin {
		c.Crawl.SkipLogin = true
	}
	if f.CacheProfiles {
		c.Crawl.CacheProfiles = true
	}
	if f.UserDataDir != "" {
		c.Browser.UserDataDir = f.UserDataDir
	}
	if f.OutputDir != "" {
		c.Output.BaseDir = f.OutputDir
	}
	if f.LogLevel != "" {
		c.Logging.Level = f.LogLevel
	}
}

func secondsOf(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func floatSeconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

// BrowserOptions 浏览器启动参数
func (c *Config) BrowserOptions() browser.Options {
	return browser.Options{
		Bin:         c.Browser.Bin,
		Headless:    c.Crawl.Headless,
		UserDataDir: c.Browser.UserDataDir,
		NoSandbox:   c.Browser.NoSandbox,
		NavTimeout:  secondsOf(c.Browser.NavTimeout),
		PingTimeout: secondsOf(c.Browser.PingTimeout),
	}
}

// RecoveryConfig 会话重建参数
func (c *Config) RecoveryConfig() browser.RecoveryConfig {
	rc := browser.DefaultRecoveryConfig()
	if c.Browser.MaxRetries > 0 {
		rc.MaxRetries = uint64(c.Browser.MaxRetries)
	}
	if c.Browser.InitialInterval > 0 {
		rc.InitialInterval = floatSeconds(c.Browser.InitialInterval)
	}
	if c.Browser.MaxInterval > 0 {
		rc.MaxInterval = floatSeconds(c.Browser.MaxInterval)
	}
	if c.Browser.Multiplier > 0 {
		rc.Multiplier = c.Browser.Multiplier
	}
	return rc
}

// CollectOptions 视频URL收集参数, 目标数量取 crawl.max_posts
func (c *Config) CollectOptions() crawlers.CollectOptions {
	return crawlers.CollectOptions{
		TargetCount: c.Crawl.MaxPosts,
		BatchSize:   c.Collector.BatchSize,
		RestSeconds: c.Collector.RestSeconds,
		RetryDelay:  c.Collector.RetryDelay,
		MaxRetries:  c.Collector.MaxRetries,
		MinStep:     c.Collector.MinStep,
		MaxStep:     c.Collector.MaxStep,
	}
}

// PaginateOptions 评论翻页参数
func (c *Config) PaginateOptions() crawlers.PaginateOptions {
	opts := crawlers.PaginateOptions{
		MaxComments:       c.Crawl.MaxComments,
		MaxScrollAttempts: c.Paginator.MaxScrollAttempts,
		MaxNoGrowth:       c.Paginator.MaxNoGrowth,
		InitialWait:       secondsOf(c.Paginator.InitialWait),
		ContainerWait:     secondsOf(c.Paginator.ContainerWait),
		MinStep:           c.Paginator.MinStep,
		MaxStep:           c.Paginator.MaxStep,
		Back:              c.Paginator.Back,
	}
	if c.Paginator.DebugDump {
		opts.DebugDumpDir = c.Paginator.DebugDir
	}
	return opts
}

// ProfileOptions 用户主页参数
func (c *Config) ProfileOptions() crawlers.ProfileOptions {
	return crawlers.ProfileOptions{
		SettleWait: secondsOf(c.Profile.SettleWait),
		BioWait:    secondsOf(c.Profile.BioWait),
		Cache:      c.Crawl.CacheProfiles,
	}
}

// LoginOptions 登录参数
func (c *Config) LoginOptions(creds Credentials) crawlers.LoginOptions {
	return crawlers.LoginOptions{
		Account:        creds.Account,
		Password:       creds.Password,
		ElementTimeout: secondsOf(c.Auth.ElementTimeout),
		PollInterval:   secondsOf(c.Auth.PollInterval),
		CaptchaTimeout: secondsOf(c.Auth.CaptchaTimeout),
	}
}

// OrchestratorOptions 编排参数
func (c *Config) OrchestratorOptions() OrchestratorOptions {
	opts := DefaultOrchestratorOptions()
	opts.BatchSize = c.Crawl.BatchSize
	opts.MaxComments = c.Crawl.MaxComments
	if c.Browser.RecoveryPause > 0 {
		opts.RecoveryPause = secondsOf(c.Browser.RecoveryPause)
	}
	return opts
}

// LogConfig 日志参数
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
		NoColor:    c.Logging.NoColor,
	}
}
