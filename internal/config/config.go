package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/media-grabber/internal/constants"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/utils"
)

// Config holds all configuration settings.
type Config struct {
	// OutputPath is the directory path where downloaded files will be saved.
	OutputPath string `mapstructure:"output_path"`
	// LastOutputPath is the directory used by the previous run (written back when RememberOutputPath is set).
	LastOutputPath string `mapstructure:"last_output_path"`
	// RememberOutputPath indicates whether the output directory is persisted after a successful run.
	RememberOutputPath bool `mapstructure:"remember_output_path"`
	// Format is the output format: mp3, flac (audio only) or mp4 (video container).
	Format string `mapstructure:"format"`
	// AudioBitrate is the target bitrate in kbps for audio formats.
	AudioBitrate int64 `mapstructure:"audio_bitrate"`
	// VideoQuality is the maximum vertical resolution for the video format.
	VideoQuality int64 `mapstructure:"video_quality"`
	// IsPlaylist indicates whether URLs are treated as playlists.
	IsPlaylist bool `mapstructure:"playlist"`
	// PlaylistStart is the 1-based index of the first playlist entry to download.
	PlaylistStart int64 `mapstructure:"playlist_start"`
	// PlaylistEnd is the 1-based index of the last playlist entry to download (0 means the last entry).
	PlaylistEnd int64 `mapstructure:"playlist_end"`
	// YTDLPPath is the path or name of the yt-dlp executable.
	YTDLPPath string `mapstructure:"ytdlp_path"`
	// FFmpegLocation is the path or name of the ffmpeg executable (empty means lookup in PATH).
	FFmpegLocation string `mapstructure:"ffmpeg_location"`
	// DownloadSpeedLimit sets the maximum download speed (e.g., "1MB", "500KB").
	DownloadSpeedLimit string `mapstructure:"download_speed_limit"`
	// RetryAttemptsCount is the number of attempts for transient failures (0 means unlimited).
	RetryAttemptsCount int64 `mapstructure:"retry_attempts_count"`
	// MinRetryPause is the minimum pause duration before retrying.
	MinRetryPause string `mapstructure:"min_retry_pause"`
	// MaxRetryPause is the maximum pause duration before retrying.
	MaxRetryPause string `mapstructure:"max_retry_pause"`
	// EnableNotifications indicates whether a desktop notification is sent after each acquisition.
	EnableNotifications bool `mapstructure:"enable_notifications"`
	// NotificationIcon is the optional icon path passed to the notifier.
	NotificationIcon string `mapstructure:"notification_icon"`
	// CoverCacheSize is the number of cover images kept in memory.
	CoverCacheSize int64 `mapstructure:"cover_cache_size"`
	// ArtworkTimeout is the timeout of a thumbnail request (e.g., "30s").
	ArtworkTimeout string `mapstructure:"artwork_timeout"`
	// UserAgent is the User-Agent sent with thumbnail requests (empty means a common browser one).
	UserAgent string `mapstructure:"user_agent"`
	// LogLevel specifies the logging verbosity level.
	LogLevel string `mapstructure:"log_level"`
	// ParsedDownloadSpeedLimit is the parsed download speed limit in bytes per second.
	ParsedDownloadSpeedLimit int64
	// ParsedLogLevel is the parsed zap log level.
	ParsedLogLevel zapcore.Level
	// ParsedMinRetryPause is the parsed minimum retry pause duration.
	ParsedMinRetryPause time.Duration
	// ParsedMaxRetryPause is the parsed maximum retry pause duration.
	ParsedMaxRetryPause time.Duration
	// ParsedArtworkTimeout is the parsed thumbnail request timeout (0 means the transport default).
	ParsedArtworkTimeout time.Duration
}

const (
	// DefaultConfigFilename is the default name of the configuration file.
	DefaultConfigFilename = ".media-grabber.yaml"

	// DefaultMaxLogLength is the default maximum size (in bytes) of logged HTTP dumps.
	DefaultMaxLogLength = 1 * 1024 * 1024 // 1 MB

	// FormatMP3 is the MP3 audio format.
	FormatMP3 = "mp3"
	// FormatFLAC is the FLAC audio format.
	FormatFLAC = "flac"
	// FormatMP4 is the MP4 video format.
	FormatMP4 = "mp4"

	// DefaultFormat is the output format used when none is configured.
	DefaultFormat = FormatMP3
	// DefaultAudioBitrate is the audio bitrate in kbps used when none is configured.
	DefaultAudioBitrate = 192
	// DefaultVideoQuality is the vertical resolution used when none is configured.
	DefaultVideoQuality = 720
	// DefaultYTDLPPath is the executable looked up in PATH when no explicit path is configured.
	DefaultYTDLPPath = "yt-dlp"
	// DefaultCoverCacheSize is the default number of cached cover images.
	DefaultCoverCacheSize = 32
	// DefaultArtworkTimeout is the thumbnail request timeout used when none is configured.
	DefaultArtworkTimeout = "60s"
)

// Static error definitions for better error handling.
var (
	// ErrInvalidFormat indicates that the output format is not supported.
	ErrInvalidFormat = errors.New("invalid format")
	// ErrInvalidAudioBitrate indicates that the audio bitrate is not supported.
	ErrInvalidAudioBitrate = errors.New("invalid audio bitrate")
	// ErrInvalidVideoQuality indicates that the video quality is not supported.
	ErrInvalidVideoQuality = errors.New("invalid video quality")
	// ErrInvalidPlaylistRange indicates that the playlist range is malformed.
	ErrInvalidPlaylistRange = errors.New("invalid playlist range")
	// ErrUnknownLogLevel indicates that the log level is not recognized.
	ErrUnknownLogLevel = errors.New("unknown log level")
	// ErrInvalidRetryAttempts indicates that the retry attempts count is invalid.
	ErrInvalidRetryAttempts = errors.New("retry attempts count must be zero (unlimited) or a positive integer")
	// ErrInvalidMinRetryPause indicates that the min retry pause duration is invalid.
	ErrInvalidMinRetryPause = errors.New("min_retry_pause must not be negative")
	// ErrInvalidMaxRetryPause indicates that the max retry pause duration is invalid.
	ErrInvalidMaxRetryPause = errors.New("max_retry_pause must not be negative")
	// ErrInvalidCoverCacheSize indicates that the cover cache size is invalid.
	ErrInvalidCoverCacheSize = errors.New("cover cache size must be a positive integer")
	// ErrInvalidArtworkTimeout indicates that the thumbnail request timeout is invalid.
	ErrInvalidArtworkTimeout = errors.New("artwork_timeout must not be negative")
	// ErrEmptyYTDLPPath indicates that the yt-dlp executable is not configured.
	ErrEmptyYTDLPPath = errors.New("ytdlp_path cannot be empty")
)

//nolint:gochecknoglobals // These are immutable lists of supported values.
var (
	// SupportedFormats lists the accepted output formats.
	SupportedFormats = []string{FormatMP3, FormatFLAC, FormatMP4}
	// SupportedAudioBitrates lists the accepted audio bitrates in kbps.
	SupportedAudioBitrates = []int64{32, 96, 128, 192, 256, 320}
	// SupportedVideoQualities lists the accepted vertical resolutions.
	SupportedVideoQualities = []int64{144, 360, 480, 720, 1080, 1440, 2160}
)

// LoadConfig loads configuration settings from a YAML file.
// A missing default file is not an error: built-in defaults are used instead.
func LoadConfig(configFilename string) (*Config, error) {
	isDefaultFile := configFilename == ""
	if isDefaultFile {
		configFilename = DefaultConfigFilename
	}

	viper.Reset()
	setDefaults()
	viper.SetConfigFile(configFilename)

	if err := viper.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError

		isMissing := errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFoundErr)
		if !isDefaultFile || !isMissing {
			return nil, fmt.Errorf("failed to read config from file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("format", DefaultFormat)
	viper.SetDefault("audio_bitrate", DefaultAudioBitrate)
	viper.SetDefault("video_quality", DefaultVideoQuality)
	viper.SetDefault("playlist_start", 1)
	viper.SetDefault("playlist_end", 0)
	viper.SetDefault("ytdlp_path", DefaultYTDLPPath)
	viper.SetDefault("retry_attempts_count", 0)
	viper.SetDefault("min_retry_pause", "0s")
	viper.SetDefault("max_retry_pause", "0s")
	viper.SetDefault("enable_notifications", true)
	viper.SetDefault("cover_cache_size", DefaultCoverCacheSize)
	viper.SetDefault("artwork_timeout", DefaultArtworkTimeout)
	viper.SetDefault("log_level", "info")
}

// ValidateConfig checks the configuration for validity and sets derived fields.
//
//nolint:funlen,gocognit,cyclop // Validation functions naturally have high complexity and length due to sequential checks.
func ValidateConfig(cfg *Config) error {
	var (
		downloadSpeedLimit       = strings.TrimSpace(cfg.DownloadSpeedLimit)
		parsedDownloadSpeedLimit uint64
		err                      error
	)

	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	if !slices.Contains(SupportedFormats, cfg.Format) {
		return fmt.Errorf("%w: '%s', must be one of %s",
			ErrInvalidFormat, cfg.Format, strings.Join(SupportedFormats, ", "))
	}

	if !slices.Contains(SupportedAudioBitrates, cfg.AudioBitrate) {
		return fmt.Errorf("%w: %d, must be one of %v", ErrInvalidAudioBitrate, cfg.AudioBitrate, SupportedAudioBitrates)
	}

	if !slices.Contains(SupportedVideoQualities, cfg.VideoQuality) {
		return fmt.Errorf("%w: %d, must be one of %v", ErrInvalidVideoQuality, cfg.VideoQuality, SupportedVideoQualities)
	}

	if cfg.PlaylistStart == 0 {
		cfg.PlaylistStart = 1
	}

	if cfg.PlaylistStart < 0 || cfg.PlaylistEnd < 0 {
		return fmt.Errorf("%w: bounds must be positive", ErrInvalidPlaylistRange)
	}

	if cfg.PlaylistEnd > 0 && cfg.PlaylistEnd < cfg.PlaylistStart {
		return fmt.Errorf("%w: start %d is greater than end %d",
			ErrInvalidPlaylistRange, cfg.PlaylistStart, cfg.PlaylistEnd)
	}

	cfg.YTDLPPath = strings.TrimSpace(cfg.YTDLPPath)
	if cfg.YTDLPPath == "" {
		return ErrEmptyYTDLPPath
	}

	cfg.OutputPath = strings.TrimSpace(cfg.OutputPath)
	if cfg.OutputPath == "" {
		cfg.OutputPath = "."
		if cfg.RememberOutputPath && strings.TrimSpace(cfg.LastOutputPath) != "" {
			cfg.OutputPath = strings.TrimSpace(cfg.LastOutputPath)
		}
	}

	parsedLogLevel, isLogLevelCorrect := logger.ParseLogLevel(cfg.LogLevel)
	if !(isLogLevelCorrect) {
		return fmt.Errorf("%w: '%s'", ErrUnknownLogLevel, cfg.LogLevel)
	}

	cfg.ParsedLogLevel = parsedLogLevel

	if downloadSpeedLimit != "" && downloadSpeedLimit != "0" {
		parsedDownloadSpeedLimit, err = humanize.ParseBytes(downloadSpeedLimit)
		if err != nil {
			return fmt.Errorf("failed to parse download speed limit: %w", err)
		}
	}

	cfg.ParsedDownloadSpeedLimit = utils.SafeUint64ToInt64(parsedDownloadSpeedLimit)

	if cfg.RetryAttemptsCount < 0 {
		return ErrInvalidRetryAttempts
	}

	cfg.ParsedMinRetryPause, err = parseOptionalDuration(cfg.MinRetryPause)
	if err != nil {
		return fmt.Errorf("failed to parse min retry pause: %w", err)
	}

	if cfg.ParsedMinRetryPause < 0 {
		return ErrInvalidMinRetryPause
	}

	cfg.ParsedMaxRetryPause, err = parseOptionalDuration(cfg.MaxRetryPause)
	if err != nil {
		return fmt.Errorf("failed to parse max retry pause: %w", err)
	}

	if cfg.ParsedMaxRetryPause < 0 {
		return ErrInvalidMaxRetryPause
	}

	if cfg.CoverCacheSize <= 0 {
		return ErrInvalidCoverCacheSize
	}

	cfg.ParsedArtworkTimeout, err = parseOptionalDuration(cfg.ArtworkTimeout)
	if err != nil {
		return fmt.Errorf("failed to parse artwork timeout: %w", err)
	}

	if cfg.ParsedArtworkTimeout < 0 {
		return ErrInvalidArtworkTimeout
	}

	cfg.UserAgent = strings.TrimSpace(cfg.UserAgent)

	return nil
}

// IsAudioFormat reports whether the configured format is audio only.
func (c *Config) IsAudioFormat() bool {
	return c.Format == FormatMP3 || c.Format == FormatFLAC
}

func parseOptionalDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}

	return time.ParseDuration(value)
}

// SaveConfig saves the last output path to the configuration file while preserving the original format and order.
func SaveConfig(cfg *Config) error {
	configFile := getConfigFilePath()

	// Read the original file content.
	originalContent, err := os.ReadFile(configFile)
	if err != nil {
		return handleMissingConfigFile(configFile, cfg.LastOutputPath, err)
	}

	// Parse YAML while preserving order using yaml.Node.
	var node yaml.Node
	if err = yaml.Unmarshal(originalContent, &node); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Update the last_output_path value in the node tree.
	updateValueInNode(&node, "last_output_path", cfg.LastOutputPath)

	// Marshal back to YAML (preserves order).
	newContent, err := yaml.Marshal(&node)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	// Write the file back with preserved order.
	if err = os.WriteFile(configFile, newContent, constants.DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getConfigFilePath returns the config file path from viper or the default.
func getConfigFilePath() string {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		return DefaultConfigFilename
	}

	return configFile
}

// handleMissingConfigFile creates a new config file if it doesn't exist.
func handleMissingConfigFile(configFile, lastOutputPath string, err error) error {
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// File doesn't exist, create it with viper.
	viper.Set("last_output_path", lastOutputPath)

	if err = viper.SafeWriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	return nil
}

// updateValueInNode sets a top-level scalar in the YAML node tree, appending the key when it is absent.
func updateValueInNode(node *yaml.Node, key, value string) {
	// The root node is a document node, content[0] is the actual map.
	if len(node.Content) == 0 || node.Content[0].Kind != yaml.MappingNode {
		return
	}

	mapNode := node.Content[0]

	// Iterate through key-value pairs (stored as alternating nodes).
	for i := 0; i+1 < len(mapNode.Content); i += 2 {
		keyNode := mapNode.Content[i]
		valueNode := mapNode.Content[i+1]

		if keyNode.Value != key {
			continue
		}

		// Update the value while preserving style.
		valueNode.Value = value

		// Ensure it's quoted since paths may contain special characters.
		if valueNode.Style == 0 {
			valueNode.Style = yaml.DoubleQuotedStyle
		}

		return
	}

	mapNode.Content = append(mapNode.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value, Style: yaml.DoubleQuotedStyle},
	)
}
