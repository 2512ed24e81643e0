// Package config provides configuration file parsing.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fgeck/hldswatch/internal/models"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

var (
	sectionPattern = regexp.MustCompile(`^([0-9]{1,3}\.){3}[0-9]{1,3}:[0-9]+$`)
	screenPattern  = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// Parser handles configuration file parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
// Monitor-wide settings are read from HLDSWATCH_* environment variables.
func NewParser() *Parser {
	v := viper.New()
	v.SetEnvPrefix("hldswatch")
	v.AllowEmptyEnv(true) // HLDSWATCH_LOG_FILE= disables file logging
	v.AutomaticEnv()

	d := models.DefaultSettings()
	v.SetDefault("check_interval", d.CheckInterval)
	v.SetDefault("query_timeout", d.QueryTimeout)
	v.SetDefault("query_retries", d.QueryRetries)
	v.SetDefault("retry_wait", d.RetryWait)
	v.SetDefault("restart_grace", d.RestartGrace)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("verbose", false)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("telegram_bot_token", "")
	v.SetDefault("telegram_chat_id", "")

	return &Parser{v: v}
}

// Set overrides a setting (useful for testing).
func (p *Parser) Set(key string, value any) {
	p.v.Set(key, value)
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.WatchConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file given does not exist: %w", err)
	}

	f, err := ini.LoadSources(loadOptions(), path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse(f)
}

// LoadReader loads configuration from a string (useful for testing).
func (p *Parser) LoadReader(content string) (*models.WatchConfig, error) {
	f, err := ini.LoadSources(loadOptions(), []byte(content))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse(f)
}

func loadOptions() ini.LoadOptions {
	return ini.LoadOptions{
		InsensitiveKeys:     true,
		IgnoreInlineComment: true, // commands may contain ';' and '#'
	}
}

func (p *Parser) parse(f *ini.File) (*models.WatchConfig, error) {
	settings, err := p.parseSettings()
	if err != nil {
		return nil, err
	}

	cfg := &models.WatchConfig{Settings: settings}

	// Keys of [DEFAULT] apply to every server section that does not set them.
	defaults := f.Section(ini.DefaultSection)

	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}

		target, err := parseTarget(sec, defaults)
		if err != nil {
			return nil, err
		}
		cfg.Targets = append(cfg.Targets, target)
	}

	return cfg, nil
}

func (p *Parser) parseSettings() (models.Settings, error) {
	s := models.Settings{
		CheckInterval: p.v.GetDuration("check_interval"),
		QueryTimeout:  p.v.GetDuration("query_timeout"),
		QueryRetries:  p.v.GetInt("query_retries"),
		RetryWait:     p.v.GetDuration("retry_wait"),
		RestartGrace:  p.v.GetDuration("restart_grace"),
		LogFile:       p.v.GetString("log_file"),
		Workers:       p.v.GetInt("workers"),
		Verbose:       p.v.GetBool("verbose"),
		MetricsAddr:   p.v.GetString("metrics_addr"),
	}

	if s.CheckInterval <= 0 {
		return s, settingError("check_interval", "must be positive")
	}
	if s.QueryTimeout <= 0 {
		return s, settingError("query_timeout", "must be positive")
	}
	if s.QueryRetries < 1 {
		return s, settingError("query_retries", "must be at least 1")
	}
	if s.RetryWait < 0 {
		return s, settingError("retry_wait", "must not be negative")
	}
	if s.RestartGrace < 0 {
		return s, settingError("restart_grace", "must not be negative")
	}
	if s.Workers < 1 {
		return s, settingError("workers", "must be at least 1")
	}

	token := os.ExpandEnv(p.v.GetString("telegram_bot_token"))
	chatID := os.ExpandEnv(p.v.GetString("telegram_chat_id"))
	switch {
	case token != "" && chatID != "":
		s.Telegram = &models.TelegramConfig{BotToken: token, ChatID: chatID}
	case token != "":
		return s, settingError("telegram_chat_id", "is required when telegram_bot_token is set")
	case chatID != "":
		return s, settingError("telegram_bot_token", "is required when telegram_chat_id is set")
	}

	return s, nil
}

//nolint:gocognit,gocyclo // parsing a section requires checking many fields
func parseTarget(sec, defaults *ini.Section) (models.Target, error) {
	name := sec.Name()
	if !sectionPattern.MatchString(name) {
		return models.Target{}, &ValidationError{
			Section: name,
			Reason:  "is invalid section name. All section names must be in [<ip>:<port>] form",
		}
	}

	addr, err := models.ParseTargetAddress(name)
	if err != nil {
		return models.Target{}, &ValidationError{Section: name, Reason: err.Error()}
	}

	get := func(key string) string {
		switch {
		case sec.HasKey(key):
			return strings.TrimSpace(sec.Key(key).String())
		case defaults.HasKey(key):
			return strings.TrimSpace(defaults.Key(key).String())
		default:
			return ""
		}
	}

	tc := models.TargetConfig{}

	// engine value, only "goldsource" is matched regardless of case
	engine := get("engine")
	if strings.EqualFold(engine, "goldsource") {
		engine = string(models.EngineGoldSource)
	}
	tc.Engine = models.Engine(engine)
	if engine == "" {
		return models.Target{}, fieldError(name, "engine", "type is left out")
	}
	if !tc.Engine.Valid() {
		return models.Target{}, fieldError(name, "engine", "is unknown and not supported")
	}

	// optional remote host
	if host := get("ssh_host"); host != "" {
		remote, err := parseRemote(name, host, get)
		if err != nil {
			return models.Target{}, err
		}
		tc.Remote = remote
	}

	// autorestart value
	autorestart := get("autorestart")
	if autorestart == "" {
		return models.Target{}, fieldError(name, "autorestart", "is left out")
	}
	tc.AutoRestart = strings.ContainsRune("Yy1", rune(autorestart[0]))

	if tc.AutoRestart {
		tc.ScreenName = get("screen")
		if tc.ScreenName == "" {
			return models.Target{}, fieldError(name, "screen",
				"is required and cannot be left out when autorestart is enabled")
		}
		if !screenPattern.MatchString(tc.ScreenName) {
			return models.Target{}, fieldError(name, "screen",
				"must contain only alphanumeric and underscore character")
		}

		tc.StartDir = get("startdir")
		if tc.StartDir == "" {
			return models.Target{}, fieldError(name, "startdir",
				"is required and cannot be left out when autorestart is enabled")
		}
		if tc.Remote == nil {
			if err := checkStartDir(name, tc.StartDir, tc.Engine); err != nil {
				return models.Target{}, err
			}
		}
	}

	// command value
	tc.Command = get("command")
	if tc.Command == "" && tc.AutoRestart {
		return models.Target{}, fieldError(name, "command",
			"is required and cannot be left out when autorestart is enabled")
	}

	// optional Wake-on-LAN
	if mac := get("wake_mac"); mac != "" {
		tc.Wake = &models.WOLConfig{
			MACAddress:  mac,
			BroadcastIP: get("wake_broadcast"),
		}
		if tc.Wake.BroadcastIP == "" {
			tc.Wake.BroadcastIP = "255.255.255.255"
		}
	}

	return models.Target{Address: addr, Config: tc}, nil
}

func parseRemote(section, host string, get func(string) string) (*models.SSHConfig, error) {
	remote := &models.SSHConfig{
		Host:     host,
		Port:     22,
		Username: get("ssh_user"),
		KeyPath:  os.ExpandEnv(get("ssh_key")),
	}

	if port := get("ssh_port"); port != "" {
		if _, err := fmt.Sscanf(port, "%d", &remote.Port); err != nil || remote.Port < 1 || remote.Port > 65535 {
			return nil, fieldError(section, "ssh_port", "must be a valid port number")
		}
	}
	if remote.KeyPath == "" {
		return nil, fieldError(section, "ssh_key", "is required when ssh_host is configured")
	}
	if remote.Username == "" {
		u, err := user.Current()
		if err != nil {
			return nil, fieldError(section, "ssh_user", "is left out and the current user is unknown")
		}
		remote.Username = u.Username
	}

	return remote, nil
}

func checkStartDir(section, dir string, engine models.Engine) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fieldError(section, "startdir", "path doesn't exist")
	}

	launcher := engine.Launcher()
	info, err = os.Stat(filepath.Join(dir, launcher))
	if err != nil || info.IsDir() {
		return fieldError(section, "startdir", fmt.Sprintf("can't find %s in 'startdir'", launcher))
	}

	return nil
}

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.WatchConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: configuration is nil", ErrInvalidConfig)
	}

	if len(cfg.Targets) == 0 {
		return fmt.Errorf("%w: no servers configured", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(cfg.Targets))
	for _, t := range cfg.Targets {
		addr := t.Address.String()
		if seen[addr] {
			return &ValidationError{Section: addr, Reason: "is configured more than once"}
		}
		seen[addr] = true
	}

	return nil
}
