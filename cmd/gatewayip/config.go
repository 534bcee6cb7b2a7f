package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Travis-Britz/gatewayip"
)

type config struct {
	Hostname     string
	AccountID    string
	LocationID   string
	LocationName string
	KeyFile      string
	// Token comes from CF_API_TOKEN; when empty the key file is read.
	Token string
	IP    string
	Iface string

	// AllowList is the raw VALID_IP value; AllowSet reports whether it was given at all.
	AllowList string
	AllowSet  bool
	AllowFile string

	TelegramToken  string
	TelegramChatID string
	NotifyNoop     bool

	DoHURL  string
	DoHWire bool

	Interval time.Duration
	Listen   string
	Timeout  time.Duration

	Verbose bool
	LogFile string

	// flagArgs are the arguments that preceded the command.
	flagArgs []string
	command  string
	args     []string
}

// loadConfig reads configuration from the environment, then lets flags override it.
func loadConfig(args []string, lookupEnv func(string) (string, bool)) (config, error) {
	var errs []error
	env := func(key, defaultvalue string) string {
		if v, found := lookupEnv(key); found {
			return v
		}
		return defaultvalue
	}
	envBool := func(key string) bool {
		v, found := lookupEnv(key)
		if !found || v == "" {
			return false
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return b
	}
	envDuration := func(key string, defaultvalue time.Duration) time.Duration {
		v, found := lookupEnv(key)
		if !found || v == "" {
			return defaultvalue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return defaultvalue
		}
		return d
	}

	home, _ := os.UserHomeDir()
	cfg := config{}
	cfg.AllowList, cfg.AllowSet = lookupEnv("VALID_IP")
	cfg.Token = env("CF_API_TOKEN", "")
	cfg.TelegramToken = env("TELEGRAM_TOKEN", "")

	fs := flag.NewFlagSet("gatewayip", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: gatewayip [flags] [run|serve|setup|verify|service <action>]\n\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.Hostname, "d", env("GATEWAYIP_HOSTNAME", gatewayip.DefaultHostname), "Dynamic DNS hostname to follow")
	fs.StringVar(&cfg.AccountID, "account", env("CF_ACCOUNT_ID", ""), "Cloudflare account ID")
	fs.StringVar(&cfg.LocationID, "location-id", env("CF_LOCATION_ID", ""), "Gateway location ID (patches networks only)")
	fs.StringVar(&cfg.LocationName, "location-name", env("CF_LOCATION_NAME", ""), "Gateway location name (replaces the full record)")
	fs.StringVar(&cfg.KeyFile, "k", env("CF_API_KEY_FILE", filepath.Join(home, ".cloudflare")), "Path to cloudflare API credentials file, used when CF_API_TOKEN is unset")
	fs.StringVar(&cfg.IP, "ip", "", "IP address to set instead of resolving the hostname")
	fs.StringVar(&cfg.Iface, "iface", env("GATEWAYIP_INTERFACE", ""), "Read the address from this network interface instead of resolving the hostname")
	fs.StringVar(&cfg.AllowFile, "allow-file", env("VALID_IP_FILE", ""), "File of allowed address prefixes, one per line (replaces VALID_IP)")
	fs.StringVar(&cfg.TelegramChatID, "chat", env("TELEGRAM_CHAT_ID", ""), "Telegram chat ID for notifications")
	fs.BoolVar(&cfg.NotifyNoop, "notify-noop", envBool("GATEWAYIP_NOTIFY_NOOP"), "Send a notification when no update is needed")
	fs.StringVar(&cfg.DoHURL, "doh", env("GATEWAYIP_DOH_URL", gatewayip.DefaultDoHURL), "DNS-over-HTTPS endpoint")
	fs.BoolVar(&cfg.DoHWire, "doh-wire", envBool("GATEWAYIP_DOH_WIRE"), "Use the RFC 8484 wire format instead of JSON")
	fs.DurationVar(&cfg.Interval, "i", envDuration("GATEWAYIP_INTERVAL", 5*time.Minute), "Duration to wait between runs when serving")
	fs.StringVar(&cfg.Listen, "listen", env("GATEWAYIP_LISTEN", ""), "Address for the HTTP trigger when serving, e.g. 127.0.0.1:8080")
	fs.DurationVar(&cfg.Timeout, "timeout", envDuration("GATEWAYIP_TIMEOUT", 15*time.Second), "Timeout for each outbound request")
	fs.BoolVar(&cfg.Verbose, "v", envBool("GATEWAYIP_VERBOSE"), "Enable verbose logging")
	fs.StringVar(&cfg.LogFile, "log-file", env("GATEWAYIP_LOG_FILE", ""), "Also write logs to this file, rotated")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if len(errs) > 0 {
		return config{}, fmt.Errorf("invalid environment: %w", errors.Join(errs...))
	}

	cfg.flagArgs = args[:len(args)-fs.NArg()]
	// arguments are appended to flagArgs when installing the service
	if n := len(cfg.flagArgs); n > 0 && cfg.flagArgs[n-1] == "--" {
		cfg.flagArgs = cfg.flagArgs[:n-1]
	}
	cfg.command = "run"
	if fs.NArg() > 0 {
		cfg.command, cfg.args = fs.Arg(0), fs.Args()[1:]
	}
	cfg.Hostname = strings.TrimSpace(cfg.Hostname)
	cfg.LocationName = strings.TrimSpace(cfg.LocationName)
	return cfg, nil
}

// validate checks the settings every reconciling command needs.
func (cfg config) validate() error {
	if cfg.Hostname == "" {
		return errors.New("hostname cannot be empty")
	}
	if !strings.Contains(cfg.Hostname, ".") {
		return errors.New("hostname must have at least one dot")
	}
	if cfg.AccountID == "" {
		return errors.New("account ID is required (CF_ACCOUNT_ID or -account)")
	}
	if (cfg.LocationID == "") == (cfg.LocationName == "") {
		return errors.New("exactly one of a location ID (CF_LOCATION_ID) or a location name (CF_LOCATION_NAME) is required")
	}
	if cfg.IP != "" && cfg.Iface != "" {
		return errors.New("-ip and -iface cannot be used together")
	}
	if cfg.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

func (cfg config) lookup() gatewayip.Lookup {
	if cfg.LocationName != "" {
		return gatewayip.ByName(cfg.LocationName)
	}
	return gatewayip.ByID(cfg.LocationID)
}

// allowList returns the configured allow-list and whether one was configured.
// A configured list without entries is an error rather than a list that blocks every address.
func (cfg config) allowList() (gatewayip.AllowList, bool, error) {
	text, set := cfg.AllowList, cfg.AllowSet
	if cfg.AllowFile != "" {
		b, err := os.ReadFile(cfg.AllowFile)
		if err != nil {
			return gatewayip.AllowList{}, false, fmt.Errorf("error reading allow-list: %w", err)
		}
		text, set = string(b), true
	}
	if !set {
		return gatewayip.AllowList{}, false, nil
	}
	allow, err := gatewayip.ParseAllowList(text)
	if err != nil {
		return gatewayip.AllowList{}, false, err
	}
	if allow.Empty() {
		return gatewayip.AllowList{}, false, errors.New("allow-list is configured but has no entries")
	}
	return allow, true, nil
}
