package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const DefaultTestPagesURL = "https://testpages.adblockplus.org/en/"

// Config holds all configuration of a test run. Everything comes from environment variables.
type Config struct {
	// Catalog of demonstration pages that suites can use.
	TestPagesURL      string `envconfig:"TEST_PAGES_URL" default:"https://testpages.adblockplus.org/en/"`
	TestPagesInsecure Flag   `envconfig:"TEST_PAGES_INSECURE"`

	// Extension build.
	SkipBuild    Flag   `envconfig:"SKIP_BUILD"`
	DevenvDir    string `envconfig:"DEVENV_DIR" default:"."`
	BuildCommand string `envconfig:"BUILD_COMMAND" default:"npx gulp devenv -t {platform}"`

	// Which registered browser modules and suites take part in the run.
	Browsers []string `envconfig:"BROWSERS" default:"chromium,firefox,edge"`
	Suites   []string `envconfig:"SUITES" default:"testpages"`

	// Where downloaded browser binaries are kept between runs.
	BrowserCacheDir string `envconfig:"BROWSER_CACHE_DIR" default:".browsers"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`

	// Getenv looks up per-browser overrides such as CHROMIUM_BINARY.
	Getenv func(string) string `ignored:"true"`
}

// Flag is a boolean that is only true for the exact value "true".
type Flag bool

// Decode implements envconfig.Decoder.
func (f *Flag) Decode(value string) error {
	*f = value == "true"
	return nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, err
	}
	config.Getenv = os.Getenv
	if err := validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func validate(config *Config) error {
	if config.TestPagesURL == "" {
		return fmt.Errorf("TEST_PAGES_URL must not be empty")
	}
	if config.DevenvDir == "" {
		return fmt.Errorf("DEVENV_DIR must not be empty")
	}
	if !bool(config.SkipBuild) && !strings.Contains(config.BuildCommand, "{platform}") {
		return fmt.Errorf("BUILD_COMMAND must contain the {platform} placeholder")
	}
	config.Browsers = compact(config.Browsers)
	config.Suites = compact(config.Suites)
	return nil
}

// BinaryOverride returns the value of the <BROWSER>_BINARY variable for the named browser.
func (c *Config) BinaryOverride(browser string) string {
	if c.Getenv == nil {
		return ""
	}
	return c.Getenv(BinaryOverrideVar(browser))
}

// BinaryOverrideVar is the name of the variable that overrides the binary of a browser.
func BinaryOverrideVar(browser string) string {
	return strings.ToUpper(browser) + "_BINARY"
}

func compact(names []string) []string {
	var ret []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			ret = append(ret, n)
		}
	}
	return ret
}
