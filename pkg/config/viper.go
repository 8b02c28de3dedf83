// Package config initializes the process-wide Viper instance used by the CLI.
// Settings come from a config file, CRAWLER_* environment variables and
// command-line flags bound by the cobra commands.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	internalconfig "github.com/JakeFAU/jobsearch-crawler/internal/config"
)

// InitConfig prepares the global Viper. An explicit cfgFile must exist; without
// one the search paths are tried and a missing file is not an error. It
// reports the config file in use, or "".
func InitConfig(cfgFile string) (string, error) {
	v := viper.GetViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/jobcrawler/")
		v.AddConfigPath("$HOME/.jobcrawler")
	}

	internalconfig.SetDefaults(v)

	v.SetEnvPrefix("CRAWLER") // e.g. CRAWLER_SEARCH_KEYWORDS=golang
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}
