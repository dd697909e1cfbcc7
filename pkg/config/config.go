package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config structs

type Config struct {
	IsDebug bool `yaml:"is_debug"`

	DataDir string `yaml:"data_dir"`

	Matching Matching `yaml:"matching"`

	Env Env `yaml:"env"`
}

// Matching holds the tunables passed to engine.NewWithSlippageBound at
// startup. These are the only knobs the core exposes; everything else about
// a book (items, sides, time-in-force) is a property of the orders
// submitted to it, not of configuration.
type Matching struct {
	SlippageBound float64 `yaml:"slippage_bound"`
}

type Env struct {
	XlogMode  string `yaml:"xlog_mode"`
	XlogColor bool   `yaml:"xlog_color"`
}

// Global variables

const DEVDATA = "/usr/local/oxide-arbiter/devdata"

var Shared *Config // single instance of the config

var (
	fConfig string // config file path
)

func init() {
	flag.StringVar(&fConfig, "config", "", "specify the config file")
}

// Initialize the Shared config with the given config file path
func Init(configFile string) {
	file, err := os.Open(configFile)
	if err != nil {
		panic(err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	err = decoder.Decode(&Shared)
	if err != nil {
		panic(err)
	}
}

// Initialize the Shared config with the default config file path
func EasyInit() {
	fpath := fConfig
	if fpath == "" {
		fpath = "config/config.yml"
	}

	// if the config file does not exist, use the default config file path
	if _, err := os.Stat(fpath); os.IsNotExist(err) {
		fpath = DEVDATA + "/config.yml"
		printf(fmt.Sprintf("use config: %s (DEVDATA)", fpath))
	} else {
		printf(fmt.Sprintf("use config: %s", fpath))
	}

	// initialize the config
	Init(fpath)
}

// Print the given string to the standard output
func printf(s string) {
	fmt.Printf("%s %s\n", time.Now().Format("2006/01/02 15:04:05"), s)
}
