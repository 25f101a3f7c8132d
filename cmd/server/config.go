package main

import (
	"context"
	"os"
	"time"

	"github.com/querylab/workspace-export/pkg/resultsbackend"

	"github.com/aws/aws-sdk-go-v2/aws"
	gconfig "github.com/gookit/config/v2"
	gyaml "github.com/gookit/config/v2/yaml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

const DefaultConfigPath = "config.yaml"

type LogFormat string

const (
	PrettyLogFormat LogFormat = "pretty"
	JSONLogFormat   LogFormat = "json"
)

type Config struct {
	LogLevel  string    `mapstructure:"log_level"`
	LogFormat LogFormat `mapstructure:"log_format"`

	API API `mapstructure:"api"`

	PrometheusExportAddress string `mapstructure:"prometheus_address"`

	AWS AWS `mapstructure:"aws"`

	Workspace Workspace `mapstructure:"workspace"`

	ResultsBackend ResultsBackend `mapstructure:"results_backend"`

	Progress Progress `mapstructure:"progress"`
}

type API struct {
	ListeningAddress string        `mapstructure:"address"`
	ServerTimeout    time.Duration `mapstructure:"server_timeout"`
}

type AWS struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region"`

	QueryRecordsTableName string `mapstructure:"query_records_table"`
}

type Workspace struct {
	Root string `mapstructure:"root"`

	CSVDelimiter string `mapstructure:"csv_delimiter"`
	CSVUseCRLF   bool   `mapstructure:"csv_use_crlf"`
	CSVWriteBOM  bool   `mapstructure:"csv_write_bom"`
}

type ResultsBackend struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	MaxRPS int    `mapstructure:"max_rps"`
}

type Progress struct {
	JanitorSchedule string        `mapstructure:"janitor_schedule"`
	Retention       time.Duration `mapstructure:"retention"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultConfigPath
	}

	gconfig.WithOptions(
		gconfig.ParseEnv,
		gconfig.Readonly,
		func(opts *gconfig.Options) {
			opts.DecoderConfig = &mapstructure.DecoderConfig{
				TagName:          "mapstructure",
				WeaklyTypedInput: true,
				DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			}
		},
	)
	gconfig.AddDriver(gyaml.Driver)

	err := gconfig.LoadFiles(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	cfg := new(Config)
	err = gconfig.BindStruct("", cfg)
	if err != nil {
		return nil, errors.Wrap(err, "config binding failed")
	}

	err = cfg.validate()
	if err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}

// validate verifies the loaded config and sets default values for missed fields.
func (c *Config) validate() error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = JSONLogFormat
	}

	if c.API.ListeningAddress == "" {
		c.API.ListeningAddress = ":9000"
	}
	if c.API.ServerTimeout == 0 {
		c.API.ServerTimeout = 60 * time.Second
	}

	if c.PrometheusExportAddress == "" {
		c.PrometheusExportAddress = ":2112"
	}

	if c.AWS.Region == "" {
		return errors.New("aws.region is required")
	}
	if c.AWS.QueryRecordsTableName == "" {
		return errors.New("aws.query_records_table is required")
	}

	if c.Workspace.Root == "" {
		return errors.New("workspace.root is required")
	}
	if len([]rune(c.Workspace.CSVDelimiter)) > 1 {
		return errors.New("workspace.csv_delimiter must be a single character")
	}

	if c.ResultsBackend.URL != "" && c.ResultsBackend.MaxRPS == 0 {
		c.ResultsBackend.MaxRPS = resultsbackend.DefaultMaxRPS
	}

	if c.Progress.JanitorSchedule != "" && c.Progress.Retention == 0 {
		c.Progress.Retention = 24 * time.Hour
	}

	return nil
}

func (c *Config) Retrieve(_ context.Context) (aws.Credentials, error) {
	return aws.Credentials{
		AccessKeyID:     c.AWS.AccessKeyID,
		SecretAccessKey: c.AWS.SecretAccessKey,
		Source:          "local config",
	}, nil
}
