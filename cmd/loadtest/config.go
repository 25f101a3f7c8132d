package main

import (
	"context"
	"os"
	"time"

	"github.com/querylab/workspace-export/internal/benchscript"

	"github.com/aws/aws-sdk-go-v2/aws"
	gconfig "github.com/gookit/config/v2"
	gyaml "github.com/gookit/config/v2/yaml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

const DefaultConfigPath = "loadtest_config.yml"
const DefaultRequestsPath = "requests_data.yml"
const DefaultOutputPath = "loadtest_output.yml"

type Config struct {
	Export ExportSettings `mapstructure:"export"`
	Script Script         `mapstructure:"script"`
	AWS    AWS            `mapstructure:"aws"`
}

type ExportSettings struct {
	BaseURL string `mapstructure:"base_url"`
}

type Script struct {
	Mode         benchscript.Mode `mapstructure:"mode"`
	RequestsPath string           `mapstructure:"requests_data_path"`
	OutputPath   *string          `mapstructure:"output_path"`
	Percentiles  []int            `mapstructure:"percentiles_to_calculate"`
	PollInterval time.Duration    `mapstructure:"poll_interval"`
	Parallelism  int              `mapstructure:"parallelism"`
}

type AWS struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region"`

	QueryRecordsTableName string `mapstructure:"query_records_table"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("LOADTEST_CONFIG_PATH")
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
	if c.Export.BaseURL == "" {
		return errors.New("missing export service base url")
	}

	if c.Script.RequestsPath == "" {
		c.Script.RequestsPath = DefaultRequestsPath
	}

	if c.Script.OutputPath == nil {
		outputPath := DefaultOutputPath
		c.Script.OutputPath = &outputPath
	}

	if len(c.Script.Percentiles) == 0 {
		c.Script.Percentiles = []int{50, 90, 99}
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
