package benchscript

import (
	"time"

	gconfig "github.com/gookit/config/v2"
	gyaml "github.com/gookit/config/v2/yaml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Data is the request script: export requests to send, in timestamp order,
// annotated with outcomes after a run.
type Data struct {
	Requests []*Request `mapstructure:"requests" yaml:"requests"`
}

type Request struct {
	ClientID  string    `mapstructure:"client_id" yaml:"client_id"`
	Filename  string    `mapstructure:"filename" yaml:"filename"`
	Subfolder string    `mapstructure:"subfolder" yaml:"subfolder"`
	Streaming bool      `mapstructure:"streaming" yaml:"streaming"`
	Timestamp time.Time `mapstructure:"timestamp" yaml:"timestamp"`

	TimeElapsed *time.Duration `mapstructure:"-" yaml:"time_elapsed,omitempty"`
	RowCount    int64          `mapstructure:"-" yaml:"row_count,omitempty"`
	Failed      bool           `mapstructure:"-" yaml:"failed,omitempty"`
}

// LoadRequests reads a YAML request script.
func LoadRequests(path string) (*Data, error) {
	cfg := gconfig.NewWithOptions("benchscript",
		gconfig.ParseEnv,
		gconfig.Readonly,
		func(opts *gconfig.Options) {
			opts.DecoderConfig = &mapstructure.DecoderConfig{
				TagName:          "mapstructure",
				WeaklyTypedInput: true,
				DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			}
		},
	)
	cfg.AddDriver(gyaml.Driver)

	err := cfg.LoadFiles(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load requests")
	}

	data := new(Data)
	err = cfg.BindStruct("", data)
	if err != nil {
		return nil, errors.Wrap(err, "requests data binding failed")
	}

	data.validate()

	return data, nil
}

// validate sets default values for missed fields.
func (d *Data) validate() {
	for _, req := range d.Requests {
		if req.Filename == "" {
			req.Filename = req.ClientID + ".csv"
		}
	}
}
