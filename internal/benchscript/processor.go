// Package benchscript drives the export API with a scripted sequence of
// requests and summarizes elapsed times. It exists for smoke testing and
// load estimation of deployed instances.
package benchscript

import (
	"fmt"
	"os"
	"time"

	"github.com/querylab/workspace-export/pkg/restapi"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

type Mode string

const (
	SerialMode              Mode = "serial"
	SerialWithoutDelaysMode Mode = "serial-without-delays"
	ParallelMode            Mode = "parallel"
)

var ErrUnknownMode = errors.New("unknown mode")

const defaultPollInterval = 500 * time.Millisecond

// Client is the surface of the export API the script needs.
type Client interface {
	PostExport(input restapi.SaveExportInput) (*restapi.SaveExportOutput, time.Duration, error)
	GetProgress(clientID string) (*restapi.ProgressOutput, bool, error)
}

type Config struct {
	Mode         Mode
	RequestsPath string
	OutputPath   string
	Percentiles  []int

	// PollInterval sets how often the progress of an in-flight streaming
	// export is polled.
	PollInterval time.Duration

	// Parallelism caps the number of concurrent requests in parallel mode.
	Parallelism int
}

type Processor struct {
	config *Config
	client Client
}

func New(config *Config, client Client) *Processor {
	return &Processor{
		config: config,
		client: client,
	}
}

func (p *Processor) Process() error {
	data, err := LoadRequests(p.config.RequestsPath)
	if err != nil {
		return fmt.Errorf("requests data cannot be loaded: %w", err)
	}

	switch p.config.Mode {
	case SerialMode:
		p.processSerial(data, true)
	case SerialWithoutDelaysMode:
		p.processSerial(data, false)
	case ParallelMode:
		p.processParallel(data)
	default:
		return ErrUnknownMode
	}

	err = p.exportResult(data)
	if err != nil {
		return fmt.Errorf("failed to export script results: %w", err)
	}

	aggregator := NewAggregator(data.Requests)
	aggregator.PrintPercentiles(p.config.Percentiles)

	return nil
}

// processSerial sends requests one by one. With delays enabled the gaps
// between script timestamps are reproduced, so the original request rate is
// replayed.
func (p *Processor) processSerial(data *Data, withDelays bool) {
	for i, req := range data.Requests {
		p.processOne(req)

		if withDelays && i != len(data.Requests)-1 {
			nextRequestTime := data.Requests[i+1].Timestamp
			time.Sleep(nextRequestTime.Sub(req.Timestamp))
		}
	}
}

func (p *Processor) processParallel(data *Data) {
	var g errgroup.Group
	if p.config.Parallelism > 0 {
		g.SetLimit(p.config.Parallelism)
	}

	for _, req := range data.Requests {
		req := req
		g.Go(func() error {
			p.processOne(req)
			return nil
		})
	}

	_ = g.Wait()
}

func (p *Processor) processOne(req *Request) {
	done := make(chan struct{})
	if req.Streaming {
		go p.watchProgress(req.ClientID, done)
	}

	out, elapsed, err := p.client.PostExport(restapi.SaveExportInput{
		ClientID:  req.ClientID,
		Filename:  req.Filename,
		Subfolder: req.Subfolder,
		Streaming: req.Streaming,
	})

	if req.Streaming {
		close(done)
	}

	req.TimeElapsed = &elapsed

	if err != nil {
		req.Failed = true
		fmt.Printf("Received error from export service: %s\n", err)

		return
	}

	req.RowCount = out.RowCount
	fmt.Printf("Processed request %s: %d rows in %s\n", req.ClientID, out.RowCount, elapsed.String())
}

// watchProgress polls the progress endpoint until the export request
// returns, printing intermediate row counts.
func (p *Processor) watchProgress(clientID string, done <-chan struct{}) {
	interval := p.config.PollInterval
	if interval == 0 {
		interval = defaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		entry, found, err := p.client.GetProgress(clientID)
		if err != nil {
			fmt.Printf("Failed to poll progress of %s: %s\n", clientID, err)
			continue
		}
		if !found {
			continue
		}

		fmt.Printf("Progress of %s: %d/%d (%s)\n", clientID, entry.Processed, entry.Total, entry.Status)
	}
}

func (p *Processor) exportResult(data *Data) error {
	outputFile, err := os.Create(p.config.OutputPath)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}

	defer outputFile.Close()

	yamlFile, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal requests to yaml: %w", err)
	}

	_, err = outputFile.Write(yamlFile)
	if err != nil {
		return fmt.Errorf("failed to write data to output file: %w", err)
	}

	return nil
}
