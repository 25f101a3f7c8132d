package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/querylab/workspace-export/internal/benchscript"
	"github.com/querylab/workspace-export/internal/queryrecord"
	"github.com/querylab/workspace-export/pkg/exportclient"

	awsconf "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type Action string

const (
	RunScript   Action = "run-script"
	SeedRecords Action = "seed-records"
)

func main() {
	var action string
	var needHelp bool
	var recordsFile string

	flag.StringVar(&action, "action", "", "Action to process: run-script, seed-records")
	flag.BoolVar(&needHelp, "help", false, "Need to print help info for actions")
	flag.StringVar(&recordsFile, "records", "records_data.yml", "Query records file path for seed-records")
	flag.Parse()

	if needHelp && action == "" {
		fmt.Println("This is a script for testing the workspace export service and calculating request elapsed times.\n" +
			"Specify action type by passing --action argument.\n\n" +
			"seed-records: create query records in DynamoDB, so export requests have something to refer to.\n" +
			"Use --action=seed-records --help for more information.\n\n" +
			"run-script: takes a request script (client id, filename, streaming flag) and sends export requests,\n" +
			"polling streaming progress and calculating percentiles of elapsed times.\n" +
			"Use --action=run-script --help for more information.")
		return
	}

	config, err := LoadConfig()
	if err != nil {
		fmt.Printf("config cannot be loaded: %s\n", err)
		return
	}

	switch Action(action) {
	case RunScript:
		if needHelp {
			fmt.Println("Sends scripted export requests and calculates elapsed times.\n" +
				"Supported modes: serial, serial-without-delays, parallel.\n\n" +
				"serial:\t\t\tprocess requests with delays between them (taken from script timestamps)\n" +
				"serial-without-delays:\tprocess requests back to back\n" +
				"parallel:\t\tprocess requests in parallel running goroutines\n\n" +
				"You can specify the output file path by setting \"output_path\" in the config")
			return
		}

		runScript(config)

	case SeedRecords:
		if needHelp {
			fmt.Println("Creates query records in DynamoDB from a YAML file.\n\n" +
				"Arguments:\n" +
				"--records:\tpath to the records file. Each record carries client_id (generated when empty),\n" +
				"\t\texecuted_sql, limiting_factor and the target database driver and dsn.")
			return
		}

		err = seedRecords(config, recordsFile)
		if err != nil {
			fmt.Printf("Failed to seed records: %s\n", err)
		}

	default:
		fmt.Println("Unknown action type. Supported: run-script, seed-records. Use --help for more information.")
	}
}

func runScript(config *Config) {
	client := exportclient.New(&exportclient.Config{
		BaseURL: config.Export.BaseURL,
	})

	processor := benchscript.New(&benchscript.Config{
		Mode:         config.Script.Mode,
		RequestsPath: config.Script.RequestsPath,
		OutputPath:   *config.Script.OutputPath,
		Percentiles:  config.Script.Percentiles,
		PollInterval: config.Script.PollInterval,
		Parallelism:  config.Script.Parallelism,
	}, client)

	err := processor.Process()
	if err != nil {
		fmt.Printf("Failed to process the request script: %s\n", err)
	}
}

type seedFile struct {
	Records []seedRecord `yaml:"records"`
}

type seedRecord struct {
	ClientID       string `yaml:"client_id"`
	SelectSQL      string `yaml:"select_sql"`
	ExecutedSQL    string `yaml:"executed_sql"`
	LimitingFactor string `yaml:"limiting_factor"`
	ResultsKey     string `yaml:"results_key"`
	Catalog        string `yaml:"catalog"`
	Schema         string `yaml:"schema"`
	Driver         string `yaml:"driver"`
	DSN            string `yaml:"dsn"`
}

func seedRecords(config *Config, path string) error {
	ctx := context.Background()

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read the records file: %w", err)
	}

	var file seedFile
	err = yaml.Unmarshal(raw, &file)
	if err != nil {
		return fmt.Errorf("failed to parse the records file: %w", err)
	}

	var awsOpts []func(*awsconf.LoadOptions) error
	if config.AWS.AccessKeyID != "" {
		awsOpts = append(awsOpts, awsconf.WithCredentialsProvider(config))
	}

	awsOpts = append(awsOpts, awsconf.WithRegion(config.AWS.Region))

	awsConfig, err := awsconf.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	repo := queryrecord.NewRepository(dynamodb.NewFromConfig(awsConfig), config.AWS.QueryRecordsTableName)

	for _, rec := range file.Records {
		clientID := rec.ClientID
		if clientID == "" {
			clientID = uuid.New().String()
		}

		factor := queryrecord.LimitingFactor(rec.LimitingFactor)
		if factor == "" {
			factor = queryrecord.LimitNone
		}

		err = repo.Create(ctx, &queryrecord.Record{
			ClientID:       clientID,
			SelectSQL:      rec.SelectSQL,
			ExecutedSQL:    rec.ExecutedSQL,
			LimitingFactor: factor,
			ResultsKey:     rec.ResultsKey,
			Catalog:        rec.Catalog,
			Schema:         rec.Schema,
			Database: queryrecord.Database{
				Driver: rec.Driver,
				DSN:    rec.DSN,
			},
			CreatedAt: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to create record %s: %w", clientID, err)
		}

		fmt.Printf("Created record %s\n", clientID)
	}

	fmt.Printf("Successfully created %d records\n", len(file.Records))

	return nil
}
