// Package exportclient is a typed client of the workspace export API.
package exportclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/querylab/workspace-export/pkg/restapi"
)

type Config struct {
	BaseURL string
}

type ExportClient struct {
	baseURL string
	client  *http.Client
}

type PostExportResponse struct {
	Result restapi.SaveExportOutput `json:"result"`
}

type GetProgressResponse struct {
	Result restapi.ProgressOutput `json:"result"`
}

type ErrorResponse struct {
	Error *restapi.ErrorResponse `json:"error"`
}

func New(c *Config) *ExportClient {
	return &ExportClient{
		baseURL: c.BaseURL,
		client:  &http.Client{Timeout: 0},
	}
}

// PostExport saves the query results to the workspace and reports how long
// the server spent on the export.
func (c *ExportClient) PostExport(input restapi.SaveExportInput) (*restapi.SaveExportOutput, time.Duration, error) {
	url := c.baseURL + "/api/exports"

	jsonData, err := json.Marshal(input)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request body")
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, 0, fmt.Errorf("invalid request: %w", err)
	}

	response, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}

	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("can't parse response body: %w", err)
	}

	if response.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != nil {
			return nil, 0, fmt.Errorf("export failed with code %d: %s", errResp.Error.Code, errResp.Error.Message)
		}

		return nil, 0, fmt.Errorf("received unsuccessful status from export service: %s", body)
	}

	var result PostExportResponse
	err = json.Unmarshal(body, &result)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid body response: %w", err)
	}

	duration, err := time.ParseDuration(result.Result.TimeElapsed)
	if err != nil {
		return nil, 0, fmt.Errorf("can't parse elapsed time: %w", err)
	}

	return &result.Result, duration, nil
}

// GetProgress polls the progress of a streaming export. The second return
// value is false when the server has no entry for the client.
func (c *ExportClient) GetProgress(clientID string) (*restapi.ProgressOutput, bool, error) {
	url := c.baseURL + "/api/exports/" + clientID + "/progress"

	response, err := c.client.Get(url)
	if err != nil {
		return nil, false, fmt.Errorf("request failed: %w", err)
	}

	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, false, fmt.Errorf("can't parse response body: %w", err)
	}

	if response.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}

	if response.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("received unsuccessful status from export service: %s", body)
	}

	var result GetProgressResponse
	err = json.Unmarshal(body, &result)
	if err != nil {
		return nil, false, fmt.Errorf("invalid body response: %w", err)
	}

	return &result.Result, true, nil
}
