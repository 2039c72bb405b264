package converter

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"strings"

	"github.com/sitedex/sitedex/internal/domain"
	"github.com/sitedex/sitedex/internal/metadata"
	"github.com/sitedex/sitedex/internal/utils"
)

// Client talks to a Tika JAX-RS server. The downloaded file is PUT to the
// service twice, once for metadata and once for plain text; both answers
// are treated as UTF-8.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *utils.Logger
}

// NewClient creates a converter client against the given Tika base URL.
func NewClient(baseURL string, httpClient *http.Client, log *utils.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		log:        log.WithComponent("converter"),
	}
}

// ExtractMetadata sends the downloaded body to the /meta endpoint and
// returns the parsed, normalized metadata mapping.
func (c *Client) ExtractMetadata(ctx context.Context, ri *domain.ResourceInfo) (map[string]string, error) {
	c.log.Info().Str("url", ri.URLInfo.Loc).Str("file", ri.Filename).Msg("extracting metadata")

	body, err := c.put(ctx, "meta", ri, "")
	if err != nil {
		return nil, err
	}

	mapping, err := parseMetadataCSV(body)
	if err != nil {
		return nil, &domain.ConverterError{Endpoint: "meta", Err: err}
	}
	return metadata.Normalize(mapping), nil
}

// ExtractText sends the downloaded body to the /tika endpoint and returns
// the extracted plain text.
func (c *Client) ExtractText(ctx context.Context, ri *domain.ResourceInfo) (string, error) {
	c.log.Info().Str("url", ri.URLInfo.Loc).Str("file", ri.Filename).Msg("extracting plain text")

	body, err := c.put(ctx, "tika", ri, "text/plain")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ExtractAll runs both extractions concurrently and fills ri.Metadata and
// ri.Text. The first failure wins.
func (c *Client) ExtractAll(ctx context.Context, ri *domain.ResourceInfo) error {
	tasks := []func(context.Context) error{
		func(ctx context.Context) error {
			mapping, err := c.ExtractMetadata(ctx, ri)
			if err != nil {
				return err
			}
			ri.Metadata = mapping
			return nil
		},
		func(ctx context.Context) error {
			text, err := c.ExtractText(ctx, ri)
			if err != nil {
				return err
			}
			ri.Text = text
			return nil
		},
	}

	errs := utils.ParallelForEach(ctx, tasks, len(tasks), func(ctx context.Context, task func(context.Context) error) error {
		return task(ctx)
	})
	return utils.FirstError(errs)
}

// put streams the downloaded file to a converter endpoint.
func (c *Client) put(ctx context.Context, endpoint string, ri *domain.ResourceInfo, accept string) ([]byte, error) {
	file, err := ri.Open()
	if err != nil {
		return nil, &domain.ConverterError{Endpoint: endpoint, Err: err}
	}
	defer file.Close()

	url := c.baseURL + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, file)
	if err != nil {
		return nil, &domain.ConverterError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", ri.ContentType)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ConverterError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ConverterError{Endpoint: endpoint, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.ConverterError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}
	return body, nil
}

// parseMetadataCSV reads the /meta response, one "key,value" row per
// property. Rows may carry surplus columns and keys may repeat; both join
// into one value with a single space.
func parseMetadataCSV(data []byte) (map[string]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	mapping := make(map[string]string)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 0 || record[0] == "" {
			continue
		}

		value := strings.Join(record[1:], " ")
		if prev, ok := mapping[record[0]]; ok {
			value = strings.TrimSpace(prev + " " + value)
		}
		mapping[record[0]] = value
	}
	return mapping, nil
}
