package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/download"
	"github.com/spf13/cobra"
)

var linkCmd = &cobra.Command{
	Use:   "link <reference>",
	Short: "Request a download link from a running server",
	Long: `Call GET /downloads/{reference} on a download-server with the given token
and print the response.

Example:
  downloadctl link alice@example.com_1234 --server http://localhost:8080 --token "eyJ..."`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: linkTimeout}
		status, body, err := requestLink(cmd.Context(), client, serverURL, linkToken, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(body); err != nil {
			return err
		}
		if !body.Success {
			return fmt.Errorf("server returned %d", status)
		}
		return nil
	},
}

var (
	serverURL   string
	linkToken   string
	linkTimeout time.Duration
)

func init() {
	linkCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "download-server base URL")
	linkCmd.Flags().StringVar(&linkToken, "token", "", "identity token (required)")
	linkCmd.Flags().DurationVar(&linkTimeout, "timeout", 30*time.Second, "request timeout")
	_ = linkCmd.MarkFlagRequired("token")
}

// requestLink calls the download endpoint and decodes the JSON response.
func requestLink(ctx context.Context, client *http.Client, baseURL, token, reference string) (int, *download.ResponseBody, error) {
	endpoint := strings.TrimRight(baseURL, "/") + "/downloads/" + url.PathEscape(reference)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	var body download.ResponseBody
	if err := json.Unmarshal(data, &body); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return resp.StatusCode, &body, nil
}
