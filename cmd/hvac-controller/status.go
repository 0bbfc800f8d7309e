package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/thatsimonsguy/hvac-controller/internal/herrors"
)

func newStatusCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print a status snapshot from a running controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetchAndPrint(port, http.MethodGet, "/status", nil)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8090, "status server port of the running controller")
	return cmd
}

func fetchAndPrint(port int, method, path string, body []byte) error {
	url := fmt.Sprintf("http://127.0.0.1:%d%s", port, path)

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(method, url, bytesReader(body))
	if err != nil {
		return &herrors.ConnectionError{Op: "building status request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return &herrors.ConnectionError{Op: "reaching controller status endpoint", Err: err}
	}
	defer resp.Body.Close()

	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return &herrors.ConnectionError{Op: "parsing status response", Err: err}
	}

	if resp.StatusCode >= 300 {
		return &herrors.ConnectionError{Op: fmt.Sprintf("controller returned HTTP %d", resp.StatusCode)}
	}

	pretty, _ := json.MarshalIndent(payload, "", "  ")
	fmt.Println(string(pretty))
	return nil
}
