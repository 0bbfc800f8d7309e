package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

func newOverrideCmd() *cobra.Command {
	var port int
	var mode string
	var targetTemp float64
	var expiresIn int

	cmd := &cobra.Command{
		Use:   "override",
		Short: "Apply a manual override to a running controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := struct {
				Mode       string   `json:"mode"`
				TargetTemp *float64 `json:"targetTemp,omitempty"`
				ExpiresIn  int      `json:"expiresInSeconds,omitempty"`
			}{Mode: mode, ExpiresIn: expiresIn}
			if cmd.Flags().Changed("target-temp") {
				req.TargetTemp = &targetTemp
			}
			body, err := json.Marshal(req)
			if err != nil {
				return err
			}
			return fetchAndPrint(port, http.MethodPost, "/override", body)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8090, "status server port of the running controller")
	cmd.Flags().StringVar(&mode, "mode", "", "override mode: auto, heat_only, cool_only, off")
	cmd.Flags().Float64Var(&targetTemp, "target-temp", 0, "optional target temperature")
	cmd.Flags().IntVar(&expiresIn, "expires-in", 0, "seconds until the override clears itself; 0 means no expiry")
	cmd.MarkFlagRequired("mode")
	return cmd
}

func bytesReader(b []byte) io.Reader {
	if b == nil {
		return nil
	}
	return bytes.NewReader(b)
}
