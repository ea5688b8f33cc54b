package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/viper"
)

// newClient constructs the client for the configured node.
func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimSuffix(viper.GetString("url"), "/") + "/v1").
		SetTimeout(viper.GetDuration("timeout")).
		SetHeader("Accept", "application/json")
}

// call performs the request and writes the indented response body to w.
// A response outside the 2xx range is returned as an error.
func call(w io.Writer, req *resty.Request, method string, path string) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}

	if resp.IsError() {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var out bytes.Buffer
	if err := json.Indent(&out, resp.Body(), "", "  "); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	out.WriteByte('\n')

	_, err = out.WriteTo(w)
	return err
}
