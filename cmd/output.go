package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kozaktomas/face-login/internal/facematch"
)

// outputJSON prints data as indented JSON to stdout.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// readDescriptorFile reads a descriptor from a JSON file ("-" for stdin).
// The file holds either a bare array of numbers or an object with a "descriptor" array,
// the same body the HTTP API accepts.
func readDescriptorFile(path string) (facematch.Descriptor, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		var buf bytes.Buffer
		_, err = buf.ReadFrom(os.Stdin)
		data = buf.Bytes()
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading descriptor file: %w", err)
	}
	return parseDescriptorJSON(data)
}

func parseDescriptorJSON(data []byte) (facematch.Descriptor, error) {
	data = bytes.TrimSpace(data)

	var values []float64
	if len(data) > 0 && data[0] == '{' {
		var body struct {
			Descriptor []float64 `json:"descriptor"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("parsing descriptor JSON: %w", err)
		}
		values = body.Descriptor
	} else if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing descriptor JSON: %w", err)
	}

	return facematch.ParseDescriptor(values)
}
