// Package workflowfile reads workflow definitions from YAML or JSON files.
package workflowfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aescanero/dagrun/internal/domain"
	"gopkg.in/yaml.v3"
)

// Parse decodes a workflow from YAML or JSON bytes. JSON is valid YAML, so
// one decoder serves both. The result is normalised through its JSON form
// so numbers in node data are float64 whichever syntax was used.
func Parse(data []byte) (*domain.Workflow, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("workflowfile: definition is empty")
	}
	var wf domain.Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("workflowfile: decode definition: %w", err)
	}
	out, err := wf.Clone()
	if err != nil {
		return nil, fmt.Errorf("workflowfile: %w", err)
	}
	return out, nil
}

// Load reads a workflow definition from r.
func Load(r io.Reader) (*domain.Workflow, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("workflowfile: read definition: %w", err)
	}
	return Parse(content)
}

// LoadFile reads a workflow definition from path. A path of "-" reads stdin.
func LoadFile(path string) (*domain.Workflow, error) {
	if path == "-" {
		return Load(os.Stdin)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflowfile: read %s: %w", path, err)
	}
	wf, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wf, nil
}

// ParseInput decodes a run input given as JSON text. Empty text yields nil,
// which runs start as {}.
func ParseInput(text string) (any, error) {
	if len(bytes.TrimSpace([]byte(text))) == 0 {
		return nil, nil
	}
	var input any
	if err := json.Unmarshal([]byte(text), &input); err != nil {
		return nil, fmt.Errorf("invalid input JSON: %w", err)
	}
	return input, nil
}
