package evaluator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/utils"
)

// Output files looked up in a trial directory, in order.
const (
	OutputsYAML = "outputs.yaml"
	OutputsJSON = "outputs.json"
	ResultTxt   = "result.txt"
)

// ValidateOutputs checks that every objective and analyzed parameter has a
// finite value and returns only those values.
func ValidateOutputs(space *models.Space, outputs map[string]float64) (map[string]float64, error) {
	out := make(map[string]float64, len(space.Objectives)+len(space.Analyzed))
	for _, name := range space.OutputNames() {
		v, ok := outputs[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrUnreadableOutput, name)
		}
		if !utils.IsFinite(v) {
			return nil, fmt.Errorf("%w: %s is %v", ErrUnreadableOutput, name, v)
		}
		out[name] = v
	}
	return out, nil
}

// ReadOutputs analyzes a finished trial directory. outputs.yaml and
// outputs.json hold a name to number mapping; result.txt holds a single
// number assigned to the first objective.
func ReadOutputs(space *models.Space, dir string) (map[string]float64, error) {
	if data, err := os.ReadFile(filepath.Join(dir, OutputsYAML)); err == nil {
		outputs := make(map[string]float64)
		if err := yaml.Unmarshal(data, &outputs); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrUnreadableOutput, OutputsYAML, err)
		}
		return outputs, nil
	}
	if data, err := os.ReadFile(filepath.Join(dir, OutputsJSON)); err == nil {
		outputs := make(map[string]float64)
		if err := json.Unmarshal(data, &outputs); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrUnreadableOutput, OutputsJSON, err)
		}
		return outputs, nil
	}
	data, err := os.ReadFile(filepath.Join(dir, ResultTxt))
	if err != nil {
		return nil, fmt.Errorf("%w: no %s, %s or %s in %s", ErrUnreadableOutput, OutputsYAML, OutputsJSON, ResultTxt, dir)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrUnreadableOutput, ResultTxt, err)
	}
	return map[string]float64{space.Objectives[0].Name: v}, nil
}
