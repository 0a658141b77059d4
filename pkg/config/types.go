package config

import (
	"path/filepath"
	"time"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// Campaign represents a complete exploration campaign configuration
type Campaign struct {
	Name        string       `yaml:"name"`
	LogLevel    string       `yaml:"log_level"`
	LogFormat   string       `yaml:"log_format"`
	Space       models.Space `yaml:"space"`
	Exploration Exploration  `yaml:"exploration"`
	Generator   Generator    `yaml:"generator"`
	Evaluator   Evaluator    `yaml:"evaluator"`
	Server      *Server      `yaml:"server,omitempty"`
	Notify      *Notify      `yaml:"notify,omitempty"`
}

// Exploration holds the orchestrator limits
type Exploration struct {
	Workers      int    `yaml:"workers"`
	RunMode      string `yaml:"run_mode"`      // async or sync
	MaxEvals     int    `yaml:"max_evals"`     // 0 means unbounded
	Deadline     string `yaml:"deadline"`      // e.g., "2h", empty means none
	DrainTimeout string `yaml:"drain_timeout"` // e.g., "30s"
	PollInterval string `yaml:"poll_interval"` // e.g., "200ms"
	CampaignDir  string `yaml:"campaign_dir"`  // checkpoint, stop file and trial dirs live here
	Checkpoint   string `yaml:"checkpoint"`    // defaults to <campaign_dir>/checkpoint.json
	Resume       bool   `yaml:"resume"`
	StopFile     bool   `yaml:"stop_file"` // watch <campaign_dir>/STOP
}

// Generator selects and parameterizes the proposal strategy
type Generator struct {
	Type         string       `yaml:"type"` // random, grid, local_search
	Seed         int64        `yaml:"seed"`
	NInit        int          `yaml:"n_init"`
	PointsPerDim int          `yaml:"points_per_dim"`
	Explorer     string       `yaml:"explorer"` // default, conservative, aggressive
	Convergence  *Convergence `yaml:"convergence,omitempty"`

	// Tasks turns the campaign into a multitask one; each trial is tagged
	// with the task that evaluates it.
	Tasks []models.Task `yaml:"tasks,omitempty"`
}

// Convergence configures when the local search stops proposing
type Convergence struct {
	Type      string  `yaml:"type"` // no_improvement, plateau, relative_improvement
	Patience  int     `yaml:"patience"`
	Window    int     `yaml:"window"`
	Threshold float64 `yaml:"threshold"`
}

// Evaluator selects and parameterizes the execution backend
type Evaluator struct {
	Type         string            `yaml:"type"` // function, template, docker, multitask
	Function     string            `yaml:"function,omitempty"`
	Template     string            `yaml:"template,omitempty"`
	ScriptName   string            `yaml:"script_name,omitempty"`
	Command      []string          `yaml:"command,omitempty"`
	Image        string            `yaml:"image,omitempty"`
	Env          map[string]string `yaml:"env,omitempty"`
	WorkDir      string            `yaml:"work_dir,omitempty"`
	Timeout      string            `yaml:"timeout,omitempty"`
	KeepWorkDirs bool              `yaml:"keep_work_dirs"`
	MaxParallel  int               `yaml:"max_parallel,omitempty"`

	// Tasks maps task names to their evaluators when Type is multitask.
	Tasks map[string]*Evaluator `yaml:"tasks,omitempty"`
}

// Server configures the read-only campaign APIs
type Server struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// Notify configures the completion callback
type Notify struct {
	CallbackURL string `yaml:"callback_url"`
	MaxRetries  int    `yaml:"max_retries"`
	Backoff     string `yaml:"backoff"` // exponential, constant
	BaseMs      int    `yaml:"base_ms"`
}

// GetDeadline parses the deadline; zero means no deadline
func (e *Exploration) GetDeadline() (time.Duration, error) {
	return parseOptionalDuration(e.Deadline)
}

// GetDrainTimeout parses the drain timeout
func (e *Exploration) GetDrainTimeout() (time.Duration, error) {
	return parseOptionalDuration(e.DrainTimeout)
}

// GetPollInterval parses the poll interval
func (e *Exploration) GetPollInterval() (time.Duration, error) {
	return parseOptionalDuration(e.PollInterval)
}

// CheckpointPath returns the configured checkpoint file location
func (e *Exploration) CheckpointPath() string {
	if e.Checkpoint != "" {
		return e.Checkpoint
	}
	return filepath.Join(e.CampaignDir, "checkpoint.json")
}

// GetTimeout parses the per-trial timeout; zero means none
func (e *Evaluator) GetTimeout() (time.Duration, error) {
	return parseOptionalDuration(e.Timeout)
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
