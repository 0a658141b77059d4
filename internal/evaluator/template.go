package evaluator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"text/template"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// Files written next to the rendered script.
const (
	StdoutFile = "stdout.log"
	StderrFile = "stderr.log"
)

// TemplateRunner renders a script template with the trial parameters, runs
// it as a local process in the trial directory and analyzes the files it
// leaves behind.
type TemplateRunner struct {
	tmpl       *template.Template
	scriptName string
	command    []string
	env        map[string]string
	space      *models.Space
}

// NewTemplateRunner parses the template at path.
func NewTemplateRunner(path, scriptName string, command []string, env map[string]string, space *models.Space) (*TemplateRunner, error) {
	tmpl, err := template.New(filepath.Base(path)).Option("missingkey=error").ParseFiles(path)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}
	if len(command) == 0 {
		return nil, fmt.Errorf("template evaluator requires a command")
	}
	return &TemplateRunner{
		tmpl:       tmpl,
		scriptName: scriptName,
		command:    command,
		env:        env,
		space:      space,
	}, nil
}

func (r *TemplateRunner) Name() string { return "template" }

func (r *TemplateRunner) Run(ctx context.Context, job Job) (map[string]float64, error) {
	if job.Dir == "" {
		return nil, fmt.Errorf("template evaluator requires a work dir")
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, templateData(job.Trial)); err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	if err := os.WriteFile(filepath.Join(job.Dir, r.scriptName), buf.Bytes(), 0o755); err != nil {
		return nil, fmt.Errorf("write script: %w", err)
	}

	stdout, err := os.Create(filepath.Join(job.Dir, StdoutFile))
	if err != nil {
		return nil, err
	}
	defer stdout.Close()
	stderr, err := os.Create(filepath.Join(job.Dir, StderrFile))
	if err != nil {
		return nil, err
	}
	defer stderr.Close()

	cmd := exec.CommandContext(ctx, r.command[0], r.command[1:]...)
	cmd.Dir = job.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = append(os.Environ(), trialEnv(job, r.env)...)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("run %s: %w", r.command[0], err)
	}
	return ReadOutputs(r.space, job.Dir)
}

// templateData exposes parameters by name plus the trial id as .trial_id and
// its task, if any, as .task.
func templateData(t models.Trial) map[string]any {
	data := make(map[string]any, len(t.Parameters)+2)
	for k, v := range t.Parameters {
		data[k] = v
	}
	data["trial_id"] = t.ID
	if t.Task != "" {
		data["task"] = t.Task
	}
	return data
}

func trialEnv(job Job, extra map[string]string) []string {
	env := make([]string, 0, len(extra)+3+len(job.Trial.Parameters))
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	env = append(env,
		"EXPLORE_TRIAL_ID="+strconv.Itoa(job.Trial.ID),
		"EXPLORE_WORKER_ID="+strconv.Itoa(job.Slot),
	)
	if job.Trial.Task != "" {
		env = append(env, "EXPLORE_TASK="+job.Trial.Task)
	}
	for k, v := range job.Trial.Parameters {
		env = append(env, "EXPLORE_PARAM_"+k+"="+strconv.FormatFloat(v, 'g', -1, 64))
	}
	return env
}
