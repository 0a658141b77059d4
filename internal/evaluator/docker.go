package evaluator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// ContainerLogFile receives the tail of each trial container's logs.
const ContainerLogFile = "container.log"

const containerWorkDir = "/workspace"

// DockerRunner runs each trial in a fresh container with the trial directory
// bind-mounted at /workspace.
type DockerRunner struct {
	image   string
	command []string
	env     map[string]string
	space   *models.Space

	mu  sync.Mutex
	cli *client.Client
}

// NewDockerRunner creates a runner for image. The docker client is created
// by Provision.
func NewDockerRunner(image string, command []string, env map[string]string, space *models.Space) *DockerRunner {
	return &DockerRunner{image: image, command: command, env: env, space: space}
}

func (r *DockerRunner) Name() string { return "docker" }

func (r *DockerRunner) Provision(requested int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cli != nil {
		return requested, nil
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return 0, fmt.Errorf("%w: creating docker client: %v", ErrUnavailable, err)
	}
	r.cli = cli
	return requested, nil
}

func (r *DockerRunner) dockerClient() (*client.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cli == nil {
		return nil, fmt.Errorf("docker client not provisioned")
	}
	return r.cli, nil
}

func (r *DockerRunner) Run(ctx context.Context, job Job) (map[string]float64, error) {
	cli, err := r.dockerClient()
	if err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(job.Dir)
	if err != nil {
		return nil, err
	}

	env := trialEnv(job, r.env)
	initTrue := true
	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config: &container.Config{
			Image:      r.image,
			Cmd:        r.command,
			Env:        env,
			WorkingDir: containerWorkDir,
			Labels: map[string]string{
				"exploration.trial_id": strconv.Itoa(job.Trial.ID),
				"exploration.task":     job.Trial.Task,
			},
		},
		HostConfig: &container.HostConfig{
			Mounts: []mount.Mount{{
				Type:   mount.TypeBind,
				Source: dir,
				Target: containerWorkDir,
			}},
			Init: &initTrue,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	containerID := createResp.ID
	defer func() {
		cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
	}()

	if _, err := cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container: %w", err)
	}

	waitResult := cli.ContainerWait(ctx, containerID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	for {
		select {
		case err, ok := <-waitResult.Error:
			if !ok {
				waitResult.Error = nil
				continue
			}
			if err == nil {
				continue
			}
			cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
			r.saveLogs(cli, containerID, dir)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("waiting for container: %w", err)
		case status := <-waitResult.Result:
			r.saveLogs(cli, containerID, dir)
			if status.StatusCode != 0 {
				return nil, fmt.Errorf("container exited with code %d", status.StatusCode)
			}
			return ReadOutputs(r.space, dir)
		}
	}
}

func (r *DockerRunner) saveLogs(cli *client.Client, containerID, dir string) {
	logReader, err := cli.ContainerLogs(context.Background(), containerID, client.ContainerLogsOptions{ShowStdout: true, ShowStderr: true, Tail: "100"})
	if err != nil || logReader == nil {
		return
	}
	defer logReader.Close()
	f, err := os.Create(filepath.Join(dir, ContainerLogFile))
	if err != nil {
		return
	}
	defer f.Close()
	io.Copy(f, logReader)
}

func (r *DockerRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cli == nil {
		return nil
	}
	err := r.cli.Close()
	r.cli = nil
	return err
}
