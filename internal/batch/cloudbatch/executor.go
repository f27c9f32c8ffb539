// Package cloudbatch is the production Batch Executor Adapter: it
// builds and submits a Cloud Batch job, grounded line-for-line in
// original_source/whisper_queue/app/main.py::create_batch_job (one
// container runnable, one nvidia-tesla-t4 accelerator, GPU driver
// install, cloud logging, max_run_duration = max(300, audio_duration)).
package cloudbatch

import (
	"context"
	"fmt"
	"time"

	batch "cloud.google.com/go/batch/apiv1"
	batchpb "cloud.google.com/go/batch/apiv1/batchpb"
	durationpb "google.golang.org/protobuf/types/known/durationpb"

	whisperbatch "whisperqueue/internal/batch"
	"whisperqueue/internal/domain"
)

// Config is the static, process-wide configuration the executor needs
// in addition to each job (spec §6 environment table).
type Config struct {
	ProjectID    string
	Region       string
	Bucket       string
	ImageURL     string
	HFAuthToken  string
	PubsubTopic  string
	MachineType  string // default "n1-standard-4"
	AcceleratorType string // default "nvidia-tesla-t4"
}

// Executor submits jobs to Cloud Batch.
type Executor struct {
	client *batch.Client
	cfg    Config
}

// New wraps an already-constructed Cloud Batch client.
func New(client *batch.Client, cfg Config) *Executor {
	if cfg.MachineType == "" {
		cfg.MachineType = "n1-standard-4"
	}
	if cfg.AcceleratorType == "" {
		cfg.AcceleratorType = "nvidia-tesla-t4"
	}
	return &Executor{client: client, cfg: cfg}
}

func (e *Executor) Submit(ctx context.Context, job domain.Job) (string, error) {
	params := whisperbatch.BuildParams(job, e.cfg.Bucket, e.cfg.HFAuthToken, e.cfg.PubsubTopic, e.cfg.ProjectID, e.cfg.Region)

	jobName := fmt.Sprintf("whisper-%s-%d", job.JobID, time.Now().Unix())

	container := &batchpb.Runnable_Container{
		ImageUri: e.cfg.ImageURL,
		Commands: []string{"python3", "/app/main.py"},
	}

	runnable := &batchpb.Runnable{
		Executable: &batchpb.Runnable_Container_{Container: container},
		Environment: &batchpb.Environment{
			Variables: params.Env(),
		},
	}

	taskSpec := &batchpb.TaskSpec{
		Runnables: []*batchpb.Runnable{runnable},
		ComputeResource: &batchpb.ComputeResource{
			CpuMilli:  2000,
			MemoryMib: 16384,
		},
		MaxRetryCount:    2,
		MaxRunDuration:   durationpb.New(time.Duration(params.MaxRunDurationSecs) * time.Second),
	}

	allocationPolicy := &batchpb.AllocationPolicy{
		Location: &batchpb.AllocationPolicy_LocationPolicy{
			AllowedLocations: []string{fmt.Sprintf("regions/%s", e.cfg.Region)},
		},
		Instances: []*batchpb.AllocationPolicy_InstancePolicyOrTemplate{
			{
				Policy: &batchpb.AllocationPolicy_InstancePolicy{
					MachineType: e.cfg.MachineType,
					Accelerators: []*batchpb.AllocationPolicy_Accelerator{
						{Type: e.cfg.AcceleratorType, Count: 1},
					},
				},
				InstallGpuDrivers: true,
			},
		},
	}

	req := &batchpb.CreateJobRequest{
		Parent: fmt.Sprintf("projects/%s/locations/%s", e.cfg.ProjectID, e.cfg.Region),
		JobId:  jobName,
		Job: &batchpb.Job{
			TaskGroups: []*batchpb.TaskGroup{
				{TaskCount: 1, TaskSpec: taskSpec},
			},
			AllocationPolicy: allocationPolicy,
			LogsPolicy: &batchpb.LogsPolicy{
				Destination: batchpb.LogsPolicy_CLOUD_LOGGING,
			},
		},
	}

	created, err := e.client.CreateJob(ctx, req)
	if err != nil {
		return "", &whisperbatch.SubmitError{Err: err}
	}
	return created.GetName(), nil
}
