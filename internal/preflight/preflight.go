package preflight

import (
	"context"
	"fmt"

	"signscribe/internal/config"
	"signscribe/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunServer executes the checks the prediction server depends on.
func RunServer(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Backup directory", cfg.Paths.BackupDir),
		CheckDatabase(ctx, cfg.Database.Driver, cfg.DatabaseDSN()),
	}
	if cfg.Predict.ModelPath != "" {
		results = append(results, CheckFile("Sign model", cfg.Predict.ModelPath))
		if cfg.Predict.ONNXLibrary != "" {
			results = append(results, CheckFile("ONNX Runtime library", cfg.Predict.ONNXLibrary))
		}
	}
	return results
}

// RunAll executes the server checks plus the client-side capture checks.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := RunServer(ctx, cfg)
	if cfg.Capture.FrameDir != "" {
		results = append(results, CheckDirectoryAccess("Frame directory", cfg.Capture.FrameDir))
	}
	if cfg.Capture.Device != "" {
		results = append(results, CheckCamera(cfg.Capture.Device))
	}
	results = append(results, CheckPredictService(ctx, cfg.Capture.Endpoint))
	for _, status := range deps.CheckBinaries(deps.FrameGrabbers()) {
		results = append(results, fromStatus(status))
	}
	return results
}

// Failed returns the results that did not pass, ignoring optional ones.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed && !result.Optional {
			failed = append(failed, result)
		}
	}
	return failed
}

func fromStatus(status deps.Status) Result {
	result := Result{
		Name:     status.Name,
		Passed:   status.Available,
		Optional: status.Optional,
		Detail:   status.Detail,
	}
	if status.Available {
		result.Detail = status.Command
	}
	if status.Description != "" {
		result.Detail = fmt.Sprintf("%s (%s)", result.Detail, status.Description)
	}
	return result
}
