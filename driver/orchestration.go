package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mpenna/xrdrive/store"
)

// Orchestration artifact envelope: a JSON wrapper around Save/Restore
// that lets an external orchestrator hold on to a snapshot reference
// and hand it back later.

type savedArtifact struct {
	ArtifactType string `json:"artifact_type"` // "local" or "s3"
	Identifier   string `json:"identifier"`    // snapshot path
}

type restoreRules struct {
	RequiresSameResource bool `json:"requires_same_resource"`
}

type savedArtifactInfo struct {
	SavedArtifact savedArtifact `json:"saved_artifact"`
	ResourceName  string        `json:"resource_name"`
	CreatedDate   string        `json:"created_date"`
	RestoreRules  restoreRules  `json:"restore_rules"`
}

type orchestrationSaveResult struct {
	SavedArtifactsInfo savedArtifactInfo `json:"saved_artifacts_info"`
}

// OrchestrationSave captures a snapshot and returns the JSON artifact
// describing it. An empty mode defaults to "shallow"; only shallow
// saves exist for a CLI configuration snapshot.
func (d *Driver) OrchestrationSave(ctx context.Context, mode string) (string, error) {

	if mode == "" {
		mode = "shallow"
	}
	if mode != "shallow" && mode != "deep" {
		return "", fmt.Errorf("OrchestrationSave: %s: unsupported mode '%s'", d.cfg.Id, mode)
	}

	d.logger.Printf("OrchestrationSave: %s: mode=%s", d.cfg.Id, mode)

	path, saveErr := d.Save(ctx, ConfigurationRunning)
	if saveErr != nil {
		return "", fmt.Errorf("OrchestrationSave: %s: %w", d.cfg.Id, saveErr)
	}

	artifactType := "local"
	if store.S3Path(path) {
		artifactType = "s3"
	}

	result := orchestrationSaveResult{
		SavedArtifactsInfo: savedArtifactInfo{
			SavedArtifact: savedArtifact{
				ArtifactType: artifactType,
				Identifier:   path,
			},
			ResourceName: d.cfg.Id,
			CreatedDate:  time.Now().Format(time.RFC3339),
			RestoreRules: restoreRules{RequiresSameResource: true},
		},
	}

	buf, marshalErr := json.Marshal(&result)
	if marshalErr != nil {
		return "", fmt.Errorf("OrchestrationSave: %s: artifact: %v", d.cfg.Id, marshalErr)
	}

	return string(buf), nil
}

// OrchestrationRestore replays the snapshot referenced by a previously
// returned artifact.
func (d *Driver) OrchestrationRestore(ctx context.Context, artifactInfo string) error {

	var info orchestrationSaveResult
	if err := json.Unmarshal([]byte(artifactInfo), &info); err != nil {
		return fmt.Errorf("OrchestrationRestore: %s: bad artifact: %v", d.cfg.Id, err)
	}

	saved := info.SavedArtifactsInfo

	if saved.RestoreRules.RequiresSameResource && saved.ResourceName != d.cfg.Id {
		return fmt.Errorf("OrchestrationRestore: %s: artifact belongs to resource '%s'", d.cfg.Id, saved.ResourceName)
	}

	path := saved.SavedArtifact.Identifier
	if path == "" {
		return fmt.Errorf("OrchestrationRestore: %s: artifact carries no snapshot path", d.cfg.Id)
	}

	d.logger.Printf("OrchestrationRestore: %s: path=[%s]", d.cfg.Id, path)

	return d.Restore(ctx, path, ConfigurationRunning, RestoreOverride)
}
