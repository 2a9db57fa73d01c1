package jobs

import (
	"context"
	"time"

	"github.com/signalscan/scanner/internal/enrich"
	"github.com/signalscan/scanner/internal/news/vault"
	"github.com/signalscan/scanner/internal/pipeline"
	"github.com/signalscan/scanner/pkg/logger"
)

// CheckpointJob flushes all persisted scanner state
type CheckpointJob struct {
	manager   *pipeline.Manager
	vault     *vault.Vault
	vaultPath string
	logger    *logger.Logger
}

// NewCheckpointJob creates a new checkpoint job
func NewCheckpointJob(manager *pipeline.Manager, v *vault.Vault, vaultPath string, log *logger.Logger) *CheckpointJob {
	return &CheckpointJob{
		manager:   manager,
		vault:     v,
		vaultPath: vaultPath,
		logger:    log,
	}
}

// Name returns the job name
func (j *CheckpointJob) Name() string {
	return "checkpoint"
}

// Schedule returns the cron schedule (every 5 minutes)
func (j *CheckpointJob) Schedule() string {
	return "0 */5 * * * *"
}

// Run flushes every store to disk
func (j *CheckpointJob) Run(ctx context.Context) error {
	j.manager.Checkpoint()

	if err := j.vault.Save(j.vaultPath); err != nil {
		return err
	}

	j.logger.Debug("Checkpoint flushed")
	return nil
}

// VaultSweepJob expires stale articles from the news vault
type VaultSweepJob struct {
	vault  *vault.Vault
	logger *logger.Logger
}

// NewVaultSweepJob creates a new vault sweep job
func NewVaultSweepJob(v *vault.Vault, log *logger.Logger) *VaultSweepJob {
	return &VaultSweepJob{vault: v, logger: log}
}

// Name returns the job name
func (j *VaultSweepJob) Name() string {
	return "vault_sweep"
}

// Schedule returns the cron schedule (hourly)
func (j *VaultSweepJob) Schedule() string {
	return "0 0 * * * *"
}

// Run executes the vault sweep
func (j *VaultSweepJob) Run(ctx context.Context) error {
	removed := j.vault.Sweep(time.Now())

	if removed > 0 {
		j.logger.WithField("removed", removed).Info("Vault sweep completed")
	}
	return nil
}

// EnrichmentDecayJob ages promotion scores and culls dead records
type EnrichmentDecayJob struct {
	store  *enrich.Store
	logger *logger.Logger
}

// NewEnrichmentDecayJob creates a new enrichment decay job
func NewEnrichmentDecayJob(store *enrich.Store, log *logger.Logger) *EnrichmentDecayJob {
	return &EnrichmentDecayJob{store: store, logger: log}
}

// Name returns the job name
func (j *EnrichmentDecayJob) Name() string {
	return "enrichment_decay"
}

// Schedule returns the cron schedule (every 15 minutes)
func (j *EnrichmentDecayJob) Schedule() string {
	return "0 */15 * * * *"
}

// Run executes the decay pass
func (j *EnrichmentDecayJob) Run(ctx context.Context) error {
	dropped := j.store.Decay()
	j.store.Cull()

	if dropped > 0 {
		j.logger.WithField("dropped", dropped).Info("Enrichment decay completed")
	}
	return nil
}
