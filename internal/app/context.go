// Package app wires workspace state together for the CLI and server: it
// resolves which program is active and loads its policy config, seeding
// defaults on first use.
package app

import (
	"context"
	"errors"
	"fmt"

	"coopline/internal/config"
	"coopline/internal/repo"
)

const defaultProgramID = "default"

// ResolveProgramConfig picks the active program and ensures its policy config
// exists in the database, seeding from coopline.yml or built-in defaults when
// missing. Overrides win; otherwise a workspace config file names the
// program, and a bare workspace falls back to "default".
func ResolveProgramConfig(ctx context.Context, workspace, programOverride string, r repo.Repo) (string, *config.Config, error) {
	programID := programOverride
	var fileCfg *config.Config
	if cfg, err := config.LoadOptional(workspace); err != nil {
		return "", nil, err
	} else if cfg != nil {
		fileCfg = cfg
		if programID == "" {
			programID = cfg.Program.ID
		}
	}
	if programID == "" {
		programID = defaultProgramID
	}

	cfg, err := r.GetPolicyConfig(ctx, programID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		seed := fileCfg
		if seed == nil || seed.Program.ID != programID {
			seed = config.Default(programID)
		}
		if err := r.UpsertPolicyConfig(ctx, programID, seed); err != nil {
			return "", nil, fmt.Errorf("seed program config: %w", err)
		}
		cfg = seed
	}
	cfg.Program.ID = programID
	return programID, cfg, nil
}

// ImportConfig validates and stores a config file as the program's policy.
func ImportConfig(ctx context.Context, path string, r repo.Repo) (*config.Config, error) {
	cfg, err := config.FromFile(path)
	if err != nil {
		return nil, err
	}
	if cfg.Program.ID == "" {
		cfg.Program.ID = defaultProgramID
	}
	if err := r.UpsertPolicyConfig(ctx, cfg.Program.ID, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
