package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shalev007/restbook/internal/checkpoint"
	"github.com/shalev007/restbook/internal/config"
	"github.com/shalev007/restbook/internal/request"
	"github.com/shalev007/restbook/internal/session"
)

// NewCheckpointCmd создаёт группу команд управления контрольными точками.
func NewCheckpointCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Manage playbook checkpoints",
	}

	cmd.AddCommand(
		newCheckpointShowCmd(deps),
		newCheckpointClearCmd(deps),
	)

	return cmd
}

func newCheckpointShowCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "show PLAYBOOK",
		Short: "Show the checkpoint of a playbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, closeStore, err := openManager(cmd.Context(), deps, args[0])
			if err != nil {
				return err
			}
			defer closeStore()

			data := manager.Load(cmd.Context())
			if data == nil {
				deps.Output().Successf("No checkpoint found")
				return nil
			}
			return deps.Output().JSON(data)
		},
	}
}

func newCheckpointClearCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "clear PLAYBOOK",
		Short: "Remove the checkpoint of a playbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, closeStore, err := openManager(cmd.Context(), deps, args[0])
			if err != nil {
				return err
			}
			defer closeStore()

			manager.Clear(cmd.Context())
			deps.Output().Successf("Checkpoint cleared: %s", manager.Hash())
			return nil
		},
	}
}

// openManager загружает плейбук и открывает его хранилище точек.
func openManager(ctx context.Context, deps Deps, path string) (*checkpoint.Manager, func(), error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Incremental == nil || !cfg.Incremental.Enabled {
		return nil, nil, fmt.Errorf("playbook has no incremental section")
	}

	store, err := session.NewStore(deps.StorePath())
	if err != nil {
		return nil, nil, err
	}
	resolve := func(name string) (request.Session, error) {
		return resolveSession(cfg, store, name)
	}

	cpStore, err := checkpoint.NewStore(ctx, cfg.Incremental, resolve, deps.Logger)
	if err != nil {
		return nil, nil, err
	}

	manager, err := checkpoint.NewManager(cfg, cpStore, deps.Logger)
	if err != nil {
		cpStore.Close()
		return nil, nil, err
	}
	return manager, func() { cpStore.Close() }, nil
}
