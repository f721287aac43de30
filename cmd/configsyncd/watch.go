package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nodalsync/configsync/internal/di"
	"github.com/nodalsync/configsync/internal/model"
)

var watchNamespace string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a namespace and print change events as they arrive",
	Long: `watch builds the full client graph (Service Locator, Rate Limiters,
Long-Poll Notifier, one Remote Repository for the given namespace) and
prints every ChangeEvent the namespace's Dispatcher delivers until
interrupted.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchNamespace, "namespace", "application", "namespace to watch")
	rootCmd.AddCommand(watchCmd)
}

// changeListener adapts a plain function to dispatcher.Listener, the
// capability interface a Repository's Dispatcher fans ChangeEvents out to.
type changeListener func(model.ChangeEvent)

func (f changeListener) OnChange(event model.ChangeEvent) { f(event) }

func runWatch(cmd *cobra.Command, _ []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := di.NewContainer(cfgFile)
	if err != nil {
		return fmt.Errorf("configsyncd: build container: %w", err)
	}
	defer container.Shutdown()

	if err := container.HealthCheck(); err != nil {
		return fmt.Errorf("configsyncd: %w", err)
	}

	locSvc, err := di.Invoke[*di.LocatorService](container)
	if err != nil {
		return err
	}
	if err := locSvc.Locator.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("configsyncd: initial locator fetch failed, will keep retrying in background")
	}

	repo, err := container.NewRepository(watchNamespace)
	if err != nil {
		return fmt.Errorf("configsyncd: build repository: %w", err)
	}
	defer repo.Stop()

	repo.AddListener(changeListener(func(event model.ChangeEvent) {
		for _, c := range event.Changes {
			fmt.Printf("[%s] %s %s: %q -> %q\n", event.Namespace, c.ChangeType, c.Key, c.OldValue, c.NewValue)
		}
	}))

	if err := repo.Start(ctx); err != nil {
		return fmt.Errorf("configsyncd: start repository: %w", err)
	}

	log.Info().Str("namespace", watchNamespace).Msg("configsyncd: watching, press Ctrl-C to stop")
	<-ctx.Done()
	log.Info().Msg("configsyncd: shutting down")
	return nil
}
