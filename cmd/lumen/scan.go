package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumengallery/lumen/internal/modules/storemodule"
	"github.com/lumengallery/lumen/internal/modules/watchermodule"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Reconcile the metadata store with the photos directory and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		store, err := storemodule.NewStore(cfg.Gallery.DataFile, nil)
		if err != nil {
			return err
		}
		before := store.Len()

		watcher, err := watchermodule.NewDirectoryWatcher(cfg.Gallery.PhotosDir, store, nil)
		if err != nil {
			return err
		}
		if err := watcher.Reconcile(); err != nil {
			return err
		}

		fmt.Printf("Scanned %s: %d new, %d total\n",
			cfg.Gallery.PhotosDir, store.Len()-before, store.Len())
		return nil
	},
}
