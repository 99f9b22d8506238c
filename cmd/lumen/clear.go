package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lumengallery/lumen/internal/modules/storemodule"
)

var clearForce bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all image metadata (files are untouched)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		store, err := storemodule.NewStore(cfg.Gallery.DataFile, nil)
		if err != nil {
			return err
		}

		if !clearForce {
			fmt.Printf("Delete metadata for %d images? [y/N] ", store.Len())
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(answer)) != "y" {
				fmt.Println("Aborted")
				return nil
			}
		}

		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("Metadata cleared")
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVarP(&clearForce, "force", "f", false, "skip confirmation")
}
