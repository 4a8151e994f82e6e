package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/mobilerobots/tagslam/tsconfig"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Load and validate the engine configuration without running it",
	Run: func(cmd *cobra.Command, args []string) {
		conf, err := tsconfig.Load(configPath)
		if err != nil {
			log.Fatalf("tagslamd: %v", err)
		}
		warnings, err := conf.Validate()
		if err != nil {
			log.Fatalf("tagslamd: %v", err)
		}
		for _, w := range warnings {
			log.Printf("warning: %s", w)
		}
		log.Printf("%s: valid (%d camera(s), %d warning(s))", configPath, len(conf.Cameras), len(warnings))
	},
}

func init() {
	rootCmd.AddCommand(validateConfigCmd)
}
