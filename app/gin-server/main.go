package main

import (
	"os"

	"github.com/spf13/cobra"
)

const app = "yoocv"

var rootCmd = &cobra.Command{
	Use:   app,
	Short: "yoocv parses, scores and tailors CVs",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
