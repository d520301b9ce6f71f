package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robchristie/loom/internal/codec"
	"github.com/robchristie/loom/internal/model"
)

var validateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Schema-validate a single SDLC artifact",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			exitMalformed("read %s: %v", args[0], err)
		}
		if _, err := model.DecodeArtifact(data); err != nil {
			exitMalformed("%v", err)
		}
	},
}

var hashCmd = &cobra.Command{
	Use:   "hash <path>",
	Short: "Print the canonical SHA-256 of a JSON document",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			exitMalformed("read %s: %v", args[0], err)
		}
		var payload any
		if err := decodeJSON(data, &payload); err != nil {
			exitMalformed("parse %s: %v", args[0], err)
		}
		digest, err := codec.SHA256Hex(payload)
		if err != nil {
			exitMalformed("hash %s: %v", args[0], err)
		}
		fmt.Println(digest)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(hashCmd)
}
