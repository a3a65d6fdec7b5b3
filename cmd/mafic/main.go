package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ooliver1/mafic/pkg/mafic"
)

var (
	verbose  bool
	host     string
	port     int
	password string
	secure   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mafic",
		Short: "Mafic audio node CLI",
		Long:  "A command-line interface for inspecting audio nodes and fleet configs",
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&host, "host", "", "Node host, overrides MAFIC_HOST")
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "Node port, overrides MAFIC_PORT")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Node password, overrides MAFIC_PASSWORD")
	rootCmd.PersistentFlags().BoolVar(&secure, "secure", false, "Use TLS for the node connection")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(decodeCmd())

	if err := rootCmd.Execute(); err != nil {
		mafic.GetGlobalLogger().WithError(err).Fatal("CLI execution failed")
	}
}

// nodeConfig merges the environment config with flag overrides.
func nodeConfig() mafic.NodeConfig {
	config := mafic.NodeConfigFromEnv()
	if host != "" {
		config.Host = host
	}
	if port != 0 {
		config.Port = port
	}
	if password != "" {
		config.Password = password
	}
	if secure {
		config.Secure = true
	}
	return config
}

func versionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Probe a node's server version",
		Long:  "Fetch the version string of an audio node over REST",
		Run: func(cmd *cobra.Command, args []string) {
			config := nodeConfig()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			version, err := mafic.ProbeVersion(ctx, config)
			if err != nil {
				mafic.GetGlobalLogger().WithError(err).Fatal("Version probe failed")
			}

			fmt.Printf("Node %s:%d reports version %s\n", config.Host, config.Port, version)
			fmt.Printf("Client library version: %s\n", mafic.Version)
		},
	}

	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
		Long:  "Commands for inspecting node and fleet configuration",
	}

	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configCheckCmd())

	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective node configuration",
		Long:  "Display the node configuration resolved from environment and flags",
		Run: func(cmd *cobra.Command, args []string) {
			config := nodeConfig()

			fmt.Println("Current Configuration:")
			fmt.Printf("  Host: %s\n", config.Host)
			fmt.Printf("  Port: %d\n", config.Port)
			fmt.Printf("  Label: %s\n", config.Label)
			fmt.Printf("  Password: %s\n", maskString(config.Password))
			fmt.Printf("  Secure: %v\n", config.Secure)
			fmt.Printf("  Regions: %v\n", config.Regions)
			fmt.Printf("  Shard IDs: %v\n", config.ShardIDs)
			fmt.Printf("  Timeout: %v\n", config.Timeout)

			if problems := config.Validate(); len(problems) > 0 {
				fmt.Println("\nProblems:")
				for _, problem := range problems {
					fmt.Printf("  ✗ %s\n", problem)
				}
				os.Exit(1)
			}
			fmt.Println("\n✓ Configuration is valid")
		},
	}

	return cmd
}

func configCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [fleet-file]",
		Short: "Validate a fleet config file",
		Long:  "Parse and validate a YAML fleet configuration file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			fleet, err := mafic.LoadFleetConfig(args[0])
			if err != nil {
				mafic.GetGlobalLogger().WithError(err).Fatal("Fleet config is invalid")
			}

			fmt.Printf("✓ Fleet config is valid, %d nodes:\n", len(fleet.Nodes))
			for _, node := range fleet.Nodes {
				scheme := "http"
				if node.Secure {
					scheme = "https"
				}
				fmt.Printf("  %s: %s://%s:%d", node.Label, scheme, node.Host, node.Port)
				if len(node.Regions) > 0 {
					fmt.Printf(" regions=%v", node.Regions)
				}
				if len(node.ShardIDs) > 0 {
					fmt.Printf(" shards=%v", node.ShardIDs)
				}
				fmt.Println()
			}
		},
	}

	return cmd
}

func decodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode [track-id]",
		Short: "Decode a track id locally",
		Long:  "Decode a base64 track id without contacting a node",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			track, err := mafic.DecodeTrackID(args[0])
			if err != nil {
				mafic.GetGlobalLogger().WithError(err).Fatal("Track decoding failed")
			}

			fmt.Println("Decoded Track:")
			fmt.Printf("  Title: %s\n", track.Title)
			fmt.Printf("  Author: %s\n", track.Author)
			fmt.Printf("  Source: %s\n", track.Source)
			fmt.Printf("  Identifier: %s\n", track.Identifier)
			fmt.Printf("  Length: %v\n", time.Duration(track.Length)*time.Millisecond)
			fmt.Printf("  Stream: %v\n", track.Stream)
			if track.URI != "" {
				fmt.Printf("  URI: %s\n", track.URI)
			}
			if verbose {
				fmt.Printf("  Seekable: %v\n", track.Seekable)
				fmt.Printf("  Position: %d\n", track.Position)
			}
		},
	}

	return cmd
}

// Helper function to mask sensitive strings
func maskString(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
