package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Resolve and validate the configuration without invoking any external tool.`,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	resolver, err := loadResolver()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	syncCfg, syncErr := resolver.Sync()
	deployCfg, deployErr := resolver.Deploy()

	if syncErr == nil {
		fmt.Println("Sync configuration is valid!")
		fmt.Println()
		fmt.Println("Production database:")
		fmt.Printf("  Host: %s\n", syncCfg.Prod.Host)
		fmt.Printf("  Port: %d\n", syncCfg.Prod.Port)
		fmt.Printf("  Database: %s\n", syncCfg.Prod.Database)
		fmt.Printf("  User: %s\n", syncCfg.Prod.Username)
		fmt.Printf("  Password: %v\n", passwordState(syncCfg.Prod.Password))
		fmt.Println()
		fmt.Println("Local database:")
		fmt.Printf("  Host: %s\n", syncCfg.Local.Host)
		fmt.Printf("  Port: %d\n", syncCfg.Local.Port)
		fmt.Printf("  Database: %s\n", syncCfg.Local.Database)
		fmt.Printf("  User: %s\n", syncCfg.Local.Username)
		fmt.Printf("  Password: %v\n", passwordState(syncCfg.Local.Password))
		fmt.Println()
		fmt.Printf("Dump directory: %s\n", syncCfg.DumpDir)
	} else {
		fmt.Printf("Sync configuration is invalid: %v\n", syncErr)
	}

	fmt.Println()

	if deployErr == nil {
		fmt.Println("Deploy configuration is valid!")
		fmt.Println()
		fmt.Printf("  Project: %s\n", deployCfg.ProjectID)
		fmt.Printf("  Region: %s\n", deployCfg.Region)
		fmt.Printf("  Service: %s\n", deployCfg.ServiceName)
		fmt.Printf("  Image: %s\n", deployCfg.Image)
		fmt.Printf("  Network: %s/%s\n", deployCfg.Network, deployCfg.Subnet)
		fmt.Printf("  Resources: %s CPU, %s memory\n", deployCfg.CPU, deployCfg.Memory)
		fmt.Printf("  Secrets: %s, %s\n", deployCfg.DBPasswordSecret, deployCfg.SessionSecret)
		fmt.Printf("  Bucket: %s\n", deployCfg.BucketName())
	} else {
		fmt.Printf("Deploy configuration is invalid: %v\n", deployErr)
	}

	if syncErr != nil && deployErr != nil {
		return fmt.Errorf("no valid configuration found")
	}
	return nil
}

func passwordState(password string) string {
	if password == "" {
		return "(not set)"
	}
	return "(configured)"
}
