package main

import (
	"fmt"

	"github.com/jholst/cloudops/internal/models"
	"github.com/jholst/cloudops/internal/services/gcloud"
	"github.com/jholst/cloudops/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Provision and deploy the wiki to Cloud Run",
	Long: `Provision cloud resources and deploy the wiki container image:

  secrets       prompt for and store the application secrets
  storage       create the upload bucket
  service       deploy the container image to Cloud Run
  iap           enable IAP and authorize its service agent
  grant-access  allow an identity through IAP
  url           print the service URL
  full          run secrets, storage, service, iap and url in order`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Cobra prints the usage block after the returned error.
		if len(args) > 0 {
			return fmt.Errorf("unknown subcommand %q", args[0])
		}
		return fmt.Errorf("a subcommand is required")
	},
}

func init() {
	deployCmd.AddCommand(secretsCmd)
	deployCmd.AddCommand(storageCmd)
	deployCmd.AddCommand(serviceCmd)
	deployCmd.AddCommand(iapCmd)
	deployCmd.AddCommand(grantAccessCmd)
	deployCmd.AddCommand(urlCmd)
	deployCmd.AddCommand(fullCmd)
}

// deployConfig resolves the deploy configuration, logging any
// configuration error before it propagates.
func deployConfig() (*models.DeployConfig, error) {
	resolver, err := loadResolver()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return nil, err
	}

	cfg, err := resolver.Deploy()
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return nil, err
	}

	return cfg, nil
}

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Prompt for and store the application secrets",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := deployConfig()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		return runner.New(log.Logger).ProvisionSecrets(ctx, *cfg)
	},
}

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Create the upload bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := deployConfig()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		_, err = gcloud.New(log.Logger).CreateBucket(ctx, *cfg)
		return err
	},
}

var serviceCmd = &cobra.Command{
	Use:     "service",
	Aliases: []string{"run"},
	Short:   "Deploy the container image to Cloud Run",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := deployConfig()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		return gcloud.New(log.Logger).Deploy(ctx, *cfg)
	},
}

var iapCmd = &cobra.Command{
	Use:   "iap",
	Short: "Enable IAP on the service and authorize its service agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := deployConfig()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		return gcloud.New(log.Logger).EnableIAP(ctx, *cfg)
	},
}

var grantAccessCmd = &cobra.Command{
	Use:   "grant-access <email>",
	Short: "Allow an identity through IAP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := deployConfig()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		return gcloud.New(log.Logger).GrantAccess(ctx, *cfg, args[0])
	},
}

var urlCmd = &cobra.Command{
	Use:   "url",
	Short: "Print the service URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := deployConfig()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		url, err := gcloud.New(log.Logger).ServiceURL(ctx, *cfg)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), url)
		return nil
	},
}

var fullCmd = &cobra.Command{
	Use:   "full",
	Short: "Run the complete deploy pipeline",
	Long: `Run the complete deploy pipeline in order: secrets, storage,
service, iap, url. The pipeline stops at the first failure; steps
already applied are left in place.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := deployConfig()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		url, err := runner.New(log.Logger).FullDeploy(ctx, *cfg)
		if err != nil {
			log.Error().Err(err).Msg("deploy pipeline failed")
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), url)
		return nil
	},
}
