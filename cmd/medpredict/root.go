package cmd

import (
	"fmt"
	"os"

	// Subcommands
	"github.com/cozy-creator/medpredict/cmd/medpredict/apikey"
	"github.com/cozy-creator/medpredict/cmd/medpredict/db"
	"github.com/cozy-creator/medpredict/cmd/medpredict/models"
	"github.com/cozy-creator/medpredict/cmd/medpredict/run"
	"github.com/cozy-creator/medpredict/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Cmd = &cobra.Command{
	Use:   "medpredict",
	Short: "Medical image disease prediction server",
	Long:  "Serves image classifiers for brain tumor, breast cancer, pneumonia, bone fracture, anemia and skin cancer over HTTP",

	// Runs before this command and any subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if config.IsLoaded() {
			return nil
		}

		return config.InitConfig()
	},
	SilenceUsage: true,
}

func Execute() {
	if err := Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pflags := Cmd.PersistentFlags()

	pflags.String("home", "", "Path to the medpredict home directory")
	pflags.String("config-file", "", "Path to the config file")
	pflags.String("env-file", "", "Path to the env file")

	viper.BindPFlag("home", pflags.Lookup("home"))
	viper.BindPFlag("config_file", pflags.Lookup("config-file"))
	viper.BindPFlag("env_file", pflags.Lookup("env-file"))

	Cmd.AddCommand(run.Cmd, models.Cmd, db.Cmd, apikey.Cmd)
	Cmd.CompletionOptions.HiddenDefaultCmd = true
}
