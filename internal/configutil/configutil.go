// Package configutil resolves settings from a cobra flag first and falls
// back to viper when the flag was not set on the command line.
package configutil

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func FlagOrViperString(cmd *cobra.Command, flagName, viperKey string) string {
	if cmd != nil && cmd.Flags().Changed(flagName) {
		if v, err := cmd.Flags().GetString(flagName); err == nil {
			return v
		}
	}
	if viperKey == "" {
		if cmd != nil {
			if v, err := cmd.Flags().GetString(flagName); err == nil {
				return v
			}
		}
		return ""
	}
	return viper.GetString(viperKey)
}
