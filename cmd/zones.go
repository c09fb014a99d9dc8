/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"

	"github.com/rotblauer/fixguard/geo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// zonesCmd represents the zones command
var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Print the configured excluded zones as GeoJSON",
	Long: `Prints every excluded zone, from configuration and --zones-geojson, as a
FeatureCollection of Points with a toleranceMeters property.
The output can be fed back with --zones-geojson.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := engineConfig(viper.GetViper())
		if err != nil {
			return err
		}
		b, err := geo.ZonesToGeoJSON(config.Zones())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return err
	},
}

func init() {
	rootCmd.AddCommand(zonesCmd)
}
