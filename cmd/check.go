/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

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
	"github.com/spf13/cobra"
)

// CheckCmd represents the check command
var CheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Build the destination grid and process layout without remeshing",
	Long: `
Writes the destination settings and grid and reports the process layouts that fit
the new mesh, then stops before any field is read. Exits with status 1.

remesh check --src old_run --dst new_run --mult 4,4,4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemesh(cmd, true)
	},
}

func init() {
	rootCmd.AddCommand(CheckCmd)
	addRemeshFlags(CheckCmd)
}
