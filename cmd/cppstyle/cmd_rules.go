package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// rulesCmd lists the registered rules in registration order.
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List registered style rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, reg, err := setup(cmd)
		if err != nil {
			return err
		}
		for _, r := range reg.All() {
			fmt.Printf("%-28s %-10s %-8s %s\n", r.ID(), r.Category(), r.Severity(), r.Summary())
		}
		return nil
	},
}
