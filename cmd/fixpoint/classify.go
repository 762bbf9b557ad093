package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fixpoint/internal/danger"
)

func newClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <command>",
		Short: "Show how a shell command would be risk-classified",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := strings.Join(args, " ")
			c := danger.Classify(command)

			if !c.Dangerous {
				fmt.Printf("%s is not classified as dangerous\n", command)
				return nil
			}

			fmt.Printf("Command:  %s\n", command)
			fmt.Printf("Matched:  %s\n", c.Matched)
			fmt.Printf("Type:     %s\n", c.Spec.Type)
			fmt.Printf("Risk:     %s\n", c.Risk)
			fmt.Printf("Backup:   %s\n", c.Spec.Backup)
			fmt.Printf("Rollback: %t\n", c.Spec.Rollback)
			if c.Spec.Warning != "" {
				fmt.Printf("Warning:  %s\n", c.Spec.Warning)
			}
			for _, consequence := range c.Spec.Consequences {
				fmt.Printf("  - %s\n", consequence)
			}
			if len(c.Spec.Alternatives) > 0 {
				fmt.Printf("Safer alternatives:\n")
				for _, alt := range c.Spec.Alternatives {
					fmt.Printf("  - %s\n", alt)
				}
			}
			return nil
		},
	}
}
