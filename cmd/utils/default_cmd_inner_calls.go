package utils

import "github.com/spf13/cobra"

// PropagatePersistentPreRun calls the parent command's PersistentPreRun, which cobra
// does not do on its own when the child defines one.
var PropagatePersistentPreRun = func(cmd *cobra.Command, args []string) {
	if cmd.Parent().PersistentPreRun != nil {
		cmd.Parent().PersistentPreRun(cmd.Parent(), args)
	}
}

// CallHelpCommand prints the command's help. Used as the RunE of commands that only
// group subcommands.
var CallHelpCommand = func(cmd *cobra.Command, args []string) error {
	return cmd.Help()
}
