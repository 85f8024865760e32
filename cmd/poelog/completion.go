package main

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for poelog.

To load completions:

Bash:
  $ source <(poelog completion bash)

Zsh:
  $ poelog completion zsh > "${fpath[1]}/_poelog"

Fish:
  $ poelog completion fish | source

PowerShell:
  PS> poelog completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := cmd.Root()
		out := cmd.OutOrStdout()

		switch args[0] {
		case "bash":
			return root.GenBashCompletionV2(out, true)
		case "zsh":
			return root.GenZshCompletion(out)
		case "fish":
			return root.GenFishCompletion(out, true)
		case "powershell":
			return root.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// registerFlagCompletions completes enumerated flag values.
// It must run after every command's flags are defined.
func registerFlagCompletions() {
	formats := func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"jsonl", "pretty"}, cobra.ShellCompDirectiveNoFileComp
	}
	types := func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return ValidEventTypeNames(), cobra.ShellCompDirectiveNoFileComp
	}

	for _, c := range []*cobra.Command{tailCmd, parseCmd} {
		_ = c.RegisterFlagCompletionFunc("format", formats)
		_ = c.RegisterFlagCompletionFunc("types", types)
		_ = c.RegisterFlagCompletionFunc("exclude-types", types)
		_ = c.MarkFlagFilename("rules", "yaml", "yml")
		_ = c.MarkFlagFilename("plugin", "wasm")
	}
	_ = tailCmd.RegisterFlagCompletionFunc("overflow",
		func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return []string{"block", "drop-oldest", "drop-newest"}, cobra.ShellCompDirectiveNoFileComp
		})
}
