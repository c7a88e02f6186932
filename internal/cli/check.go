package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/guardchain/internal/config"
	"github.com/ppiankov/guardchain/internal/model"
)

var (
	checkConfig   string
	checkUserRole string
	checkFormat   string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkConfig, "config", "", "Path to pipeline YAML (default: built-in chain)")
	checkCmd.Flags().StringVar(&checkUserRole, "user-role", "", "User role for rate keying")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
}

var checkCmd = &cobra.Command{
	Use:   "check [text]",
	Short: "Validate text through a pipeline",
	Long: "Runs the given text (or stdin when no argument is given) through\n" +
		"the configured guard chain and prints the decision.\n\n" +
		"Exit code 0 when the input is allowed, 1 when it is denied.",
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	var input string
	if len(args) == 1 {
		input = args[0]
	} else {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		input = strings.TrimRight(string(raw), "\n")
	}

	cfg := config.DefaultConfig()
	if checkConfig != "" {
		var err error
		cfg, err = config.Load(checkConfig)
		if err != nil {
			return err
		}
	}
	pipe, err := cfg.Build()
	if err != nil {
		return err
	}

	opts := []model.ContextOption{}
	if checkUserRole != "" {
		opts = append(opts, model.WithUserRole(checkUserRole))
	}
	decision := pipe.Validate(context.Background(), input, model.NewContext(opts...))

	switch checkFormat {
	case "json":
		out, err := json.MarshalIndent(decision, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	default:
		printDecision(decision)
	}

	if !decision.Allowed {
		os.Exit(1)
	}
	return nil
}

func printDecision(d model.Decision) {
	fmt.Printf("action:   %s\n", d.Action)
	fmt.Printf("allowed:  %t\n", d.Allowed)
	if len(d.Reasons) > 0 {
		fmt.Println("reasons:")
		for _, r := range d.Reasons {
			fmt.Printf("  - %s\n", r)
		}
	}
	if d.Action == model.ActionTransform {
		fmt.Printf("output:   %v\n", d.Output)
	}
	fmt.Printf("audit_id: %s\n", d.AuditID)
}
