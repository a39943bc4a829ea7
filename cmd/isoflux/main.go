package main

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/isoflux/isoflux/internal/types"
	"github.com/isoflux/isoflux/pkg/modeller"
	"github.com/isoflux/isoflux/pkg/parser"
	"github.com/isoflux/isoflux/pkg/solver"
	"github.com/isoflux/isoflux/pkg/utils"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "isoflux",
		Short: "isoflux estimates metabolic fluxes from 13C labeling data",
		Long: `A 13C metabolic flux analysis tool: compiles a reaction model into
EMU networks, simulates mass-isotopomer distributions and fits the free
fluxes to the measured ones.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.isoflux/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		initCmd(),
		fitCmd(),
	)

	cobra.OnInitialize(initConfig)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal(err)
		}

		viper.AddConfigPath(home + "/.isoflux")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize isoflux configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			restarts, _ := cmd.Flags().GetInt("restarts")
			seed, _ := cmd.Flags().GetInt64("seed")

			config := utils.DefaultConfig()
			config.Fit.Restarts = restarts
			config.Fit.Seed = seed

			return utils.SaveConfig(config)
		},
	}

	cmd.Flags().Int("restarts", 10, "Optimizer restarts per fit")
	cmd.Flags().Int64("seed", 0, "Initial-point seed (0 = time)")

	return cmd
}

func fitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fit MODEL",
		Short: "Fit fluxes to the measurements of a model file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")

			config, err := utils.LoadConfig()
			if err != nil {
				return err
			}
			if output != "" {
				config.Output.FluxCSV = output
			}

			return runFit(args[0], config)
		},
	}

	cmd.Flags().String("output", "", "Write the best flux assignment to a CSV file")

	return cmd
}

func runFit(modelFile string, config *utils.Config) error {
	log.Printf("Fitting model %s", modelFile)

	results, err := parser.ParseFile(modelFile)
	if err != nil {
		return err
	}

	problem, err := modeller.NewModeller(results).BuildProblem()
	if err != nil {
		return err
	}

	fluxSolver, err := solver.NewSolver(problem, solver.Settings{
		Restarts:      config.Fit.Restarts,
		MaxIterations: config.Fit.MaxIterations,
		ObjectiveTol:  config.Fit.ObjectiveTol,
		Seed:          config.Fit.Seed,
	})
	if err != nil {
		return err
	}

	solutions, err := fluxSolver.Solve()
	if err != nil {
		return err
	}

	for i, solution := range solutions {
		fmt.Printf("Restart %2d: SSR = %.6e\n", i+1, solution.SSR)
	}

	best := solver.Best(solutions)
	fmt.Printf("\nBest solution (SSR = %.6e):\n", best.SSR)
	for _, reaction := range problem.Reactions {
		fmt.Printf("  %-20s %12.6f\n", reaction.Name, best.Fluxes[reaction.ID])
	}

	if config.Output.FluxCSV != "" {
		if err := writeFluxCSV(config.Output.FluxCSV, problem, best); err != nil {
			return err
		}
		log.Printf("Best fluxes written to %s", config.Output.FluxCSV)
	}

	return nil
}

func writeFluxCSV(path string, problem types.Problem, best solver.Solution) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create flux file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"reaction", "type", "flux", "lower_bound", "upper_bound"}); err != nil {
		return err
	}
	for _, reaction := range problem.Reactions {
		record := []string{
			reaction.Name,
			reaction.Type.String(),
			strconv.FormatFloat(best.Fluxes[reaction.ID], 'g', -1, 64),
			formatBound(reaction.ComputedLowerBound),
			formatBound(reaction.ComputedUpperBound),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return nil
}

func formatBound(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
