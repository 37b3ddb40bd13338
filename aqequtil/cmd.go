/*
Copyright © 2026 the aqeq authors.
This file is part of aqeq.

aqeq is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

aqeq is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with aqeq.  If not, see <http://www.gnu.org/licenses/>.
*/

package aqequtil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/aqeq"
	"github.com/spatialmodel/aqeq/internal/store"
	"github.com/spatialmodel/aqeq/thermodb"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to aqeq.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "verbose",
			usage: `
              verbose specifies whether to log the progress of every
              Newton-Raphson iteration.`,
			shorthand:  "v",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "SpeciesDatabase",
			usage: `
              SpeciesDatabase is the path to the aqueous species database. Files
              ending in .yaml or .yml hold a complete database including solids
              and interaction parameters; other files are read as a
              whitespace-separated species table. It can include environment
              variables.`,
			defaultVal: "database.txt",
			flagsets:   []*pflag.FlagSet{solveCmd.Flags(), batchCmd.Flags(), sweepCmd.Flags(), phasesCmd.Flags(), convertCmd.Flags()},
		},
		{
			name: "SolidsDatabase",
			usage: `
              SolidsDatabase is the path to an optional table of solid phases
              and their solubility products.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{solveCmd.Flags(), batchCmd.Flags(), sweepCmd.Flags(), phasesCmd.Flags(), convertCmd.Flags()},
		},
		{
			name: "PitzerParameters",
			usage: `
              PitzerParameters is the path to an optional table of binary ion
              interaction parameters.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{solveCmd.Flags(), batchCmd.Flags(), sweepCmd.Flags(), phasesCmd.Flags(), convertCmd.Flags()},
		},
		{
			name: "PrimarySpecies",
			usage: `
              PrimarySpecies lists the primary (basis) species whose
              concentrations are solved for. If empty, the primary flags stored
              in a YAML database are used.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{solveCmd.Flags(), batchCmd.Flags(), sweepCmd.Flags(), convertCmd.Flags()},
		},
		{
			name: "Totals",
			usage: `
              Totals gives the total concentration [mol/L] of each conserved
              component in the format component=value, e.g. U=1e-3.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{solveCmd.Flags(), batchCmd.Flags(), sweepCmd.Flags()},
		},
		{
			name: "InitialGuess",
			usage: `
              InitialGuess gives starting concentrations [mol/L] of primary
              species in the format species=value, e.g. F-=1e-3. Primary species
              without a value start at 1e-10 mol/L.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{solveCmd.Flags(), batchCmd.Flags(), sweepCmd.Flags()},
		},
		{
			name: "Concentrations",
			usage: `
              Concentrations gives free species concentrations [mol/L] in the
              format species=value for evaluating the saturation state of solids
              without solving for equilibrium.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{phasesCmd.Flags()},
		},
		{
			name: "Ideal",
			usage: `
              Ideal specifies whether saturation indices are calculated from
              concentrations instead of activities.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{solveCmd.Flags(), batchCmd.Flags(), sweepCmd.Flags(), phasesCmd.Flags()},
		},
		{
			name: "MaxIterations",
			usage: `
              MaxIterations is the maximum number of Newton-Raphson iterations.`,
			defaultVal: 50,
			flagsets:   []*pflag.FlagSet{solveCmd.Flags(), batchCmd.Flags(), sweepCmd.Flags()},
		},
		{
			name: "Tolerance",
			usage: `
              Tolerance is the residual norm [mol/L] below which the solution is
              considered converged.`,
			defaultVal: 1e-8,
			flagsets:   []*pflag.FlagSet{solveCmd.Flags(), batchCmd.Flags(), sweepCmd.Flags()},
		},
		{
			name: "RefreshActivities",
			usage: `
              RefreshActivities specifies whether activity coefficients are
              recalculated at every iteration rather than once from the initial
              guess.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{solveCmd.Flags(), batchCmd.Flags(), sweepCmd.Flags()},
		},
		{
			name: "Concurrency",
			usage: `
              Concurrency is the number of Jacobian columns calculated in
              parallel within one solve.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{solveCmd.Flags(), batchCmd.Flags(), sweepCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies derived quantities to calculate from the
              results, as expressions of species concentrations ([name]),
              activities ([{name}]), ionic strength (I), temperature (T) and
              saturation indices ([SI_solid]). It can include environment
              variables.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{solveCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to an optional spreadsheet (.xlsx) to write
              the results to. It can include environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{solveCmd.Flags(), batchCmd.Flags(), sweepCmd.Flags(), phasesCmd.Flags()},
		},
		{
			name: "ArchiveFile",
			usage: `
              ArchiveFile is the path to an optional SQLite database in which
              results are stored. It can include environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{solveCmd.Flags(), batchCmd.Flags(), runsCmd.Flags()},
		},
		{
			name: "Label",
			usage: `
              Label is a name for the run in the archive.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{solveCmd.Flags()},
		},
		{
			name: "Batch.ScenarioFile",
			usage: `
              Batch.ScenarioFile is the path to a TOML file of [[Scenario]]
              tables, each with a Label, Totals, InitialGuess and Ideal field.
              Fields not set in a scenario are taken from the main
              configuration.`,
			defaultVal: "scenarios.toml",
			flagsets:   []*pflag.FlagSet{batchCmd.Flags()},
		},
		{
			name: "Batch.Workers",
			usage: `
              Batch.Workers is the number of scenarios solved in parallel.`,
			defaultVal: runtime.GOMAXPROCS(-1),
			flagsets:   []*pflag.FlagSet{batchCmd.Flags()},
		},
		{
			name: "Sweep.Component",
			usage: `
              Sweep.Component is the conserved component whose total
              concentration is varied.`,
			defaultVal: "F",
			flagsets:   []*pflag.FlagSet{sweepCmd.Flags()},
		},
		{
			name: "Sweep.Min",
			usage: `
              Sweep.Min is the lowest total concentration [mol/L].`,
			defaultVal: 1e-5,
			flagsets:   []*pflag.FlagSet{sweepCmd.Flags()},
		},
		{
			name: "Sweep.Max",
			usage: `
              Sweep.Max is the highest total concentration [mol/L].`,
			defaultVal: 1e-2,
			flagsets:   []*pflag.FlagSet{sweepCmd.Flags()},
		},
		{
			name: "Sweep.Steps",
			usage: `
              Sweep.Steps is the number of log-spaced total concentrations.`,
			defaultVal: 20,
			flagsets:   []*pflag.FlagSet{sweepCmd.Flags()},
		},
		{
			name: "Sweep.PlotFile",
			usage: `
              Sweep.PlotFile is the path to an optional speciation diagram. The
              image format is chosen from the file extension (e.g., .png, .svg,
              .pdf).`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{sweepCmd.Flags()},
		},
		{
			name: "Convert.OutputFile",
			usage: `
              Convert.OutputFile is the path of the YAML database to write.`,
			defaultVal: "database.yaml",
			flagsets:   []*pflag.FlagSet{convertCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("AQEQ")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(solveCmd)
	Root.AddCommand(batchCmd)
	Root.AddCommand(sweepCmd)
	Root.AddCommand(phasesCmd)
	Root.AddCommand(convertCmd)
	Root.AddCommand(runsCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets the log level.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("aqeq: problem reading configuration file: %v", err)
		}
	}
	if Cfg.GetBool("verbose") {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "aqeq",
	Short: "An aqueous chemical equilibrium speciation model.",
	Long: `aqeq calculates the equilibrium speciation of aqueous solutions: the free
concentrations of primary and complexed species that satisfy mass action, mass
balance and electroneutrality for given total concentrations, and the saturation
state of solid phases. Use the subcommands specified below to access the model
functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'AQEQ_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of aqeq.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "aqeq v%s\n", aqeq.Version)
	},
	DisableAutoGenTag: true,
}

// solveCmd solves a single speciation problem.
var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve for equilibrium speciation.",
	Long: `solve calculates the equilibrium speciation of the solution defined by
the Totals and InitialGuess configuration variables using the species in
SpeciesDatabase, and the saturation state of the solids in SolidsDatabase.
A report is written to standard output and, optionally, to a spreadsheet and to
the run archive.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := problemFromConfig(Cfg)
		if err != nil {
			return err
		}
		outputVars, err := checkOutputVars(GetStringMapString("OutputVariables", Cfg))
		if err != nil {
			return err
		}
		return Solve(context.Background(), cmd.OutOrStdout(), p, solverFromConfig(Cfg),
			outputVars,
			os.ExpandEnv(Cfg.GetString("OutputFile")),
			os.ExpandEnv(Cfg.GetString("ArchiveFile")),
			Cfg.GetString("Label"))
	},
	DisableAutoGenTag: true,
}

// batchCmd solves a set of scenarios.
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Solve a batch of scenarios.",
	Long: `batch solves each of the scenarios in Batch.ScenarioFile in parallel.
Scenarios share the databases and solver settings of the main configuration
and can override its Totals, InitialGuess and Ideal settings. Identical
scenarios are only solved once.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := problemFromConfig(Cfg)
		if err != nil {
			return err
		}
		outputVars, err := checkOutputVars(GetStringMapString("OutputVariables", Cfg))
		if err != nil {
			return err
		}
		scenarios, err := LoadScenarios(os.ExpandEnv(Cfg.GetString("Batch.ScenarioFile")))
		if err != nil {
			return err
		}
		return RunBatch(context.Background(), cmd.OutOrStdout(), p, solverFromConfig(Cfg),
			scenarios, Cfg.GetInt("Batch.Workers"), outputVars,
			os.ExpandEnv(Cfg.GetString("OutputFile")),
			os.ExpandEnv(Cfg.GetString("ArchiveFile")))
	},
	DisableAutoGenTag: true,
}

// sweepCmd varies the total concentration of one component.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Calculate speciation over a range of total concentrations.",
	Long: `sweep solves for equilibrium at Sweep.Steps total concentrations of
Sweep.Component spaced evenly on a log scale between Sweep.Min and Sweep.Max.
Each solve starts from the result of the previous one. The results are written
as a table and optionally as a speciation diagram and a spreadsheet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := problemFromConfig(Cfg)
		if err != nil {
			return err
		}
		return RunSweep(context.Background(), cmd.OutOrStdout(), p, solverFromConfig(Cfg),
			aqeq.ElementLabel(Cfg.GetString("Sweep.Component")),
			Cfg.GetFloat64("Sweep.Min"), Cfg.GetFloat64("Sweep.Max"), Cfg.GetInt("Sweep.Steps"),
			os.ExpandEnv(Cfg.GetString("Sweep.PlotFile")),
			os.ExpandEnv(Cfg.GetString("OutputFile")))
	},
	DisableAutoGenTag: true,
}

// phasesCmd evaluates solid phases for given concentrations.
var phasesCmd = &cobra.Command{
	Use:   "phases",
	Short: "Calculate saturation indices.",
	Long: `phases calculates the saturation index of each solid in SolidsDatabase
for the free concentrations given in the Concentrations configuration variable,
without solving for equilibrium. Unless Ideal is set, activity coefficients are
calculated from the given composition.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := loadDatabase(Cfg)
		if err != nil {
			return err
		}
		conc, err := parsePairs(Cfg.GetStringSlice("Concentrations"))
		if err != nil {
			return fmt.Errorf("aqeq: reading Concentrations: %v", err)
		}
		return Phases(cmd.OutOrStdout(), db, conc, Cfg.GetBool("Ideal"),
			os.ExpandEnv(Cfg.GetString("OutputFile")))
	},
	DisableAutoGenTag: true,
}

// convertCmd converts text database tables to YAML.
var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a database to YAML.",
	Long: `convert reads the species, solids and interaction parameter databases
and writes them as a single YAML database to Convert.OutputFile. Species listed
in PrimarySpecies are marked as primary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := loadDatabase(Cfg)
		if err != nil {
			return err
		}
		if primary := Cfg.GetStringSlice("PrimarySpecies"); len(primary) > 0 {
			if err := db.MarkPrimary(speciesNames(primary)...); err != nil {
				return err
			}
		}
		f, err := os.Create(os.ExpandEnv(Cfg.GetString("Convert.OutputFile")))
		if err != nil {
			return fmt.Errorf("aqeq: %v", err)
		}
		if err := thermodb.WriteYAML(f, db); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
	DisableAutoGenTag: true,
}

// runsCmd lists the archived runs.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived runs.",
	Long:  `runs lists the runs stored in ArchiveFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := os.ExpandEnv(Cfg.GetString("ArchiveFile"))
		if path == "" {
			return fmt.Errorf("aqeq: ArchiveFile must be specified")
		}
		a, err := store.Open(path)
		if err != nil {
			return err
		}
		defer a.Close()
		runs, err := a.ListRuns(context.Background())
		if err != nil {
			return err
		}
		return WriteRuns(cmd.OutOrStdout(), runs)
	},
	DisableAutoGenTag: true,
}
