package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dkoval/circsim/internal/analysis"
	"github.com/dkoval/circsim/internal/config"
	"github.com/dkoval/circsim/internal/engine"
	"github.com/dkoval/circsim/internal/metrics"
	"github.com/dkoval/circsim/internal/netlist"
	"github.com/dkoval/circsim/internal/result"
	"github.com/dkoval/circsim/internal/retry"
	"github.com/dkoval/circsim/internal/schematic"
	"github.com/dkoval/circsim/internal/store"
	"github.com/dkoval/circsim/internal/sweep"
	"github.com/dkoval/circsim/internal/thermal"
	"github.com/dkoval/circsim/internal/transport"
)

var (
	configFile string
	dt         float64
	stopTime   float64
	signalName string
	exportPath string
	measure    bool
	verbose    bool

	fosterPath string

	fStart  float64
	fStop   float64
	fPoints int

	sweepComponent string
	sweepParam     string
	sweepValues    string
	sweepParallel  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "circsim",
		Short: "power electronics circuit simulation",
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose solver logging")

	runCmd := &cobra.Command{
		Use:   "run [schematic.yaml]",
		Short: "run a transient simulation",
		Args:  cobra.ExactArgs(1),
		RunE:  runTransient,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "run settings file (yaml)")
	runCmd.Flags().Float64Var(&dt, "dt", 0, "timestep override")
	runCmd.Flags().Float64Var(&stopTime, "time", 0, "stop time override")
	runCmd.Flags().StringVar(&signalName, "signal", "", "signal to plot")
	runCmd.Flags().StringVar(&exportPath, "export", "", "write result JSON to file")
	runCmd.Flags().BoolVar(&measure, "measure", false, "print waveform measurements for --signal")

	dcopCmd := &cobra.Command{
		Use:   "dcop [schematic.yaml]",
		Short: "compute the DC operating point",
		Args:  cobra.ExactArgs(1),
		RunE:  runDCOP,
	}
	dcopCmd.Flags().StringVar(&configFile, "config", "", "run settings file (yaml)")

	acCmd := &cobra.Command{
		Use:   "ac [schematic.yaml]",
		Short: "run a small-signal frequency sweep",
		Args:  cobra.ExactArgs(1),
		RunE:  runAC,
	}
	acCmd.Flags().Float64Var(&fStart, "from", 1, "start frequency (Hz)")
	acCmd.Flags().Float64Var(&fStop, "to", 1e6, "stop frequency (Hz)")
	acCmd.Flags().IntVar(&fPoints, "points", 60, "points per sweep")
	acCmd.Flags().StringVar(&signalName, "signal", "", "node voltage to plot")

	netlistCmd := &cobra.Command{
		Use:   "netlist [schematic.yaml]",
		Short: "build and dump the solver netlist",
		Args:  cobra.ExactArgs(1),
		RunE:  dumpNetlist,
	}

	profilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "list the convergence recovery profiles",
		RunE:  listProfiles,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [schematic.yaml]",
		Short: "sweep a component parameter across values",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&configFile, "config", "", "run settings file (yaml)")
	sweepCmd.Flags().StringVar(&sweepComponent, "component", "", "component id to sweep")
	sweepCmd.Flags().StringVar(&sweepParam, "param", "", "parameter name to sweep")
	sweepCmd.Flags().StringVar(&sweepValues, "values", "", "comma-separated values")
	sweepCmd.Flags().IntVar(&sweepParallel, "parallel", 1, "concurrent sweep points")
	sweepCmd.Flags().StringVar(&signalName, "signal", "", "signal to summarize")

	thermalCmd := &cobra.Command{
		Use:   "thermal [schematic.yaml]",
		Short: "compute junction temperature from a dissipated-power signal",
		Args:  cobra.ExactArgs(1),
		RunE:  runThermal,
	}
	thermalCmd.Flags().StringVar(&configFile, "config", "", "run settings file (yaml)")
	thermalCmd.Flags().Float64Var(&dt, "dt", 0, "timestep override")
	thermalCmd.Flags().Float64Var(&stopTime, "time", 0, "stop time override")
	thermalCmd.Flags().StringVar(&fosterPath, "network", "", "foster network file (yaml)")
	thermalCmd.Flags().StringVar(&signalName, "signal", "", "power waveform signal, watts")

	rootCmd.AddCommand(runCmd, dcopCmd, acCmd, netlistCmd, profilesCmd, sweepCmd, thermalCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func loadSettings() (*config.RunSettings, error) {
	settings := config.DefaultSettings()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		settings = loaded
	}
	if dt > 0 {
		settings.Dt = dt
	}
	if stopTime > 0 {
		settings.StopTime = stopTime
	}
	return settings, settings.Validate()
}

func runTransient(cmd *cobra.Command, args []string) error {
	sch, err := schematic.Load(args[0])
	if err != nil {
		return err
	}
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := transport.NewRegistry()
	handle := registry.Register()
	defer registry.Remove(handle.ID())
	go func() {
		<-ctx.Done()
		handle.RequestCancel()
	}()

	cb := handle.Callbacks(func(pct float64, msg string) {
		fmt.Fprintf(os.Stderr, "\r%-10s %5.1f%%", msg, pct)
	}, nil)

	orch := retry.NewOrchestrator(engine.NewReference(), nil, newLogger())
	att, err := orch.Run(ctx, sch, settings.RunOptions(), cb)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	res := result.AssembleTransient(att)
	if res.ErrorMessage != "" {
		fmt.Printf("simulation failed: %s\n", res.ErrorMessage)
		printStats(res.Stats)
		os.Exit(1)
	}

	fmt.Printf("%s: %d steps\n", sch.Title, len(res.Time))
	printStats(res.Stats)

	if signalName != "" {
		if vals, ok := res.Signals[signalName]; ok {
			fmt.Println(signalName)
			fmt.Println(asciigraph.Plot(downsample(vals, 120), asciigraph.Height(12), asciigraph.Width(120)))
			if measure {
				printMeasurements(res.Time, vals, settings.Dt)
			}
		} else {
			fmt.Printf("no signal %q; available: %s\n", signalName, strings.Join(signalNames(res.Signals), ", "))
		}
	}

	if exportPath != "" {
		if err := store.ExportJSON(exportPath, sch.Title, settings.Dt, settings.StopTime, res); err != nil {
			return err
		}
		fmt.Println("exported", exportPath)
	}
	return nil
}

func runDCOP(cmd *cobra.Command, args []string) error {
	sch, err := schematic.Load(args[0])
	if err != nil {
		return err
	}
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	eng := engine.NewReference()
	nl, err := (&netlist.Builder{}).Build(sch)
	if err != nil {
		return err
	}

	raw, err := eng.RunDC(context.Background(), nl, settings.RunOptions().Newton)
	if err != nil {
		return err
	}
	res := result.AssembleDC(raw, nl)

	if res.ErrorMessage != "" {
		fmt.Printf("DC solve failed: %s\n", res.ErrorMessage)
	}
	fmt.Printf("converged=%t iterations=%d residual=%.3g\n",
		res.Convergence.Converged, res.Convergence.Iterations, res.Convergence.FinalResidual)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tVOLTAGE")
	for _, name := range sortedKeys(res.NodeVoltages) {
		fmt.Fprintf(w, "%s\t%.6g\n", name, res.NodeVoltages[name])
	}
	w.Flush()

	for _, p := range res.Convergence.Problematic {
		fmt.Printf("problematic: %s value=%.4g err=%.3gx tol\n", p.Name, p.Value, p.NormError)
	}
	if res.ErrorMessage != "" {
		os.Exit(1)
	}
	return nil
}

func runAC(cmd *cobra.Command, args []string) error {
	sch, err := schematic.Load(args[0])
	if err != nil {
		return err
	}
	eng := engine.NewReference()
	nl, err := (&netlist.Builder{}).Build(sch)
	if err != nil {
		return err
	}

	raw, err := eng.RunAC(context.Background(), nl, logspace(fStart, fStop, fPoints))
	if err != nil {
		return err
	}
	res := result.AssembleAC(raw)
	if res.ErrorMessage != "" {
		return fmt.Errorf("%s", res.ErrorMessage)
	}

	if signalName == "" {
		fmt.Println("available:", strings.Join(signalNames(res.Magnitude), ", "))
		return nil
	}
	mag, ok := res.Magnitude[signalName]
	if !ok {
		return fmt.Errorf("no signal %q in sweep", signalName)
	}
	db := make([]float64, len(mag))
	for i, m := range mag {
		db[i] = 20 * math.Log10(math.Max(m, 1e-18))
	}
	fmt.Printf("%s magnitude (dB), %g Hz .. %g Hz\n", signalName, fStart, fStop)
	fmt.Println(asciigraph.Plot(db, asciigraph.Height(12), asciigraph.Width(100)))
	return nil
}

func dumpNetlist(cmd *cobra.Command, args []string) error {
	sch, err := schematic.Load(args[0])
	if err != nil {
		return err
	}
	nl, err := (&netlist.Builder{}).Build(sch)
	if err != nil {
		return err
	}

	fmt.Printf("%d nodes, %d devices\n", nl.NodeCount(), len(nl.Devices))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tKIND\tNODES\tPARAMS")
	for _, d := range nl.Devices {
		nodes := make([]string, len(d.Nodes))
		for i, n := range d.Nodes {
			nodes[i] = nl.NodeName(n)
		}
		params := make([]string, 0, len(d.Params))
		for _, k := range sortedKeys(d.Params) {
			params = append(params, fmt.Sprintf("%s=%g", k, d.Params[k]))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, d.Kind, strings.Join(nodes, ","), strings.Join(params, " "))
	}
	return w.Flush()
}

func listProfiles(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROFILE\tSEEDING\tMIN ITER\tLIMITING\tMAX STEP\tDT SCALE")
	for _, p := range retry.CanonicalProfiles() {
		scale := p.DtScale
		if scale == 0 {
			scale = 1
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%g\t%g\n",
			p.Name, p.Seeding, p.MinNewtonIterations, p.ForceVoltageLimiting, p.MaxVoltageStep, scale)
	}
	return w.Flush()
}

func runSweep(cmd *cobra.Command, args []string) error {
	sch, err := schematic.Load(args[0])
	if err != nil {
		return err
	}
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if sweepComponent == "" || sweepParam == "" || sweepValues == "" {
		return fmt.Errorf("sweep requires --component, --param and --values")
	}

	var values []float64
	for _, tok := range strings.Split(sweepValues, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
		if err != nil {
			return fmt.Errorf("bad sweep value %q: %w", tok, err)
		}
		values = append(values, v)
	}

	spec := sweep.Spec{
		ComponentID: sweepComponent,
		Param:       sweepParam,
		Values:      values,
		Parallel:    sweepParallel,
	}
	points, err := sweep.Run(context.Background(), sch, spec, settings.RunOptions(),
		func() engine.Engine { return engine.NewReference() }, newLogger())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VALUE\tSTEPS\tFINAL\tERROR")
	for _, pt := range points {
		final := math.NaN()
		if vals, ok := pt.Result.Signals[signalName]; ok && len(vals) > 0 {
			final = vals[len(vals)-1]
		}
		fmt.Fprintf(w, "%g\t%d\t%.6g\t%s\n", pt.Value, len(pt.Result.Time), final, pt.Result.ErrorMessage)
	}
	return w.Flush()
}

func runThermal(cmd *cobra.Command, args []string) error {
	if fosterPath == "" || signalName == "" {
		return fmt.Errorf("thermal requires --network and --signal")
	}
	network, err := thermal.LoadNetwork(fosterPath)
	if err != nil {
		return err
	}
	sch, err := schematic.Load(args[0])
	if err != nil {
		return err
	}
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	orch := retry.NewOrchestrator(engine.NewReference(), nil, newLogger())
	att, err := orch.Run(context.Background(), sch, settings.RunOptions(), transport.Callbacks{})
	if err != nil {
		return err
	}
	res := result.AssembleTransient(att)
	if res.ErrorMessage != "" {
		return fmt.Errorf("simulation failed: %s", res.ErrorMessage)
	}
	power, ok := res.Signals[signalName]
	if !ok {
		return fmt.Errorf("no signal %q; available: %s", signalName, strings.Join(signalNames(res.Signals), ", "))
	}

	tr, err := network.Response(res.Time, power)
	if err != nil {
		return err
	}
	fmt.Printf("junction temperature, ambient %g C\n", network.Ambient)
	fmt.Println(asciigraph.Plot(downsample(tr.Temperature, 120), asciigraph.Height(12), asciigraph.Width(120)))
	fmt.Printf("peak %.2f C, final %.2f C\n", tr.PeakCelsius, tr.Temperature[len(tr.Temperature)-1])
	return nil
}

func printMeasurements(time, vals []float64, dt float64) {
	s := metrics.Summarize(vals, dt)
	fmt.Printf("  mean: %.6g\n  rms: %.6g\n  peak-to-peak: %.6g\n  thd: %.2f%%\n",
		s.Mean, s.RMS, s.PeakToPeak, s.THD*100)
	fmt.Printf("  overshoot: %.2f%%\n  settling (2%% band): %.6g s\n",
		metrics.Overshoot(vals)*100, metrics.SettlingTime(time, vals, 0.02))
	if sp, err := analysis.ComputeSpectrum(vals, dt); err == nil {
		if f, m := sp.DominantFrequency(); m > 0 {
			fmt.Printf("  dominant: %.6g Hz (amplitude %.4g)\n", f, m)
		}
	}
}

func printStats(stats map[string]any) {
	for _, k := range sortedKeys(stats) {
		fmt.Printf("  %s: %v\n", k, stats[k])
	}
}

func signalNames[V any](m map[string]V) []string {
	return sortedKeys(m)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func downsample(vals []float64, width int) []float64 {
	if len(vals) <= width {
		return vals
	}
	out := make([]float64, width)
	for i := range out {
		out[i] = vals[i*len(vals)/width]
	}
	return out
}

func logspace(from, to float64, n int) []float64 {
	if n < 2 {
		return []float64{from}
	}
	out := make([]float64, n)
	lf, lt := math.Log10(from), math.Log10(to)
	for i := range out {
		out[i] = math.Pow(10, lf+(lt-lf)*float64(i)/float64(n-1))
	}
	return out
}
