package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/eoprod/eoprod/internal/collocate"
	"github.com/eoprod/eoprod/internal/convert"
	"github.com/eoprod/eoprod/internal/product"
	"github.com/eoprod/eoprod/internal/subset"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

func newResolveCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <path>...",
		Short: "Show which adapter handles each input",
		Long: `Resolve matches each input against the enabled adapters in registration
order. Matching uses names only: nothing is read or downloaded. Inputs no
adapter understands are printed with "-". Adapters that cannot open products
in this build are followed by the reason.`,
		Args: cobra.MinimumNArgs(1),
		RunE: opts.run(func(_ context.Context, a *app, cmd *cobra.Command, args []string) error {
			resolved := make(map[string]resolution, len(args))
			for _, in := range args {
				r := resolution{Adapter: "-"}
				if e, ok := a.registry.ResolveEntry(in); ok {
					r = resolution{Adapter: e.Name, Unavailable: e.Unavailable}
				}
				resolved[in] = r
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), resolved)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, in := range args {
				r := resolved[in]
				if r.Unavailable != "" {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", in, r.Adapter, r.Unavailable)
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\n", in, r.Adapter)
			}
			return tw.Flush()
		}),
	}
}

func newInfoCommand(opts *options) *cobra.Command {
	var variables []string
	cmd := &cobra.Command{
		Use:   "info <path>",
		Short: "Show attributes, sub-products and variables of a product",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			agg, err := a.open(ctx, args[0])
			if err != nil {
				return err
			}
			defer agg.Close()
			return opts.report(cmd, agg, variables)
		}),
	}
	cmd.Flags().StringSliceVar(&variables, "variable", nil, "print pixel statistics of a variable (repeatable)")
	return cmd
}

// report prints agg, with statistics for the named variables.
func (o *options) report(cmd *cobra.Command, agg *product.Aggregate, variables []string) error {
	s := summarize(agg)
	if len(variables) > 0 {
		st, err := variableStats(agg, variables)
		if err != nil {
			return err
		}
		s.Statistics = st
	}
	return o.print(cmd.OutOrStdout(), s)
}

func newSubsetCommand(opts *options) *cobra.Command {
	var (
		pos       string
		size      float64
		wkt       string
		clip      bool
		variables []string
	)
	cmd := &cobra.Command{
		Use:   "subset <path>",
		Short: "Cut a geographic region out of a product",
		Long: `Subset derives a product restricted to a region given either as a centre
position and square size in metres, or as a WKT polygon:

  eoprod subset S3A_OL_1_EFR_...SEN3 --pos 11.5,46.2 --size 20000
  eoprod subset S3A_OL_1_EFR_...SEN3 --wkt "POLYGON((11 46, 12 46, 12 47, 11 46))"`,
		Args: cobra.ExactArgs(1),
		RunE: opts.run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			req, err := subsetRequest(pos, size, wkt)
			if err != nil {
				return err
			}

			agg, err := a.open(ctx, args[0])
			if err != nil {
				return err
			}
			defer agg.Close()

			engine := subset.NewEngine(a.logger, a.metrics)
			engine.Clip = a.cfg.Subset.ClipToRaster
			if cmd.Flags().Changed("clip") {
				engine.Clip = clip
			}
			out, err := engine.Subset(agg, req)
			if err != nil {
				return err
			}
			defer out.Close()
			return opts.report(cmd, out, variables)
		}),
	}
	f := cmd.Flags()
	f.StringVar(&pos, "pos", "", "centre position as lon,lat in degrees")
	f.Float64Var(&size, "size", 0, "square side in metres, used with --pos")
	f.StringVar(&wkt, "wkt", "", "region as a WKT polygon")
	f.BoolVar(&clip, "clip", true, "clip the region to the raster instead of failing")
	f.StringSliceVar(&variables, "variable", nil, "print pixel statistics of a variable (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("pos", "wkt")
	cmd.MarkFlagsOneRequired("pos", "wkt")
	return cmd
}

// subsetRequest validates the subset flags.
func subsetRequest(pos string, size float64, wkt string) (subset.Request, error) {
	if wkt != "" {
		return subset.PolygonRequest(wkt), nil
	}
	p, err := parsePosition(pos)
	if err != nil {
		return subset.Request{}, err
	}
	if size <= 0 {
		return subset.Request{}, errors.NewError(errors.ErrCodeGeometryInvalid, "--size must be a positive number of metres").
			WithComponent("cli")
	}
	return subset.PositionRequest(p.Lon, p.Lat, size), nil
}

// parsePosition reads "lon,lat".
func parsePosition(s string) (types.Position, error) {
	bad := func(cause error) error {
		return errors.Errorf(errors.ErrCodeGeometryInvalid, "position %q is not lon,lat", s).
			WithCause(cause).WithComponent("cli")
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return types.Position{}, bad(nil)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return types.Position{}, bad(err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return types.Position{}, bad(err)
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return types.Position{}, bad(nil)
	}
	return types.Position{Lon: lon, Lat: lat}, nil
}

func newCollocateCommand(opts *options) *cobra.Command {
	var (
		resampling  string
		renameSlave bool
		variables   []string
	)
	cmd := &cobra.Command{
		Use:   "collocate <slave> <master>",
		Short: "Resample a slave product onto the grid of a master product",
		Args:  cobra.ExactArgs(2),
		RunE: opts.run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			method := a.cfg.Collocation.Resampling
			if cmd.Flags().Changed("resampling") {
				method = resampling
			}
			if _, err := types.ParseResamplingMethod(method); err != nil {
				return err
			}

			slave, err := a.open(ctx, args[0])
			if err != nil {
				return err
			}
			defer slave.Close()
			master, err := a.open(ctx, args[1])
			if err != nil {
				return err
			}
			defer master.Close()

			engine := collocate.NewEngine(a.logger, a.metrics)
			engine.Rules.MasterPattern = a.cfg.Collocation.MasterPattern
			engine.Rules.SlavePattern = a.cfg.Collocation.SlavePattern
			engine.Rules.RenameSlave = renameSlave
			out, err := engine.Collocate(slave, master, method)
			if err != nil {
				return err
			}
			defer out.Close()
			return opts.report(cmd, out, variables)
		}),
	}
	f := cmd.Flags()
	f.StringVar(&resampling, "resampling", string(types.NearestNeighbour),
		"resampling method: nearest_neighbour, bilinear_interpolation or cubic_convolution")
	f.BoolVar(&renameSlave, "rename-slave", false, "rename slave bands with the slave pattern")
	f.StringSliceVar(&variables, "variable", nil, "print pixel statistics of a variable (repeatable)")
	return cmd
}

func newConvertCommand(opts *options) *cobra.Command {
	var (
		zenith     string
		irradiance map[string]string
		variables  []string
	)
	cmd := &cobra.Command{
		Use:   "convert <path>",
		Short: "Convert radiance bands to top of atmosphere reflectance",
		Long: `Convert replaces every *_radiance band with a *_reflectance band computed
from the solar zenith angle and the band solar irradiance. Irradiance is read
from solar_flux_band_<n> unless given per band:

  eoprod convert S3A_OL_1_EFR_...SEN3 --irradiance Oa08_radiance=1797.1`,
		Args: cobra.ExactArgs(1),
		RunE: opts.run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			e0, err := parseIrradiance(irradiance)
			if err != nil {
				return err
			}
			agg, err := a.open(ctx, args[0])
			if err != nil {
				return err
			}
			defer agg.Close()

			engine := convert.NewEngine(convert.TOA{Zenith: zenith, Irradiance: e0}, a.logger, a.metrics)
			out, err := engine.Radiance2Reflectance(agg)
			if err != nil {
				return err
			}
			defer out.Close()
			return opts.report(cmd, out, variables)
		}),
	}
	f := cmd.Flags()
	f.StringVar(&zenith, "zenith", convert.DefaultZenithField, "solar zenith angle field, in degrees")
	f.StringToStringVar(&irradiance, "irradiance", nil, "solar irradiance per radiance band, band=value")
	f.StringSliceVar(&variables, "variable", nil, "print pixel statistics of a variable (repeatable)")
	return cmd
}

func parseIrradiance(in map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(in))
	for band, v := range in {
		e0, err := strconv.ParseFloat(v, 64)
		if err != nil || e0 <= 0 {
			return nil, errors.Errorf(errors.ErrCodeInvalidConfig, "irradiance of %s must be a positive number", band).
				WithCause(err).WithComponent("cli")
		}
		out[band] = e0
	}
	return out, nil
}

func newConfigCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or write the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			shown := *cfg
			if shown.Storage.S3.SecretAccessKey != "" {
				shown.Storage.S3.SecretAccessKey = "********"
			}
			if shown.Storage.S3.SessionToken != "" {
				shown.Storage.S3.SessionToken = "********"
			}
			data, err := yaml.Marshal(&shown)
			if err != nil {
				return errors.NewError(errors.ErrCodeInternalError, "cannot encode configuration").WithCause(err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init <file>",
		Short: "Write the effective configuration to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.SaveToFile(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", args[0])
			return nil
		},
	})
	return cmd
}
