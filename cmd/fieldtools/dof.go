package main

import (
	"fmt"
	"math"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cjeanneret/fieldtools/internal/camera"
	"github.com/cjeanneret/fieldtools/internal/coc"
	"github.com/cjeanneret/fieldtools/internal/logic/optics"
)

func newCoCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coc",
		Short: "Circle of confusion helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "presets",
		Short: "List the built-in CoC presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FORMAT\tCOC (mm)")
			for _, p := range coc.Presets() {
				fmt.Fprintf(tw, "%s\t%.3f\n", p.Description, p.Value)
			}
			return tw.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "sensor <width-mm> <height-mm>",
		Short: "Derive a CoC from the sensor dimensions (diagonal / 1500)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("width: %w", err)
			}
			h, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("height: %w", err)
			}
			v, err := optics.CoCFromSensor(w, h)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.3f\n", v)
			return nil
		},
	})
	return cmd
}

func newDOFCmd(a *app) *cobra.Command {
	var (
		focal, aperture, distanceM float64
		cameraID                   int
	)
	cmd := &cobra.Command{
		Use:   "dof",
		Short: "Compute depth of field for the selected camera",
		Example: `  fieldtools dof --focal 85 --aperture 2.8 --distance 4
  fieldtools dof --camera 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("focal") {
				focal = a.cfg.Defaults.FocalLengthMm
			}
			if !cmd.Flags().Changed("aperture") {
				aperture = a.cfg.Defaults.Aperture
			}
			if !cmd.Flags().Changed("distance") {
				distanceM = a.cfg.Defaults.DistanceM
			}

			var (
				cam camera.Camera
				ok  bool
				err error
			)
			if cmd.Flags().Changed("camera") {
				cam, ok, err = a.cameras.Find(cmd.Context(), cameraID)
			} else {
				cam, ok, err = a.cameras.FindSelected(cmd.Context())
			}
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("camera not found or none selected")
			}

			a.log.Debug().
				Float64("focal_length_mm", focal).
				Float64("aperture", aperture).
				Float64("distance_m", distanceM).
				Float64("coc_mm", cam.CoC.Value).
				Msg("computing depth of field")

			res, err := optics.DepthOfField(optics.Params{
				FocalLengthMm: focal,
				Aperture:      aperture,
				CoCMm:         cam.CoC.Value,
				DistanceMm:    distanceM * optics.MmPerMetre,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "camera:      %s\n", cam)
			fmt.Fprintf(out, "lens:        %g mm f/%g at %g m\n", focal, aperture, distanceM)
			fmt.Fprintf(out, "hyperfocal:  %s\n", metres(res.HyperfocalMm))
			fmt.Fprintf(out, "near:        %s\n", metres(res.NearMm))
			fmt.Fprintf(out, "far:         %s\n", metres(res.FarMm))
			fmt.Fprintf(out, "total:       %s\n", metres(res.TotalMm))
			return nil
		},
	}
	cmd.Flags().Float64Var(&focal, "focal", 0, "focal length in mm (default from config)")
	cmd.Flags().Float64Var(&aperture, "aperture", 0, "f-number (default from config)")
	cmd.Flags().Float64Var(&distanceM, "distance", 0, "subject distance in m (default from config)")
	cmd.Flags().IntVar(&cameraID, "camera", 0, "camera identifier (default: selected camera)")
	return cmd
}

func metres(mm float64) string {
	if math.IsInf(mm, 1) {
		return "infinity"
	}
	return fmt.Sprintf("%.2f m", mm/optics.MmPerMetre)
}
