package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cjeanneret/fieldtools/internal/camera"
	"github.com/cjeanneret/fieldtools/internal/coc"
)

func newCamerasCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cameras",
		Aliases: []string{"camera", "cam"},
		Short:   "List and manage camera bodies",
	}
	cmd.AddCommand(
		newCamerasListCmd(a),
		newCamerasAddCmd(a),
		newCamerasUpdateCmd(a),
		newCamerasDeleteCmd(a),
		newCamerasMoveCmd(a),
		newCamerasSelectCmd(a),
		newCamerasSelectedCmd(a),
		newCamerasSeedCmd(a),
	)
	return cmd
}

func newCamerasListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cameras in order (* marks the selected one)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cams, err := a.cameras.FindAll(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), cams)
			}
			selected := -1
			if sel, ok, err := a.cameras.FindSelected(cmd.Context()); err != nil {
				return err
			} else if ok {
				selected = sel.Identifier
			}
			return printCameras(cmd.OutOrStdout(), cams, selected)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

// cocFlags are shared by add and update.
type cocFlags struct {
	value  float64
	preset string
}

func (f *cocFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.value, "coc", 0, "circle of confusion in mm, e.g. 0.030")
	cmd.Flags().StringVar(&f.preset, "preset", "", `CoC preset name, e.g. "APS-C (Canon)" (see "coc presets")`)
	cmd.MarkFlagsMutuallyExclusive("coc", "preset")
	cmd.MarkFlagsOneRequired("coc", "preset")
}

func (f *cocFlags) resolve(description string) (coc.CoC, error) {
	if f.preset != "" {
		p, ok := coc.FindPreset(f.preset)
		if !ok {
			return coc.CoC{}, fmt.Errorf("unknown coc preset %q", f.preset)
		}
		return p, nil
	}
	return coc.New(description, f.value)
}

func newCamerasAddCmd(a *app) *cobra.Command {
	var f cocFlags
	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Append a camera with the next free identifier",
		Example: `  fieldtools cameras add "Nikon D850" --preset "35mm (full frame)"
  fieldtools cameras add "Pinhole" --coc 0.05`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.resolve(args[0])
			if err != nil {
				return err
			}
			cam, err := a.cameras.Add(cmd.Context(), args[0], c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", cam)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newCamerasUpdateCmd(a *app) *cobra.Command {
	var f cocFlags
	cmd := &cobra.Command{
		Use:   "update <identifier> <description>",
		Short: "Replace the camera with identifier, or append it when absent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIndex("identifier", args[0])
			if err != nil {
				return err
			}
			c, err := f.resolve(args[1])
			if err != nil {
				return err
			}
			cam, err := camera.New(args[1], c, id)
			if err != nil {
				return err
			}
			if err := a.cameras.Save(cmd.Context(), cam); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", cam)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newCamerasDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <identifier>",
		Aliases: []string{"rm"},
		Short:   "Delete the camera with identifier",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIndex("identifier", args[0])
			if err != nil {
				return err
			}
			if err := a.cameras.Delete(cmd.Context(), camera.Camera{Identifier: id}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted #%d\n", id)
			return nil
		},
	}
}

func newCamerasMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <from> <to>",
		Short: "Move the camera at position from to position to (0-based)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseIndex("from", args[0])
			if err != nil {
				return err
			}
			to, err := parseIndex("to", args[1])
			if err != nil {
				return err
			}
			return a.cameras.Move(cmd.Context(), from, to)
		},
	}
}

func newCamerasSelectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "select <identifier>",
		Short: "Select the camera used for depth of field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIndex("identifier", args[0])
			if err != nil {
				return err
			}
			return a.cameras.Select(cmd.Context(), id)
		},
	}
}

func newCamerasSelectedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "selected",
		Short: "Print the selected camera",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cam, ok, err := a.cameras.FindSelected(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no camera selected")
			}
			fmt.Fprintln(cmd.OutOrStdout(), cam)
			return nil
		},
	}
}

func newCamerasSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Fill an empty store with one camera per CoC preset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.cameras.SeedDefaults(cmd.Context(), coc.Presets())
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "store already holds cameras, nothing seeded")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d cameras\n", n)
			return nil
		},
	}
}

func printCameras(out io.Writer, cams []camera.Camera, selected int) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tDESCRIPTION\tCOC (mm)")
	for _, c := range cams {
		mark := ""
		if c.Identifier == selected {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%.3f\n", mark, c.Identifier, c.Description, c.CoC.Value)
	}
	return tw.Flush()
}

func parseIndex(name, raw string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", name, raw)
	}
	return v, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
