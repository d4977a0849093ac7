package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/mapsi/internal/config"
	"github.com/i474232898/mapsi/internal/geolocate"
	"github.com/i474232898/mapsi/internal/session"
	"github.com/i474232898/mapsi/internal/webui"
)

func newSearchCmd(cfg **config.AppConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search for a place and print what the map would show",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runHeadless(cmd, *cfg, func(ctx context.Context, s *session.Session) error {
				return s.Controller.Search(ctx, query)
			})
		},
	}
	addOutputFlags(cmd)
	return cmd
}

func newLocateCmd(cfg **config.AppConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Print location details and weather for a position",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeadless(cmd, *cfg, nil)
		},
	}
	addOutputFlags(cmd)
	return cmd
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("lat", 0, "Latitude of the starting position (default DEFAULT_LAT)")
	cmd.Flags().Float64("lng", 0, "Longitude of the starting position (default DEFAULT_LNG)")
	cmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
}

// runHeadless opens a session at the requested position, applies fn, waits
// for the lookups and prints the resulting view.
func runHeadless(cmd *cobra.Command, cfg *config.AppConfig, fn func(ctx context.Context, s *session.Session) error) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	lat, lng := cfg.DefaultLat, cfg.DefaultLng
	if cmd.Flags().Changed("lat") {
		lat, _ = cmd.Flags().GetFloat64("lat")
	}
	if cmd.Flags().Changed("lng") {
		lng, _ = cmd.Flags().GetFloat64("lng")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.FetchTimeout)
	defer cancel()

	sessions := session.NewManager(a.deps)
	defer sessions.Shutdown()

	s, err := sessions.Create(ctx, geolocate.Static(lat, lng))
	if err != nil {
		return err
	}
	s.Controller.Wait()

	if fn != nil {
		if err := fn(ctx, s); err != nil {
			return err
		}
		s.Controller.Wait()
	}

	useYAML, _ := cmd.Flags().GetBool("yaml")
	return printModel(cmd.OutOrStdout(), s.View.Model(), useYAML)
}

func printModel(w io.Writer, m webui.Model, useYAML bool) error {
	var output []byte
	var err error
	if useYAML {
		output, err = yaml.Marshal(m)
	} else {
		output, err = json.MarshalIndent(m, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal view: %w", err)
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}
